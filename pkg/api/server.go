// Package api exposes the node over REST and WebSocket: order and
// balance queries backed by the application state, chain status backed
// by the sequencer, and signed-transaction submission into the mempool.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/openrails/fiatlock/pkg/app/core/mempool"
	"github.com/openrails/fiatlock/pkg/app/core/order"
	"github.com/openrails/fiatlock/pkg/app/escrow"
	"github.com/openrails/fiatlock/pkg/sequencer"
)

const maxTxBody = 1 << 16

// Server handles REST and WebSocket connections.
type Server struct {
	app    *escrow.App
	pool   *mempool.Mempool
	seq    *sequencer.Sequencer
	router *mux.Router
	hub    *Hub
	logger *zap.SugaredLogger
}

func NewServer(app *escrow.App, pool *mempool.Mempool, seq *sequencer.Sequencer, logger *zap.SugaredLogger) *Server {
	s := &Server{
		app:    app,
		pool:   pool,
		seq:    seq,
		router: mux.NewRouter(),
		hub:    NewHub(logger),
		logger: logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")

	api.HandleFunc("/accounts/{address}/balances/{token:[0-9]+}", s.handleGetBalance).Methods("GET")
	api.HandleFunc("/accounts/{address}/nonce", s.handleGetNonce).Methods("GET")

	api.HandleFunc("/chain/status", s.handleGetChainStatus).Methods("GET")

	api.HandleFunc("/txs", s.handleSubmitTx).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler exposes the routed handler without the CORS wrapper.
func (s *Server) Handler() http.Handler { return s.router }

// Start runs the HTTP server. Blocks until the listener fails.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.logger.Infow("api_listening", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func orderToInfo(o order.Order) OrderInfo {
	return OrderInfo{
		ID:          uint64(o.ID),
		Creator:     o.Creator.Hex(),
		TokenID:     o.TokenID,
		AmountToken: o.AmountToken,
		AmountFiat:  o.AmountFiat,
		Receiver:    o.Receiver.Hex(),
		ValidUntil:  o.ValidUntil,
		LockedUntil: o.LockedUntil,
		Lock:        o.Lock.Hex(),
		Deleted:     o.Deleted,
	}
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}

	o, ok := s.app.GetOrder(order.ID(id))
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	respondJSON(w, orderToInfo(o))
}

// handleListOrders pages through the creation index. Tombstones are
// included; clients filter on the deleted flag.
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	total := s.app.OrderIndexLength()

	offset := parseUintQuery(r, "offset", 0)
	limit := parseUintQuery(r, "limit", 100)
	if limit > 1000 {
		limit = 1000
	}

	entries := make([]OrderListEntry, 0, limit)
	for seq := offset; seq < total && uint64(len(entries)) < limit; seq++ {
		id, ok := s.app.OrderIndexEntry(seq)
		if !ok {
			break
		}
		o, ok := s.app.GetOrder(id)
		if !ok {
			continue
		}
		entries = append(entries, OrderListEntry{Seq: seq, Order: orderToInfo(o)})
	}

	respondJSON(w, OrderListResponse{Total: total, Offset: offset, Orders: entries})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !common.IsHexAddress(vars["address"]) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	addr := common.HexToAddress(vars["address"])

	tokenID, err := strconv.ParseUint(vars["token"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid token id", err.Error())
		return
	}

	respondJSON(w, BalanceInfo{
		Address: addr.Hex(),
		TokenID: tokenID,
		Balance: s.app.Balance(tokenID, addr),
	})
}

func (s *Server) handleGetNonce(w http.ResponseWriter, r *http.Request) {
	addrStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addrStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	addr := common.HexToAddress(addrStr)

	respondJSON(w, NonceInfo{Address: addr.Hex(), Nonce: s.app.NonceOf(addr)})
}

func (s *Server) handleGetChainStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, ChainStatus{
		Height:      s.seq.Height(),
		AppHash:     s.seq.AppHash().String(),
		MempoolSize: s.pool.Len(),
	})
}

// handleSubmitTx admits a signed transaction into the mempool. Only
// signature and nonce are checked here; execution preconditions are
// evaluated at block height.
func (s *Server) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTxBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body", err.Error())
		return
	}

	if err := s.app.CheckTx(body); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "transaction rejected", err.Error())
		return
	}

	s.pool.PushRaw(body)
	s.logger.Debugw("tx_admitted", "bytes", len(body))
	respondJSON(w, SubmitTxResponse{Status: "submitted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// BroadcastBlock pushes a commit notification to "blocks" subscribers.
func (s *Server) BroadcastBlock(b sequencer.Block, resp sequencer.ResponseFinalizeBlock) {
	s.hub.BroadcastToChannel("blocks", BlockUpdate{
		Type:    "block",
		Height:  b.Height,
		AppHash: resp.AppHash.String(),
		TxCount: len(b.Txs),
	})
}

// BroadcastOrderEvent pushes an escrow operation to "orders" subscribers.
func (s *Server) BroadcastOrderEvent(ev escrow.Event) {
	s.hub.BroadcastToChannel("orders", OrderEventUpdate{
		Type:    "order_event",
		Kind:    string(ev.Kind),
		OrderID: uint64(ev.OrderID),
		Caller:  ev.Caller.Hex(),
		Height:  ev.Height,
		OK:      ev.OK,
		Info:    ev.Info,
	})
}

func parseUintQuery(r *http.Request, key string, def uint64) uint64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return def
	}
	return v
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: error, Message: message})
}
