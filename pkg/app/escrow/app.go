// Package escrow is the application executed by the sequencer: it
// parses signed transactions out of finalized blocks, authenticates the
// caller, applies the order-book state transition at the block height,
// and commits the surviving writes. Failed transactions consume their
// nonce but leave orders and balances untouched.
package escrow

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/openrails/fiatlock/pkg/app/core/book"
	"github.com/openrails/fiatlock/pkg/app/core/ledger"
	"github.com/openrails/fiatlock/pkg/app/core/order"
	"github.com/openrails/fiatlock/pkg/app/core/proof"
	"github.com/openrails/fiatlock/pkg/app/core/transaction"
	"github.com/openrails/fiatlock/pkg/sequencer"
	"github.com/openrails/fiatlock/pkg/storage"
)

// StateStore persists per-block state deltas. Nil disables persistence.
type StateStore interface {
	CommitBlockDelta(storage.BlockDelta) error
}

// Event describes one applied or rejected escrow operation, emitted to
// the OnOrderEvent hook after its block commits.
type Event struct {
	Kind    transaction.TxType `json:"kind"`
	OrderID order.ID           `json:"order_id"`
	Caller  common.Address     `json:"caller"`
	Height  uint64             `json:"height"`
	OK      bool               `json:"ok"`
	Info    string             `json:"info,omitempty"`
}

type App struct {
	mu sync.Mutex

	cfg      book.Config
	orders   *order.MemoryStore
	ledger   *ledger.MemoryLedger
	nonces   map[common.Address]uint64
	verifier proof.Verifier

	store  StateStore
	logger *zap.SugaredLogger

	// OnOrderEvent runs once per transaction after block commit.
	OnOrderEvent func(Event)
}

func NewApp(cfg book.Config, verifier proof.Verifier, store StateStore, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:      cfg,
		orders:   order.NewMemoryStore(),
		ledger:   ledger.NewMemoryLedger(),
		nonces:   make(map[common.Address]uint64),
		verifier: verifier,
		store:    store,
		logger:   logger,
	}
}

// LoadState rehydrates in-memory state from the persisted records.
// Called once at startup, before any block executes.
func (a *App) LoadState(s *storage.PebbleStore) error {
	orders, err := s.LoadOrders()
	if err != nil {
		return fmt.Errorf("load orders: %w", err)
	}
	index, err := s.LoadIndex()
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	balances, err := s.LoadBalances()
	if err != nil {
		return fmt.Errorf("load balances: %w", err)
	}
	nonces, err := s.LoadNonces()
	if err != nil {
		return fmt.Errorf("load nonces: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, o := range orders {
		a.orders.Restore(o, false)
	}
	a.orders.RestoreIndex(index)
	for k, bal := range balances {
		a.ledger.Restore(k, bal)
	}
	a.nonces = nonces
	if a.nonces == nil {
		a.nonces = make(map[common.Address]uint64)
	}

	if a.logger != nil {
		a.logger.Infow("state_loaded",
			"orders", len(orders),
			"index_len", len(index),
			"balances", len(balances),
			"accounts", len(nonces))
	}
	return nil
}

// CheckTx admits a raw transaction into the mempool: structural
// validity, a recoverable signature, and a fresh nonce. Execution
// preconditions are deliberately not checked here; the block height they
// depend on is unknown until the transaction lands in a block.
func (a *App) CheckTx(raw []byte) error {
	tx, err := transaction.Deserialize(raw)
	if err != nil {
		return err
	}
	caller, err := transaction.VerifySignedTransaction(tx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if tx.Nonce <= a.nonces[caller.Address] {
		return fmt.Errorf("stale nonce %d for %s (last %d)",
			tx.Nonce, caller.Address.Hex(), a.nonces[caller.Address])
	}
	return nil
}

// FinalizeBlock executes every transaction in order against the block
// height, then hashes the post-block state.
func (a *App) FinalizeBlock(req sequencer.RequestFinalizeBlock) sequencer.ResponseFinalizeBlock {
	a.mu.Lock()
	defer a.mu.Unlock()

	delta := storage.BlockDelta{
		Orders:    make(map[order.ID]order.Order),
		IndexBase: a.orders.IndexLen(),
		Balances:  make(map[ledger.Key]uint64),
		Nonces:    make(map[common.Address]uint64),
	}

	results := make([]sequencer.TxResult, len(req.Txs))
	events := make([]Event, 0, len(req.Txs))

	for i, raw := range req.Txs {
		res, ev := a.applyTx(raw, req.Height, &delta)
		results[i] = res
		if ev != nil {
			events = append(events, *ev)
		}
		if !res.OK && a.logger != nil {
			a.logger.Debugw("tx_rejected", "height", req.Height, "reason", res.Info)
		}
	}

	appHash := a.stateHash()

	if a.store != nil {
		if err := a.store.CommitBlockDelta(delta); err != nil && a.logger != nil {
			a.logger.Errorw("state_persist_failed", "height", req.Height, "err", err)
		}
	}

	if a.OnOrderEvent != nil {
		for _, ev := range events {
			a.OnOrderEvent(ev)
		}
	}

	return sequencer.ResponseFinalizeBlock{AppHash: appHash, TxResults: results}
}

// applyTx runs one transaction. Writes go through overlays and only
// reach canonical state when the operation succeeds; the nonce is
// consumed on any correctly signed transaction, success or not, so a
// rejected transaction cannot be replayed.
func (a *App) applyTx(raw []byte, height uint64, delta *storage.BlockDelta) (sequencer.TxResult, *Event) {
	tx, err := transaction.Deserialize(raw)
	if err != nil {
		return sequencer.TxResult{Info: err.Error()}, nil
	}
	caller, err := transaction.VerifySignedTransaction(tx)
	if err != nil {
		return sequencer.TxResult{Info: err.Error()}, nil
	}

	if tx.Nonce <= a.nonces[caller.Address] {
		return sequencer.TxResult{
			Info: fmt.Sprintf("stale nonce %d (last %d)", tx.Nonce, a.nonces[caller.Address]),
		}, nil
	}
	a.nonces[caller.Address] = tx.Nonce
	delta.Nonces[caller.Address] = tx.Nonce

	orderOv := order.NewOverlay(a.orders)
	ledgerOv := ledger.NewOverlay(a.ledger)
	bk := book.New(a.cfg, orderOv, ledgerOv, a.verifier)
	env := book.Env{Caller: caller.Address, CallerPub: caller.PubKey, Height: height}

	var opErr error
	var id order.ID

	switch tx.Type {
	case transaction.TxTypeCreate:
		id = order.ID(tx.Create.OrderID)
		opErr = bk.Create(env, tx.Create.Terms())
	case transaction.TxTypeLock:
		id = order.ID(tx.Lock.OrderID)
		opErr = bk.Lock(env, id, common.HexToHash(tx.Lock.SenderIDHash))
	case transaction.TxTypeClose:
		id = order.ID(tx.Close.OrderID)
		opErr = bk.Close(env, id)
	case transaction.TxTypeSettle:
		id = order.ID(tx.Settle.OrderID)
		opErr = bk.Settle(env, tx.Settle.Settlement())
	default:
		opErr = fmt.Errorf("unknown transaction type: %s", tx.Type)
	}

	ev := Event{Kind: tx.Type, OrderID: id, Caller: caller.Address, Height: height}
	if opErr != nil {
		ev.Info = opErr.Error()
		return sequencer.TxResult{Info: opErr.Error()}, &ev
	}

	orderOv.Commit()
	ledgerOv.Commit()
	for oid, o := range orderOv.Dirty() {
		delta.Orders[oid] = o
	}
	delta.IndexAppends = append(delta.IndexAppends, orderOv.Appended()...)
	for k, bal := range ledgerOv.Dirty() {
		delta.Balances[k] = bal
	}

	ev.OK = true
	return sequencer.TxResult{OK: true}, &ev
}

// stateHash computes the deterministic digest of the full application
// state: every indexed order in creation order, every balance sorted by
// (token, address), every nonce sorted by address.
func (a *App) stateHash() sequencer.Hash {
	h := sha256.New()
	var buf [8]byte

	writeU64 := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}

	indexLen := a.orders.IndexLen()
	writeU64(indexLen)
	for seq := uint64(0); seq < indexLen; seq++ {
		id, _ := a.orders.IndexAt(seq)
		o, _ := a.orders.Get(id)

		writeU64(uint64(o.ID))
		h.Write(o.Creator.Bytes())
		writeU64(o.TokenID)
		writeU64(o.AmountToken)
		writeU64(o.AmountFiat)
		h.Write(o.Receiver.Bytes())
		writeU64(o.ValidUntil)
		writeU64(o.LockedUntil)
		h.Write(o.Lock.Bytes())
		if o.Deleted {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}

	balKeys := a.ledger.Keys()
	sort.Slice(balKeys, func(i, j int) bool {
		if balKeys[i].TokenID != balKeys[j].TokenID {
			return balKeys[i].TokenID < balKeys[j].TokenID
		}
		return balKeys[i].Account.Cmp(balKeys[j].Account) < 0
	})
	writeU64(uint64(len(balKeys)))
	for _, k := range balKeys {
		writeU64(k.TokenID)
		h.Write(k.Account.Bytes())
		writeU64(a.ledger.Balance(k.TokenID, k.Account))
	}

	addrs := make([]common.Address, 0, len(a.nonces))
	for addr := range a.nonces {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Cmp(addrs[j]) < 0 })
	writeU64(uint64(len(addrs)))
	for _, addr := range addrs {
		h.Write(addr.Bytes())
		writeU64(a.nonces[addr])
	}

	var out sequencer.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// GetOrder returns the stored record, tombstones included.
func (a *App) GetOrder(id order.ID) (order.Order, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orders.Get(id)
}

// OrderIndexLength returns the number of orders ever created.
func (a *App) OrderIndexLength() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orders.IndexLen()
}

// OrderIndexEntry returns the order id at the given creation sequence.
func (a *App) OrderIndexEntry(seq uint64) (order.ID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orders.IndexAt(seq)
}

// Balance returns an account's token balance.
func (a *App) Balance(tokenID uint64, account common.Address) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Balance(tokenID, account)
}

// NonceOf returns the last accepted nonce for an account.
func (a *App) NonceOf(account common.Address) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nonces[account]
}

var _ sequencer.Application = (*App)(nil)
