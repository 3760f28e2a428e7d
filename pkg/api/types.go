package api

// OrderInfo is the REST representation of an order record.
type OrderInfo struct {
	ID          uint64 `json:"id"`
	Creator     string `json:"creator"`
	TokenID     uint64 `json:"token_id"`
	AmountToken uint64 `json:"amount_token"`
	AmountFiat  uint64 `json:"amount_fiat"`
	Receiver    string `json:"receiver"`
	ValidUntil  uint64 `json:"valid_until"`
	LockedUntil uint64 `json:"locked_until"`
	Lock        string `json:"lock"`
	Deleted     bool   `json:"deleted"`
}

// OrderListEntry pairs an order with its creation sequence number.
type OrderListEntry struct {
	Seq   uint64    `json:"seq"`
	Order OrderInfo `json:"order"`
}

// OrderListResponse is a page of the creation index.
type OrderListResponse struct {
	Total  uint64           `json:"total"`
	Offset uint64           `json:"offset"`
	Orders []OrderListEntry `json:"orders"`
}

// BalanceInfo reports one token balance.
type BalanceInfo struct {
	Address string `json:"address"`
	TokenID uint64 `json:"token_id"`
	Balance uint64 `json:"balance"`
}

// NonceInfo reports the last accepted nonce for an account.
type NonceInfo struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

// ChainStatus reports sequencer progress.
type ChainStatus struct {
	Height      uint64 `json:"height"`
	AppHash     string `json:"app_hash"`
	MempoolSize int    `json:"mempool_size"`
}

// SubmitTxResponse acknowledges mempool admission.
type SubmitTxResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest is the client -> server subscription message.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" | "unsubscribe"
	Channels []string `json:"channels"`
}

// BlockUpdate is pushed on the "blocks" channel after each commit.
type BlockUpdate struct {
	Type    string `json:"type"` // "block"
	Height  uint64 `json:"height"`
	AppHash string `json:"app_hash"`
	TxCount int    `json:"tx_count"`
}

// OrderEventUpdate is pushed on the "orders" channel for every escrow
// operation, applied or rejected.
type OrderEventUpdate struct {
	Type    string `json:"type"` // "order_event"
	Kind    string `json:"kind"` // create | lock | close | settle
	OrderID uint64 `json:"order_id"`
	Caller  string `json:"caller"`
	Height  uint64 `json:"height"`
	OK      bool   `json:"ok"`
	Info    string `json:"info,omitempty"`
}
