package transaction

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/openrails/fiatlock/pkg/app/core/order"
	"github.com/openrails/fiatlock/pkg/app/core/proof"
)

// TxType classifies the four escrow operations.
type TxType string

const (
	TxTypeCreate TxType = "create"
	TxTypeLock   TxType = "lock"
	TxTypeClose  TxType = "close"
	TxTypeSettle TxType = "settle"
)

// SignedTransaction is the wire envelope submitted to the sequencer.
// Exactly one payload field is set, matching Type. The signature is a
// hex-encoded 65-byte [R || S || V] secp256k1 signature over Digest();
// the caller's address and public key are recovered from it.
type SignedTransaction struct {
	Type      TxType         `json:"type"`
	Create    *CreatePayload `json:"create,omitempty"`
	Lock      *LockPayload   `json:"lock,omitempty"`
	Close     *ClosePayload  `json:"close,omitempty"`
	Settle    *SettlePayload `json:"settle,omitempty"`
	Nonce     uint64         `json:"nonce"` // replay protection, strictly increasing per account
	Signature string         `json:"signature"`
}

// CreatePayload carries the terms of a new escrow order.
type CreatePayload struct {
	OrderID     uint64 `json:"order_id"`
	ValidUntil  uint64 `json:"valid_until"`
	TokenID     uint64 `json:"token_id"`
	AmountToken uint64 `json:"amount_token"`
	AmountFiat  uint64 `json:"amount_fiat"`
	Receiver    string `json:"receiver"` // hex-encoded identity commitment
}

// LockPayload reserves an order for the signing taker.
type LockPayload struct {
	OrderID      uint64 `json:"order_id"`
	SenderIDHash string `json:"sender_id_hash"` // hex-encoded identity commitment
}

// ClosePayload cancels an order (creator only).
type ClosePayload struct {
	OrderID uint64 `json:"order_id"`
}

// SettlePayload presents a payment proof against a locked order.
type SettlePayload struct {
	OrderID   uint64 `json:"order_id"`
	Reference string `json:"reference"` // hex-encoded settlement reference
	Valid     bool   `json:"valid"`     // mock proof verdict
}

// Terms converts the payload into state-machine terms.
func (p *CreatePayload) Terms() order.CreateTerms {
	return order.CreateTerms{
		OrderID:     order.ID(p.OrderID),
		ValidUntil:  p.ValidUntil,
		TokenID:     p.TokenID,
		AmountToken: p.AmountToken,
		AmountFiat:  p.AmountFiat,
		Receiver:    common.HexToHash(p.Receiver),
	}
}

// Settlement converts the payload into a proof object.
func (p *SettlePayload) Settlement() proof.Settlement {
	return proof.Settlement{
		OrderID:   order.ID(p.OrderID),
		Reference: common.HexToHash(p.Reference),
		Valid:     p.Valid,
	}
}

// Digest returns the 32-byte keccak digest the signature covers: a
// canonical pipe-delimited message prefixed with the protocol name, so
// signatures cannot be replayed across payload types or fields.
func (tx *SignedTransaction) Digest() ([]byte, error) {
	var msg string

	switch tx.Type {
	case TxTypeCreate:
		if tx.Create == nil {
			return nil, fmt.Errorf("create transaction missing payload")
		}
		p := tx.Create
		msg = fmt.Sprintf("FIATLOCK|CREATE|%d|%d|%d|%d|%d|%s|%d",
			p.OrderID, p.ValidUntil, p.TokenID, p.AmountToken, p.AmountFiat,
			common.HexToHash(p.Receiver).Hex(), tx.Nonce)
	case TxTypeLock:
		if tx.Lock == nil {
			return nil, fmt.Errorf("lock transaction missing payload")
		}
		msg = fmt.Sprintf("FIATLOCK|LOCK|%d|%s|%d",
			tx.Lock.OrderID, common.HexToHash(tx.Lock.SenderIDHash).Hex(), tx.Nonce)
	case TxTypeClose:
		if tx.Close == nil {
			return nil, fmt.Errorf("close transaction missing payload")
		}
		msg = fmt.Sprintf("FIATLOCK|CLOSE|%d|%d", tx.Close.OrderID, tx.Nonce)
	case TxTypeSettle:
		if tx.Settle == nil {
			return nil, fmt.Errorf("settle transaction missing payload")
		}
		p := tx.Settle
		msg = fmt.Sprintf("FIATLOCK|SETTLE|%d|%s|%t|%d",
			p.OrderID, common.HexToHash(p.Reference).Hex(), p.Valid, tx.Nonce)
	default:
		return nil, fmt.Errorf("unknown transaction type: %s", tx.Type)
	}

	return ethCrypto.Keccak256([]byte(msg)), nil
}

// Validate performs structural checks before signature verification.
func (tx *SignedTransaction) Validate() error {
	if tx.Type == "" {
		return fmt.Errorf("missing transaction type")
	}
	if tx.Signature == "" {
		return fmt.Errorf("missing signature")
	}

	switch tx.Type {
	case TxTypeCreate:
		if tx.Create == nil {
			return fmt.Errorf("create type requires create payload")
		}
	case TxTypeLock:
		if tx.Lock == nil {
			return fmt.Errorf("lock type requires lock payload")
		}
	case TxTypeClose:
		if tx.Close == nil {
			return fmt.Errorf("close type requires close payload")
		}
	case TxTypeSettle:
		if tx.Settle == nil {
			return fmt.Errorf("settle type requires settle payload")
		}
	default:
		return fmt.Errorf("unknown transaction type: %s", tx.Type)
	}

	return nil
}

// Serialize converts the transaction to JSON bytes.
func (tx *SignedTransaction) Serialize() ([]byte, error) {
	return json.Marshal(tx)
}

// Deserialize parses JSON bytes into a SignedTransaction and validates
// its structure.
func Deserialize(data []byte) (*SignedTransaction, error) {
	var tx SignedTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	return &tx, nil
}
