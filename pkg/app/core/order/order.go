// Package order defines escrow order records and the append-only order
// index. Records are tombstoned on close/settle rather than removed, so
// index entries stay resolvable forever.
package order

import (
	"github.com/ethereum/go-ethereum/common"
)

// ID identifies an order. The zero value is reserved as the tombstone
// sentinel and is never a valid order id.
type ID uint64

// DeletedID is the reserved sentinel; creation rejects it.
const DeletedID ID = 0

// Order is the central escrow record. Creator and the economic terms are
// fixed at creation; only LockedUntil and Lock mutate afterwards, until
// the record is overwritten by the tombstone.
type Order struct {
	ID          ID             `json:"id"`
	Creator     common.Address `json:"creator"`
	TokenID     uint64         `json:"token_id"`
	AmountToken uint64         `json:"amount_token"`
	AmountFiat  uint64         `json:"amount_fiat"` // off-chain amount, minor units
	Receiver    common.Hash    `json:"receiver"`    // maker's payment-identity commitment
	ValidUntil  uint64         `json:"valid_until"` // last height at which the order may be locked
	LockedUntil uint64         `json:"locked_until"` // 0 = unlocked
	Lock        common.Hash    `json:"lock"`        // taker commitment, zero when unlocked
	Deleted     bool           `json:"deleted"`
}

// CreateTerms are the caller-supplied parameters of Create.
type CreateTerms struct {
	OrderID     ID          `json:"order_id"`
	ValidUntil  uint64      `json:"valid_until"`
	TokenID     uint64      `json:"token_id"`
	AmountToken uint64      `json:"amount_token"`
	AmountFiat  uint64      `json:"amount_fiat"`
	Receiver    common.Hash `json:"receiver"`
}

// New builds a fresh unlocked order from creation terms.
func New(terms CreateTerms, creator common.Address) Order {
	return Order{
		ID:          terms.OrderID,
		Creator:     creator,
		TokenID:     terms.TokenID,
		AmountToken: terms.AmountToken,
		AmountFiat:  terms.AmountFiat,
		Receiver:    terms.Receiver,
		ValidUntil:  terms.ValidUntil,
		LockedUntil: 0,
		Lock:        common.Hash{},
		Deleted:     false,
	}
}

// Tombstone is the canonical record written over closed or settled
// orders. The id is preserved so enumeration stays stable.
func Tombstone(id ID) Order {
	return Order{ID: id, Deleted: true}
}

// LockedAt reports whether the order is reserved for a taker at the
// given height. An order with LockedUntil=0 is never locked.
func (o Order) LockedAt(height uint64) bool {
	return o.LockedUntil > height
}
