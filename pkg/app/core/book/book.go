// Package book implements the escrow order-book state machine: four
// state transitions (create, lock, close, settle) applied one call at a
// time against a height-tagged state snapshot by the surrounding
// sequencer. Each transition checks every precondition before touching
// state, so a failed call leaves orders and balances untouched.
package book

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openrails/fiatlock/pkg/app/core/ledger"
	"github.com/openrails/fiatlock/pkg/app/core/order"
	"github.com/openrails/fiatlock/pkg/app/core/proof"
	"github.com/openrails/fiatlock/pkg/crypto"
)

// Config carries the recognized engine parameters. All three are
// enforced: the upstream contract left MinTokenAmount and
// MaxValidityPeriod as unchecked TODOs, but nothing depends on their
// absence, so this implementation validates them strictly.
type Config struct {
	MinTokenAmount    uint64
	MaxValidityPeriod uint64
	LockPeriod        uint64
}

// Env is the per-call execution context supplied by the sequencer:
// the authenticated caller, their uncompressed public key, and the
// current block height. Height is the only clock the state machine
// knows; it never advances it.
type Env struct {
	Caller    common.Address
	CallerPub []byte
	Height    uint64
}

// Book binds the state machine to its collaborators. The order store
// and ledger are exclusively owned state; the proof verifier is an
// opaque external adapter.
type Book struct {
	cfg      Config
	orders   order.Store
	ledger   ledger.Ledger
	verifier proof.Verifier
}

func New(cfg Config, orders order.Store, l ledger.Ledger, verifier proof.Verifier) *Book {
	return &Book{cfg: cfg, orders: orders, ledger: l, verifier: verifier}
}

// Create escrows a new order. The creation credit models mint-on-
// deposit: the escrowed tokens are credited to the maker rather than
// debited from a pre-existing balance, matching the modeled behavior of
// the bridged deposit flow.
func (b *Book) Create(env Env, terms order.CreateTerms) error {
	if terms.OrderID == order.DeletedID {
		return ErrReservedOrderID
	}
	if existing, ok := b.orders.Get(terms.OrderID); ok && !existing.Deleted {
		return fmt.Errorf("%w: %d", ErrOrderExists, terms.OrderID)
	}
	if terms.AmountToken < b.cfg.MinTokenAmount {
		return fmt.Errorf("%w: %d < %d", ErrAmountTooSmall, terms.AmountToken, b.cfg.MinTokenAmount)
	}
	if terms.ValidUntil > env.Height+b.cfg.MaxValidityPeriod {
		return fmt.Errorf("%w: valid_until %d exceeds height %d + %d",
			ErrValidityTooLong, terms.ValidUntil, env.Height, b.cfg.MaxValidityPeriod)
	}

	o := order.New(terms, env.Caller)
	if err := b.ledger.Credit(o.TokenID, env.Caller, o.AmountToken); err != nil {
		return err
	}
	b.orders.Put(o.ID, o)
	b.orders.Append(o.ID)
	return nil
}

// Lock reserves an open order for the calling taker. The lock
// commitment binds the taker's off-chain identity hash to their on-chain
// key; it is recomputed during settlement, so only a payment made by
// this exact taker can release the escrow.
//
// Validity check: the upstream source gates locking on
// valid_until <= height, an inverted comparison for a deadline. The
// economically sensible direction is implemented here: an order is
// lockable while height <= valid_until.
func (b *Book) Lock(env Env, id order.ID, senderIDHash common.Hash) error {
	o, ok := b.orders.Get(id)
	if !ok || o.Deleted {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	if env.Height > o.ValidUntil {
		return fmt.Errorf("%w: valid_until %d, height %d", ErrOrderExpired, o.ValidUntil, env.Height)
	}
	if o.LockedAt(env.Height) {
		return fmt.Errorf("%w: locked until %d, height %d", ErrOrderAlreadyLocked, o.LockedUntil, env.Height)
	}

	o.Lock = crypto.DeriveLock(senderIDHash, env.CallerPub)
	o.LockedUntil = env.Height + b.cfg.LockPeriod
	b.orders.Put(id, o)
	return nil
}

// Close cancels an order, reversing the creation credit and writing the
// tombstone. Only the creator may close, and only once any taker lock
// has expired.
func (b *Book) Close(env Env, id order.ID) error {
	o, ok := b.orders.Get(id)
	if !ok || o.Deleted {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	if o.Creator != env.Caller {
		return ErrNotOrderOwner
	}
	if o.LockedAt(env.Height) {
		return fmt.Errorf("%w: locked until %d, height %d", ErrOrderStillLocked, o.LockedUntil, env.Height)
	}

	if err := b.ledger.Debit(o.TokenID, env.Caller, o.AmountToken); err != nil {
		return err
	}
	b.orders.Put(id, order.Tombstone(id))
	return nil
}

// Settle releases the escrow to the caller against a payment proof.
// The reference equality is the crux of the protocol: the recomputed
// reference depends on the fiat amount, the maker's receiving identity
// and the stored lock, so a proof forged for different terms, a
// different order, or a different taker's lock cannot match.
func (b *Book) Settle(env Env, p proof.Settlement) error {
	attested, err := b.verifier.Verify(p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofVerificationFailed, err)
	}

	o, ok := b.orders.Get(p.OrderID)
	if !ok || o.Deleted {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, p.OrderID)
	}
	if o.LockedUntil < env.Height {
		return fmt.Errorf("%w: locked until %d, height %d", ErrOrderNotLocked, o.LockedUntil, env.Height)
	}

	reference := crypto.DeriveSettlementReference(o.AmountFiat, o.Receiver, o.Lock)
	if reference != attested {
		return ErrProofTermsMismatch
	}

	if err := b.ledger.Move(o.TokenID, o.Creator, env.Caller, o.AmountToken); err != nil {
		return err
	}
	b.orders.Put(p.OrderID, order.Tombstone(p.OrderID))
	return nil
}

// GetOrder returns the stored record, tombstones included, so callers
// can observe terminal state.
func (b *Book) GetOrder(id order.ID) (order.Order, bool) {
	return b.orders.Get(id)
}

// OrderIndexLength returns the number of orders ever created.
func (b *Book) OrderIndexLength() uint64 { return b.orders.IndexLen() }

// OrderIndexEntry returns the order id created at the given sequence
// number.
func (b *Book) OrderIndexEntry(seq uint64) (order.ID, bool) {
	return b.orders.IndexAt(seq)
}
