package book

import "errors"

// Error taxonomy of the escrow state machine. Every error aborts the
// call with zero state mutation; none is fatal to the engine. Retries
// are the submitter's responsibility via a new transaction.
var (
	// ErrReservedOrderID is returned by Create for the tombstone id 0.
	ErrReservedOrderID = errors.New("order id is reserved")
	// ErrOrderExists is returned by Create when a live (non-tombstoned)
	// order already occupies the id.
	ErrOrderExists = errors.New("order id already in use")
	// ErrAmountTooSmall rejects orders escrowing less than the
	// configured minimum token amount.
	ErrAmountTooSmall = errors.New("token amount below minimum")
	// ErrValidityTooLong rejects validity windows beyond the configured
	// maximum period.
	ErrValidityTooLong = errors.New("validity period too long")

	// ErrOrderNotFound covers missing ids and tombstoned orders alike;
	// a deleted order is publicly absent even though its slot remains.
	ErrOrderNotFound = errors.New("order not found")
	// ErrNotOrderOwner is returned when close is attempted by anyone
	// but the creator.
	ErrNotOrderOwner = errors.New("caller is not the order creator")
	// ErrOrderStillLocked is returned when close runs before the taker
	// lock has expired.
	ErrOrderStillLocked = errors.New("order is still locked")

	// ErrOrderExpired is returned when lock runs past the order's
	// validity window.
	ErrOrderExpired = errors.New("order validity window has passed")
	// ErrOrderAlreadyLocked is returned when lock targets an order
	// already reserved for another taker.
	ErrOrderAlreadyLocked = errors.New("order is already locked")

	// ErrOrderNotLocked is returned when settle targets an order whose
	// lock is absent or expired.
	ErrOrderNotLocked = errors.New("order is not locked")
	// ErrProofVerificationFailed wraps a verifier rejection.
	ErrProofVerificationFailed = errors.New("settlement proof verification failed")
	// ErrProofTermsMismatch is returned when a valid proof attests to a
	// reference that does not match the order's recomputed settlement
	// reference.
	ErrProofTermsMismatch = errors.New("settlement proof terms mismatch")
)
