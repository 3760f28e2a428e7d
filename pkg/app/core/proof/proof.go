// Package proof defines the settlement-proof adapter. The core never
// inspects how a proof was produced; it only asks the verifier whether
// the proof holds and which settlement reference it attests to.
package proof

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openrails/fiatlock/pkg/app/core/order"
)

var ErrInvalidProof = errors.New("proof verification failed")

// Settlement is the public data of an off-chain payment proof: the order
// it targets and the settlement reference hash the payment commits to.
//
// Valid stands in for the real proof-system verdict. The upstream
// circuit exposes the same flag on its mock proof; swapping in a real
// verifier only touches the Verifier implementation.
type Settlement struct {
	OrderID   order.ID    `json:"order_id"`
	Reference common.Hash `json:"reference"`
	Valid     bool        `json:"valid"`
}

// Verifier checks a settlement proof and returns the attested reference
// hash. A failed check is terminal for the call; there is no partial
// credit.
type Verifier interface {
	Verify(s Settlement) (common.Hash, error)
}

// MockVerifier trusts the embedded validity flag. It is the only
// verifier shipped with the node; production deployments plug in a
// verifier backed by the actual proof system.
type MockVerifier struct{}

func (MockVerifier) Verify(s Settlement) (common.Hash, error) {
	if !s.Valid {
		return common.Hash{}, ErrInvalidProof
	}
	return s.Reference, nil
}

// ValidFor builds a proof object attesting to the given reference.
// Test helper mirroring the upstream dummy-proof constructors.
func ValidFor(id order.ID, reference common.Hash) Settlement {
	return Settlement{OrderID: id, Reference: reference, Valid: true}
}

// InvalidFor builds a proof that always fails verification.
func InvalidFor(id order.ID) Settlement {
	return Settlement{OrderID: id, Valid: false}
}

var _ Verifier = MockVerifier{}
