package crypto

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Commitment codec for the escrow protocol. Two derivations:
//
//   lock      = H(senderIDHash || senderPub)
//   reference = H(be64(amountFiat) || receiverIDHash || lock)
//
// The lock binds a taker's off-chain payment identity to their on-chain
// key. The settlement reference binds the exact fiat amount, the maker's
// receiving identity and the lock together, so a payment proof produced
// for one order cannot be replayed against another: changing any single
// input changes the reference.

// HashIdentity hashes a raw off-chain payment identity (e.g. an account
// handle) into its on-chain commitment form.
func HashIdentity(id string) common.Hash {
	return crypto.Keccak256Hash([]byte(id))
}

// DeriveLock computes the lock commitment from the taker's off-chain
// identity hash and their uncompressed secp256k1 public key bytes.
// Deterministic: identical inputs always produce identical output.
func DeriveLock(senderIDHash common.Hash, senderPub []byte) common.Hash {
	return crypto.Keccak256Hash(senderIDHash.Bytes(), senderPub)
}

// DeriveSettlementReference computes the hash a settlement proof must
// attest to for a locked order.
func DeriveSettlementReference(amountFiat uint64, receiverIDHash, lock common.Hash) common.Hash {
	var amt [8]byte
	binary.BigEndian.PutUint64(amt[:], amountFiat)
	return crypto.Keccak256Hash(amt[:], receiverIDHash.Bytes(), lock.Bytes())
}
