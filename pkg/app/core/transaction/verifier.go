package transaction

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openrails/fiatlock/pkg/crypto"
)

// Caller is the authenticated submitter recovered from a transaction
// signature: the address plus the uncompressed public key the lock
// derivation consumes.
type Caller struct {
	Address common.Address
	PubKey  []byte
}

// VerifySignedTransaction checks the signature over the canonical digest
// and recovers the caller. The caller identity never travels in the
// payload; it is always derived from the signature, so a transaction
// cannot claim to be from anyone but its signer.
func VerifySignedTransaction(tx *SignedTransaction) (Caller, error) {
	if err := tx.Validate(); err != nil {
		return Caller{}, err
	}

	digest, err := tx.Digest()
	if err != nil {
		return Caller{}, err
	}

	sigBytes, err := decodeSignature(tx.Signature)
	if err != nil {
		return Caller{}, fmt.Errorf("invalid signature: %w", err)
	}

	addr, pub, err := crypto.RecoverSigner(digest, sigBytes)
	if err != nil {
		return Caller{}, fmt.Errorf("signature recovery failed: %w", err)
	}

	return Caller{Address: addr, PubKey: pub}, nil
}

// Sign computes the canonical digest and attaches the signature.
func Sign(tx *SignedTransaction, signer *crypto.Signer) error {
	digest, err := tx.Digest()
	if err != nil {
		return err
	}

	sig, err := signer.Sign(digest)
	if err != nil {
		return err
	}

	tx.Signature = fmt.Sprintf("0x%x", sig)
	return nil
}

// decodeSignature decodes a hex signature with or without 0x prefix.
func decodeSignature(sig string) ([]byte, error) {
	sig = strings.TrimPrefix(sig, "0x")

	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("invalid hex signature: %w", err)
	}

	if len(sigBytes) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sigBytes))
	}

	return sigBytes, nil
}
