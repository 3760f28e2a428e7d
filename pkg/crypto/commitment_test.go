package crypto

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDeriveLockDeterministic(t *testing.T) {
	signer, _ := GenerateKey()
	idHash := HashIdentity("maker@example.com")

	lock1 := DeriveLock(idHash, signer.PublicKeyBytes())
	lock2 := DeriveLock(idHash, signer.PublicKeyBytes())

	if lock1 != lock2 {
		t.Errorf("lock derivation not deterministic: %s != %s", lock1.Hex(), lock2.Hex())
	}
	if lock1 == (common.Hash{}) {
		t.Error("lock should not be zero")
	}
}

func TestDeriveLockDistinctInputs(t *testing.T) {
	signerA, _ := GenerateKey()
	signerB, _ := GenerateKey()
	idHash := HashIdentity("sender-1")

	base := DeriveLock(idHash, signerA.PublicKeyBytes())

	if got := DeriveLock(HashIdentity("sender-2"), signerA.PublicKeyBytes()); got == base {
		t.Error("different identity hash should change the lock")
	}
	if got := DeriveLock(idHash, signerB.PublicKeyBytes()); got == base {
		t.Error("different public key should change the lock")
	}
}

func TestDeriveSettlementReference(t *testing.T) {
	signer, _ := GenerateKey()
	receiver := HashIdentity("receiver@example.com")
	lock := DeriveLock(HashIdentity("sender@example.com"), signer.PublicKeyBytes())

	base := DeriveSettlementReference(100, receiver, lock)

	tests := []struct {
		name string
		got  common.Hash
	}{
		{"different amount", DeriveSettlementReference(101, receiver, lock)},
		{"different receiver", DeriveSettlementReference(100, HashIdentity("other"), lock)},
		{"different lock", DeriveSettlementReference(100, receiver, HashIdentity("not-a-lock"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got == base {
				t.Errorf("reference should differ from base %s", base.Hex())
			}
		})
	}

	// Same terms must always reproduce the same reference.
	if again := DeriveSettlementReference(100, receiver, lock); again != base {
		t.Errorf("reference not deterministic: %s != %s", again.Hex(), base.Hex())
	}
}

func TestHashIdentity(t *testing.T) {
	a := HashIdentity("alice")
	b := HashIdentity("alice")
	c := HashIdentity("bob")

	if a != b {
		t.Error("identity hash not deterministic")
	}
	if a == c {
		t.Error("distinct identities should hash differently")
	}
}
