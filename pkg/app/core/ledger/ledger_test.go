package ledger

import (
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func TestCreditDebit(t *testing.T) {
	l := NewMemoryLedger()

	require.NoError(t, l.Credit(0, alice, 100))
	assert.Equal(t, uint64(100), l.Balance(0, alice))

	require.NoError(t, l.Debit(0, alice, 40))
	assert.Equal(t, uint64(60), l.Balance(0, alice))

	err := l.Debit(0, alice, 61)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(60), l.Balance(0, alice), "failed debit must not mutate")
}

func TestCreditOverflow(t *testing.T) {
	l := NewMemoryLedger()
	require.NoError(t, l.Credit(0, alice, math.MaxUint64))

	err := l.Credit(0, alice, 1)
	require.ErrorIs(t, err, ErrBalanceOverflow)
	assert.Equal(t, uint64(math.MaxUint64), l.Balance(0, alice))
}

func TestMove(t *testing.T) {
	l := NewMemoryLedger()
	require.NoError(t, l.Credit(0, alice, 100))

	require.NoError(t, l.Move(0, alice, bob, 30))
	assert.Equal(t, uint64(70), l.Balance(0, alice))
	assert.Equal(t, uint64(30), l.Balance(0, bob))

	err := l.Move(0, alice, bob, 71)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(70), l.Balance(0, alice))
	assert.Equal(t, uint64(30), l.Balance(0, bob))
}

func TestBalancesArePerToken(t *testing.T) {
	l := NewMemoryLedger()
	require.NoError(t, l.Credit(0, alice, 10))
	require.NoError(t, l.Credit(7, alice, 20))

	assert.Equal(t, uint64(10), l.Balance(0, alice))
	assert.Equal(t, uint64(20), l.Balance(7, alice))
	assert.Equal(t, uint64(0), l.Balance(1, alice))
}

func TestOverlayCommit(t *testing.T) {
	base := NewMemoryLedger()
	require.NoError(t, base.Credit(0, alice, 100))

	ov := NewOverlay(base)
	require.NoError(t, ov.Move(0, alice, bob, 25))

	// Buffered: base unchanged until commit.
	assert.Equal(t, uint64(100), base.Balance(0, alice))
	assert.Equal(t, uint64(75), ov.Balance(0, alice))
	assert.Equal(t, uint64(25), ov.Balance(0, bob))

	ov.Commit()
	assert.Equal(t, uint64(75), base.Balance(0, alice))
	assert.Equal(t, uint64(25), base.Balance(0, bob))
}

func TestOverlayDiscard(t *testing.T) {
	base := NewMemoryLedger()
	require.NoError(t, base.Credit(0, alice, 100))

	ov := NewOverlay(base)
	require.NoError(t, ov.Debit(0, alice, 100))
	require.ErrorIs(t, ov.Debit(0, alice, 1), ErrInsufficientBalance)

	// Dropping the overlay leaves the base untouched.
	assert.Equal(t, uint64(100), base.Balance(0, alice))
}
