package order

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder(id ID) Order {
	return New(CreateTerms{
		OrderID:     id,
		ValidUntil:  10,
		AmountToken: 100,
		AmountFiat:  100,
	}, common.HexToAddress("0x00000000000000000000000000000000000000aa"))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()

	_, ok := s.Get(1)
	assert.False(t, ok)

	s.Put(1, testOrder(1))
	s.Append(1)
	s.Put(2, testOrder(2))
	s.Append(2)

	o, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, ID(1), o.ID)

	assert.Equal(t, uint64(2), s.IndexLen())
	id, ok := s.IndexAt(0)
	require.True(t, ok)
	assert.Equal(t, ID(1), id)
	id, ok = s.IndexAt(1)
	require.True(t, ok)
	assert.Equal(t, ID(2), id)

	_, ok = s.IndexAt(2)
	assert.False(t, ok)
}

func TestTombstonePreservesSlot(t *testing.T) {
	s := NewMemoryStore()
	s.Put(5, testOrder(5))
	s.Append(5)

	s.Put(5, Tombstone(5))

	o, ok := s.Get(5)
	require.True(t, ok, "tombstoned slot stays addressable")
	assert.True(t, o.Deleted)
	assert.Equal(t, ID(5), o.ID)

	// Index untouched by deletion.
	assert.Equal(t, uint64(1), s.IndexLen())
	id, _ := s.IndexAt(0)
	assert.Equal(t, ID(5), id)
}

func TestOverlayReadsThrough(t *testing.T) {
	base := NewMemoryStore()
	base.Put(1, testOrder(1))
	base.Append(1)

	ov := NewOverlay(base)

	o, ok := ov.Get(1)
	require.True(t, ok)
	assert.Equal(t, ID(1), o.ID)

	ov.Put(2, testOrder(2))
	ov.Append(2)

	// Overlay sees both; base only its own.
	assert.Equal(t, uint64(2), ov.IndexLen())
	assert.Equal(t, uint64(1), base.IndexLen())

	id, ok := ov.IndexAt(1)
	require.True(t, ok)
	assert.Equal(t, ID(2), id)

	_, ok = base.Get(2)
	assert.False(t, ok)
}

func TestOverlayCommit(t *testing.T) {
	base := NewMemoryStore()
	ov := NewOverlay(base)

	ov.Put(1, testOrder(1))
	ov.Append(1)
	ov.Commit()

	o, ok := base.Get(1)
	require.True(t, ok)
	assert.Equal(t, ID(1), o.ID)
	assert.Equal(t, uint64(1), base.IndexLen())
}

func TestOverlayShadowsBase(t *testing.T) {
	base := NewMemoryStore()
	base.Put(1, testOrder(1))

	ov := NewOverlay(base)
	ov.Put(1, Tombstone(1))

	o, ok := ov.Get(1)
	require.True(t, ok)
	assert.True(t, o.Deleted)

	// Discarding the overlay leaves the live record in place.
	o, _ = base.Get(1)
	assert.False(t, o.Deleted)
}

func TestLockedAt(t *testing.T) {
	o := testOrder(1)

	assert.False(t, o.LockedAt(0), "locked_until=0 is never locked")

	o.LockedUntil = 5
	assert.True(t, o.LockedAt(4))
	assert.False(t, o.LockedAt(5), "lock expires at locked_until for close purposes")
	assert.False(t, o.LockedAt(6))
}
