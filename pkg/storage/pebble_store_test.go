package storage

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/openrails/fiatlock/pkg/app/core/ledger"
	"github.com/openrails/fiatlock/pkg/app/core/order"
	"github.com/openrails/fiatlock/pkg/sequencer"
)

func openTestStore(t *testing.T) *PebbleStore {
	t.Helper()
	s, err := NewPebbleStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBlockRoundTrip(t *testing.T) {
	s := openTestStore(t)

	b := sequencer.Block{
		Height: 3,
		Time:   1700000000,
		Parent: sequencer.Hash{0xaa},
		Txs:    [][]byte{[]byte("tx-a"), []byte("tx-b")},
	}
	require.NoError(t, s.SaveBlock(b))

	got, ok, err := s.GetBlock(3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, b, got)

	_, ok, err = s.GetBlock(4)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTipRoundTrip(t *testing.T) {
	s := openTestStore(t)

	_, _, _, ok, err := s.GetTip()
	require.NoError(t, err)
	require.False(t, ok, "fresh db must have no tip")

	blockHash := sequencer.Hash{1, 2, 3}
	appHash := sequencer.Hash{4, 5, 6}
	require.NoError(t, s.SetTip(9, blockHash, appHash))

	h, bh, ah, ok, err := s.GetTip()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(9), h)
	require.Equal(t, blockHash, bh)
	require.Equal(t, appHash, ah)
}

func TestCommitBlockDeltaAndReload(t *testing.T) {
	s := openTestStore(t)

	alice := common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob := common.HexToAddress("0x2222222222222222222222222222222222222222")

	o1 := order.Order{ID: 1, Creator: alice, TokenID: 0, AmountToken: 100, AmountFiat: 50, ValidUntil: 20}
	o2 := order.Order{ID: 2, Creator: bob, TokenID: 7, AmountToken: 5, AmountFiat: 5, ValidUntil: 30}

	delta := BlockDelta{
		Orders:       map[order.ID]order.Order{1: o1, 2: o2},
		IndexAppends: []order.ID{1, 2},
		IndexBase:    0,
		Balances: map[ledger.Key]uint64{
			{TokenID: 0, Account: alice}: 100,
			{TokenID: 7, Account: bob}:   5,
		},
		Nonces: map[common.Address]uint64{alice: 1, bob: 3},
	}
	require.NoError(t, s.CommitBlockDelta(delta))

	orders, err := s.LoadOrders()
	require.NoError(t, err)
	require.Equal(t, map[order.ID]order.Order{1: o1, 2: o2}, orders)

	index, err := s.LoadIndex()
	require.NoError(t, err)
	require.Equal(t, []order.ID{1, 2}, index)

	balances, err := s.LoadBalances()
	require.NoError(t, err)
	require.Equal(t, uint64(100), balances[ledger.Key{TokenID: 0, Account: alice}])
	require.Equal(t, uint64(5), balances[ledger.Key{TokenID: 7, Account: bob}])

	nonces, err := s.LoadNonces()
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonces[alice])
	require.Equal(t, uint64(3), nonces[bob])
}

func TestIndexAppendsAcrossBlocks(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.CommitBlockDelta(BlockDelta{
		IndexAppends: []order.ID{10, 11},
		IndexBase:    0,
	}))
	require.NoError(t, s.CommitBlockDelta(BlockDelta{
		IndexAppends: []order.ID{12},
		IndexBase:    2,
	}))

	index, err := s.LoadIndex()
	require.NoError(t, err)
	require.Equal(t, []order.ID{10, 11, 12}, index)
}

func TestOrderOverwriteKeepsLatest(t *testing.T) {
	s := openTestStore(t)

	live := order.Order{ID: 5, AmountToken: 9, ValidUntil: 10}
	require.NoError(t, s.CommitBlockDelta(BlockDelta{
		Orders: map[order.ID]order.Order{5: live},
	}))

	dead := order.Tombstone(5)
	require.NoError(t, s.CommitBlockDelta(BlockDelta{
		Orders: map[order.ID]order.Order{5: dead},
	}))

	orders, err := s.LoadOrders()
	require.NoError(t, err)
	require.True(t, orders[5].Deleted)
	require.Zero(t, orders[5].AmountToken)
}
