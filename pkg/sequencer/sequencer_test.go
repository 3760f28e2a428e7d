package sequencer

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openrails/fiatlock/pkg/app/core/mempool"
)

// countingApp hashes everything it has seen so far; the app hash changes
// with every executed block.
type countingApp struct {
	requests []RequestFinalizeBlock
}

func (a *countingApp) FinalizeBlock(req RequestFinalizeBlock) ResponseFinalizeBlock {
	a.requests = append(a.requests, req)

	results := make([]TxResult, len(req.Txs))
	h := sha256.New()
	for i, tx := range req.Txs {
		results[i] = TxResult{OK: true}
		h.Write(tx)
	}

	var appHash Hash
	copy(appHash[:], h.Sum(nil))
	return ResponseFinalizeBlock{AppHash: appHash, TxResults: results}
}

type memBlockStore struct {
	blocks []Block
	height uint64
}

func (s *memBlockStore) SaveBlock(b Block) error { s.blocks = append(s.blocks, b); return nil }
func (s *memBlockStore) SetTip(height uint64, _, _ Hash) error {
	s.height = height
	return nil
}

func TestProduceBlockSkipsWhenEmpty(t *testing.T) {
	app := &countingApp{}
	seq := New(app, mempool.NewMempool(), nil)

	_, _, produced := seq.ProduceBlock()
	require.False(t, produced)
	require.Zero(t, seq.Height(), "empty mempool must not advance height")
	require.Empty(t, app.requests)
}

func TestProduceBlockAdvancesChain(t *testing.T) {
	app := &countingApp{}
	pool := mempool.NewMempool()
	store := &memBlockStore{}
	seq := New(app, pool, store)

	pool.PushRaw([]byte("tx1"))
	pool.PushRaw([]byte("tx2"))

	b1, resp1, produced := seq.ProduceBlock()
	require.True(t, produced)
	require.Equal(t, uint64(1), b1.Height)
	require.Equal(t, Hash{}, b1.Parent)
	require.Len(t, b1.Txs, 2)
	require.Len(t, resp1.TxResults, 2)
	require.Equal(t, resp1.AppHash, seq.AppHash())

	pool.PushRaw([]byte("tx3"))
	b2, _, produced := seq.ProduceBlock()
	require.True(t, produced)
	require.Equal(t, uint64(2), b2.Height)
	require.Equal(t, HashOfBlock(b1), b2.Parent)

	require.Equal(t, uint64(2), seq.Height())
	require.Equal(t, uint64(2), store.height)
	require.Len(t, store.blocks, 2)
}

func TestResumeContinuesFromTip(t *testing.T) {
	app := &countingApp{}
	pool := mempool.NewMempool()
	seq := New(app, pool, nil)

	prev := Hash{0xbe, 0xef}
	seq.Resume(41, prev, Hash{0x01})
	require.Equal(t, uint64(41), seq.Height())

	pool.PushRaw([]byte("tx"))
	b, _, produced := seq.ProduceBlock()
	require.True(t, produced)
	require.Equal(t, uint64(42), b.Height)
	require.Equal(t, prev, b.Parent)
}

func TestHashOfBlockBindsContents(t *testing.T) {
	base := Block{Height: 1, Time: 100, Txs: [][]byte{[]byte("ab"), []byte("c")}}

	same := HashOfBlock(base)
	require.Equal(t, same, HashOfBlock(base))

	moved := Block{Height: 1, Time: 100, Txs: [][]byte{[]byte("a"), []byte("bc")}}
	require.NotEqual(t, HashOfBlock(base), HashOfBlock(moved),
		"tx boundaries must be part of the hash")

	bumped := base
	bumped.Height = 2
	require.NotEqual(t, HashOfBlock(base), HashOfBlock(bumped))
}

func TestOnBlockCommitHook(t *testing.T) {
	app := &countingApp{}
	pool := mempool.NewMempool()
	seq := New(app, pool, nil)

	var gotHeights []uint64
	seq.OnBlockCommit = func(b Block, _ ResponseFinalizeBlock) {
		gotHeights = append(gotHeights, b.Height)
	}

	pool.PushRaw([]byte("tx"))
	seq.ProduceBlock()
	pool.PushRaw([]byte("tx"))
	seq.ProduceBlock()

	require.Equal(t, []uint64{1, 2}, gotHeights)
}
