// Package sequencer is the single-node block producer: it drains the
// mempool on a fixed cadence, stamps a block with the next height, and
// hands the block to the application for deterministic execution. Each
// transaction is applied atomically in submission order; the app hash
// returned by the application commits to the resulting state, so
// re-execution from the block log reaches bit-identical state.
package sequencer

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openrails/fiatlock/pkg/util"
)

type Hash [32]byte

func (h Hash) String() string { return fmt.Sprintf("0x%x", h[:]) }

// Block is one committed batch of transactions.
type Block struct {
	Height uint64
	Time   int64 // unix seconds
	Parent Hash
	Txs    [][]byte
}

// HashOfBlock computes the block id: sha256 over height, timestamp,
// parent and every transaction, length-prefixed for unambiguity.
func HashOfBlock(b Block) Hash {
	h := sha256.New()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], b.Height)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(b.Time))
	h.Write(buf[:])
	h.Write(b.Parent[:])

	for _, tx := range b.Txs {
		binary.BigEndian.PutUint64(buf[:], uint64(len(tx)))
		h.Write(buf[:])
		h.Write(tx)
	}

	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

type RequestFinalizeBlock struct {
	Height    uint64
	Timestamp int64
	Txs       [][]byte
}

// TxResult reports the outcome of one transaction. A failed transaction
// is included in the block but produced zero state mutation.
type TxResult struct {
	OK   bool
	Info string
}

type ResponseFinalizeBlock struct {
	AppHash   Hash
	TxResults []TxResult
}

// Application executes a finalized block against its state. All of a
// transaction's writes land or none do; the returned AppHash must be a
// deterministic function of the post-block state.
type Application interface {
	FinalizeBlock(RequestFinalizeBlock) ResponseFinalizeBlock
}

// TxSource supplies pending transactions in submission order.
type TxSource interface {
	SelectForProposal(maxBytes int64) [][]byte
}

// BlockStore persists committed blocks and the chain tip.
type BlockStore interface {
	SaveBlock(b Block) error
	SetTip(height uint64, blockHash, appHash Hash) error
}

// Sequencer drives block production.
type Sequencer struct {
	App   Application
	Pool  TxSource
	Store BlockStore
	Clock util.Clock

	// MinBlockTime throttles production; empty blocks are skipped
	// entirely so height only advances when there is work.
	MinBlockTime  time.Duration
	MaxBlockBytes int64

	// OnBlockCommit runs after a block is executed and persisted.
	OnBlockCommit func(b Block, resp ResponseFinalizeBlock)

	Logger *zap.SugaredLogger

	mu       sync.Mutex
	height   uint64
	lastHash Hash
	appHash  Hash
}

func New(app Application, pool TxSource, store BlockStore) *Sequencer {
	return &Sequencer{
		App:           app,
		Pool:          pool,
		Store:         store,
		Clock:         util.RealClock{},
		MinBlockTime:  200 * time.Millisecond,
		MaxBlockBytes: 1 << 24,
	}
}

// Resume restores the chain tip after a restart.
func (s *Sequencer) Resume(height uint64, blockHash, appHash Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.height = height
	s.lastHash = blockHash
	s.appHash = appHash
}

// Height returns the last committed height.
func (s *Sequencer) Height() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

// AppHash returns the state hash of the last committed block.
func (s *Sequencer) AppHash() Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appHash
}

// ProduceBlock builds, executes and commits one block from the current
// mempool contents. Returns false if there was nothing to commit.
// Exposed directly so tests can drive heights deterministically.
func (s *Sequencer) ProduceBlock() (Block, ResponseFinalizeBlock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs := s.Pool.SelectForProposal(s.MaxBlockBytes)
	if len(txs) == 0 {
		return Block{}, ResponseFinalizeBlock{}, false
	}

	b := Block{
		Height: s.height + 1,
		Time:   s.Clock.Now().Unix(),
		Parent: s.lastHash,
		Txs:    txs,
	}

	resp := s.App.FinalizeBlock(RequestFinalizeBlock{
		Height:    b.Height,
		Timestamp: b.Time,
		Txs:       b.Txs,
	})

	blockHash := HashOfBlock(b)
	if s.Store != nil {
		if err := s.Store.SaveBlock(b); err != nil {
			// Persistence failure is fatal to durability guarantees;
			// surface loudly but keep the in-memory chain consistent.
			if s.Logger != nil {
				s.Logger.Errorw("block_persist_failed", "height", b.Height, "err", err)
			}
		} else if err := s.Store.SetTip(b.Height, blockHash, resp.AppHash); err != nil && s.Logger != nil {
			s.Logger.Errorw("tip_persist_failed", "height", b.Height, "err", err)
		}
	}

	s.height = b.Height
	s.lastHash = blockHash
	s.appHash = resp.AppHash

	if s.Logger != nil {
		ok := 0
		for _, r := range resp.TxResults {
			if r.OK {
				ok++
			}
		}
		s.Logger.Infow("block_committed",
			"height", b.Height,
			"txs", len(b.Txs),
			"applied", ok,
			"app_hash", resp.AppHash.String())
	}

	if s.OnBlockCommit != nil {
		s.OnBlockCommit(b, resp)
	}

	return b, resp, true
}

// Run produces blocks until the context is cancelled.
func (s *Sequencer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.Clock.After(s.MinBlockTime):
			s.ProduceBlock()
		}
	}
}
