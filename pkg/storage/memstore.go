package storage

import (
	"sync"

	"github.com/openrails/fiatlock/pkg/sequencer"
)

// InMemoryBlockStore keeps blocks in memory. Used by tests and by nodes
// run with persistence disabled.
type InMemoryBlockStore struct {
	mu        sync.Mutex
	blocks    map[uint64]sequencer.Block
	tipHeight uint64
	tipBlock  sequencer.Hash
	tipApp    sequencer.Hash
	hasTip    bool
}

func NewInMemoryBlockStore() *InMemoryBlockStore {
	return &InMemoryBlockStore{blocks: make(map[uint64]sequencer.Block)}
}

func (s *InMemoryBlockStore) SaveBlock(b sequencer.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[b.Height] = b
	return nil
}

func (s *InMemoryBlockStore) GetBlock(height uint64) (sequencer.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[height]
	return b, ok
}

func (s *InMemoryBlockStore) SetTip(height uint64, blockHash, appHash sequencer.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tipHeight = height
	s.tipBlock = blockHash
	s.tipApp = appHash
	s.hasTip = true
	return nil
}

func (s *InMemoryBlockStore) GetTip() (uint64, sequencer.Hash, sequencer.Hash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tipHeight, s.tipBlock, s.tipApp, s.hasTip
}

var _ sequencer.BlockStore = (*InMemoryBlockStore)(nil)
