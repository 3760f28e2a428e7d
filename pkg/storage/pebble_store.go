// Package storage persists chain and escrow state in Pebble. Blocks and
// the chain tip are written through the sequencer; domain state (orders,
// index, balances, nonces) is written per block in a single batch so a
// crash never leaves a half-applied block on disk.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/openrails/fiatlock/pkg/app/core/ledger"
	"github.com/openrails/fiatlock/pkg/app/core/order"
	"github.com/openrails/fiatlock/pkg/sequencer"
)

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// SaveBlock persists a committed block keyed by height.
func (s *PebbleStore) SaveBlock(b sequencer.Block) error {
	val, err := encodeGob(b)
	if err != nil {
		return fmt.Errorf("encode block: %w", err)
	}
	return s.db.Set(blockKey(b.Height), val, pebble.Sync)
}

// GetBlock loads a block by height.
func (s *PebbleStore) GetBlock(height uint64) (sequencer.Block, bool, error) {
	val, closer, err := s.db.Get(blockKey(height))
	if err == pebble.ErrNotFound {
		return sequencer.Block{}, false, nil
	}
	if err != nil {
		return sequencer.Block{}, false, err
	}
	defer closer.Close()

	var out sequencer.Block
	if err := decodeGob(val, &out); err != nil {
		return sequencer.Block{}, false, fmt.Errorf("decode block %d: %w", height, err)
	}
	return out, true, nil
}

// SetTip records the chain tip: height, block hash and app hash.
func (s *PebbleStore) SetTip(height uint64, blockHash, appHash sequencer.Hash) error {
	val := make([]byte, 0, 8+64)
	val = append(val, be64(height)...)
	val = append(val, blockHash[:]...)
	val = append(val, appHash[:]...)
	return s.db.Set([]byte(keyTip), val, pebble.Sync)
}

// GetTip loads the chain tip. ok is false on a fresh database.
func (s *PebbleStore) GetTip() (height uint64, blockHash, appHash sequencer.Hash, ok bool, err error) {
	val, closer, err := s.db.Get([]byte(keyTip))
	if err == pebble.ErrNotFound {
		return 0, sequencer.Hash{}, sequencer.Hash{}, false, nil
	}
	if err != nil {
		return 0, sequencer.Hash{}, sequencer.Hash{}, false, err
	}
	defer closer.Close()

	if len(val) != 8+64 {
		return 0, sequencer.Hash{}, sequencer.Hash{}, false, fmt.Errorf("corrupt tip record: %d bytes", len(val))
	}
	height = binary.BigEndian.Uint64(val[:8])
	copy(blockHash[:], val[8:40])
	copy(appHash[:], val[40:72])
	return height, blockHash, appHash, true, nil
}

var _ sequencer.BlockStore = (*PebbleStore)(nil)

// BlockDelta is the set of state writes produced by one block.
type BlockDelta struct {
	Orders       map[order.ID]order.Order
	IndexAppends []order.ID
	IndexBase    uint64 // index length before this block's appends
	Balances     map[ledger.Key]uint64
	Nonces       map[common.Address]uint64
}

// CommitBlockDelta writes all of a block's state changes in one synced
// batch.
func (s *PebbleStore) CommitBlockDelta(d BlockDelta) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for id, o := range d.Orders {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("marshal order %d: %w", id, err)
		}
		if err := batch.Set(orderKey(uint64(id)), data, nil); err != nil {
			return err
		}
	}

	for i, id := range d.IndexAppends {
		pos := d.IndexBase + uint64(i)
		if err := batch.Set(indexKey(pos), be64(uint64(id)), nil); err != nil {
			return err
		}
	}

	for k, bal := range d.Balances {
		if err := batch.Set(balanceKey(k.TokenID, k.Account), be64(bal), nil); err != nil {
			return err
		}
	}

	for addr, nonce := range d.Nonces {
		if err := batch.Set(nonceKey(addr), be64(nonce), nil); err != nil {
			return err
		}
	}

	return batch.Commit(pebble.Sync)
}

// LoadOrders reads every order record.
func (s *PebbleStore) LoadOrders() (map[order.ID]order.Order, error) {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make(map[order.ID]order.Order)
	for iter.First(); iter.Valid(); iter.Next() {
		var o order.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			return nil, fmt.Errorf("unmarshal order at %q: %w", iter.Key(), err)
		}
		out[o.ID] = o
	}
	return out, iter.Error()
}

// LoadIndex reads the order index in position order.
func (s *PebbleStore) LoadIndex() ([]order.ID, error) {
	prefix := []byte(prefixIndex)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []order.ID
	for iter.First(); iter.Valid(); iter.Next() {
		out = append(out, order.ID(binary.BigEndian.Uint64(iter.Value())))
	}
	return out, iter.Error()
}

// LoadBalances reads every token balance.
func (s *PebbleStore) LoadBalances() (map[ledger.Key]uint64, error) {
	prefix := []byte(prefixBalance)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make(map[ledger.Key]uint64)
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		// "bal:" + 8-byte token + ":" + 20-byte address
		if len(key) != len(prefixBalance)+8+1+common.AddressLength {
			return nil, fmt.Errorf("corrupt balance key %q", key)
		}
		tokenID := binary.BigEndian.Uint64(key[len(prefixBalance) : len(prefixBalance)+8])
		addr := common.BytesToAddress(key[len(prefixBalance)+9:])
		out[ledger.Key{TokenID: tokenID, Account: addr}] = binary.BigEndian.Uint64(iter.Value())
	}
	return out, iter.Error()
}

// LoadNonces reads every account nonce.
func (s *PebbleStore) LoadNonces() (map[common.Address]uint64, error) {
	prefix := []byte(prefixNonce)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make(map[common.Address]uint64)
	for iter.First(); iter.Valid(); iter.Next() {
		addr := common.BytesToAddress(iter.Key()[len(prefixNonce):])
		out[addr] = binary.BigEndian.Uint64(iter.Value())
	}
	return out, iter.Error()
}
