package storage

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Key schema for Pebble storage. Numeric components are big-endian so
// lexicographic iteration matches numeric order:
//
//	blk:<height>          → Block (gob)
//	tip                   → height ++ block hash ++ app hash
//	ord:<order id>        → Order (json)
//	idx:<position>        → order id appended at that index position
//	bal:<token>:<address> → uint64 balance
//	nonce:<address>       → uint64 last accepted nonce
const (
	prefixBlock   = "blk:"
	prefixOrder   = "ord:"
	prefixIndex   = "idx:"
	prefixBalance = "bal:"
	prefixNonce   = "nonce:"
	keyTip        = "tip"
)

func be64(v uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], v)
	return k[:]
}

func blockKey(height uint64) []byte {
	return append([]byte(prefixBlock), be64(height)...)
}

func orderKey(id uint64) []byte {
	return append([]byte(prefixOrder), be64(id)...)
}

func indexKey(pos uint64) []byte {
	return append([]byte(prefixIndex), be64(pos)...)
}

// balanceKey format: "bal:" ++ 8-byte token id ++ ":" ++ 20-byte address
func balanceKey(tokenID uint64, addr common.Address) []byte {
	k := append([]byte(prefixBalance), be64(tokenID)...)
	k = append(k, ':')
	return append(k, addr.Bytes()...)
}

func nonceKey(addr common.Address) []byte {
	return append([]byte(prefixNonce), addr.Bytes()...)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
