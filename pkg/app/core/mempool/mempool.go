// Package mempool holds raw transactions awaiting inclusion in a block.
// A single FIFO queue preserves submission order: the block the
// sequencer builds applies transactions in exactly the order takers and
// makers submitted them.
package mempool

import "sync"

type Mempool struct {
	mu      sync.Mutex
	pending [][]byte
}

func NewMempool() *Mempool {
	return &Mempool{}
}

// PushRaw enqueues a raw transaction.
func (m *Mempool) PushRaw(b []byte) {
	cp := append([]byte(nil), b...)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, cp)
}

// SelectForProposal removes and returns up to maxBytes worth of
// transactions in submission order. maxBytes <= 0 means no limit.
func (m *Mempool) SelectForProposal(maxBytes int64) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out [][]byte
	var used int64

	for len(m.pending) > 0 {
		tx := m.pending[0]
		n := int64(len(tx))
		if maxBytes > 0 && used+n > maxBytes {
			break
		}
		out = append(out, tx)
		used += n
		m.pending = m.pending[1:]
	}

	return out
}

// Len returns the number of pending transactions.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
