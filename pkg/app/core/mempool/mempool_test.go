package mempool

import (
	"bytes"
	"testing"
)

func TestFIFOOrder(t *testing.T) {
	m := NewMempool()
	m.PushRaw([]byte("tx1"))
	m.PushRaw([]byte("tx2"))
	m.PushRaw([]byte("tx3"))

	out := m.SelectForProposal(0)
	if len(out) != 3 {
		t.Fatalf("selected %d txs, want 3", len(out))
	}

	want := [][]byte{[]byte("tx1"), []byte("tx2"), []byte("tx3")}
	for i := range want {
		if !bytes.Equal(out[i], want[i]) {
			t.Errorf("tx %d = %q, want %q", i, out[i], want[i])
		}
	}

	if m.Len() != 0 {
		t.Errorf("mempool should be drained, have %d", m.Len())
	}
}

func TestMaxBytesLimit(t *testing.T) {
	m := NewMempool()
	m.PushRaw(make([]byte, 10))
	m.PushRaw(make([]byte, 10))
	m.PushRaw(make([]byte, 10))

	out := m.SelectForProposal(25)
	if len(out) != 2 {
		t.Errorf("selected %d txs, want 2", len(out))
	}
	if m.Len() != 1 {
		t.Errorf("remaining = %d, want 1", m.Len())
	}
}

func TestPushCopiesInput(t *testing.T) {
	m := NewMempool()
	buf := []byte("abc")
	m.PushRaw(buf)
	buf[0] = 'x'

	out := m.SelectForProposal(0)
	if !bytes.Equal(out[0], []byte("abc")) {
		t.Error("mempool must copy pushed bytes")
	}
}
