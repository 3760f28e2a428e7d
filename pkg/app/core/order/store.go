package order

// Store is the order record store plus the append-only creation index.
// The index maps sequence number -> order id in creation order and only
// ever grows; lock/close/settle never touch it.
type Store interface {
	// Get returns the record stored under id, tombstones included.
	Get(id ID) (Order, bool)
	// Put stores or overwrites the record under id.
	Put(id ID, o Order)
	// Append adds an id to the creation index.
	Append(id ID)
	// IndexLen returns the number of index entries.
	IndexLen() uint64
	// IndexAt returns the id at the given sequence number.
	IndexAt(seq uint64) (ID, bool)
}

// MemoryStore is the in-memory Store implementation owned by the
// application state.
type MemoryStore struct {
	orders map[ID]Order
	index  []ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[ID]Order)}
}

func (s *MemoryStore) Get(id ID) (Order, bool) {
	o, ok := s.orders[id]
	return o, ok
}

func (s *MemoryStore) Put(id ID, o Order) { s.orders[id] = o }

func (s *MemoryStore) Append(id ID) { s.index = append(s.index, id) }

func (s *MemoryStore) IndexLen() uint64 { return uint64(len(s.index)) }

func (s *MemoryStore) IndexAt(seq uint64) (ID, bool) {
	if seq >= uint64(len(s.index)) {
		return DeletedID, false
	}
	return s.index[seq], true
}

// Restore injects a previously persisted record and index without going
// through a state transition. Used when reloading state at startup.
func (s *MemoryStore) Restore(o Order, indexed bool) {
	s.orders[o.ID] = o
	if indexed {
		s.index = append(s.index, o.ID)
	}
}

// RestoreIndex replaces the creation index wholesale.
func (s *MemoryStore) RestoreIndex(index []ID) { s.index = index }

// Overlay buffers writes on top of a base Store so a state transition
// can be discarded wholesale if any precondition fails. Reads see the
// overlay first, then the base. Commit flushes buffered writes in a
// deterministic order: records first, then index appends.
type Overlay struct {
	base    Store
	dirty   map[ID]Order
	appends []ID
}

func NewOverlay(base Store) *Overlay {
	return &Overlay{base: base, dirty: make(map[ID]Order)}
}

func (ov *Overlay) Get(id ID) (Order, bool) {
	if o, ok := ov.dirty[id]; ok {
		return o, true
	}
	return ov.base.Get(id)
}

func (ov *Overlay) Put(id ID, o Order) { ov.dirty[id] = o }

func (ov *Overlay) Append(id ID) { ov.appends = append(ov.appends, id) }

func (ov *Overlay) IndexLen() uint64 {
	return ov.base.IndexLen() + uint64(len(ov.appends))
}

func (ov *Overlay) IndexAt(seq uint64) (ID, bool) {
	baseLen := ov.base.IndexLen()
	if seq < baseLen {
		return ov.base.IndexAt(seq)
	}
	off := seq - baseLen
	if off >= uint64(len(ov.appends)) {
		return DeletedID, false
	}
	return ov.appends[off], true
}

// Commit flushes buffered writes to the base store. The overlay must not
// be reused afterwards.
func (ov *Overlay) Commit() {
	for id, o := range ov.dirty {
		ov.base.Put(id, o)
	}
	for _, id := range ov.appends {
		ov.base.Append(id)
	}
}

// Appended exposes the ids appended through this overlay, in order.
// The application persists exactly these entries on commit.
func (ov *Overlay) Appended() []ID { return ov.appends }

// Dirty exposes the buffered record writes.
func (ov *Overlay) Dirty() map[ID]Order { return ov.dirty }

var _ Store = (*MemoryStore)(nil)
var _ Store = (*Overlay)(nil)
