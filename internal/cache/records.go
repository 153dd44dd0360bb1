package cache

import "sync"

// record is the internal stored form of an item. The key lives only in the
// index; records are owned exclusively by the cache and never aliased outside
// it. Data slices are immutable once stored: mutations replace the whole
// record.
type record struct {
	flags      uint32
	expiration uint32
	cas        uint64
	data       []byte
}

// recordMap is a sharded map from identifier to record with per-shard
// locking, so concurrent mutations of different keys do not contend.
// Identifiers carry the per-second sequence in their low bits, which spreads
// consecutive inserts across shards.
type recordMap struct {
	shards []recordShard
	mask   uint64
}

type recordShard struct {
	mu      sync.RWMutex
	entries map[uint64]record
}

func newRecordMap(shardCount int) *recordMap {
	n := 1
	for n < shardCount {
		n <<= 1
	}

	m := &recordMap{
		shards: make([]recordShard, n),
		mask:   uint64(n - 1),
	}
	for i := range m.shards {
		m.shards[i].entries = make(map[uint64]record)
	}
	return m
}

func (m *recordMap) shard(id uint64) *recordShard {
	return &m.shards[id&m.mask]
}

func (m *recordMap) load(id uint64) (record, bool) {
	s := m.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entries[id]
	return rec, ok
}

func (m *recordMap) store(id uint64, rec record) {
	s := m.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = rec
}

// update applies fn to the record under the shard lock, making the
// read-modify-write atomic with respect to other writers of the same id.
func (m *recordMap) update(id uint64, fn func(record) record) bool {
	s := m.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[id]
	if !ok {
		return false
	}
	s.entries[id] = fn(rec)
	return true
}

func (m *recordMap) delete(id uint64) {
	s := m.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}
