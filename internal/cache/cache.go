package cache

import (
	"errors"
	"math"
	"strconv"
	"sync"

	"github.com/google/btree"

	"github.com/wsgreco/sidica/internal/id"
	"github.com/wsgreco/sidica/internal/model"
)

var (
	ErrNotFound   = errors.New("key not found")
	ErrNonNumeric = errors.New("cannot increment or decrement non-numeric value")
	ErrOverflow   = errors.New("increment or decrement overflow")
)

const (
	// DefaultShards is the record map shard count used when the caller
	// passes 0.
	DefaultShards = 16

	indexDegree = 32
)

// indexEntry maps an external key to the identifier of its record.
type indexEntry struct {
	key string
	id  uint64
}

// Cache is the concurrent store: an ordered index from key to identifier
// under a single reader/writer lock, and a sharded record map from identifier
// to stored record.
//
// The two tiers are deliberate: updates of existing keys take only a shared
// index lock plus one shard lock, while inserts of new keys serialize on the
// exclusive index lock. Hot-key overwrites stay cheap; whole-cache contention
// is bounded to new-key insertion.
//
// Every identifier in the index has exactly one record, allocated from the
// identifier generator exactly once; identifiers are never reused.
type Cache struct {
	ids *id.Generator

	mu    sync.RWMutex
	index *btree.BTreeG[indexEntry]

	records *recordMap
}

func New(shards int) *Cache {
	if shards <= 0 {
		shards = DefaultShards
	}

	return &Cache{
		ids: id.NewGenerator(),
		index: btree.NewG(indexDegree, func(a, b indexEntry) bool {
			return a.key < b.key
		}),
		records: newRecordMap(shards),
	}
}

// Get returns an independent snapshot of the item stored under key, or false
// if the key is absent.
func (c *Cache) Get(key string) (*model.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.index.Get(indexEntry{key: key})
	if !ok {
		return nil, false
	}

	// Present whenever the key is indexed; records are only removed
	// together with their index entry under the exclusive lock.
	rec, ok := c.records.load(entry.id)
	if !ok {
		return nil, false
	}

	return &model.Item{
		Key:        key,
		Data:       cloneBytes(rec.data),
		Flags:      rec.flags,
		CAS:        rec.cas,
		Expiration: rec.expiration,
	}, true
}

// Set stores data under key unconditionally. It reports whether a new key was
// created: an existing key is overwritten in place with its CAS incremented
// and its identifier unchanged, a new key gets a fresh identifier and CAS 0.
func (c *Cache) Set(key string, flags, expiration uint32, data []byte) bool {
	data = cloneBytes(data)

	c.mu.RLock()
	if entry, ok := c.index.Get(indexEntry{key: key}); ok {
		c.overwrite(entry.id, flags, expiration, data)
		c.mu.RUnlock()
		return false
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check: another writer may have inserted the key between the two
	// lock acquisitions.
	if entry, ok := c.index.Get(indexEntry{key: key}); ok {
		c.overwrite(entry.id, flags, expiration, data)
		return false
	}

	newID := c.ids.Next()
	c.index.ReplaceOrInsert(indexEntry{key: key, id: newID})
	c.records.store(newID, record{flags: flags, expiration: expiration, cas: 0, data: data})
	return true
}

// Add stores data only if key is absent. Reports whether the value was
// stored.
func (c *Cache) Add(key string, flags, expiration uint32, data []byte) bool {
	c.mu.RLock()
	_, ok := c.index.Get(indexEntry{key: key})
	c.mu.RUnlock()
	if ok {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index.Get(indexEntry{key: key}); ok {
		return false
	}

	newID := c.ids.Next()
	c.index.ReplaceOrInsert(indexEntry{key: key, id: newID})
	c.records.store(newID, record{flags: flags, expiration: expiration, cas: 0, data: cloneBytes(data)})
	return true
}

// Replace overwrites key only if it is already present. Reports whether the
// value was stored.
func (c *Cache) Replace(key string, flags, expiration uint32, data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.index.Get(indexEntry{key: key})
	if !ok {
		return false
	}
	c.overwrite(entry.id, flags, expiration, cloneBytes(data))
	return true
}

// Append concatenates data after the stored value of key, bumping its CAS.
// Reports false if the key is absent.
func (c *Cache) Append(key string, data []byte) bool {
	return c.concat(key, data, false)
}

// Prepend concatenates data before the stored value of key, bumping its CAS.
// Reports false if the key is absent.
func (c *Cache) Prepend(key string, data []byte) bool {
	return c.concat(key, data, true)
}

func (c *Cache) concat(key string, data []byte, front bool) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.index.Get(indexEntry{key: key})
	if !ok {
		return false
	}

	c.records.update(entry.id, func(old record) record {
		joined := make([]byte, 0, len(old.data)+len(data))
		if front {
			joined = append(append(joined, data...), old.data...)
		} else {
			joined = append(append(joined, old.data...), data...)
		}
		return record{flags: old.flags, expiration: old.expiration, cas: old.cas + 1, data: joined}
	})
	return true
}

// CasResult is the outcome of a CompareAndSwap.
type CasResult int

const (
	// CasStored means the stored CAS matched and the value was replaced.
	CasStored CasResult = iota
	// CasExists means the stored CAS did not match casID.
	CasExists
	// CasNotFound means the key is absent.
	CasNotFound
)

// CompareAndSwap replaces the value of key only if its stored CAS equals
// casID.
func (c *Cache) CompareAndSwap(key string, flags, expiration uint32, casID uint64, data []byte) CasResult {
	data = cloneBytes(data)

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.index.Get(indexEntry{key: key})
	if !ok {
		return CasNotFound
	}

	result := CasExists
	c.records.update(entry.id, func(old record) record {
		if old.cas != casID {
			return old
		}
		result = CasStored
		return record{flags: flags, expiration: expiration, cas: old.cas + 1, data: data}
	})
	return result
}

// Delete removes key and its record. Reports whether the key existed. A later
// Set of the same key allocates a fresh identifier with CAS 0.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index.Delete(indexEntry{key: key})
	if !ok {
		return false
	}
	c.records.delete(entry.id)
	return true
}

// Touch updates only the expiration of key, bumping its CAS. Reports false if
// the key is absent.
func (c *Cache) Touch(key string, expiration uint32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.index.Get(indexEntry{key: key})
	if !ok {
		return false
	}

	c.records.update(entry.id, func(old record) record {
		return record{flags: old.flags, expiration: expiration, cas: old.cas + 1, data: old.data}
	})
	return true
}

// IncrBy treats the stored value of key as an ASCII decimal 64-bit unsigned
// integer and adds delta to it.
func (c *Cache) IncrBy(key string, delta uint64) (uint64, error) {
	return c.arith(key, delta, true)
}

// DecrBy subtracts delta from the stored numeric value of key, clamping at 0.
func (c *Cache) DecrBy(key string, delta uint64) (uint64, error) {
	return c.arith(key, delta, false)
}

func (c *Cache) arith(key string, delta uint64, incr bool) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.index.Get(indexEntry{key: key})
	if !ok {
		return 0, ErrNotFound
	}

	var (
		result uint64
		opErr  error
	)
	c.records.update(entry.id, func(old record) record {
		cur, err := parseUint(old.data)
		if err != nil {
			opErr = ErrNonNumeric
			return old
		}

		if incr {
			if cur > math.MaxUint64-delta {
				opErr = ErrOverflow
				return old
			}
			result = cur + delta
		} else {
			if delta >= cur {
				result = 0
			} else {
				result = cur - delta
			}
		}
		return record{
			flags:      old.flags,
			expiration: old.expiration,
			cas:        old.cas + 1,
			data:       []byte(strconv.FormatUint(result, 10)),
		}
	})
	if opErr != nil {
		return 0, opErr
	}
	return result, nil
}

// Len returns the number of stored keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Len()
}

// overwrite replaces the record at id with an incremented CAS. The caller
// must hold the index lock at least shared, which excludes concurrent
// deletion of id.
func (c *Cache) overwrite(id uint64, flags, expiration uint32, data []byte) {
	c.records.update(id, func(old record) record {
		return record{flags: flags, expiration: expiration, cas: old.cas + 1, data: data}
	})
}

func parseUint(value []byte) (uint64, error) {
	if len(value) == 0 {
		return 0, ErrNonNumeric
	}
	return strconv.ParseUint(string(value), 10, 64)
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
