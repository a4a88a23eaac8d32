// Package phm implements a progressive hash map: two chained hash tables,
// "newer" and "older", with a bounded number of buckets migrated from
// older to newer on every operation. This spreads the cost of a resize
// across many subsequent calls instead of stopping the world.
package phm

import "github.com/cespare/xxhash/v2"

// migrateStep is the number of non-empty buckets moved from older to newer
// per operation (spec's W). Kept small so no single call stalls.
const migrateStep = 128

const (
	minCapacity    = 4
	maxLoadFactor  = 4 // resize newer once size/capacity exceeds this
)

type node[V any] struct {
	hash  uint64
	key   []byte
	value V
	next  *node[V]
}

type table[V any] struct {
	buckets []*node[V]
	mask    uint64
	size    int
}

func (t *table[V]) bucketOf(hash uint64) *node[V] {
	if len(t.buckets) == 0 {
		return nil
	}
	return t.buckets[hash&t.mask]
}

// Map is a keyspace index from byte-string keys to values of type V.
type Map[V any] struct {
	newer, older table[V]
	migratePos   uint64
}

// New returns an empty map.
func New[V any]() *Map[V] {
	return &Map[V]{}
}

func hashKey(key []byte) uint64 {
	return xxhash.Sum64(key)
}

// Len returns the number of entries across both tables.
func (m *Map[V]) Len() int {
	return m.newer.size + m.older.size
}

// Get looks up key, walking the chain in both tables.
func (m *Map[V]) Get(key []byte) (V, bool) {
	m.step()
	hash := hashKey(key)
	if n := find(&m.newer, hash, key); n != nil {
		return n.value, true
	}
	if n := find(&m.older, hash, key); n != nil {
		return n.value, true
	}
	var zero V
	return zero, false
}

func find[V any](t *table[V], hash uint64, key []byte) *node[V] {
	for n := t.bucketOf(hash); n != nil; n = n.next {
		if n.hash == hash && string(n.key) == string(key) {
			return n
		}
	}
	return nil
}

// Put inserts a new entry unconditionally at the head of its bucket in
// newer. Callers that need upsert semantics must Get first, as the
// top-level keyspace and the ZSet index both do.
func (m *Map[V]) Put(key []byte, value V) {
	m.step()
	if len(m.newer.buckets) == 0 {
		m.newer.buckets = make([]*node[V], minCapacity)
		m.newer.mask = minCapacity - 1
	}
	hash := hashKey(key)
	n := &node[V]{hash: hash, key: append([]byte(nil), key...), value: value}
	idx := hash & m.newer.mask
	n.next = m.newer.buckets[idx]
	m.newer.buckets[idx] = n
	m.newer.size++

	if len(m.older.buckets) == 0 && m.newer.size > len(m.newer.buckets)*maxLoadFactor {
		m.older = m.newer
		m.newer = table[V]{
			buckets: make([]*node[V], len(m.older.buckets)*2),
			mask:    uint64(len(m.older.buckets)*2 - 1),
		}
		m.migratePos = 0
	}
}

// Delete removes the first matching entry, returning it.
func (m *Map[V]) Delete(key []byte) (V, bool) {
	m.step()
	hash := hashKey(key)
	if v, ok := deleteFrom(&m.newer, hash, key); ok {
		return v, true
	}
	if v, ok := deleteFrom(&m.older, hash, key); ok {
		return v, true
	}
	var zero V
	return zero, false
}

func deleteFrom[V any](t *table[V], hash uint64, key []byte) (V, bool) {
	var zero V
	if len(t.buckets) == 0 {
		return zero, false
	}
	idx := hash & t.mask
	prev := (*node[V])(nil)
	for n := t.buckets[idx]; n != nil; n = n.next {
		if n.hash == hash && string(n.key) == string(key) {
			if prev == nil {
				t.buckets[idx] = n.next
			} else {
				prev.next = n.next
			}
			t.size--
			return n.value, true
		}
		prev = n
	}
	return zero, false
}

// ForEach visits every entry, older table first then newer, stopping early
// if fn returns false.
func (m *Map[V]) ForEach(fn func(key []byte, value V) bool) {
	if !forEachTable(&m.older, fn) {
		return
	}
	forEachTable(&m.newer, fn)
}

func forEachTable[V any](t *table[V], fn func(key []byte, value V) bool) bool {
	for _, head := range t.buckets {
		for n := head; n != nil; n = n.next {
			if !fn(n.key, n.value) {
				return false
			}
		}
	}
	return true
}

// step migrates up to migrateStep non-empty buckets from older into newer.
func (m *Map[V]) step() {
	if len(m.older.buckets) == 0 {
		return
	}
	moved := 0
	for moved < migrateStep && m.migratePos < uint64(len(m.older.buckets)) {
		n := m.older.buckets[m.migratePos]
		m.older.buckets[m.migratePos] = nil
		if n != nil {
			moved++
		}
		for n != nil {
			next := n.next
			idx := n.hash & m.newer.mask
			n.next = m.newer.buckets[idx]
			m.newer.buckets[idx] = n
			m.older.size--
			m.newer.size++
			n = next
		}
		m.migratePos++
	}
	if m.older.size == 0 {
		m.older = table[V]{}
		m.migratePos = 0
	}
}
