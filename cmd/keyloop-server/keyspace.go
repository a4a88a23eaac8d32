package main

import (
	"math"

	"keyloop/internal/minheap"
	"keyloop/internal/phm"
	"keyloop/internal/workerpool"
	"keyloop/internal/zset"
)

// valueType distinguishes the two kinds of value an Entry can hold.
type valueType int

const (
	typeStr  valueType = 1
	typeZSet valueType = 2
)

// largeContainerSize is the member count past which an Entry's destructor
// runs on the worker pool instead of inline on the event-loop thread.
const largeContainerSize = 1000

// noHeapIndex marks an Entry that currently has no TTL and so is absent
// from the expiry heap.
const noHeapIndex = -1

// Entry is one key's value, plus its TTL back-reference. It implements
// minheap.Indexed so the expiry heap can splice it out in O(log n)
// without a linear scan.
type Entry struct {
	Key       []byte
	Type      valueType
	Str       []byte
	ZSet      *zset.ZSet
	ExpireAt  int64 // monotonic milliseconds; meaningful only while heapIdx != noHeapIndex
	heapIdx   int
}

func newStrEntry(key, value []byte) *Entry {
	return &Entry{Key: append([]byte(nil), key...), Type: typeStr, Str: append([]byte(nil), value...), heapIdx: noHeapIndex}
}

func newZSetEntry(key []byte) *Entry {
	return &Entry{Key: append([]byte(nil), key...), Type: typeZSet, ZSet: zset.New(), heapIdx: noHeapIndex}
}

// HeapIndex and SetHeapIndex implement minheap.Indexed.
func (e *Entry) HeapIndex() int       { return e.heapIdx }
func (e *Entry) SetHeapIndex(i int)   { e.heapIdx = i }

// Keyspace is the top-level key to Entry index, plus the machinery for
// TTL expiry and offloaded destructors shared by every command handler.
type Keyspace struct {
	entries *phm.Map[*Entry]
	expiry  *minheap.Heap[*Entry]
	pool    *workerpool.Pool
}

// NewKeyspace returns an empty keyspace backed by a worker pool of the
// given size, used to run large-value destructors off the event-loop
// thread.
func NewKeyspace(poolSize int) *Keyspace {
	return &Keyspace{
		entries: phm.New[*Entry](),
		expiry:  minheap.New[*Entry](func(e *Entry) int64 { return e.ExpireAt }),
		pool:    workerpool.New(poolSize),
	}
}

// Close shuts down the keyspace's worker pool, waiting for queued
// destructors to finish.
func (ks *Keyspace) Close() {
	ks.pool.Close()
}

// Lookup returns the entry for key, if present.
func (ks *Keyspace) Lookup(key []byte) (*Entry, bool) {
	return ks.entries.Get(key)
}

// Put inserts e at key without checking for an existing entry; callers
// Lookup first and only Put on a miss.
func (ks *Keyspace) Put(key []byte, e *Entry) {
	ks.entries.Put(key, e)
}

// Len returns the number of keys.
func (ks *Keyspace) Len() int {
	return ks.entries.Len()
}

// ForEach visits every key, stopping early if fn returns false.
func (ks *Keyspace) ForEach(fn func(key []byte, e *Entry) bool) {
	ks.entries.ForEach(fn)
}

// SetTTL sets, clears, or updates ent's time-to-live.
//
// A negative ttlMs clears the TTL if one is set, and is a no-op
// otherwise. A non-negative ttlMs sets the expiry to nowMs+ttlMs,
// inserting ent into the expiry heap if it wasn't already there.
func (ks *Keyspace) SetTTL(ent *Entry, ttlMs int64, nowMs int64) {
	if ttlMs < 0 {
		if ent.heapIdx != noHeapIndex {
			ks.expiry.Delete(ent)
		}
		return
	}
	ent.ExpireAt = nowMs + ttlMs
	ks.expiry.Upsert(ent)
}

// TTLRemaining returns the milliseconds until ent expires, -1 if ent has
// no TTL, matching PTTL's encoding (the caller maps a missing key to -2
// separately).
func (ks *Keyspace) TTLRemaining(ent *Entry, nowMs int64) int64 {
	if ent.heapIdx == noHeapIndex {
		return -1
	}
	if ent.ExpireAt <= nowMs {
		return 0
	}
	return ent.ExpireAt - nowMs
}

// Del removes key, tearing down its value. Reports whether key was
// present.
func (ks *Keyspace) Del(key []byte) bool {
	ent, ok := ks.entries.Delete(key)
	if !ok {
		return false
	}
	ks.destroy(ent)
	return true
}

// destroy clears ent's TTL and then frees its value, offloading the
// teardown of a large zset to the worker pool so a single DEL of a
// huge sorted set never stalls the event loop.
func (ks *Keyspace) destroy(ent *Entry) {
	ks.SetTTL(ent, -1, 0)
	if ent.Type == typeZSet && ent.ZSet.Len() > largeContainerSize {
		z := ent.ZSet
		ks.pool.Submit(func() { z.Clear() })
		return
	}
	if ent.Type == typeZSet {
		ent.ZSet.Clear()
	}
}

// ExpireReadyBefore returns the Entry at the top of the expiry heap if
// its deadline is at or before nowMs, or nil otherwise.
func (ks *Keyspace) ExpireReadyBefore(nowMs int64) *Entry {
	e, ok := ks.expiry.Peek()
	if !ok || e.ExpireAt > nowMs {
		return nil
	}
	return e
}

// NextExpiryMs returns the deadline of the soonest-expiring entry, or
// math.MaxInt64 if the heap is empty.
func (ks *Keyspace) NextExpiryMs() int64 {
	e, ok := ks.expiry.Peek()
	if !ok {
		return math.MaxInt64
	}
	return e.ExpireAt
}
