// Package minheap implements an array-backed binary min-heap whose items
// carry a back-reference to their own index, so an outside caller holding
// the item can cancel it in O(log n) without a linear scan.
package minheap

// Indexed is implemented by anything stored in a Heap. SetHeapIndex is
// called on every swap so the item always knows where it lives.
type Indexed interface {
	HeapIndex() int
	SetHeapIndex(i int)
}

// Heap is a min-heap over items of type T, ordered by a caller-supplied key.
type Heap[T Indexed] struct {
	items []T
	key   func(T) int64
}

// New returns an empty heap ordered by key.
func New[T Indexed](key func(T) int64) *Heap[T] {
	return &Heap[T]{key: key}
}

// Len returns the number of items in the heap.
func (h *Heap[T]) Len() int { return len(h.items) }

// Peek returns the minimum item without removing it.
func (h *Heap[T]) Peek() (T, bool) {
	var zero T
	if len(h.items) == 0 {
		return zero, false
	}
	return h.items[0], true
}

// Upsert inserts item if item.HeapIndex() is out of bounds (i.e. not
// currently in the heap), or overwrites its existing slot and re-sifts it
// otherwise. Use this both to add a new item and to change an existing
// item's key.
func (h *Heap[T]) Upsert(item T) {
	pos := item.HeapIndex()
	if pos >= 0 && pos < len(h.items) {
		h.items[pos] = item
		item.SetHeapIndex(pos)
	} else {
		pos = len(h.items)
		item.SetHeapIndex(pos)
		h.items = append(h.items, item)
	}
	h.siftInto(pos)
}

// Delete removes item from the heap, using its own back-reference to find
// its slot in O(log n).
func (h *Heap[T]) Delete(item T) {
	pos := item.HeapIndex()
	if pos < 0 || pos >= len(h.items) {
		return
	}
	last := len(h.items) - 1
	if pos != last {
		h.items[pos] = h.items[last]
		h.items[pos].SetHeapIndex(pos)
	}
	var zero T
	h.items[last] = zero
	h.items = h.items[:last]
	item.SetHeapIndex(-1)
	if pos < len(h.items) {
		h.siftInto(pos)
	}
}

// siftInto restores the heap invariant around pos after either an insert
// or an in-place key update, in either direction.
func (h *Heap[T]) siftInto(pos int) {
	if !h.down(pos) {
		h.up(pos)
	}
}

func (h *Heap[T]) less(i, j int) bool {
	return h.key(h.items[i]) < h.key(h.items[j])
}

func (h *Heap[T]) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].SetHeapIndex(i)
	h.items[j].SetHeapIndex(j)
}

func (h *Heap[T]) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !h.less(j, i) {
			break
		}
		h.swap(i, j)
		j = i
	}
}

// down sifts the item at index i0 toward the leaves. Returns true if it
// moved at least once.
func (h *Heap[T]) down(i0 int) bool {
	limit := len(h.items)
	i := i0
	for {
		left := 2*i + 1
		if left >= limit || left < 0 {
			break
		}
		j := left
		if right := left + 1; right < limit && h.less(right, left) {
			j = right
		}
		if !h.less(j, i) {
			break
		}
		h.swap(i, j)
		i = j
	}
	return i > i0
}
