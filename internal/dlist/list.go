// Package dlist implements the intrusive circular doubly-linked list used
// for the idle-connection LRU.
package dlist

// Node is one link in a circular list. The zero value is not usable on its
// own; either build it with NewSentinel or embed it as a field, call Init,
// and then InsertBefore against a sentinel. Owner carries the record the node
// belongs to, so callers never need field-offset arithmetic to recover it.
type Node[T any] struct {
	prev, next *Node[T]
	Owner      T
}

// NewSentinel returns a new empty circular list: a node whose prev and next
// both point to itself.
func NewSentinel[T any]() *Node[T] {
	n := &Node[T]{}
	n.prev, n.next = n, n
	return n
}

// Init turns n into its own one-node circular list. Used for nodes embedded
// in a record before they are ever linked.
func (n *Node[T]) Init() {
	n.prev, n.next = n, n
}

// Empty reports whether the sentinel's list has no members.
func (n *Node[T]) Empty() bool {
	return n.next == n
}

// Next returns the following node, which is the oldest member's node if n
// is a sentinel and the list is non-empty.
func (n *Node[T]) Next() *Node[T] { return n.next }

// Prev returns the preceding node.
func (n *Node[T]) Prev() *Node[T] { return n.prev }

// Detach unlinks n from whatever list it is part of. Safe to call on a node
// that was never linked once it has been Init'd; a zero-value node has nil
// links and must not be detached.
func (n *Node[T]) Detach() {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = n, n
}

// InsertBefore detaches n if linked, then inserts it immediately before
// target. Inserting before the sentinel makes n the newest entry; the
// sentinel's Next() is always the oldest.
func (n *Node[T]) InsertBefore(target *Node[T]) {
	n.Detach()
	prev := target.prev
	prev.next = n
	n.prev = prev
	n.next = target
	target.prev = n
}
