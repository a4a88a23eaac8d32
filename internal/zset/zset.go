// Package zset implements a sorted set: a collection of (score, member)
// pairs ordered first by score and then lexicographically by member name,
// with O(log n) rank-offset traversal and O(1) membership lookup.
//
// The ordering index is a BOT (internal/avltree) keyed by (score, name);
// the membership index is a progressive hash map (internal/phm) keyed by
// name alone. Both indexes point at the same ZNode, so there is exactly
// one ZNode per member.
package zset

import (
	"bytes"

	"keyloop/internal/avltree"
	"keyloop/internal/phm"
)

// ZNode is one (score, member) pair. It is intrusively linked into the
// ordering tree via the embedded avltree.Node.
type ZNode struct {
	tree  avltree.Node[*ZNode]
	Name  []byte
	Score float64
}

func newNode(name []byte, score float64) *ZNode {
	n := &ZNode{Name: append([]byte(nil), name...), Score: score}
	n.tree.Owner = n
	return n
}

// less orders by score, breaking ties lexicographically by name. This
// matches zless in the original server: a tuple comparison, not two
// independent comparisons.
func less(a, b *ZNode) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return bytes.Compare(a.Name, b.Name) < 0
}

// ZSet is an ordered, indexed collection of (score, member) pairs.
type ZSet struct {
	tree avltree.Tree[*ZNode]
	byName *phm.Map[*ZNode]
}

// New returns an empty ZSet.
func New() *ZSet {
	return &ZSet{
		tree:   avltree.Tree[*ZNode]{Less: less},
		byName: phm.New[*ZNode](),
	}
}

// Len returns the number of members.
func (z *ZSet) Len() int {
	return z.byName.Len()
}

// Lookup returns the node for name, if present.
func (z *ZSet) Lookup(name []byte) (*ZNode, bool) {
	return z.byName.Get(name)
}

// Score returns the score for name, if present.
func (z *ZSet) Score(name []byte) (float64, bool) {
	n, ok := z.byName.Get(name)
	if !ok {
		return 0, false
	}
	return n.Score, true
}

// Insert adds name with score if absent, or repositions it if its score
// changed. Reports whether name was newly added.
func (z *ZSet) Insert(name []byte, score float64) bool {
	if n, ok := z.byName.Get(name); ok {
		if n.Score != score {
			z.tree.Delete(&n.tree)
			n.Score = score
			z.tree.Insert(&n.tree)
		}
		return false
	}
	n := newNode(name, score)
	z.byName.Put(name, n)
	z.tree.Insert(&n.tree)
	return true
}

// Delete removes name, reporting whether it was present.
func (z *ZSet) Delete(name []byte) bool {
	n, ok := z.byName.Delete(name)
	if !ok {
		return false
	}
	z.tree.Delete(&n.tree)
	return true
}

// SeekGE returns the first member whose (score, name) is >= the given
// pair, in the tree's ordering. Used to seat a query's starting point
// before walking Offset.
func (z *ZSet) SeekGE(score float64, name []byte) *ZNode {
	var found *ZNode
	probe := &ZNode{Score: score, Name: name}
	for n := z.tree.Root; n != nil; {
		if less(probe, n.Owner) {
			found = n.Owner
			n = n.Left()
		} else if less(n.Owner, probe) {
			n = n.Right()
		} else {
			return n.Owner
		}
	}
	return found
}

// Offset returns the node k in-order positions from n, or nil if out of
// range. n must belong to this ZSet.
func (z *ZSet) Offset(n *ZNode, k int64) *ZNode {
	if n == nil {
		return nil
	}
	got := avltree.Offset(&n.tree, k)
	if got == nil {
		return nil
	}
	return got.Owner
}

// Clear removes every member. If the set is large, callers that want the
// node teardown done off the event-loop thread should instead hand the
// ZSet to the worker pool and call Clear from there; Clear itself does no
// offloading, since it has no access to the pool.
func (z *ZSet) Clear() {
	z.byName = phm.New[*ZNode]()
	z.tree = avltree.Tree[*ZNode]{Less: less}
}

// ForEach visits every member in ascending (score, name) order, stopping
// early if fn returns false.
func (z *ZSet) ForEach(fn func(n *ZNode) bool) {
	var walk func(n *avltree.Node[*ZNode]) bool
	walk = func(n *avltree.Node[*ZNode]) bool {
		if n == nil {
			return true
		}
		if !walk(n.Left()) {
			return false
		}
		if !fn(n.Owner) {
			return false
		}
		return walk(n.Right())
	}
	walk(z.tree.Root)
}
