package dlist

import "testing"

func order(sentinel *Node[string]) []string {
	var out []string
	for n := sentinel.Next(); n != sentinel; n = n.Next() {
		out = append(out, n.Owner)
	}
	return out
}

func TestInsertBeforeOrdersOldestToNewest(t *testing.T) {
	head := NewSentinel[string]()

	a := &Node[string]{Owner: "a"}
	b := &Node[string]{Owner: "b"}
	c := &Node[string]{Owner: "c"}
	a.Init()
	b.Init()
	c.Init()

	a.InsertBefore(head)
	b.InsertBefore(head)
	c.InsertBefore(head)

	got := order(head)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestDetach(t *testing.T) {
	head := NewSentinel[string]()
	a := &Node[string]{Owner: "a"}
	b := &Node[string]{Owner: "b"}
	a.Init()
	b.Init()
	a.InsertBefore(head)
	b.InsertBefore(head)

	a.Detach()

	got := order(head)
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("order after detach = %v, want [b]", got)
	}
	if head.Empty() {
		t.Fatalf("list should still contain b")
	}
}

func TestReinsertMovesToNewest(t *testing.T) {
	head := NewSentinel[string]()
	a := &Node[string]{Owner: "a"}
	b := &Node[string]{Owner: "b"}
	a.Init()
	b.Init()
	a.InsertBefore(head)
	b.InsertBefore(head)

	// touching a moves it to the tail (newest)
	a.InsertBefore(head)

	got := order(head)
	want := []string{"b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestEmptySentinel(t *testing.T) {
	head := NewSentinel[int]()
	if !head.Empty() {
		t.Fatalf("fresh sentinel should be empty")
	}
}
