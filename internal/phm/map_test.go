package phm

import (
	"fmt"
	"testing"
)

func TestPutGetDelete(t *testing.T) {
	m := New[int]()
	m.Put([]byte("a"), 1)
	m.Put([]byte("b"), 2)

	if v, ok := m.Get([]byte("a")); !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v", v, ok)
	}
	if v, ok := m.Get([]byte("b")); !ok || v != 2 {
		t.Fatalf("Get(b) = %v, %v", v, ok)
	}
	if _, ok := m.Get([]byte("c")); ok {
		t.Fatalf("Get(c) should miss")
	}

	if v, ok := m.Delete([]byte("a")); !ok || v != 1 {
		t.Fatalf("Delete(a) = %v, %v", v, ok)
	}
	if _, ok := m.Get([]byte("a")); ok {
		t.Fatalf("a should be gone after delete")
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
}

func TestProgressiveRehashPreservesAllKeys(t *testing.T) {
	m := New[int]()
	const n = 5000
	for i := 0; i < n; i++ {
		m.Put([]byte(fmt.Sprintf("key-%d", i)), i)
	}
	if m.Len() != n {
		t.Fatalf("Len = %d, want %d", m.Len(), n)
	}
	for i := 0; i < n; i++ {
		v, ok := m.Get([]byte(fmt.Sprintf("key-%d", i)))
		if !ok || v != i {
			t.Fatalf("Get(key-%d) = %v, %v, want %d, true", i, v, ok, i)
		}
	}
}

func TestForEachVisitsEveryEntry(t *testing.T) {
	m := New[int]()
	const n = 2000
	for i := 0; i < n; i++ {
		m.Put([]byte(fmt.Sprintf("k%d", i)), i)
	}

	seen := make(map[string]bool)
	m.ForEach(func(key []byte, value int) bool {
		seen[string(key)] = true
		return true
	})
	if len(seen) != n {
		t.Fatalf("ForEach visited %d entries, want %d", len(seen), n)
	}
}

func TestForEachShortCircuits(t *testing.T) {
	m := New[int]()
	for i := 0; i < 10; i++ {
		m.Put([]byte(fmt.Sprintf("k%d", i)), i)
	}
	count := 0
	m.ForEach(func(key []byte, value int) bool {
		count++
		return count < 3
	})
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestDeleteMissingKey(t *testing.T) {
	m := New[int]()
	m.Put([]byte("x"), 1)
	if _, ok := m.Delete([]byte("y")); ok {
		t.Fatalf("Delete of missing key should report false")
	}
}
