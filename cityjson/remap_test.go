package cityjson

import "testing"

func TestIndexMapDenseFirstSeen(t *testing.T) {
	m := NewIndexMap(0)

	if got := m.Resolve(42); got != 0 {
		t.Fatalf("first id: got %d", got)
	}
	if got := m.Resolve(7); got != 1 {
		t.Fatalf("second id: got %d", got)
	}
	if got := m.Resolve(42); got != 0 {
		t.Fatalf("repeat lookup must not reassign: got %d", got)
	}
	if m.Len() != 2 {
		t.Fatalf("len: got %d", m.Len())
	}
}

func TestIndexMapOffset(t *testing.T) {
	m := NewIndexMap(100)

	if got := m.Resolve(5); got != 100 {
		t.Fatalf("got %d", got)
	}
	if got := m.Resolve(6); got != 101 {
		t.Fatalf("got %d", got)
	}
}

func TestIndexMapPutAndGet(t *testing.T) {
	m := NewIndexMap(0)
	m.Put(3, 17)

	if got, ok := m.Get(3); !ok || got != 17 {
		t.Fatalf("got %d %v", got, ok)
	}
	if _, ok := m.Get(4); ok {
		t.Fatal("unexpected hit")
	}
	if got := m.Resolve(3); got != 17 {
		t.Fatalf("explicit assignment must win: got %d", got)
	}
}

func TestIndexMapEachCoversAllPairs(t *testing.T) {
	m := NewIndexMap(0)
	m.Resolve(10)
	m.Resolve(20)
	m.Resolve(30)

	seen := map[int]int{}
	m.Each(func(old, new int) { seen[old] = new })

	if len(seen) != 3 || seen[10] != 0 || seen[20] != 1 || seen[30] != 2 {
		t.Fatalf("got %v", seen)
	}
}
