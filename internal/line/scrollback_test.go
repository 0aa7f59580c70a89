package line

import "testing"

func TestScrollbackEvictsFromHead(t *testing.T) {
	sb := NewScrollback(2)
	sb.Append([]byte("one"), false, 1)
	sb.Append([]byte("two"), false, 2)
	sb.Append([]byte("three"), false, 3)

	var evicted []string
	sb.Evict(func(victim, successor Ref) {
		evicted = append(evicted, string(sb.Arena.Get(victim).Bytes()))
	})

	if sb.Queue.Size() != 2 {
		t.Fatalf("expected size 2 after eviction, got %d", sb.Queue.Size())
	}
	if len(evicted) != 1 || evicted[0] != "one" {
		t.Fatalf("expected 'one' evicted, got %v", evicted)
	}
	head := sb.Arena.Get(sb.Queue.Head())
	if string(head.Bytes()) != "two" {
		t.Fatalf("expected 'two' at head, got %q", head.Bytes())
	}
}

// TestScrollbackEvictionFixesUpConsumerCursors models the invariant from
// spec §8: after eviction, for every client and every scrollback line
// referenced by bottom/sending, that line is still in scrollback.
func TestScrollbackEvictionFixesUpConsumerCursors(t *testing.T) {
	sb := NewScrollback(1)
	r1 := sb.Append([]byte("one"), false, 1)
	r2 := sb.Append([]byte("two"), false, 2)

	bottom := r1
	sb.Evict(func(victim, successor Ref) {
		if bottom == victim {
			bottom = successor
		}
	})

	if bottom != r2 {
		t.Fatalf("expected bottom advanced to successor %v, got %v", r2, bottom)
	}
	if sb.Arena.Get(bottom) == nil {
		t.Fatalf("bottom cursor must still resolve to a live line after eviction")
	}
}

func TestScrollbackNoEvictionWhenUnbounded(t *testing.T) {
	sb := NewScrollback(0)
	for i := 0; i < 1000; i++ {
		sb.Append([]byte("x"), false, int64(i))
	}
	sb.Evict(nil)
	if sb.Queue.Size() != 1000 {
		t.Fatalf("unbounded scrollback must not evict, got size %d", sb.Queue.Size())
	}
}

func TestScrollbackClearForcesMaxLinesOne(t *testing.T) {
	sb := NewScrollback(100)
	sb.Append([]byte("one"), false, 1)
	sb.Append([]byte("two"), false, 2)
	sb.Append([]byte("three"), false, 3)

	sb.Clear(nil)

	if sb.Queue.Size() != 1 {
		t.Fatalf("expected size 1 after clear, got %d", sb.Queue.Size())
	}
	if sb.MaxLines != 100 {
		t.Fatalf("Clear must restore the original MaxLines, got %d", sb.MaxLines)
	}
}
