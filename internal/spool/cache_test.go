package spool

import (
	"testing"

	"go.klb.dev/uniclipboard/internal/ids"
)

func TestCachePutGet(t *testing.T) {
	c := NewCache(100, 10_000)
	rep := ids.NewRepresentationId()
	c.Put(rep, []byte{1, 2, 3})

	got, ok := c.Get(rep)
	if !ok {
		t.Fatalf("expected entry present")
	}
	if len(got) != 3 || got[0] != 1 {
		t.Fatalf("unexpected bytes: %v", got)
	}
}

func TestCacheEvictsOldestWhenEntryCountExceeded(t *testing.T) {
	c := NewCache(2, 10_000)
	a, b, cc := ids.NewRepresentationId(), ids.NewRepresentationId(), ids.NewRepresentationId()
	c.Put(a, []byte{1})
	c.Put(b, []byte{2})
	c.Put(cc, []byte{3})

	if _, ok := c.Get(a); ok {
		t.Fatalf("expected a evicted")
	}
	if _, ok := c.Get(b); !ok {
		t.Fatalf("expected b present")
	}
	if _, ok := c.Get(cc); !ok {
		t.Fatalf("expected c present")
	}
}

func TestCacheEvictsWhenByteBudgetExceeded(t *testing.T) {
	c := NewCache(10, 4)
	a, b := ids.NewRepresentationId(), ids.NewRepresentationId()
	c.Put(a, []byte{1, 2, 3})
	c.Put(b, []byte{4, 5, 6})

	if _, ok := c.Get(a); ok {
		t.Fatalf("expected a evicted over byte budget")
	}
	if _, ok := c.Get(b); !ok {
		t.Fatalf("expected b present")
	}
}

func TestCacheEvictsCompletedBeforePending(t *testing.T) {
	c := NewCache(2, 10_000)
	a, b, cc := ids.NewRepresentationId(), ids.NewRepresentationId(), ids.NewRepresentationId()
	c.Put(a, []byte{1})
	c.Put(b, []byte{2})
	c.MarkCompleted(a)

	c.Put(cc, []byte{3})

	if _, ok := c.Get(a); ok {
		t.Fatalf("expected completed entry a evicted first")
	}
	if _, ok := c.Get(b); !ok {
		t.Fatalf("expected pending entry b retained")
	}
	if _, ok := c.Get(cc); !ok {
		t.Fatalf("expected newly inserted c present")
	}
}

func TestCacheRemoveIsIdempotent(t *testing.T) {
	c := NewCache(10, 10_000)
	rep := ids.NewRepresentationId()
	c.Put(rep, []byte{1})
	c.Remove(rep)
	c.Remove(rep)
	if _, ok := c.Get(rep); ok {
		t.Fatalf("expected entry removed")
	}
}
