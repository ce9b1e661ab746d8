package deduplication

import (
	"context"
	"testing"
	"time"
)

func TestCheckAndMarkLocalOnly(t *testing.T) {
	d, err := NewDeduplicator(nil, 16, time.Hour)
	if err != nil {
		t.Fatalf("NewDeduplicator failed: %v", err)
	}

	ctx := context.Background()
	fresh, err := d.CheckAndMark(ctx, "abc123")
	if err != nil {
		t.Fatalf("CheckAndMark failed: %v", err)
	}
	if !fresh {
		t.Error("first sighting should be reported as new")
	}

	fresh, err = d.CheckAndMark(ctx, "abc123")
	if err != nil {
		t.Fatalf("CheckAndMark failed: %v", err)
	}
	if fresh {
		t.Error("second sighting should be reported as duplicate")
	}
}

func TestClearLocalForgetsEntries(t *testing.T) {
	d, err := NewDeduplicator(nil, 16, time.Hour)
	if err != nil {
		t.Fatalf("NewDeduplicator failed: %v", err)
	}

	ctx := context.Background()
	if _, err := d.CheckAndMark(ctx, "abc123"); err != nil {
		t.Fatalf("CheckAndMark failed: %v", err)
	}
	d.ClearLocal()

	fresh, err := d.CheckAndMark(ctx, "abc123")
	if err != nil {
		t.Fatalf("CheckAndMark failed: %v", err)
	}
	if !fresh {
		t.Error("entry should be forgotten after ClearLocal")
	}
}

func TestLRUEviction(t *testing.T) {
	d, err := NewDeduplicator(nil, 2, time.Hour)
	if err != nil {
		t.Fatalf("NewDeduplicator failed: %v", err)
	}

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := d.CheckAndMark(ctx, id); err != nil {
			t.Fatalf("CheckAndMark failed: %v", err)
		}
	}

	// "a" was evicted by "c", so without a Redis backend it looks new again.
	fresh, err := d.CheckAndMark(ctx, "a")
	if err != nil {
		t.Fatalf("CheckAndMark failed: %v", err)
	}
	if !fresh {
		t.Error("evicted entry should be reported as new in local-only mode")
	}
}
