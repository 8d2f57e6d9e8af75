package history

import (
	"strconv"
	"testing"
	"time"
)

func reading(id string, at time.Time) Reading {
	return Reading{ID: id, Weight: "125.5", Confidence: 0.836, CapturedAt: at}
}

func TestRecentNewestFirst(t *testing.T) {
	r := NewRing(5)
	now := time.Now()
	for i := 0; i < 3; i++ {
		r.Add(reading(strconv.Itoa(i), now))
	}
	got := r.Recent(0)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID != "2" || got[2].ID != "0" {
		t.Fatalf("order wrong: %q .. %q", got[0].ID, got[2].ID)
	}
}

func TestWrapEvictsOldest(t *testing.T) {
	r := NewRing(3)
	now := time.Now()
	for i := 0; i < 5; i++ {
		r.Add(reading(strconv.Itoa(i), now))
	}
	if r.Len() != 3 {
		t.Fatalf("len = %d, want 3", r.Len())
	}
	got := r.Recent(0)
	if got[0].ID != "4" || got[2].ID != "2" {
		t.Fatalf("expected readings 4..2, got %q .. %q", got[0].ID, got[2].ID)
	}
}

func TestRecentLimit(t *testing.T) {
	r := NewRing(10)
	now := time.Now()
	for i := 0; i < 6; i++ {
		r.Add(reading(strconv.Itoa(i), now))
	}
	got := r.Recent(2)
	if len(got) != 2 || got[0].ID != "5" {
		t.Fatalf("Recent(2) = %v", got)
	}
}

func TestPruneOlderThan(t *testing.T) {
	r := NewRing(4)
	old := time.Now().Add(-2 * time.Hour)
	r.Add(reading("stale1", old))
	r.Add(reading("stale2", old))
	r.Add(reading("fresh", time.Now()))
	if removed := r.PruneOlderThan(time.Hour); removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	got := r.Recent(0)
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Fatalf("after prune: %v", got)
	}
	// ring still accepts new readings after compaction
	r.Add(reading("next", time.Now()))
	if r.Len() != 2 {
		t.Fatalf("len = %d after add, want 2", r.Len())
	}
}

func TestCapacityClamp(t *testing.T) {
	r := NewRing(0)
	r.Add(reading("only", time.Now()))
	r.Add(reading("newer", time.Now()))
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
	if got := r.Recent(0); got[0].ID != "newer" {
		t.Fatalf("kept %q, want newer", got[0].ID)
	}
}
