// Package history keeps the most recent weight readings in a fixed-capacity
// in-memory ring. Nothing is persisted; once the ring wraps, the oldest
// reading is gone.
package history

import (
	"encoding/json"
	"sync"
	"time"
)

// Reading is one completed recognition as recorded for /api/history and the
// webhook relay.
type Reading struct {
	ID         string          `json:"id"`
	Weight     string          `json:"weight"`
	Confidence float64         `json:"confidence"`
	RawText    string          `json:"raw_text"`
	Meta       json.RawMessage `json:"meta,omitempty"`
	CapturedAt time.Time       `json:"captured_at"`
}

// Ring is a mutex-guarded fixed-capacity buffer of readings.
type Ring struct {
	mu    sync.Mutex
	buf   []Reading
	next  int
	count int
}

// NewRing returns a ring holding at most capacity readings. Capacities below
// 1 are clamped to 1.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]Reading, capacity)}
}

// Add records a reading, evicting the oldest when full.
func (r *Ring) Add(reading Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = reading
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Recent returns up to n readings, newest first. n <= 0 means all retained.
func (r *Ring) Recent(n int) []Reading {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]Reading, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

// Len reports how many readings are currently retained.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// PruneOlderThan drops readings captured more than age ago and reports how
// many were removed. Used by the periodic retention job.
func (r *Ring) PruneOlderThan(age time.Duration) int {
	cutoff := time.Now().Add(-age)
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := make([]Reading, 0, r.count)
	for i := r.count; i >= 1; i-- {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		if r.buf[idx].CapturedAt.After(cutoff) {
			kept = append(kept, r.buf[idx])
		}
	}
	removed := r.count - len(kept)
	if removed == 0 {
		return 0
	}
	r.buf = make([]Reading, len(r.buf))
	copy(r.buf, kept)
	r.next = len(kept) % len(r.buf)
	r.count = len(kept)
	return removed
}
