// Package gate provides a fail-fast concurrency limiter around expensive
// recognition work. It bounds simultaneous admissions with a counter rather
// than a queue: callers that cannot enter are rejected immediately and are
// expected to retry, which keeps memory bounded under load spikes.
package gate

import (
	"fmt"
	"sync/atomic"
)

// RejectedError signals that the in-flight count already reached the
// configured limit. It is a backpressure signal, not a processing failure.
type RejectedError struct {
	InFlight int64
	Limit    int64
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("admission rejected: %d/%d recognitions in flight", e.InFlight, e.Limit)
}

// Gate bounds how many guarded sections may be active at once.
// Construct one per process and pass it to whatever guards the OCR call;
// there is no package-level instance.
type Gate struct {
	limit    int64
	inFlight atomic.Int64
}

// New returns a Gate admitting at most maxConcurrent concurrent entries.
// Values below 1 are clamped to 1.
func New(maxConcurrent int) *Gate {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Gate{limit: int64(maxConcurrent)}
}

// TryEnter attempts to enter the guarded section. It never blocks and never
// queues: if the limit is reached it returns a *RejectedError carrying the
// observed in-flight count and the limit. On success the caller must call
// Exit exactly once, on every exit path.
func (g *Gate) TryEnter() error {
	for {
		cur := g.inFlight.Load()
		if cur >= g.limit {
			return &RejectedError{InFlight: cur, Limit: g.limit}
		}
		if g.inFlight.CompareAndSwap(cur, cur+1) {
			return nil
		}
	}
}

// Exit leaves the guarded section. Calling Exit without a matching TryEnter
// is a programming error and panics rather than silently corrupting the count.
func (g *Gate) Exit() {
	if n := g.inFlight.Add(-1); n < 0 {
		panic("gate: Exit without matching TryEnter")
	}
}

// InFlight reports how many guarded sections are currently active.
func (g *Gate) InFlight() int64 {
	return g.inFlight.Load()
}

// Limit reports the configured maximum.
func (g *Gate) Limit() int64 {
	return g.limit
}
