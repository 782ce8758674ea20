// Package traffic keeps sliding windows of request outcomes on the risk
// routes so /health can tell an overloaded instance from a healthy one.
package traffic

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MaxAge is how long outcomes are retained. Windows longer than this see
// only the last MaxAge of traffic.
const MaxAge = 5 * time.Minute

// Tracker maintains sliding windows of outcome timestamps. Timestamps are
// appended in clock order, so each slice stays sorted.
type Tracker struct {
	clock clockwork.Clock

	mu          sync.Mutex
	servedTimes []time.Time
	errorTimes  []time.Time
	deniedTimes []time.Time
}

// New returns a Tracker on clock. A nil clock uses the real clock.
func New(clock clockwork.Clock) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{clock: clock}
}

// RecordServed records a request answered with a result.
func (t *Tracker) RecordServed() {
	t.record(&t.servedTimes)
}

// RecordError records a request that failed (timeout, no snapshot).
func (t *Tracker) RecordError() {
	t.record(&t.errorTimes)
}

// RecordDenied records a rate-limit denial (429).
func (t *Tracker) RecordDenied() {
	t.record(&t.deniedTimes)
}

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// Counts is a snapshot of one window.
type Counts struct {
	Served int `json:"served"`
	Errors int `json:"errors"`
	Denied int `json:"denied"`
}

// Total is every outcome in the window.
func (c Counts) Total() int {
	return c.Served + c.Errors + c.Denied
}

// DeniedPct is the share of the window's requests that were denied, 0..100.
func (c Counts) DeniedPct() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.Denied) * 100 / float64(total)
}

// Window returns the outcome counts within the last window.
func (t *Tracker) Window(window time.Duration) Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock.Now().Add(-window)
	return Counts{
		Served: countSince(t.servedTimes, cutoff),
		Errors: countSince(t.errorTimes, cutoff),
		Denied: countSince(t.deniedTimes, cutoff),
	}
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.servedTimes = nil
	t.errorTimes = nil
	t.deniedTimes = nil
}

// countSince counts timestamps that are not before cutoff.
func countSince(times []time.Time, cutoff time.Time) int {
	i := 0
	for ; i < len(times) && times[i].Before(cutoff); i++ {
	}
	return len(times) - i
}

// pruneLocked drops timestamps older than MaxAge. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-MaxAge)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.servedTimes)
	prune(&t.errorTimes)
	prune(&t.deniedTimes)
}
