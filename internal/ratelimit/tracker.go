package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// CheckResult is the outcome of a rate limit check.
type CheckResult struct {
	Exceeded   bool
	Current    int
	Limit      int
	RetryAfter time.Duration
	Reason     string
}

type window struct {
	start time.Time
	count int
}

// Tracker counts requests per key in fixed windows. Safe for concurrent use.
type Tracker struct {
	limit Limit
	now   func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// NewTracker returns a tracker enforcing limit. now may be nil.
func NewTracker(limit Limit, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{limit: limit, now: now, windows: make(map[string]*window)}
}

// Allow records a request for key unless the key's window is full.
// An expired window is reset before counting.
func (t *Tracker) Allow(key string) CheckResult {
	if !t.limit.Enabled() {
		return CheckResult{}
	}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.windows[key]
	if w == nil || now.Sub(w.start) >= t.limit.Window {
		w = &window{start: now}
		t.windows[key] = w
	}
	if w.count >= t.limit.MaxRequests {
		return CheckResult{
			Exceeded:   true,
			Current:    w.count,
			Limit:      t.limit.MaxRequests,
			RetryAfter: w.start.Add(t.limit.Window).Sub(now),
			Reason: fmt.Sprintf("rate limit exceeded: %d/%d requests in %s window",
				w.count, t.limit.MaxRequests, t.limit.Window),
		}
	}
	w.count++
	return CheckResult{Current: w.count, Limit: t.limit.MaxRequests}
}

// Prune drops windows that have expired.
func (t *Tracker) Prune() {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, w := range t.windows {
		if now.Sub(w.start) >= t.limit.Window {
			delete(t.windows, k)
		}
	}
}

// Len returns the number of tracked keys.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}
