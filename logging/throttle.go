package logging

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Throttled wraps a Logger such that each distinct message template is emitted at most once per
// period. Suppressed messages are counted and the count is attached to the next emitted message
// for that template.
type Throttled struct {
	logger Logger
	period time.Duration
	clock  clock.Clock

	mu      sync.Mutex
	entries map[string]*throttleEntry
}

type throttleEntry struct {
	last       time.Time
	suppressed int
}

// NewThrottled returns a Throttled logger emitting each message template at most once per period.
func NewThrottled(logger Logger, period time.Duration) *Throttled {
	return NewThrottledWithClock(logger, period, clock.New())
}

// NewThrottledWithClock is like NewThrottled but reads the time from the given clock.
func NewThrottledWithClock(logger Logger, period time.Duration, clk clock.Clock) *Throttled {
	return &Throttled{
		logger:  logger,
		period:  period,
		clock:   clk,
		entries: map[string]*throttleEntry{},
	}
}

// allow reports whether a message keyed by key may be emitted now, and how many messages with the
// same key were dropped since the last one that was.
func (t *Throttled) allow(key string) (bool, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	entry, ok := t.entries[key]
	if !ok {
		t.entries[key] = &throttleEntry{last: now}
		return true, 0
	}
	if now.Sub(entry.last) < t.period {
		entry.suppressed++
		return false, 0
	}
	suppressed := entry.suppressed
	entry.last = now
	entry.suppressed = 0
	return true, suppressed
}

// Errorw logs msg at ERROR unless the same msg was logged within the period.
func (t *Throttled) Errorw(msg string, keysAndValues ...interface{}) {
	ok, suppressed := t.allow(msg)
	if !ok {
		return
	}
	if suppressed > 0 {
		keysAndValues = append(keysAndValues, "suppressed", suppressed)
	}
	t.logger.Errorw(msg, keysAndValues...)
}

// Warnw logs msg at WARN unless the same msg was logged within the period.
func (t *Throttled) Warnw(msg string, keysAndValues ...interface{}) {
	ok, suppressed := t.allow(msg)
	if !ok {
		return
	}
	if suppressed > 0 {
		keysAndValues = append(keysAndValues, "suppressed", suppressed)
	}
	t.logger.Warnw(msg, keysAndValues...)
}
