// Package clock provides the engine's time source. All month-boundary
// logic (activation, rank checks, pool phases) goes through a Clock so
// batches are deterministic under test and steerable by operators.
package clock

import (
	"sync"
	"time"
)

// Clock yields the current instant. Implementations must return UTC.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// VirtualClock follows real time until an operator pins it. It backs the
// admin time override used for plan rehearsals.
type VirtualClock struct {
	mu     sync.RWMutex
	pinned *time.Time
}

func NewVirtualClock() *VirtualClock { return &VirtualClock{} }

func (c *VirtualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pinned != nil {
		return *c.pinned
	}
	return time.Now().UTC()
}

// Set pins the clock to t until Reset is called.
func (c *VirtualClock) Set(t time.Time) {
	t = t.UTC()
	c.mu.Lock()
	c.pinned = &t
	c.mu.Unlock()
}

// Advance moves a pinned clock forward. No-op while unpinned.
func (c *VirtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pinned != nil {
		t := c.pinned.Add(d)
		c.pinned = &t
	}
}

// Reset returns the clock to real time.
func (c *VirtualClock) Reset() {
	c.mu.Lock()
	c.pinned = nil
	c.mu.Unlock()
}

// Month formats t as the calendar-month key used across the ledger tables.
func Month(t time.Time) string { return t.UTC().Format("2006-01") }

// MonthBounds returns the half-open [start, end) interval of t's month.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// IsMonthEnd reports whether t falls on the last day of its month.
func IsMonthEnd(t time.Time) bool {
	return t.UTC().AddDate(0, 0, 1).Month() != t.UTC().Month()
}
