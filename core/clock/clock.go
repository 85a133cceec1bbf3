// Package clock provides the device wall clock used to stamp activity log
// lines. A device without a battery-backed RTC boots at the epoch, so the
// clock can be set once from user input and then advances with real time.
package clock

import (
	"sync"
	"time"
)

const (
	// StampLayout is the fixed-width activity log timestamp, MM-DD HH:MM:SS.
	// There is no year, so ordering breaks across a year boundary.
	StampLayout = "01-02 15:04:05"

	// StampLen is the length of a formatted stamp.
	StampLen = len(StampLayout)

	// unsetBefore is the threshold below which the clock is considered
	// never set (2001-09-09, UNIX time 1e9).
	unsetBefore = 1_000_000_000
)

// Clock is a settable wall clock. The zero value is not usable; call New.
type Clock struct {
	mu    sync.Mutex
	nowFn func() time.Time // overridable for testing
}

// New creates a Clock that follows the system clock.
func New() *Clock {
	return &Clock{nowFn: time.Now}
}

// Now returns the current wall clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowFn()
}

// Set moves the clock to t. Subsequent calls to Now advance from t by the
// real time elapsed since Set was called.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	base := time.Now()
	c.nowFn = func() time.Time {
		return t.Add(time.Since(base))
	}
}

// IsSet returns false while the clock still reads a time near the epoch,
// meaning nobody has set it since boot.
func (c *Clock) IsSet() bool {
	return c.Now().Unix() >= unsetBefore
}

// Stamp returns the current time formatted with StampLayout.
func (c *Clock) Stamp() string {
	return c.Now().Format(StampLayout)
}
