// Package clock abstracts the time source used by the coordination services.
// Production code uses Real, tests use Manual to step TTL windows and retry
// sleeps deterministically.
package clock

import "time"

// Clock is the time source used for TTL indices and retry sleeps
type Clock interface {
	// Now returns the current time
	Now() time.Time
	// After returns a channel that receives once d has elapsed
	After(d time.Duration) <-chan time.Time
}

// Real is backed by the time package
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }

// NowMillis returns the clock's current time in unix milliseconds. A nil clock
// falls back to Real.
func NowMillis(c Clock) int64 {
	if c == nil {
		c = Real{}
	}
	return c.Now().UnixMilli()
}
