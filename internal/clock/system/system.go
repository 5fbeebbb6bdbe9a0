// Package system provides the clocks used to stamp records and batch events.
package system

import "time"

// Clock reads the wall clock in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant.
type Fixed time.Time

// Now returns the fixed instant in UTC.
func (f Fixed) Now() time.Time {
	return time.Time(f).UTC()
}

// Truncated rounds another clock down to Precision. Postgres keeps
// microseconds, so in-memory records are stamped the same way.
type Truncated struct {
	Base interface {
		Now() time.Time
	}
	Precision time.Duration
}

// Now returns the base reading truncated to Precision.
func (t Truncated) Now() time.Time {
	return t.Base.Now().Truncate(t.Precision)
}
