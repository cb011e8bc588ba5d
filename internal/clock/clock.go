// Package clock abstracts timer scheduling so timeout paths can be driven
// deterministically in tests.
package clock

import "time"

// Timer is a scheduled callback handle.
type Timer interface {
	// Stop cancels the callback; it reports false if the callback already ran or was stopped.
	Stop() bool
}

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real implements Scheduler using the standard library timers.
type Real struct{}

// Now returns the current UTC time.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// AfterFunc mirrors time.AfterFunc; f runs on its own goroutine.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
