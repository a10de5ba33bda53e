// Package clock narrows time access behind an interface so retry waits and
// cache expiry can run against a controllable clock in tests.
package clock

import "time"

// Clock supplies the two time primitives the client core needs: reading the
// current instant and arming a one-shot timer.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// System is the wall-clock implementation used outside tests.
type System struct{}

// Now reports the current UTC instant.
func (System) Now() time.Time { return time.Now().UTC() }

// After arms a one-shot timer via the standard library.
func (System) After(d time.Duration) <-chan time.Time { return time.After(d) }
