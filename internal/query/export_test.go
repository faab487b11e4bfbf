package query

import "time"

// SetNow swaps the package clock for tests and returns a restore func.
func SetNow(f func() time.Time) (restore func()) {
	old := now
	now = f
	return func() { now = old }
}
