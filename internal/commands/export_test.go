package commands

import "time"

// SetNow replaces the clock for the duration of a test.
func SetNow(now time.Time) (restore func()) {
	prev := nowFunc
	nowFunc = func() time.Time { return now }
	return func() { nowFunc = prev }
}
