package clock

import "time"

// Clock provides time to the application.
// Using an interface enables deterministic tests via a controllable implementation.
type Clock interface {
	Now() time.Time
}

// After returns c.Now(), bumped past prev when the clock has not advanced beyond it.
// Record timestamps such as a delivery's updatedAt must strictly increase per mutation even
// when two writes land within the clock's resolution.
func After(c Clock, prev time.Time) time.Time {
	now := c.Now()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
