package notification

import "time"

// Clock decides what "today" is for the dispatcher
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

// SystemClock returns a clock on the wall time in loc
func SystemClock(loc *time.Location) Clock {
	return Clock{Now: time.Now, Location: loc}
}

// FixedClock returns a clock stopped at t, interpreted in t's location
func FixedClock(t time.Time) Clock {
	return Clock{Now: func() time.Time { return t }, Location: t.Location()}
}

func (c Clock) now() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

// Today returns the current civil date at UTC midnight, matching stored due dates
func (c Clock) Today() time.Time {
	y, m, d := c.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
