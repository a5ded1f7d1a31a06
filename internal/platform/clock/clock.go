package clock

import (
	"time"

	"cloud.google.com/go/civil"
)

// Clock resolves "now" and the business calendar day.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

func New(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Now: time.Now, Location: loc}
}

// Fixed returns a clock frozen at t, in t's location.
func Fixed(t time.Time) Clock {
	return Clock{Now: func() time.Time { return t }, Location: t.Location()}
}

// Func builds a clock driven by fn, for tests that advance time.
func Func(fn func() time.Time, loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Now: fn, Location: loc}
}

func (c Clock) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c Clock) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Current is the current instant in the business location.
func (c Clock) Current() time.Time {
	return c.now().In(c.loc())
}

func (c Clock) Today() civil.Date {
	return civil.DateOf(c.Current())
}
