// Package clock supplies the current instant in a fixed local calendar.
package clock

import "time"

// Clock returns "now". Implementations must return a time.Time whose
// Location is the calendar all period math should use.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock and converts it into Location.
type RealClock struct {
	Location *time.Location
}

func New(loc *time.Location) RealClock {
	return RealClock{Location: loc}
}

func (c RealClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().In(time.Local)
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns T.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// FuncClock adapts a plain function.
type FuncClock func() time.Time

func (f FuncClock) Now() time.Time { return f() }
