package period

import "time"

// StartOf returns the first instant of the period containing t, in t's
// location. Weeks start on Monday.
func StartOf(kind Kind, t time.Time) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch kind {
	case Week:
		back := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-back, 0, 0, 0, 0, loc)
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case Quarter:
		return time.Date(y, quarterStartMonth(m), 1, 0, 0, 0, 0, loc)
	case Year:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// EndOf returns the last millisecond of the period containing t.
func EndOf(kind Kind, t time.Time) time.Time {
	return nextStart(kind, StartOf(kind, t)).Add(-time.Millisecond)
}

// Resolve returns the window of the period containing now.
func Resolve(kind Kind, now time.Time) Window {
	start := StartOf(kind, now)
	return Window{
		Start: start,
		End:   nextStart(kind, start).Add(-time.Millisecond),
	}
}

// nextStart steps a period start forward by one period using calendar
// arithmetic so DST days stay anchored at local midnight.
func nextStart(kind Kind, start time.Time) time.Time {
	y, m, d := start.Date()
	loc := start.Location()
	switch kind {
	case Week:
		return time.Date(y, m, d+7, 0, 0, 0, 0, loc)
	case Month:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	case Quarter:
		return time.Date(y, m+3, 1, 0, 0, 0, 0, loc)
	case Year:
		return time.Date(y+1, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	}
}

func quarterStartMonth(m time.Month) time.Month {
	return time.Month((int(m)-1)/3*3 + 1)
}
