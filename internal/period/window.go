package period

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow is returned when a window starts after it ends.
var ErrInvalidWindow = errors.New("invalid window: start after end")

// Window is a closed interval [Start, End] in one local calendar.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Validate() error {
	if w.Start.After(w.End) {
		return fmt.Errorf("%w (start=%s end=%s)", ErrInvalidWindow,
			w.Start.Format(time.RFC3339Nano), w.End.Format(time.RFC3339Nano))
	}
	return nil
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Clamp pins t into [Start, End].
func (w Window) Clamp(t time.Time) time.Time {
	if t.Before(w.Start) {
		return w.Start
	}
	if t.After(w.End) {
		return w.End
	}
	return t
}

// Fraction is the clamped share of the window elapsed at now, in [0, 1].
// A zero-length window counts as fully elapsed.
func Fraction(w Window, now time.Time) (float64, error) {
	if err := w.Validate(); err != nil {
		return 0, err
	}
	total := w.Duration()
	if total == 0 {
		return 1, nil
	}
	return float64(w.Clamp(now).Sub(w.Start)) / float64(total), nil
}
