package period

import (
	"math"
	"time"
)

// Progress is how far now has advanced through one period window.
type Progress struct {
	Kind           Kind      `json:"kind"`
	Percentage     int       `json:"percentage"`
	ElapsedHours   int       `json:"elapsed_hours"`
	RemainingHours int       `json:"remaining_hours"`
	ElapsedDays    int       `json:"elapsed_days"`
	RemainingDays  int       `json:"remaining_days"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
}

// Compute measures now against w. now is clamped into the window first, so
// instants before the start read 0% and instants after the end read 100%.
// Elapsed units are floored, remaining units ceiled, and neither goes
// negative.
func Compute(kind Kind, w Window, now time.Time) (Progress, error) {
	if err := w.Validate(); err != nil {
		return Progress{}, err
	}

	p := Progress{Kind: kind, Start: w.Start, End: w.End}
	total := w.Duration()
	if total == 0 {
		p.Percentage = 100
		return p, nil
	}

	effective := w.Clamp(now)
	elapsed := effective.Sub(w.Start)

	p.Percentage = clampInt(int(math.Round(float64(elapsed)/float64(total)*100)), 0, 100)

	totalHours, elapsedHours := total.Hours(), elapsed.Hours()
	p.ElapsedHours = max(0, int(math.Floor(elapsedHours)))
	p.RemainingHours = max(0, int(math.Ceil(totalHours-elapsedHours)))

	totalDays, elapsedDays := daysBetween(w.Start, w.End), daysBetween(w.Start, effective)
	p.ElapsedDays = max(0, int(math.Floor(elapsedDays)))
	p.RemainingDays = max(0, int(math.Ceil(totalDays-elapsedDays)))

	return p, nil
}

// At resolves the current window for kind and computes progress in it.
func At(kind Kind, now time.Time) Progress {
	p, err := Compute(kind, Resolve(kind, now), now)
	if err != nil {
		// Resolve always yields start <= end.
		panic(err)
	}
	return p
}

// daysBetween is the calendar-aware day difference b-a: whole local days
// plus the fraction of the last partial day, measured against that day's
// real length (23 or 25 hours across DST).
func daysBetween(a, b time.Time) float64 {
	b = b.In(a.Location())
	if b.Before(a) {
		return -daysBetween(b, a)
	}

	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	span := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC).Sub(time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC))
	whole := int(math.Round(span.Hours() / 24))

	cursor := a.AddDate(0, 0, whole)
	for whole > 0 && cursor.After(b) {
		whole--
		cursor = a.AddDate(0, 0, whole)
	}
	dayLen := cursor.AddDate(0, 0, 1).Sub(cursor)
	return float64(whole) + float64(b.Sub(cursor))/float64(dayLen)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
