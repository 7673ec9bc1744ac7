// Package snapshot composes the per-period progress into one immutable
// dashboard value.
package snapshot

import (
	"fmt"
	"math"
	"time"

	"timeprogress/internal/clock"
	"timeprogress/internal/period"
)

const (
	TimeLayout = "15:04:05"
	DateLayout = "Monday, 02 January 2006"
)

// Periods holds one progress record per period kind.
type Periods struct {
	Day     period.Progress `json:"day"`
	Week    period.Progress `json:"week"`
	Month   period.Progress `json:"month"`
	Quarter period.Progress `json:"quarter"`
	Year    period.Progress `json:"year"`
}

func (p Periods) Get(kind period.Kind) period.Progress {
	switch kind {
	case period.Week:
		return p.Week
	case period.Month:
		return p.Month
	case period.Quarter:
		return p.Quarter
	case period.Year:
		return p.Year
	default:
		return p.Day
	}
}

// All returns the records in display order.
func (p Periods) All() []period.Progress {
	return []period.Progress{p.Day, p.Week, p.Month, p.Quarter, p.Year}
}

// Snapshot is everything a display needs for one tick. It is built once and
// never mutated afterwards.
type Snapshot struct {
	Time                string    `json:"time"`
	Date                string    `json:"date"`
	Timezone            string    `json:"timezone"`
	TodayElapsedSummary string    `json:"today_elapsed_summary"`
	Progress            Periods   `json:"progress"`
	TakenAt             time.Time `json:"taken_at"`
}

// Build computes a snapshot for now using now's location as the calendar.
func Build(now time.Time) Snapshot {
	return Snapshot{
		Time:                now.Format(TimeLayout),
		Date:                now.Format(DateLayout),
		Timezone:            now.Location().String(),
		TodayElapsedSummary: TodaySummary(now),
		Progress: Periods{
			Day:     period.At(period.Day, now),
			Week:    period.At(period.Week, now),
			Month:   period.At(period.Month, now),
			Quarter: period.At(period.Quarter, now),
			Year:    period.At(period.Year, now),
		},
		TakenAt: now,
	}
}

// TodaySummary describes time since local midnight and until the next one,
// e.g. "3h 42m passed, 20h 18m remaining".
func TodaySummary(now time.Time) string {
	midnight := period.StartOf(period.Day, now)
	y, m, d := midnight.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())

	return fmt.Sprintf("%s passed, %s remaining",
		hoursMinutes(now.Sub(midnight)), hoursMinutes(next.Sub(now)))
}

// hoursMinutes rounds to whole minutes before splitting, so 59.6 minutes
// reads "1h 0m" rather than "0h 60m".
func hoursMinutes(d time.Duration) string {
	total := max(0, int(math.Round(d.Minutes())))
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}

// Builder builds snapshots from a clock.
type Builder struct {
	clock clock.Clock
}

func NewBuilder(c clock.Clock) *Builder {
	return &Builder{clock: c}
}

func (b *Builder) Build() Snapshot {
	return Build(b.clock.Now())
}
