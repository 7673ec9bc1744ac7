package events

import (
	"fmt"
	"math"
	"time"

	appLog "timeprogress/internal/log"
	"timeprogress/internal/model"
	"timeprogress/internal/period"
)

func window(item model.EventItem) (period.Window, error) {
	start, err := model.ParseTimestamp(item.Start)
	if err != nil {
		return period.Window{}, fmt.Errorf("event %s start: %w", item.ID, err)
	}
	end, err := model.ParseTimestamp(item.End)
	if err != nil {
		return period.Window{}, fmt.Errorf("event %s end: %w", item.ID, err)
	}
	return period.Window{Start: start, End: end}, nil
}

// StatusAt places now before, inside or after the event.
func StatusAt(item model.EventItem, now time.Time) (model.EventStatus, error) {
	w, err := window(item)
	if err != nil {
		return "", err
	}
	return statusIn(w, now), nil
}

func statusIn(w period.Window, now time.Time) model.EventStatus {
	switch {
	case now.Before(w.Start):
		return model.StatusUpcoming
	case now.After(w.End):
		return model.StatusComplete
	default:
		return model.StatusActive
	}
}

// ProgressAt measures the event at now with the same clamping as the
// calendar periods. A zero-length event is 100% done.
func ProgressAt(item model.EventItem, now time.Time) (model.EventProgress, error) {
	w, err := window(item)
	if err != nil {
		return model.EventProgress{}, err
	}
	status := statusIn(w, now)
	frac, err := period.Fraction(w, now)
	if err != nil {
		return model.EventProgress{}, fmt.Errorf("event %s: %w", item.ID, err)
	}

	total := w.Duration().Seconds()
	elapsed := w.Clamp(now).Sub(w.Start).Seconds()
	return model.EventProgress{
		ID:               item.ID,
		Name:             item.Name,
		Status:           status,
		Percentage:       int(math.Round(frac * 100)),
		TotalSeconds:     total,
		ElapsedSeconds:   elapsed,
		RemainingSeconds: math.Max(0, total-elapsed),
	}, nil
}

// ProgressAll reports every well-formed event; malformed ones are skipped.
func ProgressAll(items []model.EventItem, now time.Time) []model.EventProgress {
	out := make([]model.EventProgress, 0, len(items))
	for _, it := range items {
		p, err := ProgressAt(it, now)
		if err != nil {
			appLog.Debug("skipping event progress", "event_id", it.ID, "err", err)
			continue
		}
		out = append(out, p)
	}
	return out
}
