package ics

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "timeprogress/internal/log"
	"timeprogress/internal/model"
	"timeprogress/internal/period"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// Range is the inclusive window occurrences must overlap.
	Range period.Window

	// Location is applied to every occurrence. Nil means time.Local.
	Location *time.Location

	// MaxOccurrencesPerEvent caps one RRULE. Zero uses the default.
	MaxOccurrencesPerEvent int
}

// ExpandResult lists the concrete occurrences, sorted by start.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// Truncated holds UIDs whose expansion hit the cap.
	Truncated []string
}

// ExpandOccurrences turns parsed VEVENTs into occurrences overlapping
// cfg.Range. RRULEs are expanded with EXDATEs removed, and instances with
// a matching RECURRENCE-ID override are replaced by the override.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult
	if err := cfg.Range.Validate(); err != nil {
		return result, err
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	overrides := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		}
	}

	for _, ev := range events {
		if ev.IsOverride() {
			continue
		}
		var (
			occ    []model.Occurrence
			capped bool
		)
		if ev.RawRRule == "" {
			occ = expandSingle(ev, overrides[ev.UID], cfg)
		} else {
			occ, capped = expandRecurring(ev, overrides[ev.UID], cfg)
		}
		result.Occurrences = append(result.Occurrences, occ...)
		if capped {
			result.Truncated = append(result.Truncated, ev.UID)
			appLog.Warn("recurrence truncated", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	sort.SliceStable(result.Occurrences, func(i, j int) bool {
		return result.Occurrences[i].Start.Before(result.Occurrences[j].Start)
	})
	return result, nil
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Occurrence {
	if o, ok := overrideFor(overrides, ev.Start); ok {
		ev = o
	}
	if !overlaps(ev.Start, ev.End, cfg.Range) {
		return nil
	}
	return []model.Occurrence{occurrence(ev, ev.Start, ev.End, cfg.Location)}
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("bad RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	set := rrule.Set{}
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Pull the window back by the event length so instances that started
	// before the range but are still running are included.
	length := ev.End.Sub(ev.Start)
	from := cfg.Range.Start.Add(-length).In(ev.Start.Location())
	to := cfg.Range.End.In(ev.Start.Location())
	starts := set.Between(from, to, true)

	capped := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		capped = true
	}

	out := make([]model.Occurrence, 0, len(starts))
	for _, start := range starts {
		end := start.Add(length)
		if ev.AllDay {
			// Keep all-day instances on calendar-day boundaries across DST.
			days := int(length.Round(24*time.Hour) / (24 * time.Hour))
			end = start.AddDate(0, 0, max(1, days))
		}

		inst := ev
		if o, ok := overrideFor(overrides, start); ok {
			inst, start, end = o, o.Start, o.End
		}
		if !overlaps(start, end, cfg.Range) {
			continue
		}
		occ := occurrence(inst, start, end, cfg.Location)
		occ.UID = ev.UID
		out = append(out, occ)
	}
	return out, capped
}

// overrideFor finds the override whose RECURRENCE-ID equals start.
func overrideFor(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, o := range overrides {
		if o.RecurrenceID != nil && o.RecurrenceID.Equal(start) {
			return o, true
		}
	}
	return ParsedEvent{}, false
}

func occurrence(ev ParsedEvent, start, end time.Time, loc *time.Location) model.Occurrence {
	start, end = start.In(loc), end.In(loc)
	return model.Occurrence{
		UID:         ev.UID,
		InstanceKey: start.UTC().Format(time.RFC3339),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
	}
}

func overlaps(start, end time.Time, w period.Window) bool {
	return !end.Before(w.Start) && !start.After(w.End)
}
