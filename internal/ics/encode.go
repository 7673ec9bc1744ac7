package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "timeprogress/internal/log"
	"timeprogress/internal/model"
)

// UIDSuffix marks VEVENT UIDs generated from stored events, so a
// re-imported export maps back onto the same event IDs.
const UIDSuffix = "@timeprogress"

// Encode renders events as a PUBLISH calendar. Items whose start or end
// cannot be parsed are left out.
func Encode(items []model.EventItem, stamp time.Time) string {
	cal := ical.NewCalendarFor("timeprogress")
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName("Time Progress")

	for _, it := range items {
		start, err := model.ParseTimestamp(it.Start)
		if err != nil {
			appLog.Debug("export: skipping event with bad start", "event_id", it.ID, "err", err)
			continue
		}
		end, err := model.ParseTimestamp(it.End)
		if err != nil {
			appLog.Debug("export: skipping event with bad end", "event_id", it.ID, "err", err)
			continue
		}

		ev := cal.AddEvent(it.ID + UIDSuffix)
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		ev.SetSummary(it.Name)
		if it.Detail != "" {
			ev.SetDescription(it.Detail)
		}
		if t, err := model.ParseTimestamp(it.CreatedAt); err == nil {
			ev.SetCreatedTime(t)
		}
		if t, err := model.ParseTimestamp(it.UpdatedAt); err == nil {
			ev.SetModifiedAt(t)
		}
	}
	return cal.Serialize()
}

// EventIDFromUID returns the stored event ID behind a UID produced by Encode.
func EventIDFromUID(uid string) (string, bool) {
	id, ok := strings.CutSuffix(uid, UIDSuffix)
	return id, ok && id != ""
}
