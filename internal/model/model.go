package model

import "time"

// TimestampLayout is the wire format for EventItem timestamps: UTC with
// millisecond precision, e.g. "2024-01-01T06:00:00.000Z".
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// EventItem is a user-defined countdown/progress event. Timestamps are
// ISO-8601 strings and are passed through as stored.
type EventItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Detail    string `json:"detail"`
	Start     string `json:"start"`
	End       string `json:"end"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// EventStatus is where now falls relative to an event's span.
type EventStatus string

const (
	StatusUpcoming EventStatus = "upcoming"
	StatusActive   EventStatus = "active"
	StatusComplete EventStatus = "complete"
)

// EventProgress is an event's status and clamped progress at one instant.
type EventProgress struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Status           EventStatus `json:"status"`
	Percentage       int         `json:"percentage"`
	TotalSeconds     float64     `json:"total_seconds"`
	ElapsedSeconds   float64     `json:"elapsed_seconds"`
	RemainingSeconds float64     `json:"remaining_seconds"`
}

// Occurrence is one concrete instance of an imported calendar event after
// recurrence expansion.
type Occurrence struct {
	UID string
	// InstanceKey identifies one occurrence of a recurring event, derived
	// from its start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	Start time.Time
	End   time.Time
}

// FormatTimestamp renders t in the EventItem wire format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts any RFC 3339 timestamp, with or without
// fractional seconds.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
