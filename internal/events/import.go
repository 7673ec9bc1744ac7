package events

import (
	"context"

	"github.com/google/uuid"

	"timeprogress/internal/ics"
	appLog "timeprogress/internal/log"
	"timeprogress/internal/model"
	"timeprogress/internal/period"
)

// importNamespace seeds deterministic IDs for imported occurrences.
var importNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("timeprogress/events/import"))

type ImportResult struct {
	Added     int      `json:"added"`
	Skipped   int      `json:"skipped"`
	Truncated []string `json:"truncated,omitempty"`
}

// ImportICS adds the calendar's occurrences within the current year as
// events. Occurrences already present (same derived ID) are skipped, so
// importing the same calendar twice is harmless.
func (r *Repository) ImportICS(ctx context.Context, email string, body []byte) (ImportResult, error) {
	now := r.clock.Now()
	parsed, err := ics.ParseICS(body, now.Location())
	if err != nil {
		return ImportResult{}, err
	}
	expanded, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		Range:    period.Resolve(period.Year, now),
		Location: now.Location(),
	})
	if err != nil {
		return ImportResult{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.List(ctx, email)
	if err != nil {
		return ImportResult{}, err
	}
	seen := make(map[string]bool, len(list))
	for _, it := range list {
		seen[it.ID] = true
	}

	stamp := model.FormatTimestamp(now)
	res := ImportResult{Truncated: expanded.Truncated}
	var added []model.EventItem
	for _, occ := range expanded.Occurrences {
		id := occurrenceID(occ)
		if seen[id] {
			res.Skipped++
			continue
		}
		seen[id] = true
		added = append(added, model.EventItem{
			ID:        id,
			Name:      nameOr(occ.Summary),
			Detail:    occ.Description,
			Start:     model.FormatTimestamp(occ.Start),
			End:       model.FormatTimestamp(occ.End),
			CreatedAt: stamp,
			UpdatedAt: stamp,
		})
	}
	res.Added = len(added)
	if res.Added == 0 {
		return res, nil
	}

	if err := r.save(ctx, email, append(added, list...)); err != nil {
		return ImportResult{}, err
	}
	appLog.Info("calendar imported", "user", email, "added", res.Added, "skipped", res.Skipped)
	return res, nil
}

// Export renders the user's events as an iCalendar document.
func (r *Repository) Export(ctx context.Context, email string) (string, error) {
	list, err := r.List(ctx, email)
	if err != nil {
		return "", err
	}
	return ics.Encode(list, r.clock.Now()), nil
}

// occurrenceID maps our own exported UIDs back to their event IDs and
// derives a stable UUID for everything else.
func occurrenceID(occ model.Occurrence) string {
	if id, ok := ics.EventIDFromUID(occ.UID); ok {
		return id
	}
	return uuid.NewSHA1(importNamespace, []byte(occ.UID+"|"+occ.InstanceKey)).String()
}

func nameOr(summary string) string {
	if summary == "" {
		return DefaultName
	}
	return summary
}
