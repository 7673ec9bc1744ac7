package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeprogress/internal/clock"
	"timeprogress/internal/kv"
)

const dailyCalendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:focus-block\r\n" +
	"SUMMARY:Focus\r\n" +
	"DTSTART:20240304T090000Z\r\n" +
	"DTEND:20240304T110000Z\r\n" +
	"RRULE:FREQ=DAILY;COUNT=3\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:old\r\n" +
	"DTSTART:20200101T090000Z\r\n" +
	"DTEND:20200101T100000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestImportICSIsIdempotent(t *testing.T) {
	repo := NewRepository(kv.NewMemory(), clock.FixedClock{T: testNow})
	ctx := context.Background()

	res, err := repo.ImportICS(ctx, user, []byte(dailyCalendar))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Added)
	assert.Zero(t, res.Skipped)

	list, err := repo.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Focus", list[0].Name)
	assert.Equal(t, "2024-03-04T09:00:00.000Z", list[0].Start)
	assert.Equal(t, "2024-03-04T11:00:00.000Z", list[0].End)

	res, err = repo.ImportICS(ctx, user, []byte(dailyCalendar))
	require.NoError(t, err)
	assert.Zero(t, res.Added)
	assert.Equal(t, 3, res.Skipped)

	_, err = repo.ImportICS(ctx, user, nil)
	assert.Error(t, err)
}

func TestExportThenImportKeepsIDs(t *testing.T) {
	repo := NewRepository(kv.NewMemory(), clock.FixedClock{T: testNow}, WithIDFunc(sequentialIDs()))
	ctx := context.Background()

	start := "2024-05-01T09:00:00.000Z"
	_, err := repo.Create(ctx, user, Draft{Name: ptr("Launch"), Start: &start, End: ptr("2024-05-01T10:00:00.000Z")})
	require.NoError(t, err)

	doc, err := repo.Export(ctx, user)
	require.NoError(t, err)
	assert.Contains(t, doc, "UID:id-1@timeprogress")

	res, err := repo.ImportICS(ctx, user, []byte(doc))
	require.NoError(t, err)
	assert.Zero(t, res.Added)
	assert.Equal(t, 1, res.Skipped)

}
