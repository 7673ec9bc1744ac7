package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeprogress/internal/model"
	"timeprogress/internal/period"
)

func TestStatusAndProgress(t *testing.T) {
	item := model.EventItem{ID: "e1", Name: "Sprint", Start: "2024-01-01T00:00:00.000Z", End: "2024-01-11T00:00:00.000Z"}

	tests := []struct {
		name    string
		now     time.Time
		status  model.EventStatus
		percent int
		elapsed float64
	}{
		{"before", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), model.StatusUpcoming, 0, 0},
		{"at start", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), model.StatusActive, 0, 0},
		{"middle", time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), model.StatusActive, 30, 3 * 86400},
		{"at end", time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), model.StatusActive, 100, 10 * 86400},
		{"after", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), model.StatusComplete, 100, 10 * 86400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := StatusAt(item, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.status, status)

			p, err := ProgressAt(item, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, tt.percent, p.Percentage)
			assert.Equal(t, tt.elapsed, p.ElapsedSeconds)
			assert.Equal(t, float64(10*86400), p.TotalSeconds)
			assert.Equal(t, p.TotalSeconds-p.ElapsedSeconds, p.RemainingSeconds)
		})
	}
}

func TestProgressEdgeCases(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	instant := model.EventItem{ID: "z", Start: "2024-01-05T00:00:00Z", End: "2024-01-05T00:00:00Z"}
	p, err := ProgressAt(instant, now)
	require.NoError(t, err)
	assert.Equal(t, 100, p.Percentage)
	assert.Equal(t, model.StatusUpcoming, p.Status)

	backwards := model.EventItem{ID: "b", Start: "2024-01-05T00:00:00Z", End: "2024-01-04T00:00:00Z"}
	_, err = ProgressAt(backwards, now)
	assert.ErrorIs(t, err, period.ErrInvalidWindow)

	garbage := model.EventItem{ID: "g", Start: "soon", End: "later"}
	_, err = StatusAt(garbage, now)
	assert.Error(t, err)

	all := ProgressAll([]model.EventItem{instant, backwards, garbage}, now)
	require.Len(t, all, 1)
	assert.Equal(t, "z", all[0].ID)
}

func TestStatusInWindow(t *testing.T) {
	w := period.Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, model.StatusUpcoming, statusIn(w, w.Start.Add(-time.Millisecond)))
	assert.Equal(t, model.StatusActive, statusIn(w, w.Start))
	assert.Equal(t, model.StatusActive, statusIn(w, w.End))
	assert.Equal(t, model.StatusComplete, statusIn(w, w.End.Add(time.Millisecond)))

	_, err := ProgressAt(model.EventItem{ID: "bad", Start: "nope", End: "2024-01-02T00:00:00.000Z"}, w.Start)
	assert.Error(t, err)
}
