package render

import (
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeprogress/internal/i18n"
	"timeprogress/internal/model"
	"timeprogress/internal/snapshot"
)

func init() {
	color.NoColor = true
}

func TestBar(t *testing.T) {
	assert.Equal(t, "░░░░░░░░░░", Bar(0, 10))
	assert.Equal(t, "███░░░░░░░", Bar(36, 10))
	assert.Equal(t, "██████████", Bar(100, 10))
	assert.Equal(t, "██████████", Bar(140, 10))
	assert.Equal(t, "░░░░", Bar(-5, 4))
	assert.Equal(t, "", Bar(50, 0))
}

func TestText(t *testing.T) {
	snap := snapshot.Build(time.Date(2024, time.January, 3, 12, 0, 0, 0, time.UTC))
	out := Text(snap, i18n.New("en"), 10)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "12:00:00  Wednesday, 03 January 2024", lines[0])
	assert.Equal(t, "Time zone: UTC", lines[1])
	assert.Equal(t, "12h 0m passed, 12h 0m remaining", lines[2])
	assert.Equal(t, "Day     █████░░░░░  50%  12h elapsed / 12h remaining  0d / 1d", lines[4])
	assert.True(t, strings.HasPrefix(lines[5], "Week    ███░░░░░░░  36%"))
	assert.True(t, strings.HasPrefix(lines[8], "Year "))
}

func TestTextKorean(t *testing.T) {
	snap := snapshot.Build(time.Date(2024, time.January, 3, 12, 0, 0, 0, time.UTC))
	out := Text(snap, i18n.New("ko"), 10)
	assert.Contains(t, out, "이번 주")
	assert.Contains(t, out, "시간대: UTC")
}

func TestEvents(t *testing.T) {
	tr := i18n.New("en")
	assert.Empty(t, Events(nil, tr, 10))

	out := Events([]model.EventProgress{{Name: "Sprint", Status: model.StatusActive, Percentage: 30}}, tr, 10)
	assert.Equal(t, "Events\n███░░░░░░░  30%  Sprint  In progress\n", out)
}
