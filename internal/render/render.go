// Package render draws a snapshot as text for terminals.
package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"timeprogress/internal/i18n"
	"timeprogress/internal/model"
	"timeprogress/internal/period"
	"timeprogress/internal/snapshot"
)

const DefaultBarWidth = 30

// Bar returns a bar of width cells filled in proportion to pct.
func Bar(pct, width int) string {
	if width <= 0 {
		return ""
	}
	pct = max(0, min(100, pct))
	filled := pct * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func colorFor(pct int) *color.Color {
	switch {
	case pct >= 90:
		return color.New(color.FgRed)
	case pct >= 60:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

// Line renders one period as "Week  [███░░░]  36%  60h/108h  2d/5d".
func Line(p period.Progress, label string, labelWidth, barWidth int, tr *i18n.Translator) string {
	pad := max(0, labelWidth-utf8.RuneCountInString(label))
	return fmt.Sprintf("%s%s %s %3d%%  %dh %s / %dh %s  %dd / %dd",
		label, strings.Repeat(" ", pad),
		colorFor(p.Percentage).Sprint(Bar(p.Percentage, barWidth)),
		p.Percentage,
		p.ElapsedHours, tr.T("label.elapsed"),
		p.RemainingHours, tr.T("label.remaining"),
		p.ElapsedDays, p.RemainingDays,
	)
}

// Text renders the whole snapshot.
func Text(s snapshot.Snapshot, tr *i18n.Translator, barWidth int) string {
	if barWidth <= 0 {
		barWidth = DefaultBarWidth
	}
	bold := color.New(color.Bold)
	grey := color.New(color.FgHiBlack)

	var b strings.Builder
	b.WriteString(bold.Sprint(s.Time) + "  " + s.Date + "\n")
	b.WriteString(grey.Sprintf("%s: %s", tr.T("label.timezone"), s.Timezone) + "\n")
	b.WriteString(s.TodayElapsedSummary + "\n")
	b.WriteString(strings.Repeat("─", barWidth+40) + "\n")

	labelWidth := 0
	for _, k := range period.Kinds {
		labelWidth = max(labelWidth, utf8.RuneCountInString(tr.Period(k)))
	}
	for _, p := range s.Progress.All() {
		b.WriteString(Line(p, tr.Period(p.Kind), labelWidth, barWidth, tr) + "\n")
	}
	return b.String()
}

// Events renders event progress rows under a heading.
func Events(items []model.EventProgress, tr *i18n.Translator, barWidth int) string {
	if len(items) == 0 {
		return ""
	}
	if barWidth <= 0 {
		barWidth = DefaultBarWidth
	}
	var b strings.Builder
	b.WriteString(color.New(color.Bold).Sprint(tr.T("label.events")) + "\n")
	for _, it := range items {
		fmt.Fprintf(&b, "%s %3d%%  %s  %s\n",
			colorFor(it.Percentage).Sprint(Bar(it.Percentage, barWidth)),
			it.Percentage, it.Name, tr.T("status."+string(it.Status)))
	}
	return b.String()
}
