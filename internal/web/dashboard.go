package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"timeprogress/internal/auth"
	"timeprogress/internal/events"
	"timeprogress/internal/i18n"
	appLog "timeprogress/internal/log"
	"timeprogress/internal/model"
	"timeprogress/internal/period"
	"timeprogress/internal/snapshot"
)

//go:embed templates/*.html
var templateFS embed.FS

var dashboardTmpl = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

type periodRow struct {
	Label string
	period.Progress
}

type eventRow struct {
	Status string
	model.EventProgress
}

type dashboardView struct {
	Lang   string
	Ready  bool
	Labels map[string]string
	Snap   snapshot.Snapshot
	Rows   []periodRow
	Events []eventRow
}

var dashboardLabels = []string{
	"label.title", "label.today", "label.timezone", "label.elapsed",
	"label.remaining", "label.hours", "label.days", "label.events", "label.waiting",
}

// translator honours ?lang= over the configured language.
func (s *Server) translator(r *http.Request) *i18n.Translator {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return i18n.New(lang)
	}
	return i18n.New(s.cfg.Language)
}

// handleDashboard renders the latest snapshot as HTML. The root element
// carries data-ready="true" only once a snapshot exists, which is what the
// capture waits for.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet, http.MethodHead)
		return
	}

	tr := s.translator(r)
	view := dashboardView{
		Lang:   tr.Language().String(),
		Labels: make(map[string]string, len(dashboardLabels)),
	}
	for _, id := range dashboardLabels {
		view.Labels[id] = tr.T(id)
	}

	if snap, ok := s.latest(); ok {
		view.Ready = true
		view.Snap = snap
		for _, p := range snap.Progress.All() {
			view.Rows = append(view.Rows, periodRow{Label: tr.Period(p.Kind), Progress: p})
		}
	}

	if user, ok := auth.FromContext(r.Context()); ok && s.events != nil {
		res := s.events.Sync(r.Context(), user.Email)
		if res.Err != nil {
			appLog.Warn("dashboard: events unavailable", "user", user.Email, "err", res.Err)
		}
		for _, p := range events.ProgressAll(res.Items, s.clock.Now()) {
			view.Events = append(view.Events, eventRow{
				Status:        tr.T("status." + string(p.Status)),
				EventProgress: p,
			})
		}
	}

	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, view); err != nil {
		appLog.Error("dashboard: render failed", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
