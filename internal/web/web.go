// Package web serves the dashboard, the snapshot API and the per-user
// events API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"timeprogress/internal/auth"
	"timeprogress/internal/capture"
	"timeprogress/internal/clock"
	"timeprogress/internal/config"
	"timeprogress/internal/convert"
	"timeprogress/internal/events"
	appLog "timeprogress/internal/log"
	"timeprogress/internal/period"
	"timeprogress/internal/snapshot"
)

const (
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 5 * time.Second

	// maxBodyBytes bounds JSON and ICS request bodies.
	maxBodyBytes = 4 << 20
)

// SnapshotSource is the scheduler's pull side.
type SnapshotSource interface {
	Latest() (snapshot.Snapshot, bool)
}

// PreviewSource yields the last captured dashboard frame.
type PreviewSource interface {
	Latest() (capture.Shot, bool)
}

// Deps are the collaborators a Server needs. Preview may be nil.
type Deps struct {
	Config    *config.Config
	Clock     clock.Clock
	Snapshots SnapshotSource
	Events    *events.Repository
	Preview   PreviewSource
}

// Server provides the HTTP surface: /health, /api/*, /events* and the
// dashboard at /.
type Server struct {
	cfg       *config.Config
	clock     clock.Clock
	snapshots SnapshotSource
	events    *events.Repository
	preview   PreviewSource
	auth      auth.Resolver
	mux       *http.ServeMux
}

func NewServer(d Deps) *Server {
	cfg := d.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := d.Clock
	if c == nil {
		c = clock.New(cfg.Location())
	}
	s := &Server{
		cfg:       cfg,
		clock:     c,
		snapshots: d.Snapshots,
		events:    d.Events,
		preview:   d.Preview,
		auth: auth.Resolver{
			Header:         cfg.Auth.Header,
			DevBypassEmail: cfg.Auth.DevBypassEmail,
		},
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the routes wrapped with identity resolution. Everything
// under /events requires a user.
func (s *Server) Handler() http.Handler {
	return s.auth.Middleware(s.mux, "/events")
}

// Start serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		appLog.Info("stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-serverErr:
		return fmt.Errorf("http listen %s: %w", s.cfg.Listen, err)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	s.mux.HandleFunc("/api/progress", s.handleProgress)

	s.mux.HandleFunc("/events", s.handleEvents)
	s.mux.HandleFunc("/events/progress", s.handleEventsProgress)
	s.mux.HandleFunc("/events/import", s.handleEventsImport)
	s.mux.HandleFunc("/events.ics", s.handleEventsICS)

	s.mux.HandleFunc("/preview.png", s.handlePreview)
	s.mux.HandleFunc("/", s.handleDashboard)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleSnapshot returns the most recently published snapshot. Until the
// scheduler's first tick there is nothing to return.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	snap, ok := s.latest()
	if !ok {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "snapshot not ready")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleProgress computes one period at the current instant.
//
// GET /api/progress?kind=week  (default: day)
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	name := r.URL.Query().Get("kind")
	if name == "" {
		name = period.Day.String()
	}
	kind, err := period.ParseKind(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, period.At(kind, s.clock.Now()))
}

// handlePreview serves the last captured dashboard PNG.
//
// GET /preview.png?ink=1 shows it as the e-paper panel would: quantized to
// black, red and white.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.preview != nil {
		if shot, ok := s.preview.Latest(); ok {
			data := shot.PNG
			if r.URL.Query().Get("ink") == "1" {
				frame, err := convert.PackPNG(shot.PNG, s.cfg.Capture.Width, s.cfg.Capture.Height)
				if err == nil {
					data, err = frame.EncodePNG()
				}
				if err != nil {
					appLog.Error("preview: ink conversion failed", err)
					writeError(w, http.StatusInternalServerError, "failed to convert preview")
					return
				}
			}
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("Last-Modified", shot.TakenAt.UTC().Format(http.TimeFormat))
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			_, _ = w.Write(data)
			return
		}
	}
	// Fall back to the file a previous run left behind.
	if s.cfg.Capture.Output != "" {
		http.ServeFile(w, r, s.cfg.Capture.Output)
		return
	}
	http.NotFound(w, r)
}

func (s *Server) latest() (snapshot.Snapshot, bool) {
	if s.snapshots == nil {
		return snapshot.Snapshot{}, false
	}
	return s.snapshots.Latest()
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
