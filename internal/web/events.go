package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"timeprogress/internal/auth"
	"timeprogress/internal/events"
	"timeprogress/internal/ics"
	appLog "timeprogress/internal/log"
)

// StaleHeader marks an /events response served from the last good read
// because the store failed.
const StaleHeader = "X-Events-Stale"

// idBody is the shape of PATCH and DELETE bodies.
type idBody struct {
	ID *string `json:"id"`
	events.Patch
}

// handleEvents implements GET/POST/PATCH/DELETE /events for the signed-in
// user.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.listEvents(w, r, user.Email)
	case http.MethodPost:
		s.createEvent(w, r, user.Email)
	case http.MethodPatch:
		s.updateEvent(w, r, user.Email)
	case http.MethodDelete:
		s.deleteEvent(w, r, user.Email)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete)
	}
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request, email string) {
	res := s.events.Sync(r.Context(), email)
	if res.Err != nil {
		if !res.Stale {
			appLog.Error("events: list failed", res.Err, "user", email)
			http.Error(w, "Events unavailable", http.StatusServiceUnavailable)
			return
		}
		appLog.Warn("events: serving last known list", "user", email, "err", res.Err)
		w.Header().Set(StaleHeader, "true")
	}
	writeJSON(w, http.StatusOK, res.Items)
}

// createEvent accepts any body; anything that does not decode is treated as
// an empty draft so every field takes its default.
func (s *Server) createEvent(w http.ResponseWriter, r *http.Request, email string) {
	var d events.Draft
	if err := decodeBody(r, &d); err != nil {
		appLog.Debug("events: create body ignored", "user", email, "err", err)
		d = events.Draft{}
	}
	item, err := s.events.Create(r.Context(), email, d)
	if err != nil {
		s.storeError(w, "create", email, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request, email string) {
	var body idBody
	_ = decodeBody(r, &body)
	if body.ID == nil || *body.ID == "" {
		http.Error(w, "Missing id", http.StatusBadRequest)
		return
	}
	item, err := s.events.Update(r.Context(), email, *body.ID, body.Patch)
	if err != nil {
		s.storeError(w, "update", email, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request, email string) {
	var body idBody
	_ = decodeBody(r, &body)
	if body.ID == nil || *body.ID == "" {
		http.Error(w, "Missing id", http.StatusBadRequest)
		return
	}
	if err := s.events.Delete(r.Context(), email, *body.ID); err != nil {
		s.storeError(w, "delete", email, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

// handleEventsProgress reports status and progress of each event now.
func (s *Server) handleEventsProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	res := s.events.Sync(r.Context(), user.Email)
	if res.Err != nil && !res.Stale {
		s.storeError(w, "progress", user.Email, res.Err)
		return
	}
	if res.Stale {
		w.Header().Set(StaleHeader, "true")
	}
	writeJSON(w, http.StatusOK, events.ProgressAll(res.Items, s.clock.Now()))
}

// handleEventsICS exports the user's events as iCalendar.
func (s *Server) handleEventsICS(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	body, err := s.events.Export(r.Context(), user.Email)
	if err != nil {
		s.storeError(w, "export", user.Email, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="events.ics"`)
	_, _ = io.WriteString(w, body)
}

// handleEventsImport adds the occurrences of an uploaded calendar.
func (s *Server) handleEventsImport(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "calendar too large")
		return
	}
	res, err := s.events.ImportICS(r.Context(), user.Email, body)
	if err != nil {
		if errors.Is(err, ics.ErrEmpty) || errors.Is(err, ics.ErrMalformed) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.storeError(w, "import", user.Email, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// storeError maps repository errors onto HTTP statuses.
func (s *Server) storeError(w http.ResponseWriter, op, email string, err error) {
	switch {
	case errors.Is(err, events.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, events.ErrStoreNotConfigured):
		appLog.Error("events: "+op+" failed", err, "user", email)
		http.Error(w, "Events store is not configured", http.StatusInternalServerError)
	default:
		appLog.Error("events: "+op+" failed", err, "user", email)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return io.EOF
	}
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}
