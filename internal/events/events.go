// Package events stores each user's countdown events as one JSON list in
// the key/value store under "events:<email>".
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/maypok86/otter/v2"

	"timeprogress/internal/clock"
	"timeprogress/internal/kv"
	appLog "timeprogress/internal/log"
	"timeprogress/internal/model"
)

const DefaultName = "Untitled"

var (
	ErrNotFound           = errors.New("event not found")
	ErrStoreNotConfigured = errors.New("events store is not configured")
)

// Draft is the body of a create request. Nil fields take defaults.
type Draft struct {
	ID        *string `json:"id"`
	Name      *string `json:"name"`
	Detail    *string `json:"detail"`
	Start     *string `json:"start"`
	End       *string `json:"end"`
	CreatedAt *string `json:"createdAt"`
	UpdatedAt *string `json:"updatedAt"`
}

// Patch holds the fields to overwrite on update. The ID is immutable and
// UpdatedAt is always set to now.
type Patch struct {
	Name      *string `json:"name"`
	Detail    *string `json:"detail"`
	Start     *string `json:"start"`
	End       *string `json:"end"`
	CreatedAt *string `json:"createdAt"`
}

// SyncResult is the outcome of reading a user's list. When the store
// fails, Items falls back to the last list read successfully (Stale) and
// Err carries the failure.
type SyncResult struct {
	Items []model.EventItem
	Stale bool
	Err   error
}

type Repository struct {
	store kv.Store
	clock clock.Clock
	newID func() string

	// mu serializes read-modify-write cycles on the per-user lists.
	mu        sync.Mutex
	lastKnown *otter.Cache[string, []model.EventItem]
}

type Option func(*Repository)

// WithIDFunc overrides the random UUID generator.
func WithIDFunc(fn func() string) Option {
	return func(r *Repository) { r.newID = fn }
}

func NewRepository(store kv.Store, c clock.Clock, opts ...Option) *Repository {
	r := &Repository{
		store: store,
		clock: c,
		newID: uuid.NewString,
		lastKnown: otter.Must(&otter.Options[string, []model.EventItem]{
			MaximumSize: 4096,
		}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func keyFor(email string) string {
	return "events:" + email
}

// List returns the user's events, newest first. A missing or unreadable
// value is an empty list.
func (r *Repository) List(ctx context.Context, email string) ([]model.EventItem, error) {
	if r.store == nil {
		return []model.EventItem{}, nil
	}
	raw, found, err := r.store.Get(ctx, keyFor(email))
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", email, err)
	}
	if !found || raw == "" {
		return []model.EventItem{}, nil
	}
	var items []model.EventItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil || items == nil {
		if err != nil {
			appLog.Warn("stored events unreadable, treating as empty", "user", email, "err", err)
		}
		return []model.EventItem{}, nil
	}
	return items, nil
}

// Sync lists the user's events and reports store failures instead of
// hiding them.
func (r *Repository) Sync(ctx context.Context, email string) SyncResult {
	items, err := r.List(ctx, email)
	if err == nil {
		r.lastKnown.Set(email, items)
		return SyncResult{Items: items}
	}
	if cached, ok := r.lastKnown.GetIfPresent(email); ok {
		return SyncResult{Items: cached, Stale: true, Err: err}
	}
	return SyncResult{Err: err}
}

func (r *Repository) save(ctx context.Context, email string, items []model.EventItem) error {
	if r.store == nil {
		return ErrStoreNotConfigured
	}
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, keyFor(email), string(b)); err != nil {
		return fmt.Errorf("save events for %s: %w", email, err)
	}
	r.lastKnown.Set(email, items)
	return nil
}

func (r *Repository) now() string {
	return model.FormatTimestamp(r.clock.Now())
}

// Create prepends a new event built from d.
func (r *Repository) Create(ctx context.Context, email string, d Draft) (model.EventItem, error) {
	now := r.now()
	item := model.EventItem{
		ID:        orDefault(d.ID, r.newID()),
		Name:      orDefault(d.Name, DefaultName),
		Detail:    orDefault(d.Detail, ""),
		Start:     orDefault(d.Start, now),
		End:       orDefault(d.End, now),
		CreatedAt: orDefault(d.CreatedAt, now),
		UpdatedAt: orDefault(d.UpdatedAt, now),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.List(ctx, email)
	if err != nil {
		return model.EventItem{}, err
	}
	next := append([]model.EventItem{item}, list...)
	if err := r.save(ctx, email, next); err != nil {
		return model.EventItem{}, err
	}
	appLog.Debug("event created", "user", email, "event_id", item.ID)
	return item, nil
}

// Update applies p to the event with the given id.
func (r *Repository) Update(ctx context.Context, email, id string, p Patch) (model.EventItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.List(ctx, email)
	if err != nil {
		return model.EventItem{}, err
	}
	idx := -1
	for i := range list {
		if list[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.EventItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	it := &list[idx]
	setIf(&it.Name, p.Name)
	setIf(&it.Detail, p.Detail)
	setIf(&it.Start, p.Start)
	setIf(&it.End, p.End)
	setIf(&it.CreatedAt, p.CreatedAt)
	it.UpdatedAt = r.now()

	if err := r.save(ctx, email, list); err != nil {
		return model.EventItem{}, err
	}
	return *it, nil
}

// Delete removes the event with the given id. Unknown ids are ignored.
func (r *Repository) Delete(ctx context.Context, email, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.List(ctx, email)
	if err != nil {
		return err
	}
	next := make([]model.EventItem, 0, len(list))
	for _, it := range list {
		if it.ID != id {
			next = append(next, it)
		}
	}
	if len(next) == len(list) {
		return nil
	}
	return r.save(ctx, email, next)
}

func orDefault(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
