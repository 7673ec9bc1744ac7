// Package scheduler owns the refresh loop: it rebuilds the snapshot on a
// cron schedule, publishes it atomically and fans it out to subscribers.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"timeprogress/internal/log"
	"timeprogress/internal/snapshot"
)

// DefaultSpec rebuilds the snapshot once per second.
const DefaultSpec = "@every 1s"

// Builder produces one snapshot per call.
type Builder interface {
	Build() snapshot.Snapshot
}

type Scheduler struct {
	builder Builder
	cron    *cron.Cron
	latest  atomic.Pointer[snapshot.Snapshot]

	// ctx is handed to extra jobs; set once in Run before cron starts.
	ctx context.Context

	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
}

type subscriber struct {
	fn   func(snapshot.Snapshot)
	ch   chan snapshot.Snapshot
	done chan struct{}
	once sync.Once
}

// NewParser accepts optional seconds and descriptors such as "@every 1s".
func NewParser() cron.Parser {
	return cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// ValidateSpec reports whether spec is a schedule New and AddJob accept.
func ValidateSpec(spec string) error {
	if _, err := NewParser().Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// New creates a scheduler that calls builder on spec (DefaultSpec if empty).
func New(builder Builder, spec string) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	logger := log.CronLogger()
	s := &Scheduler{
		builder: builder,
		ctx:     context.Background(),
		subs:    make(map[uint64]*subscriber),
		cron: cron.New(
			cron.WithParser(NewParser()),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
	if _, err := s.cron.AddFunc(spec, func() { s.Tick() }); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// AddJob registers an extra job on the same cron instance. Errors returned
// by job are logged and do not affect snapshot publication.
func (s *Scheduler) AddJob(spec, name string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			log.Error("scheduled job failed", err, "job", name)
			return
		}
		log.Debug("scheduled job done", "job", name, "took", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	return nil
}

// Tick builds and publishes one snapshot.
func (s *Scheduler) Tick() snapshot.Snapshot {
	snap := s.builder.Build()
	s.latest.Store(&snap)
	s.notify(snap)
	return snap
}

// Latest returns the most recently published snapshot.
func (s *Scheduler) Latest() (snapshot.Snapshot, bool) {
	p := s.latest.Load()
	if p == nil {
		return snapshot.Snapshot{}, false
	}
	return *p, true
}

// Subscribe registers fn to receive every published snapshot on its own
// goroutine. A subscriber that falls behind only sees the newest snapshot.
// The current snapshot, if any, is delivered right away.
func (s *Scheduler) Subscribe(fn func(snapshot.Snapshot)) (cancel func()) {
	sub := &subscriber{
		fn:   fn,
		ch:   make(chan snapshot.Snapshot, 1),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.mu.Unlock()

	if snap, ok := s.Latest(); ok {
		sub.offer(snap)
	}
	go sub.loop()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		sub.once.Do(func() { close(sub.done) })
	}
}

func (s *Scheduler) notify(snap snapshot.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		sub.offer(snap)
	}
}

// offer replaces any undelivered snapshot with snap without blocking.
func (sub *subscriber) offer(snap snapshot.Snapshot) {
	select {
	case sub.ch <- snap:
		return
	default:
	}
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- snap:
	default:
	}
}

func (sub *subscriber) loop() {
	for {
		select {
		case <-sub.done:
			return
		case snap := <-sub.ch:
			select {
			case <-sub.done:
				return
			default:
			}
			sub.fn(snap)
		}
	}
}

// Run publishes an initial snapshot, starts the schedule and blocks until
// ctx is cancelled. Running jobs are allowed to finish before it returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.Tick()
	s.cron.Start()
	log.Info("scheduler started", "entries", len(s.cron.Entries()))

	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()
	log.Info("scheduler stopped")
	return nil
}
