package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeprogress/internal/clock"
	"timeprogress/internal/snapshot"
)

// steppingClock advances one second per call.
func steppingClock(start time.Time) clock.Clock {
	var n atomic.Int64
	return clock.FuncClock(func() time.Time {
		return start.Add(time.Duration(n.Add(1)-1) * time.Second)
	})
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	start := time.Date(2024, time.January, 1, 6, 0, 0, 0, time.UTC)
	s, err := New(snapshot.NewBuilder(steppingClock(start)), "")
	require.NoError(t, err)
	return s
}

func TestValidateSpec(t *testing.T) {
	assert.NoError(t, ValidateSpec("@every 1s"))
	assert.NoError(t, ValidateSpec("*/15 * * * *"))
	assert.NoError(t, ValidateSpec("0 */5 * * * *"))
	assert.Error(t, ValidateSpec("every second"))
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New(snapshot.NewBuilder(clock.FixedClock{T: time.Now()}), "nope")
	assert.Error(t, err)
}

func TestTickPublishesLatest(t *testing.T) {
	s := newTestScheduler(t)

	_, ok := s.Latest()
	assert.False(t, ok)

	first := s.Tick()
	got, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, first, got)
	assert.Equal(t, "06:00:00", got.Time)

	s.Tick()
	got, _ = s.Latest()
	assert.Equal(t, "06:00:01", got.Time)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	s := newTestScheduler(t)
	s.Tick()

	received := make(chan snapshot.Snapshot, 10)
	cancel := s.Subscribe(func(snap snapshot.Snapshot) { received <- snap })
	defer cancel()

	select {
	case snap := <-received:
		assert.Equal(t, "06:00:00", snap.Time)
	case <-time.After(time.Second):
		t.Fatal("current snapshot not delivered on subscribe")
	}

	s.Tick()
	select {
	case snap := <-received:
		assert.Equal(t, "06:00:01", snap.Time)
	case <-time.After(time.Second):
		t.Fatal("tick not delivered")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	s := newTestScheduler(t)

	var calls atomic.Int32
	cancel := s.Subscribe(func(snapshot.Snapshot) { calls.Add(1) })
	cancel()
	cancel()

	s.Tick()
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestSlowSubscriberDoesNotBlockTicks(t *testing.T) {
	s := newTestScheduler(t)

	release := make(chan struct{})
	var last atomic.Value
	cancel := s.Subscribe(func(snap snapshot.Snapshot) {
		<-release
		last.Store(snap.Time)
	})
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Tick()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ticks blocked on a slow subscriber")
	}
	close(release)

	assert.Eventually(t, func() bool {
		v, _ := last.Load().(string)
		return v == "06:01:39"
	}, time.Second, 10*time.Millisecond)
}

func TestRunPublishesAndStops(t *testing.T) {
	s := newTestScheduler(t)

	var jobRuns atomic.Int32
	require.NoError(t, s.AddJob("@every 1s", "probe", func(ctx context.Context) error {
		jobRuns.Add(1)
		return nil
	}))
	assert.Error(t, s.AddJob("bogus", "bad", func(context.Context) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	assert.Eventually(t, func() bool {
		_, ok := s.Latest()
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
