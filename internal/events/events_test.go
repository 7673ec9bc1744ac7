package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeprogress/internal/clock"
	"timeprogress/internal/kv"
	"timeprogress/internal/model"
)

const user = "alice@example.com"

var testNow = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestRepo(t *testing.T) (*Repository, *kv.Memory) {
	t.Helper()
	store := kv.NewMemory()
	return NewRepository(store, clock.FixedClock{T: testNow}, WithIDFunc(sequentialIDs())), store
}

func ptr(s string) *string { return &s }

func TestCreateDefaults(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	item, err := repo.Create(ctx, user, Draft{})
	require.NoError(t, err)
	assert.Equal(t, model.EventItem{
		ID:        "id-1",
		Name:      "Untitled",
		Detail:    "",
		Start:     "2024-03-10T12:00:00.000Z",
		End:       "2024-03-10T12:00:00.000Z",
		CreatedAt: "2024-03-10T12:00:00.000Z",
		UpdatedAt: "2024-03-10T12:00:00.000Z",
	}, item)
}

func TestCreatePrependsAndKeepsGivenFields(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, user, Draft{Name: ptr("first")})
	require.NoError(t, err)
	second, err := repo.Create(ctx, user, Draft{ID: ptr("custom"), Name: ptr("second"), Start: ptr("2024-01-01T00:00:00.000Z")})
	require.NoError(t, err)
	assert.Equal(t, "custom", second.ID)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", second.Start)

	list, err := repo.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Name)
	assert.Equal(t, "first", list[1].Name)

	other, err := repo.List(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Empty(t, other)
	assert.NotNil(t, other)
}

func TestListUnreadableValueIsEmpty(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	for _, raw := range []string{"{not json", `{"id":"x"}`, "null", ""} {
		require.NoError(t, store.Put(ctx, keyFor(user), raw))
		list, err := repo.List(ctx, user)
		require.NoError(t, err, raw)
		assert.Empty(t, list, raw)
	}
}

func TestUpdate(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, user, Draft{Name: ptr("draft"), Detail: ptr("keep")})
	require.NoError(t, err)

	repo.clock = clock.FixedClock{T: testNow.Add(time.Hour)}
	updated, err := repo.Update(ctx, user, created.ID, Patch{Name: ptr("final")})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "final", updated.Name)
	assert.Equal(t, "keep", updated.Detail)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "2024-03-10T13:00:00.000Z", updated.UpdatedAt)

	list, err := repo.List(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []model.EventItem{updated}, list)

	_, err = repo.Update(ctx, user, "missing", Patch{Name: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	a, err := repo.Create(ctx, user, Draft{})
	require.NoError(t, err)
	b, err := repo.Create(ctx, user, Draft{})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, user, a.ID))
	require.NoError(t, repo.Delete(ctx, user, "unknown"))

	list, err := repo.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}

func TestNoStore(t *testing.T) {
	repo := NewRepository(nil, clock.FixedClock{T: testNow})
	ctx := context.Background()

	list, err := repo.List(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = repo.Create(ctx, user, Draft{})
	assert.ErrorIs(t, err, ErrStoreNotConfigured)
}

// flakyStore fails every call while down is set.
type flakyStore struct {
	*kv.Memory
	down bool
}

func (f *flakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if f.down {
		return "", false, errors.New("store offline")
	}
	return f.Memory.Get(ctx, key)
}

func (f *flakyStore) Put(ctx context.Context, key, value string) error {
	if f.down {
		return errors.New("store offline")
	}
	return f.Memory.Put(ctx, key, value)
}

func TestSyncFallsBackToLastKnown(t *testing.T) {
	store := &flakyStore{Memory: kv.NewMemory()}
	repo := NewRepository(store, clock.FixedClock{T: testNow}, WithIDFunc(sequentialIDs()))
	ctx := context.Background()

	store.down = true
	res := repo.Sync(ctx, user)
	assert.Error(t, res.Err)
	assert.False(t, res.Stale)
	assert.Nil(t, res.Items)

	store.down = false
	_, err := repo.Create(ctx, user, Draft{Name: ptr("cached")})
	require.NoError(t, err)
	res = repo.Sync(ctx, user)
	require.NoError(t, res.Err)
	require.Len(t, res.Items, 1)

	store.down = true
	res = repo.Sync(ctx, user)
	assert.EqualError(t, res.Err, "load events for alice@example.com: store offline")
	assert.True(t, res.Stale)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "cached", res.Items[0].Name)

	_, err = repo.Create(ctx, user, Draft{})
	assert.Error(t, err)
}

func TestConcurrentCreatesAreNotLost(t *testing.T) {
	var idMu sync.Mutex
	ids := sequentialIDs()
	repo := NewRepository(kv.NewMemory(), clock.FixedClock{T: testNow}, WithIDFunc(func() string {
		idMu.Lock()
		defer idMu.Unlock()
		return ids()
	}))
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Create(ctx, user, Draft{Name: ptr(fmt.Sprintf("event-%d", i))})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	list, err := repo.List(ctx, user)
	require.NoError(t, err)
	assert.Len(t, list, n)

	seen := make(map[string]bool, n)
	for _, it := range list {
		seen[it.ID] = true
	}
	assert.Len(t, seen, n)
}
