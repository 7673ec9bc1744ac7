package kv

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// exerciseStore runs the contract every Store implementation must meet.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, found, err := s.Get(ctx, "events:nobody@example.com")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Put(ctx, "events:a@example.com", `[{"id":"1"}]`))
	require.NoError(t, s.Put(ctx, "events:b@example.com", `[]`))

	v, found, err := s.Get(ctx, "events:a@example.com")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[{"id":"1"}]`, v)

	require.NoError(t, s.Put(ctx, "events:a@example.com", `[]`))
	v, _, err = s.Get(ctx, "events:a@example.com")
	require.NoError(t, err)
	assert.Equal(t, `[]`, v)
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	exerciseStore(t, newTestSQLite(t))
}

func TestSQLiteInMemory(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLitePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "k", "v"))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)
}

func TestSQLiteConcurrentPuts(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Put(ctx, fmt.Sprintf("key-%d", i%5), fmt.Sprintf("value-%d", i))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestIsTransientSQLiteErr(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{errors.New("database table is locked"), true},
		{errors.New("disk I/O error (522)"), true},
		{errors.New("UNIQUE constraint failed"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isTransientSQLiteErr(tt.err), "%v", tt.err)
	}
}

func TestRetryOnContention(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := retryOnContention(ctx, func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryOnContention(ctx, func() error {
		calls++
		return errors.New("no such table: kv")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockStore) Put(ctx context.Context, key, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

func TestCachedReadThrough(t *testing.T) {
	ctx := context.Background()
	backend := new(mockStore)
	backend.On("Get", ctx, "k").Return("v", true, nil).Once()
	backend.On("Get", ctx, "missing").Return("", false, nil).Once()

	c := NewCached(backend, 16, time.Minute)
	for i := 0; i < 3; i++ {
		v, found, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "v", v)

		_, found, err = c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)
	}
	backend.AssertExpectations(t)
}

func TestCachedWriteThrough(t *testing.T) {
	ctx := context.Background()
	backend := new(mockStore)
	backend.On("Put", ctx, "k", "v1").Return(nil).Once()

	c := NewCached(backend, 16, time.Minute)
	require.NoError(t, c.Put(ctx, "k", "v1"))

	v, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", v)
	backend.AssertNotCalled(t, "Get", ctx, "k")
}

func TestCachedFailedPutInvalidates(t *testing.T) {
	ctx := context.Background()
	backend := new(mockStore)
	backend.On("Get", ctx, "k").Return("old", true, nil).Twice()
	backend.On("Put", ctx, "k", "new").Return(errors.New("disk full")).Once()

	c := NewCached(backend, 16, time.Minute)
	_, _, err := c.Get(ctx, "k")
	require.NoError(t, err)

	require.Error(t, c.Put(ctx, "k", "new"))

	v, _, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "old", v)
	backend.AssertExpectations(t)
}

func TestCachedBackendError(t *testing.T) {
	ctx := context.Background()
	backend := new(mockStore)
	backend.On("Get", ctx, "k").Return("", false, errors.New("offline"))

	_, _, err := NewCached(backend, 16, time.Minute).Get(ctx, "k")
	assert.EqualError(t, err, "offline")
}
