package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryResolver(t *testing.T) {
	req := require.New(t)
	r := NewMemoryResolver(model.User{UserID: "a", Name: "Alice"})

	u, err := r.ResolveUser(context.Background(), "a")
	req.NoError(err)
	req.Equal("Alice", u.Name)

	_, err = r.ResolveUser(context.Background(), "b")
	req.ErrorIs(err, errs.ErrUserNotFound)

	r.Add(model.User{UserID: "b"})
	_, err = r.ResolveUser(context.Background(), "b")
	req.NoError(err)
}

type fakeRow struct {
	vals []string
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		*(d.(*string)) = r.vals[i]
	}
	return nil
}

type fakeQuerier struct {
	rows  map[string]fakeRow
	calls int
}

func (q *fakeQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	q.calls++
	if row, ok := q.rows[args[0].(string)]; ok {
		return row
	}
	return fakeRow{err: pgx.ErrNoRows}
}

const (
	aliceID  = "6f1c2b7e-3d4a-4c55-9a1e-0b2f3c4d5e6f"
	bobID    = "0d9e8f7a-6b5c-4d3e-8f21-a0b1c2d3e4f5"
	brokenID = "11111111-2222-4333-8444-555555555555"
)

func TestPostgresResolver(t *testing.T) {
	req := require.New(t)
	q := &fakeQuerier{rows: map[string]fakeRow{
		aliceID:  {vals: []string{aliceID, "Alice"}},
		brokenID: {err: errors.New("conn reset")},
	}}
	r := NewPostgresResolver(q)

	u, err := r.ResolveUser(context.Background(), aliceID)
	req.NoError(err)
	req.Equal(model.User{UserID: aliceID, Name: "Alice"}, u)

	_, err = r.ResolveUser(context.Background(), bobID)
	req.ErrorIs(err, errs.ErrUserNotFound)

	_, err = r.ResolveUser(context.Background(), brokenID)
	req.Error(err)
	req.NotErrorIs(err, errs.ErrUserNotFound)
	req.Equal(500, errs.HTTPStatus(err))
}

func TestPostgresResolver_RejectsNonUUID(t *testing.T) {
	req := require.New(t)
	q := &fakeQuerier{}
	r := NewPostgresResolver(q)

	_, err := r.ResolveUser(context.Background(), "alice")

	req.ErrorIs(err, errs.ErrArgs)
	req.Equal(400, errs.HTTPStatus(err))
	req.Zero(q.calls)
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (f *fakeCache) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	default:
		f.data[key] = fmt.Sprint(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func TestCachedResolver_ReadThrough(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	q := &fakeQuerier{rows: map[string]fakeRow{aliceID: {vals: []string{aliceID, "Alice"}}}}
	cache := &fakeCache{data: map[string]string{}}
	r := NewCachedResolver(NewPostgresResolver(q), cache, time.Minute, nil)

	// first call hits postgres and fills the cache
	u, err := r.ResolveUser(ctx, aliceID)
	req.NoError(err)
	req.Equal("Alice", u.Name)
	req.Equal(1, q.calls)
	req.Contains(cache.data, userKey(aliceID))

	// second call is served from cache
	u, err = r.ResolveUser(ctx, aliceID)
	req.NoError(err)
	req.Equal("Alice", u.Name)
	req.Equal(1, q.calls)

	// misses are not cached
	_, err = r.ResolveUser(ctx, bobID)
	req.ErrorIs(err, errs.ErrUserNotFound)
	req.NotContains(cache.data, userKey(bobID))
}
