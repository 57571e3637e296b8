package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	_, err := st.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Set(ctx, "loc:ACX:b", []byte(`{"n":1}`)))
	require.NoError(t, st.Set(ctx, "loc:ACX:a", []byte(`{"n":2}`)))
	require.NoError(t, st.Set(ctx, "locations:ACX", []byte(`[]`)))
	require.NoError(t, st.Set(ctx, "loc:ACX:a", []byte(`{"n":3}`)))

	v, err := st.Get(ctx, "loc:ACX:a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":3}`, string(v))

	keys, err := st.List(ctx, "loc:")
	require.NoError(t, err)
	assert.Equal(t, []string{"loc:ACX:a", "loc:ACX:b"}, keys)

	keys, err = st.List(ctx, "nothing:")
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, st.Ping(ctx))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	buf := []byte("abc")
	require.NoError(t, st.Set(ctx, "k", buf))
	buf[0] = 'z'

	v, err := st.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}

func TestSQLiteStore(t *testing.T) {
	st, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"), "test")
	require.NoError(t, err)
	defer st.Close()
	exerciseStore(t, st)
}

func TestSQLiteStoreNamespaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	a, err := OpenSQLite(path, "a")
	require.NoError(t, err)
	require.NoError(t, a.Set(context.Background(), "index:global", []byte(`["x"]`)))
	require.NoError(t, a.Close())

	b, err := OpenSQLite(path, "b")
	require.NoError(t, err)
	defer b.Close()
	_, err = b.Get(context.Background(), "index:global")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestPostgresStore runs against a live database when TEST_DB_URL is set,
// for example the one started by docker compose.
func TestPostgresStore(t *testing.T) {
	dbURL := os.Getenv("TEST_DB_URL")
	if dbURL == "" {
		t.Skip("TEST_DB_URL not set")
	}
	ctx := context.Background()
	// A fresh store name per run keeps runs from seeing each other's keys.
	st, err := NewPostgres(ctx, dbURL, fmt.Sprintf("test-%d", time.Now().UnixNano()))
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.EnsureSchema(ctx))
	exerciseStore(t, st)
}

type slowStore struct{ *Memory }

func (s slowStore) Get(ctx context.Context, key string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Second):
		return s.Memory.Get(ctx, key)
	}
}

type recorder struct {
	mu   sync.Mutex
	ops  []string
	errs int
}

func (r *recorder) StoreOp(op string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	if err != nil {
		r.errs++
	}
}

func TestWrapAppliesTimeoutAndObserves(t *testing.T) {
	rec := &recorder{}
	st := Wrap(slowStore{NewMemory()}, 20*time.Millisecond, rec)

	_, err := st.Get(context.Background(), "k")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	require.NoError(t, st.Set(context.Background(), "k", []byte("v")))
	_, err = st.List(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"get", "set", "list"}, rec.ops)
	assert.Equal(t, 1, rec.errs)
}

func TestWrapDoesNotCountMissAsError(t *testing.T) {
	rec := &recorder{}
	st := Wrap(NewMemory(), time.Second, rec)
	_, err := st.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, rec.errs)
}
