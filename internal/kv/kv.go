// Package kv is the boundary to the backing key-value store: durable get/set of
// opaque blobs by string key plus prefix listing.
//
// Stores offer no transactions and no multi-key atomicity. Callers that
// read-modify-write a key race with every other writer of that key.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// Store is implemented by every backend. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// List returns every key starting with prefix, in ascending key order.
	List(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Observer receives one call per store operation.
type Observer interface {
	StoreOp(op string, d time.Duration, err error)
}

// Wrap bounds every call to st by timeout and reports it to obs (which may be nil).
func Wrap(st Store, timeout time.Duration, obs Observer) Store {
	return &timed{Store: st, timeout: timeout, obs: obs}
}

type timed struct {
	Store
	timeout time.Duration
	obs     Observer
}

func (t *timed) run(ctx context.Context, op string, fn func(context.Context) error) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(ctx)
	if t.obs != nil {
		// A miss is an answer, not a failure.
		oerr := err
		if errors.Is(err, ErrNotFound) {
			oerr = nil
		}
		t.obs.StoreOp(op, time.Since(start), oerr)
	}
	return err
}

func (t *timed) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := t.run(ctx, "get", func(ctx context.Context) error {
		var err error
		out, err = t.Store.Get(ctx, key)
		return err
	})
	return out, err
}

func (t *timed) Set(ctx context.Context, key string, value []byte) error {
	return t.run(ctx, "set", func(ctx context.Context) error {
		return t.Store.Set(ctx, key, value)
	})
}

func (t *timed) List(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	err := t.run(ctx, "list", func(ctx context.Context) error {
		var err error
		out, err = t.Store.List(ctx, prefix)
		return err
	})
	return out, err
}

func (t *timed) Ping(ctx context.Context) error {
	return t.run(ctx, "ping", t.Store.Ping)
}
