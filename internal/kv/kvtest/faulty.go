// Package kvtest provides store doubles for exercising failure paths.
package kvtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/kv"
)

// ErrInjected is returned by Faulty for every operation matched by a rule.
var ErrInjected = errors.New("kvtest: injected failure")

// Faulty wraps a Store and fails selected operations on keys with a given prefix.
type Faulty struct {
	kv.Store

	mu    sync.Mutex
	rules map[string][]string // op -> key prefixes
}

func NewFaulty(st kv.Store) *Faulty {
	return &Faulty{Store: st, rules: map[string][]string{}}
}

// Fail makes op ("get", "set", "list") fail for keys starting with prefix.
func (f *Faulty) Fail(op, prefix string) {
	f.mu.Lock()
	f.rules[op] = append(f.rules[op], prefix)
	f.mu.Unlock()
}

func (f *Faulty) hit(op, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rules[op] {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func (f *Faulty) Get(ctx context.Context, key string) ([]byte, error) {
	if f.hit("get", key) {
		return nil, ErrInjected
	}
	return f.Store.Get(ctx, key)
}

func (f *Faulty) Set(ctx context.Context, key string, value []byte) error {
	if f.hit("set", key) {
		return ErrInjected
	}
	return f.Store.Set(ctx, key, value)
}

func (f *Faulty) List(ctx context.Context, prefix string) ([]string, error) {
	if f.hit("list", prefix) {
		return nil, ErrInjected
	}
	return f.Store.List(ctx, prefix)
}
