// Package index maintains bounded, newest-first lists of event keys.
//
// Updates are a plain read-modify-write against the store. Two ingestions
// that read the same prior list and write back independently race: the later
// write wins and the other prepend disappears from the index. The event record
// itself is never lost, only its membership here.
package index

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/kv"
)

// Push prepends key and drops entries past maxLen from the tail (oldest first).
// It never mutates existing.
func Push(existing []string, key string, maxLen int) []string {
	if maxLen < 1 {
		return []string{}
	}
	n := len(existing) + 1
	if n > maxLen {
		n = maxLen
	}
	out := make([]string, 0, n)
	out = append(out, key)
	out = append(out, existing[:n-1]...)
	return out
}

// Head returns at most n keys from the front of list.
func Head(list []string, n int) []string {
	if n < 0 {
		n = 0
	}
	if n > len(list) {
		n = len(list)
	}
	return list[:n]
}

// Load reads the index stored under key. A missing or unparseable index reads as empty;
// only a store failure is returned as an error.
func Load(ctx context.Context, st kv.Store, key string) ([]string, error) {
	b, err := st.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return []string{}, nil
	}
	return list, nil
}

// Save writes list under key.
func Save(ctx context.Context, st kv.Store, key string, list []string) error {
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return st.Set(ctx, key, b)
}

// Prepend loads the index at key, pushes newKey, and writes it back.
// It is not atomic; see the package documentation.
func Prepend(ctx context.Context, st kv.Store, key, newKey string, maxLen int) ([]string, error) {
	list, err := Load(ctx, st, key)
	if err != nil {
		return nil, err
	}
	list = Push(list, newKey, maxLen)
	if err := Save(ctx, st, key, list); err != nil {
		return nil, err
	}
	return list, nil
}
