// Package lock serialises critical sections keyed by ledger row.
package lock

import (
	"context"
	"errors"
	"sort"
)

// ErrNotObtained is returned when a key stays held past the wait budget.
var ErrNotObtained = errors.New("lock: not obtained")

// Release frees every key held by a single Acquire call.
type Release func(ctx context.Context) error

// Locker obtains exclusive access to a set of keys.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (Release, error)
}

// normalise dedupes and sorts keys so that concurrent callers always lock in
// the same order.
func normalise(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
