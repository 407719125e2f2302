package lock

import (
	"context"
	"sync"
)

// Local is an in-process keyed mutex for single-node deployments and tests.
type Local struct {
	mu   sync.Mutex
	rows map[string]*row
}

type row struct {
	ch   chan struct{}
	refs int
}

// NewLocal constructs a Local locker.
func NewLocal() *Local {
	return &Local{rows: make(map[string]*row)}
}

// Acquire blocks until every key is held or ctx is done.
func (l *Local) Acquire(ctx context.Context, keys ...string) (Release, error) {
	keys = normalise(keys)
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := l.lock(ctx, key); err != nil {
			for _, h := range held {
				l.unlock(h)
			}
			return nil, ErrNotObtained
		}
		held = append(held, key)
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				l.unlock(held[i])
			}
		})
		return nil
	}, nil
}

func (l *Local) lock(ctx context.Context, key string) error {
	l.mu.Lock()
	r, ok := l.rows[key]
	if !ok {
		r = &row{ch: make(chan struct{}, 1)}
		l.rows[key] = r
	}
	r.refs++
	l.mu.Unlock()

	select {
	case r.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.deref(key, r)
		l.mu.Unlock()
		return ctx.Err()
	}
}

func (l *Local) unlock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[key]
	if !ok {
		return
	}
	<-r.ch
	l.deref(key, r)
}

func (l *Local) deref(key string, r *row) {
	r.refs--
	if r.refs == 0 {
		delete(l.rows, key)
	}
}
