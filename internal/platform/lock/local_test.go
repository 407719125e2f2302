package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormaliseSortsAndDedupes(t *testing.T) {
	got := normalise([]string{"stock:2:1", "", "debt:CUSTOMER:7", "stock:2:1", "order:5"})
	require.Equal(t, []string{"debt:CUSTOMER:7", "order:5", "stock:2:1"}, got)
}

func TestLocalSerialisesSharedKeys(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var mu sync.Mutex
	inside, maxInside := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys := []string{"debt:CUSTOMER:1", "stock:1:1"}
			if i%2 == 0 {
				keys = []string{"stock:1:1", "debt:CUSTOMER:1"}
			}
			release, err := l.Acquire(ctx, keys...)
			require.NoError(t, err)
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			require.NoError(t, release(ctx))
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, maxInside)
	require.Empty(t, l.rows)
}

func TestLocalDisjointKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	first, err := l.Acquire(ctx, "stock:1:1")
	require.NoError(t, err)
	defer first(ctx)

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	second, err := l.Acquire(ctx2, "stock:2:1")
	require.NoError(t, err)
	require.NoError(t, second(ctx))
}

func TestLocalAcquireHonoursContext(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	held, err := l.Acquire(ctx, "order:1")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(waitCtx, "debt:SUPPLIER:3", "order:1")
	require.ErrorIs(t, err, ErrNotObtained)

	// the partially obtained key was released
	again, err := l.Acquire(ctx, "debt:SUPPLIER:3")
	require.NoError(t, err)
	require.NoError(t, again(ctx))

	require.NoError(t, held(ctx))
	require.NoError(t, held(ctx), "release is idempotent")
	require.Empty(t, l.rows)
}
