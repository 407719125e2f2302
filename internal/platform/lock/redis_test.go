package lock

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, 5*time.Second), mr
}

func TestRedisAcquireAndRelease(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "stock:1:2", "debt:CUSTOMER:7")
	require.NoError(t, err)
	require.True(t, mr.Exists("lock:stock:1:2"))
	require.True(t, mr.Exists("lock:debt:CUSTOMER:7"))

	require.NoError(t, release(ctx))
	require.False(t, mr.Exists("lock:stock:1:2"))
	require.False(t, mr.Exists("lock:debt:CUSTOMER:7"))
}

func TestRedisContendedKeyTimesOut(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	held, err := l.Acquire(ctx, "order:9")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(waitCtx, "debt:SUPPLIER:1", "order:9")
	require.ErrorIs(t, err, ErrNotObtained)
	require.False(t, mr.Exists("lock:debt:SUPPLIER:1"), "partial locks are released")

	require.NoError(t, held(ctx))
	again, err := l.Acquire(ctx, "order:9")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestRedisLockExpiresWithTTL(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "stock:5:1")
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, mr.TTL("lock:stock:5:1"))

	mr.FastForward(6 * time.Second)
	release, err := l.Acquire(ctx, "stock:5:1")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}
