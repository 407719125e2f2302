package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Redis obtains keys through redislock so that every API node shares them.
type Redis struct {
	client  *redislock.Client
	ttl     time.Duration
	backoff time.Duration
}

// NewRedis constructs a Redis locker. ttl bounds how long a crashed holder can
// keep a row blocked.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{client: redislock.New(client), ttl: ttl, backoff: 50 * time.Millisecond}
}

// Acquire obtains every key in order, retrying until ctx is done.
func (l *Redis) Acquire(ctx context.Context, keys ...string) (Release, error) {
	keys = normalise(keys)
	held := make([]*redislock.Lock, 0, len(keys))
	releaseAll := func(ctx context.Context) error {
		var errs []error
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				errs = append(errs, err)
			}
		}
		held = held[:0]
		return errors.Join(errs...)
	}
	for _, key := range keys {
		lk, err := l.client.Obtain(ctx, "lock:"+key, l.ttl, &redislock.Options{
			RetryStrategy: redislock.LinearBackoff(l.backoff),
		})
		if err != nil {
			_ = releaseAll(context.WithoutCancel(ctx))
			if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, ErrNotObtained
			}
			return nil, err
		}
		held = append(held, lk)
	}
	return releaseAll, nil
}
