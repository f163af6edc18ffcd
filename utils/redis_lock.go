package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned by TryLock-style calls when someone else holds the key.
var ErrLockHeld = errors.New("lock is held by another owner")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease lock on Redis keys (SET NX PX plus a
// compare-and-delete release), shared by every replica of the service.
type RedisLocker struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

func NewRedisLocker(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{rdb: rdb, prefix: prefix, ttl: ttl, retry: 25 * time.Millisecond}
}

// TryLock takes key once, without waiting.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.rdb, []string{fullKey}, token).Err()
	}, nil
}

// Lock waits until key is free or ctx ends.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	for {
		release, err := l.TryLock(ctx, key, l.ttl)
		if err == nil {
			return func() {
				// the lease expires on its own if this fails
				_ = release(context.Background())
			}, nil
		}
		if !errors.Is(err, ErrLockHeld) {
			return nil, err
		}
		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// ForScheduler returns a gocron.Locker so only one replica runs each
// scheduled job. ttl must outlast the longest job run.
func (l *RedisLocker) ForScheduler(ttl time.Duration) gocron.Locker {
	return jobLocker{l: l, ttl: ttl}
}

type jobLocker struct {
	l   *RedisLocker
	ttl time.Duration
}

func (j jobLocker) Lock(ctx context.Context, key string) (gocron.Lock, error) {
	release, err := j.l.TryLock(ctx, "job:"+key, j.ttl)
	if err != nil {
		return nil, err
	}
	return jobLock(release), nil
}

type jobLock func(context.Context) error

func (f jobLock) Unlock(ctx context.Context) error {
	return f(ctx)
}
