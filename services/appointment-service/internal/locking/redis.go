package locking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis is a single-instance distributed lock: SET NX PX with a random token,
// released by a compare-and-delete script so an expired holder cannot free a newer lock.
type Redis struct {
	rdb     redis.Cmdable
	ttl     time.Duration
	retry   time.Duration
	maxWait time.Duration
	logger  *slog.Logger
}

type RedisOptions struct {
	TTL     time.Duration
	Retry   time.Duration
	MaxWait time.Duration
	Logger  *slog.Logger
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedis(rdb redis.Cmdable, opts RedisOptions) *Redis {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.Retry <= 0 {
		opts.Retry = 25 * time.Millisecond
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 5 * time.Second
	}
	return &Redis{rdb: rdb, ttl: opts.TTL, retry: opts.Retry, maxWait: opts.MaxWait, logger: opts.Logger}
}

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.maxWait)
	defer cancel()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	for {
		ok, err := r.rdb.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.rdb, []string{key}, token).Err(); err != nil && r.logger != nil {
				r.logger.Warn("redis lock release failed", "key", key, "err", err)
			}
		})
	}, nil
}

func newToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
