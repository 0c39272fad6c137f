// Package locking serializes the check-then-write booking path per (tenant, staff).
package locking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("timed out waiting for booking lock")

// Unlock releases a held lock. It is safe to call once.
type Unlock func()

type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

const (
	StrategyNone     = "none"
	StrategyLocal    = "local"
	StrategyRedis    = "redis"
	StrategyAdvisory = "advisory"
)

// Key scopes a lock to one staff member's calendar within a tenant.
func Key(tenantID, staffID string) string {
	return "booking:" + tenantID + ":" + staffID
}

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Deps struct {
	Redis  redis.Cmdable
	DB     TxBeginner
	TTL    time.Duration
	Logger *slog.Logger
}

// New builds the locker named by strategy.
func New(strategy string, deps Deps) (Locker, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", StrategyLocal:
		return NewLocal(), nil
	case StrategyNone:
		return None{}, nil
	case StrategyRedis:
		if deps.Redis == nil {
			return nil, errors.New("redis lock strategy requires REDIS_ADDR")
		}
		return NewRedis(deps.Redis, RedisOptions{TTL: deps.TTL, Logger: deps.Logger}), nil
	case StrategyAdvisory:
		if deps.DB == nil {
			return nil, errors.New("advisory lock strategy requires the postgres storage driver")
		}
		return NewAdvisory(deps.DB, deps.Logger), nil
	default:
		return nil, fmt.Errorf("unknown lock strategy %q", strategy)
	}
}

// None performs no locking. Concurrent creates for the same slot can both pass the check.
type None struct{}

func (None) Lock(context.Context, string) (Unlock, error) {
	return func() {}, nil
}
