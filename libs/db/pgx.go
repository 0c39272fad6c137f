package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool so callers can hand it to anything expecting a
// Begin/Exec/Query surface.
type Pool struct {
	*pgxpool.Pool
}

// PoolConfig overrides the connection settings parsed from the URL.
// Zero values keep the defaults applied by Open.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

const (
	defaultMaxConns        = 10
	defaultMinConns        = 1
	defaultMaxConnLifetime = 30 * time.Minute
	defaultMaxConnIdleTime = 5 * time.Minute
	defaultConnectTimeout  = 5 * time.Second
)

func Open(ctx context.Context, databaseURL string, pc PoolConfig) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = orDefault(pc.MaxConns, defaultMaxConns)
	cfg.MinConns = orDefault(pc.MinConns, defaultMinConns)
	if cfg.MinConns > cfg.MaxConns {
		cfg.MinConns = cfg.MaxConns
	}
	cfg.MaxConnLifetime = orDefault(pc.MaxConnLifetime, defaultMaxConnLifetime)
	cfg.MaxConnIdleTime = orDefault(pc.MaxConnIdleTime, defaultMaxConnIdleTime)
	cfg.ConnConfig.ConnectTimeout = orDefault(pc.ConnectTimeout, defaultConnectTimeout)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

func (p *Pool) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

// ReadyCheck pings the database and fails while every connection is checked
// out, since booking requests would queue behind the lock holders.
func ReadyCheck(pool *Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if pool == nil || pool.Pool == nil {
			return errors.New("db not configured")
		}
		if err := pool.Ping(ctx); err != nil {
			return err
		}
		stat := pool.Stat()
		if stat.MaxConns() > 0 && stat.AcquiredConns() >= stat.MaxConns() && stat.EmptyAcquireCount() > 0 {
			return fmt.Errorf("db pool exhausted: %d/%d connections acquired", stat.AcquiredConns(), stat.MaxConns())
		}
		return nil
	}
}

func orDefault[T int32 | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}
