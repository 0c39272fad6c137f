package locking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Advisory holds a Postgres transaction-scoped advisory lock on a dedicated pooled
// connection. Ending the transaction (or losing the connection) releases it.
type Advisory struct {
	db     TxBeginner
	logger *slog.Logger
}

func NewAdvisory(db TxBeginner, logger *slog.Logger) *Advisory {
	return &Advisory{db: db, logger: logger}
}

func (a *Advisory) Lock(ctx context.Context, key string) (Unlock, error) {
	tx, err := a.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("advisory lock begin: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		_ = tx.Rollback(context.Background())
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		return nil, fmt.Errorf("advisory lock %s: %w", key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := tx.Commit(releaseCtx); err != nil && a.logger != nil {
				a.logger.Warn("advisory lock release failed", "key", key, "err", err)
			}
		})
	}, nil
}
