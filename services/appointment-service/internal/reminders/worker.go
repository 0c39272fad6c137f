// Package reminders sends the reminder notice for appointments that are about to start.
package reminders

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
)

// Source lists appointments whose reminder is due at now, soonest first.
type Source interface {
	DueReminders(ctx context.Context, now time.Time, lead time.Duration, limit int) ([]model.Appointment, error)
}

// Sender marks one appointment as reminded and queues its notice, reporting
// false when it stopped being due after it was listed.
type Sender interface {
	SendReminder(ctx context.Context, tenantID, id string, lead time.Duration) (bool, error)
}

type Worker struct {
	source    Source
	sender    Sender
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	lead      time.Duration
	backoff   time.Duration
	now       func() time.Time

	// retryAt parks appointments whose last send failed.
	retryAt map[string]time.Time
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	Lead      time.Duration
	Backoff   time.Duration
	Now       func() time.Time
}

func NewWorker(source Source, sender Sender, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Lead <= 0 {
		cfg.Lead = 24 * time.Hour
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		source:    source,
		sender:    sender,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		lead:      cfg.Lead,
		backoff:   cfg.Backoff,
		now:       cfg.Now,
		retryAt:   map[string]time.Time{},
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("reminder batch failed", "err", err)
			}
		}
	}
}

// RunOnce sends every reminder due now, up to one batch, and returns how many went out.
// Run calls it from a single goroutine; callers must not invoke it concurrently.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	now := w.now().UTC()
	due, err := w.source.DueReminders(ctx, now, w.lead, w.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, a := range due {
		if until, ok := w.retryAt[a.ID]; ok && now.Before(until) {
			continue
		}
		ok, err := w.sender.SendReminder(ctx, a.TenantID, a.ID, w.lead)
		if err != nil {
			if ctx.Err() != nil {
				return sent, ctx.Err()
			}
			w.retryAt[a.ID] = now.Add(w.backoff)
			w.logger.Warn("reminder send failed", "appointment_id", a.ID, "tenant_id", a.TenantID, "err", err)
			continue
		}
		delete(w.retryAt, a.ID)
		if ok {
			sent++
		}
	}
	w.prune(now)
	return sent, nil
}

func (w *Worker) prune(now time.Time) {
	for id, until := range w.retryAt {
		if !now.Before(until) {
			delete(w.retryAt, id)
		}
	}
}
