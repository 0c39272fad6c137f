package runtime

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"
)

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// ShutdownStep is one named teardown action, run in order by Shutdown.
type ShutdownStep struct {
	Name string
	Fn   func(context.Context) error
}

// Shutdown runs every step under one shared deadline. A failing step is logged and
// does not stop the ones after it.
func Shutdown(timeout time.Duration, logger *slog.Logger, steps ...ShutdownStep) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for _, step := range steps {
		if step.Fn == nil {
			continue
		}
		start := time.Now()
		if err := step.Fn(ctx); err != nil {
			if logger != nil {
				logger.Error("shutdown step failed", "step", step.Name, "err", err)
			}
			errs = append(errs, err)
			continue
		}
		if logger != nil {
			logger.Info("shutdown step done", "step", step.Name, "duration_ms", time.Since(start).Milliseconds())
		}
	}
	return errors.Join(errs...)
}
