package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
)

var ErrBacklogFull = errors.New("notification backlog full")

// ResultFunc observes the outcome of each target delivery.
type ResultFunc func(target string, kind Kind, err error)

type AsyncOptions struct {
	Timeout     time.Duration
	MaxInFlight int
	OnResult    ResultFunc
}

// Async runs every notice in its own goroutine with its own deadline.
type Async struct {
	targets  []Dispatcher
	timeout  time.Duration
	logger   *slog.Logger
	onResult ResultFunc
	sem      chan struct{}
	wg       sync.WaitGroup
}

func NewAsync(logger *slog.Logger, opts AsyncOptions, targets ...Dispatcher) *Async {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Async{
		targets:  targets,
		timeout:  opts.Timeout,
		logger:   logger,
		onResult: opts.OnResult,
		sem:      make(chan struct{}, opts.MaxInFlight),
	}
}

func (a *Async) Notify(ctx context.Context, n Notice) {
	if len(a.targets) == 0 {
		return
	}
	select {
	case a.sem <- struct{}{}:
	default:
		a.report(ctx, "backlog", n, ErrBacklogFull)
		return
	}

	// Keep trace and request id values but detach from the request's cancellation.
	base := context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() { <-a.sem }()
		for _, t := range a.targets {
			dctx, cancel := context.WithTimeout(base, a.timeout)
			err := t.Dispatch(dctx, n)
			cancel()
			a.report(base, t.Name(), n, err)
		}
	}()
}

func (a *Async) report(ctx context.Context, target string, n Notice, err error) {
	if a.onResult != nil {
		a.onResult(target, n.Kind, err)
	}
	if err == nil {
		return
	}
	a.logger.Error("notification failed", append([]any{
		"target", target,
		"kind", string(n.Kind),
		"appointment_id", n.Appointment.ID,
		"tenant_id", n.Appointment.TenantID,
		"err", err,
	}, otelx.LogAttrs(ctx)...)...)
}

// Close waits for in-flight notices or until ctx ends.
func (a *Async) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogDispatcher writes notices to the log; used when no delivery channel is configured.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (LogDispatcher) Name() string { return "log" }

func (d LogDispatcher) Dispatch(ctx context.Context, n Notice) error {
	d.Logger.Info("appointment notice", append([]any{
		"request_id", httpx.RequestIDFromContext(ctx),
		"kind", string(n.Kind),
		"appointment_id", n.Appointment.ID,
		"staff_id", n.Appointment.StaffID,
		"start_time", n.Appointment.StartTime,
	}, otelx.LogAttrs(ctx)...)...)
	return nil
}
