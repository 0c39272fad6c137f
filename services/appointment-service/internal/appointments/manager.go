// Package appointments owns the appointment lifecycle: every mutation that can move an
// appointment in time runs lock, availability check and write as one critical section.
package appointments

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/locking"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/metrics"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/notify"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxLockAttempts = 3

type Store interface {
	Create(ctx context.Context, a model.Appointment) error
	Update(ctx context.Context, a model.Appointment) error
	Get(ctx context.Context, tenantID, id string) (model.Appointment, error)
	Delete(ctx context.Context, tenantID, id string) error
	availability.Source
}

type Directory interface {
	GetCustomer(ctx context.Context, tenantID, id string) (model.Customer, error)
	GetStaff(ctx context.Context, tenantID, id string) (model.Staff, error)
	GetService(ctx context.Context, tenantID, id string) (model.Service, error)
}

type Options struct {
	Store        Store
	Directory    Directory
	Locker       locking.Locker
	LockStrategy string
	Notifier     notify.Notifier
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	Now          func() time.Time
	NewID        func() string
}

type Manager struct {
	store    Store
	dir      Directory
	checker  *availability.Checker
	locker   locking.Locker
	strategy string
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		store:    opts.Store,
		dir:      opts.Directory,
		checker:  availability.NewChecker(opts.Store),
		locker:   opts.Locker,
		strategy: opts.LockStrategy,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		tracer:   otelx.Tracer("appointment-service/appointments"),
		now:      opts.Now,
		newID:    opts.NewID,
	}
	if m.locker == nil {
		m.locker = locking.NewLocal()
		m.strategy = locking.StrategyLocal
	}
	if m.notifier == nil {
		m.notifier = notify.Discard{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	return m
}

type CreateInput struct {
	TenantID   string
	CustomerID string
	StaffID    string
	ServiceID  string
	StartTime  time.Time
	// EndTime is derived from the service duration when zero.
	EndTime time.Time
	Notes   string
	Status  model.Status
}

// Patch carries the fields of a partial update; nil means unchanged.
type Patch struct {
	CustomerID      *string
	StaffID         *string
	ServiceID       *string
	StartTime       *time.Time
	EndTime         *time.Time
	Notes           *string
	Status          *model.Status
	ReminderTime    *time.Time
	ReminderSent    *bool
	CancelledReason *string
	CancelledBy     *string
}

func (p Patch) touchesSchedule() bool {
	return p.StartTime != nil || p.EndTime != nil || p.StaffID != nil
}

func (m *Manager) Create(ctx context.Context, in CreateInput) (a model.Appointment, err error) {
	ctx, span := m.tracer.Start(ctx, "appointments.Create", trace.WithAttributes(
		attribute.String("tenant_id", in.TenantID),
		attribute.String("staff_id", in.StaffID),
	))
	defer func() { m.finish(span, "create", err) }()

	if in.TenantID == "" || in.CustomerID == "" || in.StaffID == "" || in.ServiceID == "" || in.StartTime.IsZero() {
		return model.Appointment{}, fmt.Errorf("%w: customerId, staffId, serviceId and startTime are required", model.ErrMissingParameter)
	}
	status := in.Status
	if status == "" {
		status = model.StatusScheduled
	}
	if !status.Valid() {
		return model.Appointment{}, fmt.Errorf("%w: %q", model.ErrInvalidStatus, in.Status)
	}

	if _, err := m.dir.GetCustomer(ctx, in.TenantID, in.CustomerID); err != nil {
		return model.Appointment{}, err
	}
	if _, err := m.dir.GetStaff(ctx, in.TenantID, in.StaffID); err != nil {
		return model.Appointment{}, err
	}
	svc, err := m.dir.GetService(ctx, in.TenantID, in.ServiceID)
	if err != nil {
		return model.Appointment{}, err
	}

	end := in.EndTime
	if end.IsZero() {
		end = EndFor(in.StartTime, svc)
	}
	now := m.now().UTC()
	a = model.Appointment{
		ID:         m.newID(),
		TenantID:   in.TenantID,
		CustomerID: in.CustomerID,
		StaffID:    in.StaffID,
		ServiceID:  in.ServiceID,
		StartTime:  in.StartTime.UTC(),
		EndTime:    end.UTC(),
		Status:     status,
		Notes:      strings.TrimSpace(in.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.Validate(); err != nil {
		return model.Appointment{}, err
	}

	err = m.withStaffLock(ctx, a.TenantID, []string{a.StaffID}, func(ctx context.Context) error {
		if err := m.ensureAvailable(ctx, a, ""); err != nil {
			return err
		}
		return m.store.Create(ctx, a)
	})
	if err != nil {
		return model.Appointment{}, err
	}

	if a.Status != model.StatusCancelled {
		m.notifier.Notify(ctx, notify.NewNotice(notify.KindConfirmation, a))
	}
	return a, nil
}

func (m *Manager) Update(ctx context.Context, tenantID, id string, p Patch) (next model.Appointment, err error) {
	ctx, span := m.tracer.Start(ctx, "appointments.Update", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("appointment_id", id),
	))
	defer func() { m.finish(span, "update", err) }()

	if p.Status != nil && !p.Status.Valid() {
		return model.Appointment{}, fmt.Errorf("%w: %q", model.ErrInvalidStatus, *p.Status)
	}
	var moveTo string
	if p.StaffID != nil {
		moveTo = *p.StaffID
	}

	var cur model.Appointment
	err = m.lockAppointment(ctx, tenantID, id, moveTo, func(ctx context.Context, locked model.Appointment) error {
		cur = locked
		n, err := m.apply(ctx, cur, p)
		if err != nil {
			return err
		}
		if p.touchesSchedule() && n.Status != model.StatusCancelled {
			if err := m.ensureAvailable(ctx, n, id); err != nil {
				return err
			}
		}
		if err := m.store.Update(ctx, n); err != nil {
			return err
		}
		next = n
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}

	switch {
	case next.Status == model.StatusCancelled && cur.Status != model.StatusCancelled:
		m.notifier.Notify(ctx, notify.NewNotice(notify.KindCancellation, next))
	case next.Status != model.StatusCancelled && scheduleChanged(cur, next):
		m.notifier.Notify(ctx, notify.NewNotice(notify.KindUpdate, next))
	}
	return next, nil
}

func (m *Manager) apply(ctx context.Context, cur model.Appointment, p Patch) (model.Appointment, error) {
	next := cur
	if p.CustomerID != nil && *p.CustomerID != cur.CustomerID {
		if _, err := m.dir.GetCustomer(ctx, cur.TenantID, *p.CustomerID); err != nil {
			return model.Appointment{}, err
		}
		next.CustomerID = *p.CustomerID
	}
	if p.StaffID != nil && *p.StaffID != cur.StaffID {
		if _, err := m.dir.GetStaff(ctx, cur.TenantID, *p.StaffID); err != nil {
			return model.Appointment{}, err
		}
		next.StaffID = *p.StaffID
	}
	if p.ServiceID != nil && *p.ServiceID != cur.ServiceID {
		if _, err := m.dir.GetService(ctx, cur.TenantID, *p.ServiceID); err != nil {
			return model.Appointment{}, err
		}
		next.ServiceID = *p.ServiceID
	}
	if p.Notes != nil {
		next.Notes = strings.TrimSpace(*p.Notes)
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.StartTime != nil {
		next.StartTime = p.StartTime.UTC()
	}
	switch {
	case p.EndTime != nil:
		next.EndTime = p.EndTime.UTC()
	case p.StartTime != nil:
		svc, err := m.dir.GetService(ctx, cur.TenantID, next.ServiceID)
		if err != nil {
			return model.Appointment{}, err
		}
		next.EndTime = EndFor(next.StartTime, svc).UTC()
	}
	if p.ReminderTime != nil {
		t := p.ReminderTime.UTC()
		next.ReminderTime = &t
	}
	switch {
	case p.ReminderSent != nil:
		next.ReminderSent = *p.ReminderSent
	case !next.StartTime.Equal(cur.StartTime):
		next.ReminderSent = false
	}
	if p.CancelledReason != nil {
		next.CancelledReason = strings.TrimSpace(*p.CancelledReason)
	}
	if p.CancelledBy != nil {
		next.CancelledBy = *p.CancelledBy
	}
	stampCancellation(&next, cur.Status)
	next.UpdatedAt = m.now().UTC()
	if err := next.Validate(); err != nil {
		return model.Appointment{}, err
	}
	return next, nil
}

// StatusChange is the body of a status transition. Reason and CancelledBy only
// apply when moving to cancelled.
type StatusChange struct {
	Status      model.Status
	Reason      string
	CancelledBy string
}

// UpdateStatus moves an appointment to any status; it never re-checks availability.
func (m *Manager) UpdateStatus(ctx context.Context, tenantID, id string, ch StatusChange) (a model.Appointment, err error) {
	ctx, span := m.tracer.Start(ctx, "appointments.UpdateStatus", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("appointment_id", id),
		attribute.String("status", string(ch.Status)),
	))
	defer func() { m.finish(span, "update_status", err) }()

	if !ch.Status.Valid() {
		return model.Appointment{}, fmt.Errorf("%w: %q", model.ErrInvalidStatus, ch.Status)
	}
	if ch.CancelledBy != "" && !model.ValidCancelledBy(ch.CancelledBy) {
		return model.Appointment{}, fmt.Errorf("%w: cancelledBy %q", model.ErrInvalidParameter, ch.CancelledBy)
	}

	err = m.lockAppointment(ctx, tenantID, id, "", func(ctx context.Context, cur model.Appointment) error {
		next := cur
		next.Status = ch.Status
		if ch.Status == model.StatusCancelled {
			if r := strings.TrimSpace(ch.Reason); r != "" {
				next.CancelledReason = r
			}
			if ch.CancelledBy != "" {
				next.CancelledBy = ch.CancelledBy
			}
		}
		stampCancellation(&next, cur.Status)
		next.UpdatedAt = m.now().UTC()
		if err := m.store.Update(ctx, next); err != nil {
			return err
		}
		a = next
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}

	switch ch.Status {
	case model.StatusCancelled:
		m.notifier.Notify(ctx, notify.NewNotice(notify.KindCancellation, a))
	case model.StatusConfirmed:
		m.notifier.Notify(ctx, notify.NewNotice(notify.KindConfirmation, a))
	}
	return a, nil
}

// Delete sends the cancellation notice and removes the appointment whatever its status.
func (m *Manager) Delete(ctx context.Context, tenantID, id string) (err error) {
	ctx, span := m.tracer.Start(ctx, "appointments.Delete", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("appointment_id", id),
	))
	defer func() { m.finish(span, "delete", err) }()

	var gone model.Appointment
	err = m.lockAppointment(ctx, tenantID, id, "", func(ctx context.Context, cur model.Appointment) error {
		if err := m.store.Delete(ctx, tenantID, id); err != nil {
			return err
		}
		gone = cur
		return nil
	})
	if err != nil {
		return err
	}
	m.notifier.Notify(ctx, notify.NewNotice(notify.KindCancellation, gone))
	return nil
}

// SendReminder marks a due appointment as reminded and queues the reminder notice.
// It reports false when the appointment is no longer due, e.g. because it was
// cancelled, moved or already reminded since it was listed.
func (m *Manager) SendReminder(ctx context.Context, tenantID, id string, lead time.Duration) (sent bool, err error) {
	ctx, span := m.tracer.Start(ctx, "appointments.SendReminder", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("appointment_id", id),
	))
	defer func() { m.finish(span, "send_reminder", err) }()

	var a model.Appointment
	err = m.lockAppointment(ctx, tenantID, id, "", func(ctx context.Context, cur model.Appointment) error {
		if !cur.ReminderDue(m.now(), lead) {
			return nil
		}
		cur.ReminderSent = true
		cur.UpdatedAt = m.now().UTC()
		if err := m.store.Update(ctx, cur); err != nil {
			return err
		}
		a, sent = cur, true
		return nil
	})
	if err != nil || !sent {
		return false, err
	}
	m.notifier.Notify(ctx, notify.NewNotice(notify.KindReminder, a))
	return true, nil
}

// CheckAvailability answers whether staffID is free over [start, end), ignoring excludeID.
func (m *Manager) CheckAvailability(ctx context.Context, tenantID, staffID string, start, end time.Time, excludeID string) (ok bool, err error) {
	ctx, span := m.tracer.Start(ctx, "appointments.CheckAvailability", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("staff_id", staffID),
	))
	defer func() { m.finish(span, "check_availability", err) }()

	ok, err = m.checker.IsAvailable(ctx, tenantID, staffID, start, end, excludeID)
	if err != nil {
		return false, err
	}
	m.metrics.ObserveCheck(ok)
	return ok, nil
}

func (m *Manager) ensureAvailable(ctx context.Context, a model.Appointment, excludeID string) error {
	ok, err := m.checker.IsAvailable(ctx, a.TenantID, a.StaffID, a.StartTime, a.EndTime, excludeID)
	if err != nil {
		return err
	}
	m.metrics.ObserveCheck(ok)
	if !ok {
		return model.ErrSlotUnavailable
	}
	return nil
}

// withStaffLock holds the booking lock of every listed staff member while fn runs.
// Keys are taken in sorted order so two movers between the same pair cannot deadlock.
func (m *Manager) withStaffLock(ctx context.Context, tenantID string, staffIDs []string, fn func(context.Context) error) error {
	keys := make([]string, 0, len(staffIDs))
	for _, id := range staffIDs {
		if id != "" {
			keys = append(keys, locking.Key(tenantID, id))
		}
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	start := time.Now()
	unlocks := make([]locking.Unlock, 0, len(keys))
	defer func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}()
	for _, key := range keys {
		unlock, err := m.locker.Lock(ctx, key)
		if err != nil {
			m.metrics.ObserveLockWait(m.strategy, time.Since(start))
			return fmt.Errorf("acquire booking lock: %w", err)
		}
		unlocks = append(unlocks, unlock)
	}
	m.metrics.ObserveLockWait(m.strategy, time.Since(start))
	return fn(ctx)
}

// lockAppointment runs fn on a fresh read of the appointment taken under the lock of
// its staff member, and of moveTo when the write reassigns it. The row is read again
// inside the lock so concurrent writers never overwrite each other with stale state.
func (m *Manager) lockAppointment(ctx context.Context, tenantID, id, moveTo string, fn func(context.Context, model.Appointment) error) error {
	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		peek, err := m.store.Get(ctx, tenantID, id)
		if err != nil {
			return err
		}
		moved := false
		err = m.withStaffLock(ctx, tenantID, []string{peek.StaffID, moveTo}, func(ctx context.Context) error {
			cur, err := m.store.Get(ctx, tenantID, id)
			if err != nil {
				return err
			}
			if cur.StaffID != peek.StaffID {
				moved = true
				return nil
			}
			return fn(ctx, cur)
		})
		if err != nil || !moved {
			return err
		}
	}
	return fmt.Errorf("%w: appointment %s kept changing staff", locking.ErrLockTimeout, id)
}

func (m *Manager) finish(span trace.Span, op string, err error) {
	m.metrics.ObserveOperation(op, err)
	if err != nil && metrics.Outcome(err) == "error" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// EndFor is start plus the service duration in minutes.
func EndFor(start time.Time, svc model.Service) time.Time {
	return start.Add(time.Duration(svc.DurationMinutes) * time.Minute)
}

// stampCancellation defaults the canceller on entry to cancelled and clears the
// cancellation fields when the appointment leaves it.
func stampCancellation(a *model.Appointment, prev model.Status) {
	switch {
	case a.Status == model.StatusCancelled && prev != model.StatusCancelled && a.CancelledBy == "":
		a.CancelledBy = model.CancelledByStaff
	case a.Status != model.StatusCancelled:
		a.CancelledReason, a.CancelledBy = "", ""
	}
}

func scheduleChanged(a, b model.Appointment) bool {
	return !a.StartTime.Equal(b.StartTime) || !a.EndTime.Equal(b.EndTime) ||
		a.StaffID != b.StaffID || a.ServiceID != b.ServiceID
}
