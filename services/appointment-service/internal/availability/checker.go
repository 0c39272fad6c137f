package availability

import (
	"context"
	"fmt"
	"time"

	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Slot is a proposed booking for one staff member. ExcludeID skips the
// appointment being edited so it never conflicts with itself.
type Slot struct {
	StaffID   string
	Start     time.Time
	End       time.Time
	ExcludeID string
}

func (s Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// Conflicts returns the appointments in existing that block slot.
func Conflicts(slot Slot, existing []model.Appointment) []model.Appointment {
	var out []model.Appointment
	want := slot.Interval()
	for _, a := range existing {
		if a.StaffID != slot.StaffID || a.Status.ConflictExempt() {
			continue
		}
		if slot.ExcludeID != "" && a.ID == slot.ExcludeID {
			continue
		}
		if Overlaps(want, Interval{Start: a.StartTime, End: a.EndTime}) {
			out = append(out, a)
		}
	}
	return out
}

// Available is true iff no appointment in existing blocks slot.
func Available(slot Slot, existing []model.Appointment) bool {
	return len(Conflicts(slot, existing)) == 0
}

// Source lists a staff member's appointments that intersect [from, to), in any status.
type Source interface {
	ListStaffAppointments(ctx context.Context, tenantID, staffID string, from, to time.Time) ([]model.Appointment, error)
}

type Checker struct {
	src    Source
	tracer trace.Tracer
}

func NewChecker(src Source) *Checker {
	return &Checker{src: src, tracer: otelx.Tracer("appointment-service/availability")}
}

func (c *Checker) IsAvailable(ctx context.Context, tenantID, staffID string, start, end time.Time, excludeID string) (bool, error) {
	conflicts, err := c.Conflicts(ctx, tenantID, Slot{StaffID: staffID, Start: start, End: end, ExcludeID: excludeID})
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// Conflicts validates slot and returns the stored appointments blocking it.
func (c *Checker) Conflicts(ctx context.Context, tenantID string, slot Slot) (out []model.Appointment, err error) {
	ctx, span := c.tracer.Start(ctx, "availability.Conflicts", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("staff_id", slot.StaffID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("conflicts", len(out)))
		}
		span.End()
	}()

	if tenantID == "" || slot.StaffID == "" || slot.Start.IsZero() || slot.End.IsZero() {
		return nil, fmt.Errorf("%w: staffId, startTime and endTime are required", model.ErrMissingParameter)
	}
	if !slot.Start.Before(slot.End) {
		return nil, model.ErrInvalidInterval
	}
	existing, err := c.src.ListStaffAppointments(ctx, tenantID, slot.StaffID, slot.Start, slot.End)
	if err != nil {
		return nil, fmt.Errorf("list staff appointments: %w", err)
	}
	return Conflicts(slot, existing), nil
}
