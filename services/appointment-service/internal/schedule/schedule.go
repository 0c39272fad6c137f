// Package schedule answers read-only calendar questions: day and week views,
// paged listings, staff occupancy and free slots.
package schedule

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200

	DefaultWorkdayStart = "09:00"
	DefaultWorkdayEnd   = "17:00"
	DefaultStepMinutes  = 15
)

type Store interface {
	List(ctx context.Context, f storage.Filter) ([]model.Appointment, int, error)
	availability.Source
}

type Directory interface {
	GetStaff(ctx context.Context, tenantID, id string) (model.Staff, error)
	GetService(ctx context.Context, tenantID, id string) (model.Service, error)
}

type Service struct {
	store  Store
	dir    Directory
	tracer trace.Tracer
	now    func() time.Time
}

func New(store Store, dir Directory) *Service {
	return &Service{
		store:  store,
		dir:    dir,
		tracer: otelx.Tracer("appointment-service/schedule"),
		now:    time.Now,
	}
}

// Daily returns every appointment starting on date (in loc), in any status, earliest first.
func (s *Service) Daily(ctx context.Context, tenantID, date, staffID string, loc *time.Location) ([]model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "schedule.Daily", trace.WithAttributes(attribute.String("tenant_id", tenantID)))
	defer span.End()

	if loc == nil {
		loc = time.UTC
	}
	if strings.TrimSpace(date) == "" {
		return nil, fmt.Errorf("%w: date is required", model.ErrMissingParameter)
	}
	day, err := ParseBound(date, loc, false)
	if err != nil {
		return nil, err
	}
	day = StartOfDay(day.In(loc))
	return s.window(ctx, tenantID, staffID, day, EndOfDay(day))
}

// Weekly returns every appointment starting within [startDate, endDate]. A date-only
// endDate covers that whole day.
func (s *Service) Weekly(ctx context.Context, tenantID, startDate, endDate, staffID string, loc *time.Location) ([]model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "schedule.Weekly", trace.WithAttributes(attribute.String("tenant_id", tenantID)))
	defer span.End()

	from, to, err := parseRange(startDate, endDate, loc)
	if err != nil {
		return nil, err
	}
	return s.window(ctx, tenantID, staffID, from, to)
}

func (s *Service) window(ctx context.Context, tenantID, staffID string, from, to time.Time) ([]model.Appointment, error) {
	items, _, err := s.store.List(ctx, storage.Filter{
		TenantID: tenantID,
		StaffID:  strings.TrimSpace(staffID),
		From:     from,
		To:       to,
		Sort:     storage.SortStartAsc,
	})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if items == nil {
		items = []model.Appointment{}
	}
	return items, nil
}

func parseRange(startDate, endDate string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if strings.TrimSpace(startDate) == "" || strings.TrimSpace(endDate) == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: startDate and endDate are required", model.ErrMissingParameter)
	}
	from, err := ParseBound(startDate, loc, false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := ParseBound(endDate, loc, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, model.ErrInvalidInterval
	}
	return from, to, nil
}

type Query struct {
	TenantID   string
	StaffID    string
	CustomerID string
	Status     model.Status
	From       time.Time
	To         time.Time
	Sort       string
	Page       int
	Limit      int
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type Page struct {
	Items      []model.Appointment `json:"data"`
	Count      int                 `json:"count"`
	Total      int                 `json:"total"`
	Pagination Pagination          `json:"pagination"`
}

func (s *Service) List(ctx context.Context, q Query) (Page, error) {
	ctx, span := s.tracer.Start(ctx, "schedule.List", trace.WithAttributes(attribute.String("tenant_id", q.TenantID)))
	defer span.End()

	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	switch q.Sort {
	case "":
		q.Sort = storage.SortStartDesc
	case storage.SortStartAsc, storage.SortStartDesc:
	default:
		return Page{}, fmt.Errorf("%w: sort %q", model.ErrInvalidParameter, q.Sort)
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return Page{}, model.ErrInvalidInterval
	}

	items, total, err := s.store.List(ctx, storage.Filter{
		TenantID:   q.TenantID,
		StaffID:    q.StaffID,
		CustomerID: q.CustomerID,
		Status:     q.Status,
		From:       q.From,
		To:         q.To,
		Sort:       q.Sort,
		Limit:      q.Limit,
		Offset:     (q.Page - 1) * q.Limit,
	})
	if err != nil {
		return Page{}, fmt.Errorf("list appointments: %w", err)
	}
	if items == nil {
		items = []model.Appointment{}
	}
	return Page{
		Items: items,
		Count: len(items),
		Total: total,
		Pagination: Pagination{
			Page:       q.Page,
			Limit:      q.Limit,
			TotalPages: int(math.Ceil(float64(total) / float64(q.Limit))),
		},
	}, nil
}

type Occupancy struct {
	StaffID                 string    `json:"staffId"`
	From                    time.Time `json:"startDate"`
	To                      time.Time `json:"endDate"`
	TotalAppointments       int       `json:"totalAppointments"`
	TotalAppointmentMinutes int       `json:"totalAppointmentMinutes"`
}

// Occupancy totals the slot-holding appointments of one staff member starting in the range.
func (s *Service) Occupancy(ctx context.Context, tenantID, staffID, startDate, endDate string, loc *time.Location) (Occupancy, error) {
	ctx, span := s.tracer.Start(ctx, "schedule.Occupancy", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("staff_id", staffID),
	))
	defer span.End()

	if strings.TrimSpace(staffID) == "" {
		return Occupancy{}, fmt.Errorf("%w: staffId is required", model.ErrMissingParameter)
	}
	from, to, err := parseRange(startDate, endDate, loc)
	if err != nil {
		return Occupancy{}, err
	}
	if _, err := s.dir.GetStaff(ctx, tenantID, staffID); err != nil {
		return Occupancy{}, err
	}

	items, err := s.window(ctx, tenantID, staffID, from, to)
	if err != nil {
		return Occupancy{}, err
	}
	out := Occupancy{StaffID: staffID, From: from, To: to}
	for _, a := range items {
		if a.Status.ConflictExempt() {
			continue
		}
		out.TotalAppointments++
		out.TotalAppointmentMinutes += int(a.Duration() / time.Minute)
	}
	return out, nil
}

type SlotQuery struct {
	TenantID     string
	StaffID      string
	ServiceID    string
	Date         string
	Location     *time.Location
	WorkdayStart string
	WorkdayEnd   string
	StepMinutes  int
}

// AvailableSlots lists the free intervals of the service's length inside the workday.
func (s *Service) AvailableSlots(ctx context.Context, q SlotQuery) ([]availability.Interval, error) {
	ctx, span := s.tracer.Start(ctx, "schedule.AvailableSlots", trace.WithAttributes(
		attribute.String("tenant_id", q.TenantID),
		attribute.String("staff_id", q.StaffID),
	))
	defer span.End()

	if q.StaffID == "" || q.ServiceID == "" || strings.TrimSpace(q.Date) == "" {
		return nil, fmt.Errorf("%w: staffId, serviceId and date are required", model.ErrMissingParameter)
	}
	loc := q.Location
	if loc == nil {
		loc = time.UTC
	}
	step := q.StepMinutes
	if step == 0 {
		step = DefaultStepMinutes
	}
	if step < 0 || step > 120 {
		return nil, fmt.Errorf("%w: stepMinutes %d", model.ErrInvalidParameter, step)
	}
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(q.Date), loc)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q", model.ErrInvalidParameter, q.Date)
	}
	sh, sm, err := parseClock(q.WorkdayStart, DefaultWorkdayStart)
	if err != nil {
		return nil, err
	}
	eh, em, err := parseClock(q.WorkdayEnd, DefaultWorkdayEnd)
	if err != nil {
		return nil, err
	}
	windowStart := time.Date(day.Year(), day.Month(), day.Day(), sh, sm, 0, 0, loc)
	windowEnd := time.Date(day.Year(), day.Month(), day.Day(), eh, em, 0, 0, loc)
	if !windowEnd.After(windowStart) {
		return nil, model.ErrInvalidInterval
	}

	if _, err := s.dir.GetStaff(ctx, q.TenantID, q.StaffID); err != nil {
		return nil, err
	}
	svc, err := s.dir.GetService(ctx, q.TenantID, q.ServiceID)
	if err != nil {
		return nil, err
	}
	duration := time.Duration(svc.DurationMinutes) * time.Minute

	booked, err := s.store.ListStaffAppointments(ctx, q.TenantID, q.StaffID, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("list staff appointments: %w", err)
	}
	starts := availability.AvailableSlots(windowStart, windowEnd, duration, time.Duration(step)*time.Minute,
		availability.BusyIntervals(booked), s.now())

	out := make([]availability.Interval, 0, len(starts))
	for _, t := range starts {
		out = append(out, availability.Interval{Start: t, End: t.Add(duration)})
	}
	return out, nil
}
