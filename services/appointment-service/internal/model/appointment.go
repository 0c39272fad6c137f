package model

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no-show"
)

var statuses = []Status{StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow}

func Statuses() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses)
	return out
}

func (s Status) Valid() bool {
	for _, v := range statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ConflictExempt reports whether appointments in this status free their slot.
func (s Status) ConflictExempt() bool {
	return s == StatusCancelled || s == StatusNoShow
}

// ParseStatus normalizes raw input; empty input yields "" with no error.
func ParseStatus(raw string) (Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	s := Status(strings.ToLower(raw))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// Who cancelled an appointment.
const (
	CancelledByCustomer = "customer"
	CancelledByStaff    = "staff"
	CancelledBySystem   = "system"
)

func ValidCancelledBy(v string) bool {
	switch v {
	case CancelledByCustomer, CancelledByStaff, CancelledBySystem:
		return true
	}
	return false
}

type Appointment struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	CustomerID string    `json:"customerId"`
	StaffID    string    `json:"staffId"`
	ServiceID  string    `json:"serviceId"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	Status     Status    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	// ReminderTime overrides the default lead when set.
	ReminderTime    *time.Time `json:"reminderTime,omitempty"`
	ReminderSent    bool       `json:"reminderSent"`
	CancelledReason string     `json:"cancelledReason,omitempty"`
	CancelledBy     string     `json:"cancelledBy,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Validate checks the invariants that must hold before an appointment is persisted.
func (a Appointment) Validate() error {
	if a.TenantID == "" || a.StaffID == "" || a.CustomerID == "" || a.ServiceID == "" {
		return fmt.Errorf("%w: tenant, customer, staff and service are required", ErrMissingParameter)
	}
	if a.StartTime.IsZero() || a.EndTime.IsZero() {
		return fmt.Errorf("%w: start and end time are required", ErrMissingParameter)
	}
	if !a.StartTime.Before(a.EndTime) {
		return ErrInvalidInterval
	}
	if !a.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, a.Status)
	}
	if a.CancelledBy != "" && !ValidCancelledBy(a.CancelledBy) {
		return fmt.Errorf("%w: cancelledBy %q", ErrInvalidParameter, a.CancelledBy)
	}
	return nil
}

// ReminderDue reports whether a reminder should go out at now. Only live, unsent,
// future appointments qualify; the send time is ReminderTime or start minus lead.
func (a Appointment) ReminderDue(now time.Time, lead time.Duration) bool {
	if a.ReminderSent || (a.Status != StatusScheduled && a.Status != StatusConfirmed) {
		return false
	}
	if !a.StartTime.After(now) {
		return false
	}
	at := a.StartTime.Add(-lead)
	if a.ReminderTime != nil {
		at = *a.ReminderTime
	}
	return !now.Before(at)
}

// Duration is the length of the booked interval.
func (a Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}
