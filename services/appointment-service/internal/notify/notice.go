// Package notify tells the outside world about appointment transitions.
// Delivery is best-effort: failures are logged and counted, never returned to the booking path.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
)

type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindUpdate       Kind = "update"
	KindCancellation Kind = "cancellation"
	KindReminder     Kind = "reminder"
)

type Notice struct {
	Kind        Kind
	Appointment model.Appointment
	OccurredAt  time.Time
}

func NewNotice(kind Kind, a model.Appointment) Notice {
	return Notice{Kind: kind, Appointment: a, OccurredAt: time.Now().UTC()}
}

// Dispatcher delivers a notice to one channel.
type Dispatcher interface {
	Name() string
	Dispatch(ctx context.Context, n Notice) error
}

// Notifier is what the lifecycle manager talks to. It must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Notify(context.Context, Notice) {}

// Multi fans a notice out to every dispatcher and joins the failures.
type Multi []Dispatcher

func (m Multi) Name() string { return "multi" }

func (m Multi) Dispatch(ctx context.Context, n Notice) error {
	var errs []error
	for _, d := range m {
		if err := d.Dispatch(ctx, n); err != nil {
			errs = append(errs, &DeliveryError{Target: d.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}

// DeliveryError records which target failed.
type DeliveryError struct {
	Target string
	Err    error
}

func (e *DeliveryError) Error() string { return e.Target + ": " + e.Err.Error() }
func (e *DeliveryError) Unwrap() error { return e.Err }
