package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/notify/email"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/notify/sms"
)

// Directory resolves the people and service named by an appointment.
type Directory interface {
	GetCustomer(ctx context.Context, tenantID, id string) (model.Customer, error)
	GetStaff(ctx context.Context, tenantID, id string) (model.Staff, error)
	GetService(ctx context.Context, tenantID, id string) (model.Service, error)
}

// Messenger renders a notice and sends it to the customer by email, and by SMS
// when the customer has opted in to text messages.
type Messenger struct {
	dir       Directory
	templates *Templates
	email     email.Sender
	sms       sms.Sender
}

func NewMessenger(dir Directory, templates *Templates, emailSender email.Sender, smsSender sms.Sender) *Messenger {
	if emailSender == nil {
		emailSender = email.NoopSender{}
	}
	if smsSender == nil {
		smsSender = sms.NoopSender{}
	}
	return &Messenger{dir: dir, templates: templates, email: emailSender, sms: smsSender}
}

func (m *Messenger) Name() string {
	return "messenger(" + m.email.ProviderID() + "," + m.sms.ProviderID() + ")"
}

func (m *Messenger) Dispatch(ctx context.Context, n Notice) error {
	a := n.Appointment
	customer, err := m.dir.GetCustomer(ctx, a.TenantID, a.CustomerID)
	if err != nil {
		return fmt.Errorf("resolve customer: %w", err)
	}
	data := TemplateData{
		Kind:         n.Kind,
		CustomerName: customer.FullName(),
		Start:        a.StartTime,
		End:          a.EndTime,
		Status:       string(a.Status),
		Notes:        a.Notes,
	}
	if n.Kind == KindCancellation {
		data.CancelReason = a.CancelledReason
	}
	// Staff and service names are cosmetic; fall back to blanks rather than dropping the notice.
	if st, err := m.dir.GetStaff(ctx, a.TenantID, a.StaffID); err == nil {
		data.StaffName = st.Name
	}
	if svc, err := m.dir.GetService(ctx, a.TenantID, a.ServiceID); err == nil {
		data.ServiceName = svc.Name
	}

	msg, err := m.templates.Render(n.Kind, data)
	if err != nil {
		return err
	}

	var errs []error
	if customer.Email != "" {
		if err := m.email.Send(ctx, email.Message{To: customer.Email, ToName: data.CustomerName, Subject: msg.Subject, Body: msg.Email}); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}
	if customer.Phone != "" && customer.SMSConsent {
		if err := m.sms.Send(ctx, customer.Phone, msg.SMS); err != nil {
			errs = append(errs, fmt.Errorf("sms: %w", err))
		}
	}
	return errors.Join(errs...)
}
