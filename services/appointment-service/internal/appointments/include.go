package appointments

import (
	"context"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Include selects which references Get joins onto the appointment.
type Include struct {
	Customer bool
	Staff    bool
	Service  bool
}

// ParseInclude reads a comma separated list such as "customer,staff,service".
func ParseInclude(raw string) (Include, error) {
	var inc Include
	for _, part := range strings.Split(raw, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "":
		case "customer":
			inc.Customer = true
		case "staff":
			inc.Staff = true
		case "service":
			inc.Service = true
		case "all":
			inc = Include{Customer: true, Staff: true, Service: true}
		default:
			return Include{}, fmt.Errorf("%w: include %q", model.ErrInvalidParameter, part)
		}
	}
	return inc, nil
}

func (m *Manager) Get(ctx context.Context, tenantID, id string, inc Include) (d model.AppointmentDetails, err error) {
	ctx, span := m.tracer.Start(ctx, "appointments.Get", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("appointment_id", id),
	))
	defer func() { m.finish(span, "get", err) }()

	a, err := m.store.Get(ctx, tenantID, id)
	if err != nil {
		return model.AppointmentDetails{}, err
	}
	d.Appointment = a
	if inc.Customer {
		c, err := m.dir.GetCustomer(ctx, tenantID, a.CustomerID)
		if err != nil {
			return model.AppointmentDetails{}, err
		}
		d.Customer = &c
	}
	if inc.Staff {
		s, err := m.dir.GetStaff(ctx, tenantID, a.StaffID)
		if err != nil {
			return model.AppointmentDetails{}, err
		}
		d.Staff = &s
	}
	if inc.Service {
		svc, err := m.dir.GetService(ctx, tenantID, a.ServiceID)
		if err != nil {
			return model.AppointmentDetails{}, err
		}
		d.Service = &svc
	}
	return d, nil
}
