package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
	"github.com/pashagolub/pgxmock/v4"
)

var apptCols = []string{"id", "tenant_id", "customer_id", "staff_id", "service_id", "start_time", "end_time", "status", "notes",
	"reminder_time", "reminder_sent", "cancelled_reason", "cancelled_by", "created_at", "updated_at"}

func sampleAppointment() model.Appointment {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	return model.Appointment{
		ID: "a1", TenantID: "t1", CustomerID: "c1", StaffID: "s1", ServiceID: "svc1",
		StartTime: start, EndTime: start.Add(30 * time.Minute), Status: model.StatusScheduled,
		CreatedAt: start.Add(-time.Hour), UpdatedAt: start.Add(-time.Hour),
	}
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestCreateMapsExclusionViolation(t *testing.T) {
	mock := newMock(t)
	a := sampleAppointment()
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(a.ID, a.TenantID, a.CustomerID, a.StaffID, a.ServiceID, a.StartTime, a.EndTime, "scheduled", "",
			a.ReminderTime, false, "", "", a.CreatedAt, a.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23P01", Message: "conflicting key value violates exclusion constraint"})

	err := NewAppointmentRepository(mock).Create(context.Background(), a)
	if !errors.Is(err, model.ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateMapsForeignKeyViolation(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("INSERT INTO appointments").WillReturnError(&pgconn.PgError{Code: "23503"})

	err := NewAppointmentRepository(mock).Create(context.Background(), sampleAppointment())
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM appointments WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs("missing", "t1").
		WillReturnError(pgx.ErrNoRows)

	_, err := NewAppointmentRepository(mock).Get(context.Background(), "t1", "missing")
	var nf *model.NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "appointment" {
		t.Fatalf("expected appointment NotFoundError, got %v", err)
	}
}

func TestGetScansRow(t *testing.T) {
	mock := newMock(t)
	a := sampleAppointment()
	mock.ExpectQuery(`FROM appointments WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs("a1", "t1").
		WillReturnRows(pgxmock.NewRows(apptCols).AddRow(
			a.ID, a.TenantID, a.CustomerID, a.StaffID, a.ServiceID, a.StartTime, a.EndTime, "confirmed", "bring x-rays", nil, false, "", "", a.CreatedAt, a.UpdatedAt,
		))

	got, err := NewAppointmentRepository(mock).Get(context.Background(), "t1", "a1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.StatusConfirmed || got.Notes != "bring x-rays" || !got.StartTime.Equal(a.StartTime) || got.ReminderTime != nil {
		t.Fatalf("unexpected appointment %+v", got)
	}
}

func TestUpdateAndDeleteReportMissingRows(t *testing.T) {
	mock := newMock(t)
	a := sampleAppointment()
	mock.ExpectExec("UPDATE appointments").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("DELETE FROM appointments").WithArgs("a1", "t1").WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := NewAppointmentRepository(mock)
	if err := repo.Update(context.Background(), a); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("update: expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(context.Background(), "t1", "a1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("delete: expected ErrNotFound, got %v", err)
	}
}

func TestListStaffAppointmentsWindow(t *testing.T) {
	mock := newMock(t)
	a := sampleAppointment()
	from, to := a.StartTime.Add(-time.Hour), a.EndTime.Add(time.Hour)
	mock.ExpectQuery(`staff_id = \$2 AND start_time < \$4 AND end_time > \$3`).
		WithArgs("t1", "s1", from, to).
		WillReturnRows(pgxmock.NewRows(apptCols).AddRow(
			a.ID, a.TenantID, a.CustomerID, a.StaffID, a.ServiceID, a.StartTime, a.EndTime, "cancelled", "", nil, false, "changed plans", "customer", a.CreatedAt, a.UpdatedAt,
		))

	got, err := NewAppointmentRepository(mock).ListStaffAppointments(context.Background(), "t1", "s1", from, to)
	if err != nil {
		t.Fatalf("ListStaffAppointments: %v", err)
	}
	if len(got) != 1 || got[0].Status != model.StatusCancelled || got[0].CancelledBy != model.CancelledByCustomer {
		t.Fatalf("expected the cancelled appointment to be returned, got %+v", got)
	}
}

func TestListBuildsFilterAndPage(t *testing.T) {
	mock := newMock(t)
	a := sampleAppointment()
	f := Filter{TenantID: "t1", StaffID: "s1", Status: model.StatusScheduled, Limit: 10, Offset: 20}

	mock.ExpectQuery(`SELECT count\(\*\) FROM appointments WHERE tenant_id = \$1 AND staff_id = \$2 AND status = \$3`).
		WithArgs("t1", "s1", "scheduled").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery(`ORDER BY start_time DESC, id LIMIT \$4 OFFSET \$5`).
		WithArgs("t1", "s1", "scheduled", 10, 20).
		WillReturnRows(pgxmock.NewRows(apptCols).AddRow(
			a.ID, a.TenantID, a.CustomerID, a.StaffID, a.ServiceID, a.StartTime, a.EndTime, "scheduled", "", nil, false, "", "", a.CreatedAt, a.UpdatedAt,
		))

	items, total, err := NewAppointmentRepository(mock).List(context.Background(), f)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 21 || len(items) != 1 {
		t.Fatalf("expected total=21 items=1, got total=%d items=%d", total, len(items))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDirectoryRepository(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM services").
		WithArgs("svc1", "t1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "name", "duration_minutes", "price"}).
			AddRow("svc1", "t1", "Haircut", 30, 25.0))
	mock.ExpectQuery("FROM staff").
		WithArgs("s9", "t1").
		WillReturnError(pgx.ErrNoRows)

	repo := NewDirectoryRepository(mock)
	svc, err := repo.GetService(context.Background(), "t1", "svc1")
	if err != nil || svc.DurationMinutes != 30 {
		t.Fatalf("GetService: %+v (%v)", svc, err)
	}
	_, err = repo.GetStaff(context.Background(), "t1", "s9")
	var nf *model.NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "staff" {
		t.Fatalf("expected staff NotFoundError, got %v", err)
	}
}

func TestApplySeedUpserts(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("INSERT INTO customers").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO staff").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO services").WillReturnResult(pgxmock.NewResult("INSERT", 1))

	seed := Seed{
		Customers: []model.Customer{{ID: "c1", TenantID: "t1", FirstName: "Ada"}},
		Staff:     []model.Staff{{ID: "s1", TenantID: "t1", Name: "Grace"}},
		Services:  []model.Service{{ID: "svc1", TenantID: "t1", Name: "Cut", DurationMinutes: 30}},
	}
	if err := NewDirectoryRepository(mock).ApplySeed(context.Background(), seed); err != nil {
		t.Fatalf("ApplySeed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDueRemindersQuery(t *testing.T) {
	mock := newMock(t)
	a := sampleAppointment()
	now := a.StartTime.Add(-20 * time.Hour)
	remindAt := pgtype.Timestamptz{Time: now.Add(-time.Minute), Valid: true}
	mock.ExpectQuery(`reminder_sent = false(.|\n)*status IN \('scheduled', 'confirmed'\)(.|\n)*LIMIT \$3`).
		WithArgs(now, now.Add(24*time.Hour), 50).
		WillReturnRows(pgxmock.NewRows(apptCols).AddRow(
			a.ID, a.TenantID, a.CustomerID, a.StaffID, a.ServiceID, a.StartTime, a.EndTime, "confirmed", "", remindAt, false, "", "", a.CreatedAt, a.UpdatedAt,
		))

	got, err := NewAppointmentRepository(mock).DueReminders(context.Background(), now, 24*time.Hour, 50)
	if err != nil {
		t.Fatalf("DueReminders: %v", err)
	}
	if len(got) != 1 || got[0].ReminderTime == nil || !got[0].ReminderTime.Equal(remindAt.Time) {
		t.Fatalf("expected one due reminder with its reminder time, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetCustomerReadsSMSConsent(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM customers").
		WithArgs("c1", "t1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "first_name", "last_name", "email", "phone", "sms_consent"}).
			AddRow("c1", "t1", "Ada", "Lovelace", "ada@example.com", "+15550100", true))

	c, err := NewDirectoryRepository(mock).GetCustomer(context.Background(), "t1", "c1")
	if err != nil || !c.SMSConsent {
		t.Fatalf("expected consenting customer, got %+v (%v)", c, err)
	}
}
