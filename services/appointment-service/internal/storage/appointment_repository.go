package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
)

type AppointmentRepository struct {
	db DBTX
}

func NewAppointmentRepository(db DBTX) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const appointmentColumns = `id, tenant_id, customer_id, staff_id, service_id, start_time, end_time, status, notes,
	reminder_time, reminder_sent, cancelled_reason, cancelled_by, created_at, updated_at`

func (r *AppointmentRepository) Create(ctx context.Context, a model.Appointment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, a.ID, a.TenantID, a.CustomerID, a.StaffID, a.ServiceID, a.StartTime, a.EndTime, string(a.Status), a.Notes,
		a.ReminderTime, a.ReminderSent, a.CancelledReason, a.CancelledBy, a.CreatedAt, a.UpdatedAt)
	return mapWriteError(err)
}

func (r *AppointmentRepository) Update(ctx context.Context, a model.Appointment) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET customer_id = $3,
			staff_id = $4,
			service_id = $5,
			start_time = $6,
			end_time = $7,
			status = $8,
			notes = $9,
			reminder_time = $10,
			reminder_sent = $11,
			cancelled_reason = $12,
			cancelled_by = $13,
			updated_at = $14
		WHERE id = $1 AND tenant_id = $2
	`, a.ID, a.TenantID, a.CustomerID, a.StaffID, a.ServiceID, a.StartTime, a.EndTime, string(a.Status), a.Notes,
		a.ReminderTime, a.ReminderSent, a.CancelledReason, a.CancelledBy, a.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound("appointment", a.ID)
	}
	return nil
}

func (r *AppointmentRepository) Get(ctx context.Context, tenantID, id string) (model.Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	a, err := scanAppointment(row)
	if err != nil {
		if IsNotFound(err) {
			return model.Appointment{}, model.NotFound("appointment", id)
		}
		return model.Appointment{}, err
	}
	return a, nil
}

func (r *AppointmentRepository) Delete(ctx context.Context, tenantID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound("appointment", id)
	}
	return nil
}

// ListStaffAppointments returns every appointment of the staff member intersecting [from, to), any status.
func (r *AppointmentRepository) ListStaffAppointments(ctx context.Context, tenantID, staffID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1 AND staff_id = $2 AND start_time < $4 AND end_time > $3
		ORDER BY start_time
	`, tenantID, staffID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// DueReminders returns live appointments across all tenants whose reminder is due at now:
// either ReminderTime has passed or, without one, the start falls within lead.
func (r *AppointmentRepository) DueReminders(ctx context.Context, now time.Time, lead time.Duration, limit int) ([]model.Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE reminder_sent = false
			AND status IN ('scheduled', 'confirmed')
			AND start_time > $1
			AND ((reminder_time IS NULL AND start_time <= $2) OR reminder_time <= $1)
		ORDER BY start_time
		LIMIT $3
	`, now, now.Add(lead), limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// List returns one page of matching appointments plus the total match count.
func (r *AppointmentRepository) List(ctx context.Context, f Filter) ([]model.Appointment, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM appointments WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "DESC"
	if !f.descending() {
		order = "ASC"
	}
	q := `SELECT ` + appointmentColumns + ` FROM appointments WHERE ` + where + ` ORDER BY start_time ` + order + `, id`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		q += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectAppointments(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func buildWhere(f Filter) (string, []any) {
	clauses := []string{"tenant_id = $1"}
	args := []any{f.TenantID}
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.StaffID != "" {
		add("staff_id = $%d", f.StaffID)
	}
	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if !f.From.IsZero() {
		add("start_time >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("start_time <= $%d", f.To)
	}
	return strings.Join(clauses, " AND "), args
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	var status string
	var reminderAt pgtype.Timestamptz
	if err := row.Scan(&a.ID, &a.TenantID, &a.CustomerID, &a.StaffID, &a.ServiceID,
		&a.StartTime, &a.EndTime, &status, &a.Notes,
		&reminderAt, &a.ReminderSent, &a.CancelledReason, &a.CancelledBy,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	if reminderAt.Valid {
		at := reminderAt.Time.UTC()
		a.ReminderTime = &at
	}
	a.StartTime = a.StartTime.UTC()
	a.EndTime = a.EndTime.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func mapWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case IsConflict(err):
		return fmt.Errorf("%w: %v", model.ErrSlotUnavailable, err)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: %v", model.NotFound("reference", ""), err)
	}
	return err
}
