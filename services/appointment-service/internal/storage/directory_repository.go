package storage

import (
	"context"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
)

// DirectoryRepository reads the customers, staff and services appointments refer to.
type DirectoryRepository struct {
	db DBTX
}

func NewDirectoryRepository(db DBTX) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) GetCustomer(ctx context.Context, tenantID, id string) (model.Customer, error) {
	var c model.Customer
	err := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, first_name, last_name, email, phone, sms_consent
		FROM customers
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&c.ID, &c.TenantID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.SMSConsent)
	if err != nil {
		if IsNotFound(err) {
			return model.Customer{}, model.NotFound("customer", id)
		}
		return model.Customer{}, err
	}
	return c, nil
}

func (r *DirectoryRepository) GetStaff(ctx context.Context, tenantID, id string) (model.Staff, error) {
	var s model.Staff
	err := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, name, title
		FROM staff
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&s.ID, &s.TenantID, &s.Name, &s.Title)
	if err != nil {
		if IsNotFound(err) {
			return model.Staff{}, model.NotFound("staff", id)
		}
		return model.Staff{}, err
	}
	return s, nil
}

func (r *DirectoryRepository) GetService(ctx context.Context, tenantID, id string) (model.Service, error) {
	var s model.Service
	err := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, name, duration_minutes, price::float8
		FROM services
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&s.ID, &s.TenantID, &s.Name, &s.DurationMinutes, &s.Price)
	if err != nil {
		if IsNotFound(err) {
			return model.Service{}, model.NotFound("service", id)
		}
		return model.Service{}, err
	}
	return s, nil
}

// ApplySeed upserts every seeded record.
func (r *DirectoryRepository) ApplySeed(ctx context.Context, seed Seed) error {
	for _, c := range seed.Customers {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO customers (id, tenant_id, first_name, last_name, email, phone, sms_consent)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE
			SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
				email = EXCLUDED.email, phone = EXCLUDED.phone, sms_consent = EXCLUDED.sms_consent
		`, c.ID, c.TenantID, c.FirstName, c.LastName, c.Email, c.Phone, c.SMSConsent); err != nil {
			return err
		}
	}
	for _, s := range seed.Staff {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO staff (id, tenant_id, name, title)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, title = EXCLUDED.title
		`, s.ID, s.TenantID, s.Name, s.Title); err != nil {
			return err
		}
	}
	for _, s := range seed.Services {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO services (id, tenant_id, name, duration_minutes, price)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, duration_minutes = EXCLUDED.duration_minutes, price = EXCLUDED.price
		`, s.ID, s.TenantID, s.Name, s.DurationMinutes, s.Price); err != nil {
			return err
		}
	}
	return nil
}
