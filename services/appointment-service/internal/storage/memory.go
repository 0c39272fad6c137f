package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
)

// MemoryStore keeps appointments in process. It enforces no overlap rule of its own,
// so concurrent bookings are only as safe as the configured lock strategy.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]model.Appointment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]model.Appointment{}}
}

func (s *MemoryStore) Create(_ context.Context, a model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[a.ID] = a
	return nil
}

func (s *MemoryStore) Update(_ context.Context, a model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[a.ID]
	if !ok || cur.TenantID != a.TenantID {
		return model.NotFound("appointment", a.ID)
	}
	a.CreatedAt = cur.CreatedAt
	s.items[a.ID] = a
	return nil
}

func (s *MemoryStore) Get(_ context.Context, tenantID, id string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.items[id]
	if !ok || a.TenantID != tenantID {
		return model.Appointment{}, model.NotFound("appointment", id)
	}
	return a, nil
}

func (s *MemoryStore) Delete(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if !ok || a.TenantID != tenantID {
		return model.NotFound("appointment", id)
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) ListStaffAppointments(_ context.Context, tenantID, staffID string, from, to time.Time) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Appointment
	for _, a := range s.items {
		if a.TenantID == tenantID && a.StaffID == staffID && a.StartTime.Before(to) && a.EndTime.After(from) {
			out = append(out, a)
		}
	}
	sortByStart(out, false)
	return out, nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]model.Appointment, int, error) {
	s.mu.RLock()
	var matched []model.Appointment
	for _, a := range s.items {
		if f.matches(a) {
			matched = append(matched, a)
		}
	}
	s.mu.RUnlock()

	sortByStart(matched, f.descending())
	total := len(matched)
	if f.Limit > 0 {
		if f.Offset >= total {
			return nil, total, nil
		}
		end := f.Offset + f.Limit
		if end > total {
			end = total
		}
		matched = matched[f.Offset:end]
	}
	return matched, total, nil
}

// DueReminders mirrors the Postgres query: earliest start first, at most limit.
func (s *MemoryStore) DueReminders(_ context.Context, now time.Time, lead time.Duration, limit int) ([]model.Appointment, error) {
	s.mu.RLock()
	var out []model.Appointment
	for _, a := range s.items {
		if a.ReminderDue(now, lead) {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sortByStart(out, false)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func sortByStart(items []model.Appointment, desc bool) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.StartTime.Equal(b.StartTime) {
			if desc {
				return a.StartTime.After(b.StartTime)
			}
			return a.StartTime.Before(b.StartTime)
		}
		return a.ID < b.ID
	})
}

// MemoryDirectory serves customers, staff and services from a seed document.
type MemoryDirectory struct {
	mu        sync.RWMutex
	customers map[string]model.Customer
	staff     map[string]model.Staff
	services  map[string]model.Service
}

func NewMemoryDirectory(seed Seed) *MemoryDirectory {
	d := &MemoryDirectory{
		customers: map[string]model.Customer{},
		staff:     map[string]model.Staff{},
		services:  map[string]model.Service{},
	}
	_ = d.ApplySeed(context.Background(), seed)
	return d
}

func (d *MemoryDirectory) ApplySeed(_ context.Context, seed Seed) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range seed.Customers {
		d.customers[c.ID] = c
	}
	for _, s := range seed.Staff {
		d.staff[s.ID] = s
	}
	for _, s := range seed.Services {
		d.services[s.ID] = s
	}
	return nil
}

func (d *MemoryDirectory) GetCustomer(_ context.Context, tenantID, id string) (model.Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.customers[id]
	if !ok || c.TenantID != tenantID {
		return model.Customer{}, model.NotFound("customer", id)
	}
	return c, nil
}

func (d *MemoryDirectory) GetStaff(_ context.Context, tenantID, id string) (model.Staff, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.staff[id]
	if !ok || s.TenantID != tenantID {
		return model.Staff{}, model.NotFound("staff", id)
	}
	return s, nil
}

func (d *MemoryDirectory) GetService(_ context.Context, tenantID, id string) (model.Service, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.services[id]
	if !ok || s.TenantID != tenantID {
		return model.Service{}, model.NotFound("service", id)
	}
	return s, nil
}
