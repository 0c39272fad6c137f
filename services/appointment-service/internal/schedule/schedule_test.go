package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/storage"
)

const tenant = "t1"

func seeded(t *testing.T) (*Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	dir := storage.NewMemoryDirectory(storage.Seed{
		Staff:    []model.Staff{{ID: "s1", TenantID: tenant, Name: "Grace"}, {ID: "s2", TenantID: tenant, Name: "Edsger"}},
		Services: []model.Service{{ID: "cut", TenantID: tenant, Name: "Haircut", DurationMinutes: 30}},
	})
	add := func(id, staff string, start time.Time, minutes int, status model.Status) {
		err := store.Create(context.Background(), model.Appointment{
			ID: id, TenantID: tenant, CustomerID: "c1", StaffID: staff, ServiceID: "cut",
			StartTime: start, EndTime: start.Add(time.Duration(minutes) * time.Minute), Status: status,
		})
		if err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	add("a1", "s1", time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC), 30, model.StatusScheduled)
	add("a2", "s1", time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC), 60, model.StatusCancelled)
	add("a3", "s2", time.Date(2030, 3, 4, 23, 30, 0, 0, time.UTC), 30, model.StatusConfirmed)
	add("a4", "s1", time.Date(2030, 3, 6, 14, 0, 0, 0, time.UTC), 45, model.StatusCompleted)
	add("a5", "s1", time.Date(2030, 3, 6, 15, 0, 0, 0, time.UTC), 30, model.StatusNoShow)
	add("a6", "s1", time.Date(2030, 3, 11, 8, 0, 0, 0, time.UTC), 30, model.StatusScheduled)
	_ = store.Create(context.Background(), model.Appointment{
		ID: "other", TenantID: "t2", StaffID: "s1", StartTime: time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC),
		EndTime: time.Date(2030, 3, 4, 11, 0, 0, 0, time.UTC), Status: model.StatusScheduled,
	})

	svc := New(store, dir)
	svc.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	return svc, store
}

func ids(items []model.Appointment) []string {
	out := make([]string, 0, len(items))
	for _, a := range items {
		out = append(out, a.ID)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDailyIncludesAllStatusesSortedAscending(t *testing.T) {
	svc, _ := seeded(t)
	got, err := svc.Daily(context.Background(), tenant, "2030-03-04", "", time.UTC)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if want := []string{"a2", "a1", "a3"}; !equal(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}

	got, err = svc.Daily(context.Background(), tenant, "2030-03-04", "s1", time.UTC)
	if err != nil {
		t.Fatalf("daily staff: %v", err)
	}
	if want := []string{"a2", "a1"}; !equal(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
}

func TestDailyHonoursTimezone(t *testing.T) {
	svc, _ := seeded(t)
	loc := time.FixedZone("UTC+2", 2*60*60)
	got, err := svc.Daily(context.Background(), tenant, "2030-03-05", "", loc)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if want := []string{"a3"}; !equal(ids(got), want) {
		t.Fatalf("expected 23:30 UTC to fall on the next local day, got %v", ids(got))
	}
}

func TestDailyValidation(t *testing.T) {
	svc, _ := seeded(t)
	if _, err := svc.Daily(context.Background(), tenant, "", "", nil); !errors.Is(err, model.ErrMissingParameter) {
		t.Fatalf("expected missing parameter, got %v", err)
	}
	if _, err := svc.Daily(context.Background(), tenant, "04/03/2030", "", nil); !errors.Is(err, model.ErrInvalidParameter) {
		t.Fatalf("expected invalid parameter, got %v", err)
	}
	got, err := svc.Daily(context.Background(), tenant, "2031-01-01", "", nil)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %v %v", got, err)
	}
}

func TestWeeklyEndDateCoversWholeDay(t *testing.T) {
	svc, _ := seeded(t)
	got, err := svc.Weekly(context.Background(), tenant, "2030-03-04", "2030-03-06", "s1", time.UTC)
	if err != nil {
		t.Fatalf("weekly: %v", err)
	}
	if want := []string{"a2", "a1", "a4", "a5"}; !equal(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}

	got, err = svc.Weekly(context.Background(), tenant, "2030-03-04T10:00:00Z", "2030-03-06T14:00:00Z", "", time.UTC)
	if err != nil {
		t.Fatalf("weekly timestamps: %v", err)
	}
	if want := []string{"a1", "a3", "a4"}; !equal(ids(got), want) {
		t.Fatalf("expected inclusive bounds %v, got %v", want, ids(got))
	}

	if _, err := svc.Weekly(context.Background(), tenant, "2030-03-06", "2030-03-04", "", time.UTC); !errors.Is(err, model.ErrInvalidInterval) {
		t.Fatalf("expected invalid interval, got %v", err)
	}
	if _, err := svc.Weekly(context.Background(), tenant, "2030-03-06", "", "", time.UTC); !errors.Is(err, model.ErrMissingParameter) {
		t.Fatalf("expected missing parameter, got %v", err)
	}
}

func TestListPaginates(t *testing.T) {
	svc, _ := seeded(t)
	page, err := svc.List(context.Background(), Query{TenantID: tenant, StaffID: "s1", Limit: 2, Page: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 5 || page.Count != 2 || page.Pagination.TotalPages != 3 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if want := []string{"a4", "a1"}; !equal(ids(page.Items), want) {
		t.Fatalf("expected newest-first second page %v, got %v", want, ids(page.Items))
	}

	page, err = svc.List(context.Background(), Query{TenantID: tenant, Sort: storage.SortStartAsc, Status: model.StatusScheduled, Limit: 500})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Pagination.Limit != MaxLimit || !equal(ids(page.Items), []string{"a1", "a6"}) {
		t.Fatalf("unexpected page: %+v", page)
	}

	if _, err := svc.List(context.Background(), Query{TenantID: tenant, Sort: "price"}); !errors.Is(err, model.ErrInvalidParameter) {
		t.Fatalf("expected invalid sort, got %v", err)
	}
}

func TestOccupancySkipsExemptStatuses(t *testing.T) {
	svc, _ := seeded(t)
	got, err := svc.Occupancy(context.Background(), tenant, "s1", "2030-03-01", "2030-03-07", time.UTC)
	if err != nil {
		t.Fatalf("occupancy: %v", err)
	}
	if got.TotalAppointments != 2 || got.TotalAppointmentMinutes != 75 {
		t.Fatalf("expected 2 appointments / 75 minutes, got %+v", got)
	}
	if _, err := svc.Occupancy(context.Background(), tenant, "ghost", "2030-03-01", "2030-03-07", time.UTC); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected unknown staff to 404, got %v", err)
	}
	if _, err := svc.Occupancy(context.Background(), tenant, "", "2030-03-01", "2030-03-07", time.UTC); !errors.Is(err, model.ErrMissingParameter) {
		t.Fatalf("expected missing staff, got %v", err)
	}
}

func TestAvailableSlotsSkipsBookedAndPast(t *testing.T) {
	svc, _ := seeded(t)
	slots, err := svc.AvailableSlots(context.Background(), SlotQuery{
		TenantID: tenant, StaffID: "s1", ServiceID: "cut", Date: "2030-03-04",
		WorkdayStart: "09:00", WorkdayEnd: "11:00", StepMinutes: 30,
	})
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	var got []string
	for _, s := range slots {
		got = append(got, s.Start.Format("15:04"))
	}
	if want := []string{"09:00", "09:30", "10:30"}; !equal(got, want) {
		t.Fatalf("expected cancelled 09:00 to be free and 10:00 booked: want %v, got %v", want, got)
	}

	svc.now = func() time.Time { return time.Date(2030, 3, 4, 9, 45, 0, 0, time.UTC) }
	slots, err = svc.AvailableSlots(context.Background(), SlotQuery{
		TenantID: tenant, StaffID: "s1", ServiceID: "cut", Date: "2030-03-04", WorkdayEnd: "11:00",
	})
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) == 0 || slots[0].Start.Format("15:04") != "10:30" {
		t.Fatalf("expected first future free slot at 10:30, got %v", slots)
	}

	if _, err := svc.AvailableSlots(context.Background(), SlotQuery{TenantID: tenant, StaffID: "s1", ServiceID: "cut", Date: "2030-03-04", WorkdayStart: "18:00"}); !errors.Is(err, model.ErrInvalidInterval) {
		t.Fatalf("expected invalid workday, got %v", err)
	}
	if _, err := svc.AvailableSlots(context.Background(), SlotQuery{TenantID: tenant, StaffID: "s1", ServiceID: "nope", Date: "2030-03-04"}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected unknown service, got %v", err)
	}
}

func TestParseLocation(t *testing.T) {
	if loc, err := ParseLocation(""); err != nil || loc != time.UTC {
		t.Fatalf("expected UTC default, got %v %v", loc, err)
	}
	if _, err := ParseLocation("Mars/Olympus"); !errors.Is(err, model.ErrInvalidParameter) {
		t.Fatalf("expected invalid tz, got %v", err)
	}
}
