// Package handlers exposes the appointment API over HTTP under /api/v1.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/appointments"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/metrics"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/schedule"
)

type AppointmentHandler struct {
	manager  *appointments.Manager
	schedule *schedule.Service
	logger   *slog.Logger
	validate *validator.Validate
}

func NewAppointmentHandler(manager *appointments.Manager, sched *schedule.Service, logger *slog.Logger) *AppointmentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &AppointmentHandler{manager: manager, schedule: sched, logger: logger, validate: v}
}

type RouterConfig struct {
	Auth    Authenticator
	Metrics *metrics.Metrics
}

// Router mounts every appointment route under /api/v1/appointments.
func (h *AppointmentHandler) Router(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(instrument(cfg.Metrics))
	r.Route("/api/v1/appointments", func(r chi.Router) {
		r.Use(RequireTenant(cfg.Auth))
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/check-availability", h.CheckAvailability)
		r.Get("/daily-schedule", h.DailySchedule)
		r.Get("/weekly-schedule", h.WeeklySchedule)
		r.Get("/staff-occupancy", h.StaffOccupancy)
		r.Get("/available-slots", h.AvailableSlots)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
			r.Patch("/status", h.UpdateStatus)
		})
	})
	return r
}

type createRequest struct {
	CustomerID string     `json:"customerId" validate:"required"`
	StaffID    string     `json:"staffId" validate:"required"`
	ServiceID  string     `json:"serviceId" validate:"required"`
	StartTime  *time.Time `json:"startTime" validate:"required"`
	EndTime    *time.Time `json:"endTime"`
	Notes      string     `json:"notes" validate:"max=2000"`
	Status     string     `json:"status"`
}

type updateRequest struct {
	CustomerID *string    `json:"customerId" validate:"omitempty,min=1"`
	StaffID    *string    `json:"staffId" validate:"omitempty,min=1"`
	ServiceID  *string    `json:"serviceId" validate:"omitempty,min=1"`
	StartTime  *time.Time `json:"startTime"`
	EndTime    *time.Time `json:"endTime"`
	Notes      *string    `json:"notes" validate:"omitempty,max=2000"`
	Status     *string    `json:"status"`

	ReminderTime    *time.Time `json:"reminderTime"`
	ReminderSent    *bool      `json:"reminderSent"`
	CancelledReason *string    `json:"cancelledReason" validate:"omitempty,max=500"`
	CancelledBy     *string    `json:"cancelledBy"`
}

type statusRequest struct {
	Status      string `json:"status" validate:"required"`
	Reason      string `json:"reason" validate:"max=500"`
	CancelledBy string `json:"cancelledBy"`
}

func (h *AppointmentHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeErr(w, r, h.logger, err)
		return false
	}
	return true
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	in := appointments.CreateInput{
		TenantID:   tenantID(r),
		CustomerID: strings.TrimSpace(req.CustomerID),
		StaffID:    strings.TrimSpace(req.StaffID),
		ServiceID:  strings.TrimSpace(req.ServiceID),
		StartTime:  *req.StartTime,
		Notes:      req.Notes,
		Status:     status,
	}
	if req.EndTime != nil {
		in.EndTime = *req.EndTime
	}
	a, err := h.manager.Create(r.Context(), in)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, a)
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	patch := appointments.Patch{
		CustomerID: req.CustomerID,
		StaffID:    req.StaffID,
		ServiceID:  req.ServiceID,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Notes:      req.Notes,

		ReminderTime:    req.ReminderTime,
		ReminderSent:    req.ReminderSent,
		CancelledReason: req.CancelledReason,
		CancelledBy:     req.CancelledBy,
	}
	if req.Status != nil {
		if strings.TrimSpace(*req.Status) == "" {
			writeErr(w, r, h.logger, fmt.Errorf("%w: status must not be empty", model.ErrInvalidStatus))
			return
		}
		s, err := model.ParseStatus(*req.Status)
		if err != nil {
			writeErr(w, r, h.logger, err)
			return
		}
		patch.Status = &s
	}
	a, err := h.manager.Update(r.Context(), tenantID(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, a)
}

func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	a, err := h.manager.UpdateStatus(r.Context(), tenantID(r), chi.URLParam(r, "id"), appointments.StatusChange{
		Status:      status,
		Reason:      req.Reason,
		CancelledBy: req.CancelledBy,
	})
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, a)
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(r.Context(), tenantID(r), chi.URLParam(r, "id")); err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, messageResponse{Success: true, Message: "appointment deleted"})
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	inc, err := appointments.ParseInclude(r.URL.Query().Get("include"))
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	d, err := h.manager.Get(r.Context(), tenantID(r), chi.URLParam(r, "id"), inc)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, d)
}

type availabilityResponse struct {
	Success   bool `json:"success"`
	Available bool `json:"available"`
}

func (h *AppointmentHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := queryTime(q.Get("startTime"), "startTime")
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	end, err := queryTime(q.Get("endTime"), "endTime")
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	ok, err := h.manager.CheckAvailability(r.Context(), tenantID(r), strings.TrimSpace(q.Get("staffId")),
		start, end, strings.TrimSpace(q.Get("excludeAppointmentId")))
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, availabilityResponse{Success: true, Available: ok})
}

type pageResponse struct {
	Success    bool                `json:"success"`
	Count      int                 `json:"count"`
	Total      int                 `json:"total"`
	Pagination schedule.Pagination `json:"pagination"`
	Data       []model.Appointment `json:"data"`
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc, err := schedule.ParseLocation(q.Get("tz"))
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	query := schedule.Query{
		TenantID:   tenantID(r),
		StaffID:    strings.TrimSpace(q.Get("staffId")),
		CustomerID: strings.TrimSpace(q.Get("customerId")),
		Sort:       strings.TrimSpace(q.Get("sort")),
	}
	if query.Status, err = model.ParseStatus(q.Get("status")); err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	if raw := q.Get("startDate"); strings.TrimSpace(raw) != "" {
		if query.From, err = schedule.ParseBound(raw, loc, false); err != nil {
			writeErr(w, r, h.logger, err)
			return
		}
	}
	if raw := q.Get("endDate"); strings.TrimSpace(raw) != "" {
		if query.To, err = schedule.ParseBound(raw, loc, true); err != nil {
			writeErr(w, r, h.logger, err)
			return
		}
	}
	if query.Page, err = queryInt(q.Get("page"), "page"); err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	if query.Limit, err = queryInt(q.Get("limit"), "limit"); err != nil {
		writeErr(w, r, h.logger, err)
		return
	}

	page, err := h.schedule.List(r.Context(), query)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pageResponse{
		Success:    true,
		Count:      page.Count,
		Total:      page.Total,
		Pagination: page.Pagination,
		Data:       page.Items,
	})
}

func (h *AppointmentHandler) DailySchedule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc, err := schedule.ParseLocation(q.Get("tz"))
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	items, err := h.schedule.Daily(r.Context(), tenantID(r), q.Get("date"), q.Get("staffId"), loc)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Success: true, Count: len(items), Data: items})
}

func (h *AppointmentHandler) WeeklySchedule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc, err := schedule.ParseLocation(q.Get("tz"))
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	items, err := h.schedule.Weekly(r.Context(), tenantID(r), q.Get("startDate"), q.Get("endDate"), q.Get("staffId"), loc)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Success: true, Count: len(items), Data: items})
}

func (h *AppointmentHandler) StaffOccupancy(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc, err := schedule.ParseLocation(q.Get("tz"))
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	occ, err := h.schedule.Occupancy(r.Context(), tenantID(r), strings.TrimSpace(q.Get("staffId")), q.Get("startDate"), q.Get("endDate"), loc)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, occ)
}

type slotItem struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

func (h *AppointmentHandler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc, err := schedule.ParseLocation(q.Get("tz"))
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	step, err := queryInt(q.Get("stepMinutes"), "stepMinutes")
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	slots, err := h.schedule.AvailableSlots(r.Context(), schedule.SlotQuery{
		TenantID:     tenantID(r),
		StaffID:      strings.TrimSpace(q.Get("staffId")),
		ServiceID:    strings.TrimSpace(q.Get("serviceId")),
		Date:         q.Get("date"),
		Location:     loc,
		WorkdayStart: q.Get("workdayStart"),
		WorkdayEnd:   q.Get("workdayEnd"),
		StepMinutes:  step,
	})
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{StartTime: s.Start.UTC(), EndTime: s.End.UTC()})
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Success: true, Count: len(items), Data: items})
}

func queryTime(raw, name string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be RFC 3339", model.ErrInvalidParameter, name)
	}
	return t, nil
}

func queryInt(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", model.ErrInvalidParameter, name)
	}
	return n, nil
}
