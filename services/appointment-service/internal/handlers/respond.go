package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
)

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type listResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
	Data    any  `json:"data"`
}

func writeData(w http.ResponseWriter, status int, v any) {
	httpx.WriteJSON(w, status, dataResponse{Success: true, Data: v})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var verr validator.ValidationErrors
	switch {
	case errors.Is(err, model.ErrMissingParameter), errors.Is(err, model.ErrInvalidParameter),
		errors.Is(err, model.ErrInvalidInterval), errors.Is(err, model.ErrInvalidStatus),
		errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrSlotUnavailable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		msg = describeValidation(verr)
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", append([]any{
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"err", err,
		}, otelx.LogAttrs(r.Context())...)...)
		msg = "internal server error"
	}
	httpx.WriteError(w, status, msg)
}

func describeValidation(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return model.ErrMissingParameter.Error() + ": " + strings.Join(parts, ", ")
}
