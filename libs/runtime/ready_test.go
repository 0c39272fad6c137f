package runtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestReadyzReportsFailures(t *testing.T) {
	mux := NewBaseMuxWithReady(
		ReadyCheck{Name: "db", Check: func(context.Context) error { return nil }},
		ReadyCheck{Name: "redis", Check: func(context.Context) error { return errors.New("down") }},
	)

	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rw.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rw.Code)
	}
	if !strings.Contains(rw.Body.String(), "redis: down") {
		t.Fatalf("unexpected body: %q", rw.Body.String())
	}

	rw = httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestShutdownRunsEveryStepInOrder(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	err := Shutdown(time.Second, nil,
		ShutdownStep{Name: "http", Fn: func(context.Context) error { order = append(order, "http"); return nil }},
		ShutdownStep{Name: "notify", Fn: func(context.Context) error { order = append(order, "notify"); return boom }},
		ShutdownStep{Name: "skipped"},
		ShutdownStep{Name: "db", Fn: func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("expected a deadline on the shutdown context")
			}
			order = append(order, "db")
			return nil
		}},
	)
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to carry boom, got %v", err)
	}
	if len(order) != 3 || order[0] != "http" || order[1] != "notify" || order[2] != "db" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestNewLoggerToFormats(t *testing.T) {
	var buf strings.Builder
	NewLoggerTo(&buf, "appointment-service", "debug", "").Debug("booked", "appointment_id", "a1")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"service":"appointment-service"`) {
		t.Fatalf("expected a JSON record, got %q", buf.String())
	}

	buf.Reset()
	NewLoggerTo(&buf, "appointment-service", "warn", "TEXT").Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
	NewLoggerTo(&buf, "appointment-service", "", "text").Info("kept")
	if !strings.Contains(buf.String(), "msg=kept") {
		t.Fatalf("expected a text record, got %q", buf.String())
	}
}
