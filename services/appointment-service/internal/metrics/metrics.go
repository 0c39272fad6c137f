package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes counters/histograms for the booking path. A nil *Metrics is a no-op.
type Metrics struct {
	operations    *prometheus.CounterVec
	checks        *prometheus.CounterVec
	lockWait      *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptbook",
			Subsystem: "appointments",
			Name:      "operations_total",
			Help:      "Lifecycle operations by outcome",
		}, []string{"op", "outcome"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptbook",
			Subsystem: "availability",
			Name:      "checks_total",
			Help:      "Availability decisions",
		}, []string{"result"}),
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "apptbook",
			Subsystem: "booking",
			Name:      "lock_wait_seconds",
			Help:      "Time spent acquiring the per-staff booking lock",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"strategy"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptbook",
			Subsystem: "notifications",
			Name:      "deliveries_total",
			Help:      "Notification deliveries by target, kind and result",
		}, []string{"target", "kind", "result"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "apptbook",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operations, m.checks, m.lockWait, m.notifications, m.httpDuration)
	return m
}

// Outcome classifies an error for the operations counter.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrSlotUnavailable):
		return "conflict"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrMissingParameter), errors.Is(err, model.ErrInvalidParameter),
		errors.Is(err, model.ErrInvalidInterval), errors.Is(err, model.ErrInvalidStatus):
		return "invalid"
	default:
		return "error"
	}
}

func (m *Metrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, Outcome(err)).Inc()
}

func (m *Metrics) ObserveCheck(available bool) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(strconv.FormatBool(available)).Inc()
}

func (m *Metrics) ObserveLockWait(strategy string, d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.WithLabelValues(strategy).Observe(d.Seconds())
}

// ObserveNotification counts one delivery attempt per target.
func (m *Metrics) ObserveNotification(target string, kind string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.notifications.WithLabelValues(target, kind, result).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
