package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atelier-ops/atelier-api/internal/models"
)

// MetricsService owns the Prometheus registry and the domain counters.
type MetricsService struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	paymentTransitions      *prometheus.CounterVec
	enrollmentCancellations prometheus.Counter
	invoicesIssued          prometheus.Counter
	mailEnqueued            prometheus.Counter
}

// NewMetricsService registers all collectors on a fresh registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &MetricsService{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		paymentTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_transitions_total",
			Help: "Payment state transitions by target status.",
		}, []string{"to_status"}),
		enrollmentCancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enrollment_cancellations_total",
			Help: "Enrollments cancelled.",
		}),
		invoicesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoices_issued_total",
			Help: "Electronic invoices authorized by the fiscal authority.",
		}),
		mailEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mail_enqueued_total",
			Help: "Email messages enqueued for delivery.",
		}),
	}
	registry.MustRegister(m.httpRequests, m.httpDuration, m.paymentTransitions, m.enrollmentCancellations, m.invoicesIssued, m.mailEnqueued)
	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one HTTP request.
func (m *MetricsService) ObserveRequest(method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObservePaymentTransition records a payment reaching a new status.
func (m *MetricsService) ObservePaymentTransition(to models.PaymentStatus) {
	m.paymentTransitions.WithLabelValues(string(to)).Inc()
}

// ObserveEnrollmentCancellation records a cancelled enrollment.
func (m *MetricsService) ObserveEnrollmentCancellation() {
	m.enrollmentCancellations.Inc()
}

// ObserveInvoiceIssued records a successful fiscal authorization.
func (m *MetricsService) ObserveInvoiceIssued() {
	m.invoicesIssued.Inc()
}

// ObserveMailEnqueued records an email handed to the delivery queue.
func (m *MetricsService) ObserveMailEnqueued() {
	m.mailEnqueued.Inc()
}
