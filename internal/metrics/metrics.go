package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeExpired   = "expired"
	OutcomeFailed    = "failed"
)

// Metrics holds all Prometheus metrics for the push engine
type Metrics struct {
	DeliveriesTotal            *prometheus.CounterVec
	ClicksTotal                prometheus.Counter
	SubscribersRegisteredTotal prometheus.Counter
	SendDurationSeconds        prometheus.Histogram
	HTTPRequestsTotal          *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chirpy_push_deliveries_total",
				Help: "Push delivery attempts by outcome",
			},
			[]string{"outcome"},
		),
		ClicksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chirpy_push_clicks_total",
				Help: "Notification clicks reported",
			},
		),
		SubscribersRegisteredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chirpy_push_subscribers_registered_total",
				Help: "Subscribers registered by the client library",
			},
		),
		SendDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chirpy_push_send_duration_seconds",
				Help:    "Wall time of a whole campaign send",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chirpy_push_http_requests_total",
				Help: "HTTP requests by method and status",
			},
			[]string{"method", "status"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.DeliveriesTotal,
		m.ClicksTotal,
		m.SubscribersRegisteredTotal,
		m.SendDurationSeconds,
		m.HTTPRequestsTotal,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The recorders below are nil-safe so services can run without metrics.

// ObserveDelivery counts one delivery attempt.
func (m *Metrics) ObserveDelivery(outcome string) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveClick counts one click report.
func (m *Metrics) ObserveClick() {
	if m == nil {
		return
	}
	m.ClicksTotal.Inc()
}

// ObserveSubscriber counts one subscriber registration.
func (m *Metrics) ObserveSubscriber() {
	if m == nil {
		return
	}
	m.SubscribersRegisteredTotal.Inc()
}

// ObserveSend records the duration of a campaign send.
func (m *Metrics) ObserveSend(d time.Duration) {
	if m == nil {
		return
	}
	m.SendDurationSeconds.Observe(d.Seconds())
}

// ObserveRequest counts one HTTP request.
func (m *Metrics) ObserveRequest(method string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
