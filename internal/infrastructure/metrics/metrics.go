// Package metrics exposes license service counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flaco"

// Recorder is what use cases and middleware report through. Nop satisfies
// it when metrics are disabled.
type Recorder interface {
	WebhookEvent(eventType, status string)
	Verification(result string)
	LicenseIssued(tier string)
	EmailDelivery(ok bool)
	RateLimited(scope string)
}

type Metrics struct {
	registry *prometheus.Registry

	webhookEvents   *prometheus.CounterVec
	verifications   *prometheus.CounterVec
	licensesIssued  *prometheus.CounterVec
	emailDeliveries *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Billing webhook events by type and outcome.",
		}, []string{"type", "status"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "license_verifications_total",
			Help:      "License verification requests by result.",
		}, []string{"result"}),
		licensesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "licenses_issued_total",
			Help:      "Licenses created by tier.",
		}, []string{"tier"}),
		emailDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "license_emails_total",
			Help:      "License email delivery attempts by outcome.",
		}, []string{"outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter, by scope.",
		}, []string{"scope"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.webhookEvents,
		m.verifications,
		m.licensesIssued,
		m.emailDeliveries,
		m.rateLimited,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) WebhookEvent(eventType, status string) {
	m.webhookEvents.WithLabelValues(eventType, status).Inc()
}

func (m *Metrics) Verification(result string) {
	m.verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) LicenseIssued(tier string) {
	m.licensesIssued.WithLabelValues(tier).Inc()
}

func (m *Metrics) EmailDelivery(ok bool) {
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	m.emailDeliveries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RateLimited(scope string) {
	m.rateLimited.WithLabelValues(scope).Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	m.httpDuration.WithLabelValues(method, route, status).Observe(seconds)
}

type nop struct{}

// Nop discards everything.
var Nop Recorder = nop{}

func (nop) WebhookEvent(string, string) {}
func (nop) Verification(string)         {}
func (nop) LicenseIssued(string)        {}
func (nop) EmailDelivery(bool)          {}
func (nop) RateLimited(string)          {}
