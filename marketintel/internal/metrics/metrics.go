// CLAUDE:SUMMARY Prometheus collectors on a private registry; one Metrics value satisfies every component observer.
// Package metrics exposes Prometheus metrics for the marketintel service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketintel"

// Metrics holds the collectors. It implements the observer interfaces of
// fetch, dispatch, report, alert and jobs.
type Metrics struct {
	registry *prometheus.Registry

	ScrapesTotal      *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec
	FetchesTotal      *prometheus.CounterVec
	ObservationsTotal *prometheus.CounterVec
	ReportsTotal      *prometheus.CounterVec
	AlertsTotal       *prometheus.CounterVec
	TasksTotal        *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ScrapesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "scrapes_total",
			Help:      "Scrape units by extractor family and outcome",
		}, []string{"family", "outcome"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by result",
		}, []string{"result"}),
		FetchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Network fetches by strategy and status",
		}, []string{"strategy", "status"}),
		ObservationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "observations_written_total",
			Help:      "Observations persisted by metric kind",
		}, []string{"metric"}),
		ReportsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "generations_total",
			Help:      "Report generations by kind and final status",
		}, []string{"kind", "status"}),
		AlertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "raised_total",
			Help:      "Alerts raised by kind",
		}, []string{"kind"}),
		TasksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "tasks_total",
			Help:      "Queued tasks by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// CacheLookup implements fetch.Observer.
func (m *Metrics) CacheLookup(hit bool) {
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// Fetched implements fetch.Observer.
func (m *Metrics) Fetched(strategy string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.FetchesTotal.WithLabelValues(strategy, status).Inc()
}

// Scraped implements dispatch.Observer.
func (m *Metrics) Scraped(family, outcome string) {
	if family == "" {
		family = "unresolved"
	}
	m.ScrapesTotal.WithLabelValues(family, outcome).Inc()
}

// ObservationsWritten implements dispatch.Observer.
func (m *Metrics) ObservationsWritten(metric string, n int) {
	m.ObservationsTotal.WithLabelValues(metric).Add(float64(n))
}

// Generated implements report.Observer.
func (m *Metrics) Generated(kind, status string) {
	m.ReportsTotal.WithLabelValues(kind, status).Inc()
}

// AlertRaised implements alert.Observer.
func (m *Metrics) AlertRaised(kind string) {
	m.AlertsTotal.WithLabelValues(kind).Inc()
}

// TaskDone implements jobs.Observer.
func (m *Metrics) TaskDone(kind, outcome string) {
	m.TasksTotal.WithLabelValues(kind, outcome).Inc()
}
