// Package metrics defines the metrics sink consumed by the service layer and
// its Prometheus implementation. The sink is injected at construction so
// tests can substitute Nop without process-wide shared state.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Redirect outcome labels.
const (
	RedirectSuccess  = "success"
	RedirectNotFound = "not_found"
	RedirectExpired  = "expired"
)

// Recorder receives the counters and timings the application emits.
type Recorder interface {
	// URLShortened records a successful shorten, tagged with whether the
	// caller supplied a custom code.
	URLShortened(customCode bool)
	// Redirect records a redirect attempt outcome.
	Redirect(status string)
	// URLDeleted records a successful deletion.
	URLDeleted()
	// ObserveRequest records one handled HTTP request.
	ObserveRequest(method, route string, statusCode int, duration time.Duration)
}

// Nop is a Recorder that discards everything.
type Nop struct{}

func (Nop) URLShortened(bool)                                 {}
func (Nop) Redirect(string)                                   {}
func (Nop) URLDeleted()                                       {}
func (Nop) ObserveRequest(string, string, int, time.Duration) {}

// Prometheus is a Recorder backed by a private Prometheus registry.
type Prometheus struct {
	registry *prometheus.Registry

	urlsShortened   *prometheus.CounterVec
	redirects       *prometheus.CounterVec
	urlsDeleted     prometheus.Counter
	httpRequests    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		urlsShortened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "urls_shortened_total",
			Help: "Total number of URLs shortened.",
		}, []string{"custom_code"}),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "url_redirects_total",
			Help: "Total number of URL redirect attempts.",
		}, []string{"status"}),
		urlsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "urls_deleted_total",
			Help: "Total number of URLs deleted.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "route", "status_code"}),
	}

	p.registry.MustRegister(
		p.urlsShortened,
		p.redirects,
		p.urlsDeleted,
		p.httpRequests,
		p.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return p
}

func (p *Prometheus) URLShortened(customCode bool) {
	p.urlsShortened.WithLabelValues(boolLabel(customCode)).Inc()
}

func (p *Prometheus) Redirect(status string) {
	p.redirects.WithLabelValues(status).Inc()
}

func (p *Prometheus) URLDeleted() {
	p.urlsDeleted.Inc()
}

func (p *Prometheus) ObserveRequest(method, route string, statusCode int, duration time.Duration) {
	labels := []string{method, route, strconv.Itoa(statusCode)}
	p.httpRequests.WithLabelValues(labels...).Inc()
	p.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
