package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"smart-factory/internal/domain"
)

// Prometheus owns a private registry so tests and multiple routers never
// collide on the default one.
type Prometheus struct {
	registry         *prometheus.Registry
	httpInFlight     prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	alertTransitions *prometheus.CounterVec
	alertsFired      *prometheus.CounterVec
	auditRecords     *prometheus.CounterVec
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		alertTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "factory_alert_transitions_total",
			Help: "Alert lifecycle transition attempts by transition and outcome.",
		}, []string{"transition", "result"}),
		alertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "factory_alerts_fired_total",
			Help: "Alerts raised, by severity.",
		}, []string{"severity"}),
		auditRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "factory_audit_records_total",
			Help: "Audit log entries written, by result.",
		}, []string{"result"}),
	}
	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.httpInFlight, p.httpRequests, p.httpDuration,
		p.alertTransitions, p.alertsFired, p.auditRecords,
	)
	return p
}

func (p *Prometheus) AlertTransition(transition, result string) {
	p.alertTransitions.WithLabelValues(transition, result).Inc()
}

func (p *Prometheus) AlertFired(severity domain.Severity) {
	p.alertsFired.WithLabelValues(string(severity)).Inc()
}

func (p *Prometheus) AuditRecorded(result domain.AuditResult) {
	p.auditRecords.WithLabelValues(string(result)).Inc()
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Middleware labels requests by route pattern rather than raw path so ids do
// not explode label cardinality.
func (p *Prometheus) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p.httpInFlight.Inc()
			defer p.httpInFlight.Dec()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)
			p.httpDuration.WithLabelValues(c.Request().Method, route, status).Observe(time.Since(start).Seconds())
			p.httpRequests.WithLabelValues(c.Request().Method, route, status).Inc()
			return nil
		}
	}
}
