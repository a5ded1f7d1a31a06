package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests can build as many as they like.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	leaveTransition *prometheus.CounterVec
	attendance      *prometheus.CounterVec
	provisioning    *prometheus.CounterVec
}

func New() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		leaveTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leave_transitions_total",
			Help: "Leave application lifecycle operations by outcome",
		}, []string{"operation", "outcome"}),
		attendance: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_events_total",
			Help: "Attendance check-in/check-out operations by outcome",
		}, []string{"operation", "outcome"}),
		provisioning: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leave_provisioning_employees_total",
			Help: "Employees processed by batch balance provisioning by outcome",
		}, []string{"operation", "outcome"}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.requestDuration,
		c.requestTotal,
		c.leaveTransition,
		c.attendance,
		c.provisioning,
	)
	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	labels := []string{method, route, strconv.Itoa(status)}
	c.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	c.requestTotal.WithLabelValues(labels...).Inc()
}

func (c *Collector) LeaveTransition(operation string, err error) {
	if c == nil {
		return
	}
	c.leaveTransition.WithLabelValues(operation, outcome(err)).Inc()
}

func (c *Collector) Attendance(operation string, err error) {
	if c == nil {
		return
	}
	c.attendance.WithLabelValues(operation, outcome(err)).Inc()
}

func (c *Collector) Provisioned(operation string, succeeded, failed int) {
	if c == nil {
		return
	}
	c.provisioning.WithLabelValues(operation, "success").Add(float64(succeeded))
	c.provisioning.WithLabelValues(operation, "error").Add(float64(failed))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
