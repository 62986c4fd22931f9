package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the
// evaluation core.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	scoresSaved     *prometheus.CounterVec
	changeRequests  *prometheus.CounterVec
	phasesClosed    prometheus.Counter
	medalRuns       prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	scoresSaved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scores_saved_total",
		Help: "Total score saves, partitioned by insert/update",
	}, []string{"kind"})

	changeRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "change_requests_resolved_total",
		Help: "Change request resolutions by terminal status",
	}, []string{"status"})

	phasesClosed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "phases_closed_total",
		Help: "Total phase closures",
	})

	medalRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "medal_assignments_total",
		Help: "Total medal assignment runs",
	})

	registry.MustRegister(requestDuration, requestTotal, scoresSaved, changeRequests, phasesClosed, medalRuns)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		scoresSaved:     scoresSaved,
		changeRequests:  changeRequests,
		phasesClosed:    phasesClosed,
		medalRuns:       medalRuns,
	}
}

// Handler exposes the /metrics endpoint handler.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records request metrics.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// RecordScoreSaved counts a score save.
func (s *MetricsService) RecordScoreSaved(updated bool) {
	kind := "insert"
	if updated {
		kind = "update"
	}
	s.scoresSaved.WithLabelValues(kind).Inc()
}

// RecordChangeRequest counts a change request resolution.
func (s *MetricsService) RecordChangeRequest(status string) {
	s.changeRequests.WithLabelValues(status).Inc()
}

// RecordPhaseClosed counts a phase closure.
func (s *MetricsService) RecordPhaseClosed() {
	s.phasesClosed.Inc()
}

// RecordMedalAssignment counts a medal assignment run.
func (s *MetricsService) RecordMedalAssignment() {
	s.medalRuns.Inc()
}
