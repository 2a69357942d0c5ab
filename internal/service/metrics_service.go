package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the sync core and HTTP API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	pullTotal       *prometheus.CounterVec
	pullDuration    prometheus.Observer
	pushTotal       *prometheus.CounterVec
	pushDuration    prometheus.Observer
	storeOps        *prometheus.CounterVec
	storeLatency    *prometheus.HistogramVec
	outboxDepth     *prometheus.GaugeVec
	dataVersion     prometheus.Gauge
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

	pullTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_pulls_total",
		Help: "Remote snapshot pulls by mode and result",
	}, []string{"mode", "result"})

	pullDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_pull_duration_seconds",
		Help:    "Latency of remote snapshot pulls",
		Buckets: prometheus.DefBuckets,
	})

	pushTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_pushes_total",
		Help: "Mutation pushes by action and result",
	}, []string{"action", "result"})

	pushDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_push_duration_seconds",
		Help:    "Latency of mutation pushes",
		Buckets: prometheus.DefBuckets,
	})

	storeOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "local_store_operations_total",
		Help: "Local store operations by kind and result",
	}, []string{"op", "result"})

	storeLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "local_store_latency_seconds",
		Help:    "Latency of local store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	outboxDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sync_outbox_entries",
		Help: "Writes waiting in the outbox",
	}, []string{"queue"})

	dataVersion := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_data_version",
		Help: "Local change counter",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, pullTotal, pullDuration, pushTotal, pushDuration, storeOps, storeLatency, outboxDepth, dataVersion, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		pullTotal:       pullTotal,
		pullDuration:    pullDuration,
		pushTotal:       pushTotal,
		pushDuration:    pushDuration,
		storeOps:        storeOps,
		storeLatency:    storeLatency,
		outboxDepth:     outboxDepth,
		dataVersion:     dataVersion,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry (tests gather from it).
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordPull counts a pull attempt.
func (m *MetricsService) RecordPull(force bool, result string, duration time.Duration) {
	if m == nil {
		return
	}
	mode := "routine"
	if force {
		mode = "forced"
	}
	m.pullTotal.WithLabelValues(mode, result).Inc()
	m.pullDuration.Observe(duration.Seconds())
}

// RecordPush counts a push attempt.
func (m *MetricsService) RecordPush(action string, ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.pushTotal.WithLabelValues(action, resultLabel(ok)).Inc()
	m.pushDuration.Observe(duration.Seconds())
}

// RecordStoreOperation tracks local store access.
func (m *MetricsService) RecordStoreOperation(op string, ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.storeOps.WithLabelValues(op, resultLabel(ok)).Inc()
	m.storeLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// SetOutboxDepth publishes the size of an outbox queue.
func (m *MetricsService) SetOutboxDepth(queue string, depth int) {
	if m == nil {
		return
	}
	m.outboxDepth.WithLabelValues(queue).Set(float64(depth))
}

// SetDataVersion publishes the local change counter.
func (m *MetricsService) SetDataVersion(version uint64) {
	if m == nil {
		return
	}
	m.dataVersion.Set(float64(version))
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
