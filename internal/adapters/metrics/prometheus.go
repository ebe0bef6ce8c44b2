// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the MetricsCollector port using Prometheus. Each
// collector owns its registry.
type Collector struct {
	registry *prometheus.Registry

	pipelineStages      *prometheus.CounterVec
	pipelineDuration    *prometheus.HistogramVec
	detections          *prometheus.CounterVec
	batchSize           prometheus.Histogram
	queueDepth          prometheus.Gauge
	persistenceTasks    *prometheus.CounterVec
	cacheLookups        *prometheus.CounterVec
	referenceFeatures   *prometheus.GaugeVec
	referenceReloads    *prometheus.CounterVec
	storageOperations   *prometheus.CounterVec
	storageDuration     *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "lens"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		pipelineStages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_stages_total",
				Help:      "Pipeline state transitions by stage and status",
			},
			[]string{"stage", "status"},
		),

		pipelineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_duration_seconds",
				Help:      "Single-image processing duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),

		detections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "detections_total",
				Help:      "Detections emitted by type",
			},
			[]string{"type"},
		),

		batchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_size",
				Help:      "Number of images per batch",
				Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
			},
		),

		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "persistence_queue_depth",
				Help:      "Pending persistence tasks",
			},
		),

		persistenceTasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persistence_tasks_total",
				Help:      "Finished persistence tasks by outcome",
			},
			[]string{"state"},
		),

		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by result",
			},
			[]string{"result"},
		),

		referenceFeatures: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reference_features",
				Help:      "Loaded reference features by kind",
			},
			[]string{"kind"},
		),

		referenceReloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reference_reloads_total",
				Help:      "Reference dataset reloads",
			},
			[]string{"status"},
		),

		storageOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_operations_total",
				Help:      "Total number of storage operations",
			},
			[]string{"operation", "status"},
		),

		storageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_duration_seconds",
				Help:      "Storage operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// IncPipelineStage counts a pipeline state transition.
func (c *Collector) IncPipelineStage(stage string, status string) {
	c.pipelineStages.WithLabelValues(stage, status).Inc()
}

// ObservePipelineDuration records the wall time of a single-image run.
func (c *Collector) ObservePipelineDuration(status string, duration time.Duration) {
	c.pipelineDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// AddDetections counts emitted detections by type.
func (c *Collector) AddDetections(detectionType string, n int) {
	c.detections.WithLabelValues(detectionType).Add(float64(n))
}

// ObserveBatchSize records the number of images in a batch.
func (c *Collector) ObserveBatchSize(n int) {
	c.batchSize.Observe(float64(n))
}

// SetQueueDepth sets the number of pending persistence tasks.
func (c *Collector) SetQueueDepth(n int) {
	c.queueDepth.Set(float64(n))
}

// IncPersistenceTasks counts finished persistence tasks by outcome.
func (c *Collector) IncPersistenceTasks(state string) {
	c.persistenceTasks.WithLabelValues(state).Inc()
}

// IncCacheLookup counts cache hits and misses.
func (c *Collector) IncCacheLookup(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// SetReferenceFeatures sets the number of loaded reference features by kind.
func (c *Collector) SetReferenceFeatures(kind string, count int) {
	c.referenceFeatures.WithLabelValues(kind).Set(float64(count))
}

// IncReferenceReloads counts reference dataset reloads.
func (c *Collector) IncReferenceReloads(success bool) {
	c.referenceReloads.WithLabelValues(statusLabel(success)).Inc()
}

// IncStorageOperations increments storage operation counter.
func (c *Collector) IncStorageOperations(operation string, success bool) {
	c.storageOperations.WithLabelValues(operation, statusLabel(success)).Inc()
}

// ObserveStorageDuration records storage operation duration.
func (c *Collector) ObserveStorageDuration(operation string, duration time.Duration) {
	c.storageDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncHTTPRequests increments the HTTP request counter.
func (c *Collector) IncHTTPRequests(method, path, status string) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveHTTPDuration records HTTP request duration.
func (c *Collector) ObserveHTTPDuration(method, path string, duration time.Duration) {
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the Prometheus HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware returns HTTP middleware for metrics collection.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := routePath(r)
		c.IncHTTPRequests(r.Method, path, statusToString(wrapped.statusCode))
		c.ObserveHTTPDuration(r.Method, path, time.Since(start))
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// routePath labels requests by their route template so supplier IDs and
// image IDs do not explode label cardinality.
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// statusToString converts HTTP status code to string category.
func statusToString(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
