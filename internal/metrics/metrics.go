package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for the batching pipeline and the
// inbound HTTP API from a single registry.
type Collector struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	itemsEnqueued  *prometheus.CounterVec
	itemsResolved  *prometheus.CounterVec
	batchesFlushed *prometheus.CounterVec
	batchSize      *prometheus.HistogramVec
	queueDepth     *prometheus.GaugeVec
	spendTotal     *prometheus.CounterVec
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "batchflow",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batchflow",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	itemsEnqueued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batchflow",
		Subsystem: "pipeline",
		Name:      "items_enqueued_total",
		Help:      "Work items admitted to the pipeline.",
	}, []string{"key"})

	itemsResolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batchflow",
		Subsystem: "pipeline",
		Name:      "items_resolved_total",
		Help:      "Work item result handles resolved, by outcome.",
	}, []string{"key", "outcome"})

	batchesFlushed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batchflow",
		Subsystem: "pipeline",
		Name:      "batches_flushed_total",
		Help:      "Batches handed to the execution collaborator, by trigger.",
	}, []string{"key", "trigger"})

	batchSize := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "batchflow",
		Subsystem: "pipeline",
		Name:      "batch_size",
		Help:      "Distribution of flushed batch sizes.",
		Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
	}, []string{"key"})

	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "batchflow",
		Subsystem: "pipeline",
		Name:      "queue_depth",
		Help:      "Pending work items per key.",
	}, []string{"key"})

	spendTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batchflow",
		Subsystem: "budget",
		Name:      "spend_usd_total",
		Help:      "Accumulated spend recorded to the usage ledger.",
	}, []string{"key"})

	collectors := []prometheus.Collector{
		requestDuration, requestTotal,
		itemsEnqueued, itemsResolved, batchesFlushed, batchSize, queueDepth, spendTotal,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		itemsEnqueued:   itemsEnqueued,
		itemsResolved:   itemsResolved,
		batchesFlushed:  batchesFlushed,
		batchSize:       batchSize,
		queueDepth:      queueDepth,
		spendTotal:      spendTotal,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// ItemEnqueued records one admitted work item.
func (c *Collector) ItemEnqueued(key string) {
	if c == nil {
		return
	}
	c.itemsEnqueued.WithLabelValues(key).Inc()
}

// ItemResolved records a result handle resolution by outcome
// (success, missing_result, batch_failed, cancelled).
func (c *Collector) ItemResolved(key, outcome string) {
	if c == nil {
		return
	}
	c.itemsResolved.WithLabelValues(key, outcome).Inc()
}

// BatchFlushed records a batch handed to the collaborator by trigger
// (size, deadline, forced, bypass).
func (c *Collector) BatchFlushed(key, trigger string, size int) {
	if c == nil {
		return
	}
	c.batchesFlushed.WithLabelValues(key, trigger).Inc()
	c.batchSize.WithLabelValues(key).Observe(float64(size))
}

// SetQueueDepth records the pending item count for a key.
func (c *Collector) SetQueueDepth(key string, depth int) {
	if c == nil {
		return
	}
	c.queueDepth.WithLabelValues(key).Set(float64(depth))
}

// SpendRecorded accumulates ledger spend.
func (c *Collector) SpendRecorded(key string, costUSD float64) {
	if c == nil {
		return
	}
	c.spendTotal.WithLabelValues(key).Add(costUSD)
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
