package observability

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MetricsRegistry holds all registered metrics.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	histos   map[string]*Histogram
}

// Counter is a monotonically increasing metric.
type Counter struct {
	name  string
	help  string
	value float64
	mu    sync.Mutex
}

// Gauge is a metric that can go up or down.
type Gauge struct {
	name  string
	help  string
	value float64
	mu    sync.Mutex
}

// Histogram tracks distribution of values.
type Histogram struct {
	name    string
	help    string
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
	mu      sync.Mutex
}

// NewMetricsRegistry creates a new metrics registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		histos:   make(map[string]*Histogram),
	}
}

// NewCounter creates and registers a counter.
func (r *MetricsRegistry) NewCounter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &Counter{name: name, help: help}
	r.counters[name] = c
	return c
}

// NewGauge creates and registers a gauge.
func (r *MetricsRegistry) NewGauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := &Gauge{name: name, help: help}
	r.gauges[name] = g
	return g
}

// NewHistogram creates and registers a histogram. Nil buckets mean
// DefaultBuckets.
func (r *MetricsRegistry) NewHistogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	h := &Histogram{name: name, help: help, buckets: buckets, counts: make([]uint64, len(buckets))}
	r.histos[name] = h
	return h
}

// DefaultBuckets covers generator runs from a few milliseconds to a minute.
func DefaultBuckets() []float64 {
	return []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
}

func (c *Counter) Inc() { c.Add(1) }

func (c *Counter) Add(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += v
}

func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

func (g *Gauge) Inc() { g.Add(1) }
func (g *Gauge) Dec() { g.Add(-1) }

func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value += v
}

func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
		}
	}
}

// ObserveDuration records a duration in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Handler returns an HTTP handler for Prometheus metrics.
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WritePrometheus(w)
	})
}

// WritePrometheus writes metrics in Prometheus text format, sorted by
// name within each kind.
func (r *MetricsRegistry) WritePrometheus(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		writeMetric(w, c.name, "counter", c.help, c.Value())
	}
	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		writeMetric(w, g.name, "gauge", g.help, g.Value())
	}
	for _, name := range sortedKeys(r.histos) {
		h := r.histos[name]
		h.mu.Lock()
		writeHistogram(w, h)
		h.mu.Unlock()
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeMetric(w io.Writer, name, metricType, help string, value float64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, metricType)
	fmt.Fprintf(w, "%s %s\n", name, formatFloat(value))
}

func writeHistogram(w io.Writer, h *Histogram) {
	fmt.Fprintf(w, "# HELP %s %s\n", h.name, h.help)
	fmt.Fprintf(w, "# TYPE %s histogram\n", h.name)
	for i, bound := range h.buckets {
		fmt.Fprintf(w, "%s_bucket{le=\"%s\"} %d\n", h.name, formatFloat(bound), h.counts[i])
	}
	fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.count)
	fmt.Fprintf(w, "%s_sum %s\n", h.name, formatFloat(h.sum))
	fmt.Fprintf(w, "%s_count %d\n", h.name, h.count)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WorkerMetrics are the counters a remote generation worker exposes.
type WorkerMetrics struct {
	Registry *MetricsRegistry

	GenerateTotal    *Counter
	GenerateFailures *Counter
	GenerateDuration *Histogram
	ActiveTasks      *Gauge
}

// NewWorkerMetrics registers the worker metrics in a fresh registry.
func NewWorkerMetrics() *WorkerMetrics {
	r := NewMetricsRegistry()
	return &WorkerMetrics{
		Registry:         r,
		GenerateTotal:    r.NewCounter("protoforge_generate_total", "Generation tasks run by this worker"),
		GenerateFailures: r.NewCounter("protoforge_generate_failures_total", "Generation tasks that exited non-zero or failed to start"),
		GenerateDuration: r.NewHistogram("protoforge_generate_duration_seconds", "Generator process duration", nil),
		ActiveTasks:      r.NewGauge("protoforge_generate_active", "Generation tasks currently running"),
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *WorkerMetrics) Handler() http.Handler {
	return m.Registry.Handler()
}

// Start marks a task as running. The returned func records its outcome.
func (m *WorkerMetrics) Start() func(d time.Duration, failed bool) {
	m.ActiveTasks.Inc()
	return func(d time.Duration, failed bool) {
		m.ActiveTasks.Dec()
		m.GenerateTotal.Inc()
		m.GenerateDuration.ObserveDuration(d)
		if failed {
			m.GenerateFailures.Inc()
		}
	}
}
