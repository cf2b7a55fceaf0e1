package prometheus

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreschagin/crm-monitoring/internal/application/port"
)

// millisecondBuckets cover request, probe and query latencies recorded in ms
var millisecondBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Sink implements port.MetricsSink on a Prometheus registry.
// Collectors are created on first use; the label names seen first define the collector.
type Sink struct {
	namespace string
	registry  *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

// NewSink creates a sink with its own registry, including Go runtime and process collectors
func NewSink(namespace string) *Sink {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Sink{
		namespace:  namespace,
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

// Handler exposes the registry in the Prometheus text format
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (s *Sink) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Sink) IncCounter(name string, labels port.Labels) {
	s.mu.Lock()
	vec, ok := s.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      name,
			Help:      helpFor(name),
		}, labelNames(labels))
		vec = register(s.registry, vec)
		s.counters[name] = vec
	}
	s.mu.Unlock()

	if c, err := vec.GetMetricWith(prometheus.Labels(labels)); err == nil {
		c.Inc()
	}
}

func (s *Sink) ObserveHistogram(name string, labels port.Labels, value float64) {
	s.mu.Lock()
	vec, ok := s.histograms[name]
	if !ok {
		buckets := prometheus.DefBuckets
		if strings.HasSuffix(name, "_ms") {
			buckets = millisecondBuckets
		}
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: s.namespace,
			Name:      name,
			Help:      helpFor(name),
			Buckets:   buckets,
		}, labelNames(labels))
		vec = register(s.registry, vec)
		s.histograms[name] = vec
	}
	s.mu.Unlock()

	if h, err := vec.GetMetricWith(prometheus.Labels(labels)); err == nil {
		h.Observe(value)
	}
}

func (s *Sink) SetGauge(name string, labels port.Labels, value float64) {
	s.mu.Lock()
	vec, ok := s.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: s.namespace,
			Name:      name,
			Help:      helpFor(name),
		}, labelNames(labels))
		vec = register(s.registry, vec)
		s.gauges[name] = vec
	}
	s.mu.Unlock()

	if g, err := vec.GetMetricWith(prometheus.Labels(labels)); err == nil {
		g.Set(value)
	}
}

// register reuses an already registered identical collector
func register[T prometheus.Collector](registry *prometheus.Registry, c T) T {
	if err := registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func labelNames(labels port.Labels) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func helpFor(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
