// Package metrics exposes Prometheus instrumentation for the replicated
// store: the log reader, the local Pebble databases and the ops endpoint.
//
// Every metric is registered on a private registry so that tests and
// multiple server instances in one process do not collide. Names follow
// {namespace}_{subsystem}_{name}_{unit}.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls registry construction.
type Config struct {
	// Namespace prefixes every metric name.
	Namespace string

	// IncludeGoCollector adds go_* runtime metrics.
	IncludeGoCollector bool

	// IncludeProcessCollector adds process_* metrics.
	IncludeProcessCollector bool

	// Buckets for latency histograms, in seconds.
	Buckets []float64
}

// DefaultConfig returns the configuration used by the server.
func DefaultConfig() Config {
	return Config{
		Namespace:               "logkv",
		IncludeGoCollector:      true,
		IncludeProcessCollector: true,
		Buckets: []float64{
			0.0005, 0.001, 0.002, 0.005, 0.01, 0.025,
			0.05, 0.1, 0.25, 0.5, 1, 2, 5,
		},
	}
}

// Registry owns the Prometheus registry and the subsystem metrics.
type Registry struct {
	prom   *prometheus.Registry
	config Config

	Reader  *ReaderMetrics
	Storage *StorageMetrics
}

// NewRegistry creates a registry with all subsystems registered.
func NewRegistry(config Config) *Registry {
	if config.Namespace == "" {
		config.Namespace = DefaultConfig().Namespace
	}
	if len(config.Buckets) == 0 {
		config.Buckets = DefaultConfig().Buckets
	}
	r := &Registry{prom: prometheus.NewRegistry(), config: config}

	if config.IncludeGoCollector {
		r.prom.MustRegister(collectors.NewGoCollector())
	}
	if config.IncludeProcessCollector {
		r.prom.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	r.Reader = newReaderMetrics(r)
	r.Storage = newStorageMetrics(r)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.prom }

func (r *Registry) newCounter(opts prometheus.CounterOpts) prometheus.Counter {
	opts.Namespace = r.config.Namespace
	c := prometheus.NewCounter(opts)
	r.prom.MustRegister(c)
	return c
}

func (r *Registry) newCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	opts.Namespace = r.config.Namespace
	c := prometheus.NewCounterVec(opts, labels)
	r.prom.MustRegister(c)
	return c
}

func (r *Registry) newGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	opts.Namespace = r.config.Namespace
	g := prometheus.NewGauge(opts)
	r.prom.MustRegister(g)
	return g
}

func (r *Registry) newHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	opts.Namespace = r.config.Namespace
	if opts.Buckets == nil {
		opts.Buckets = r.config.Buckets
	}
	h := prometheus.NewHistogram(opts)
	r.prom.MustRegister(h)
	return h
}

func (r *Registry) newHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	opts.Namespace = r.config.Namespace
	if opts.Buckets == nil {
		opts.Buckets = r.config.Buckets
	}
	h := prometheus.NewHistogramVec(opts, labels)
	r.prom.MustRegister(h)
	return h
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func seconds(d time.Duration) float64 { return d.Seconds() }
