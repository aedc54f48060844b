package build

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the build metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "vpack").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for build duration.
	// Default: prometheus.DefBuckets
	Buckets []float64
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "vpack",
		Buckets:   prometheus.DefBuckets,
	}
}

// metrics holds the Prometheus collectors of one Builder.
type metrics struct {
	buildsTotal        *prometheus.CounterVec
	buildDuration      *prometheus.HistogramVec
	modulesTransformed prometheus.Counter
	cacheHits          prometheus.Counter
	assetsEmitted      prometheus.Counter
	graphModules       prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer, config MetricsConfig) *metrics {
	if config.Namespace == "" {
		config.Namespace = "vpack"
	}
	if len(config.Buckets) == 0 {
		config.Buckets = prometheus.DefBuckets
	}
	factory := promauto.With(reg)

	return &metrics{
		buildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "builds_total",
			Help:        "Total number of compilations by status",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		buildDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "build_duration_seconds",
			Help:        "Compilation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"status"}),

		modulesTransformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "modules_transformed_total",
			Help:        "Total number of modules run through the transform chain",
			ConstLabels: config.ConstLabels,
		}),

		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "transform_cache_hits_total",
			Help:        "Total number of modules served from the transform memo",
			ConstLabels: config.ConstLabels,
		}),

		assetsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "assets_emitted_total",
			Help:        "Total number of assets emitted",
			ConstLabels: config.ConstLabels,
		}),

		graphModules: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "graph_modules",
			Help:        "Number of modules in the last successful graph",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// record updates the collectors for a finished compilation.
func (m *metrics) record(c *Compilation) {
	status := c.Status.String()
	m.buildsTotal.WithLabelValues(status).Inc()
	m.buildDuration.WithLabelValues(status).Observe(c.Duration.Seconds())
	m.modulesTransformed.Add(float64(c.Stats.Transformed))
	m.cacheHits.Add(float64(c.Stats.Cached))
	if c.Status == StatusSucceeded {
		m.assetsEmitted.Add(float64(c.Stats.Assets))
		m.graphModules.Set(float64(c.Stats.Modules))
	}
}
