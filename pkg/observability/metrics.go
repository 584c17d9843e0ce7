package observability

import (
	"net/http"

	"github.com/aretw0/covidash/pkg/reactive"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "covidash"

// Metrics holds the collectors fed by graph hooks.
type Metrics struct {
	Evaluations   *prometheus.CounterVec
	EvalDuration  *prometheus.HistogramVec
	Invalidations prometheus.Counter
	FlushDuration prometheus.Histogram
	SinkFailures  *prometheus.CounterVec
	Sessions      prometheus.Gauge
	StoreDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// uses a fresh private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Node evaluations by node, kind and outcome.",
			},
			[]string{"node", "kind", "outcome"},
		),
		EvalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of node evaluations.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"kind"},
		),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidations_total",
			Help:      "Nodes marked dirty by committed batches.",
		}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Duration of sink flushes.",
			Buckets:   prometheus.DefBuckets,
		}),
		SinkFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sink_failures_total",
				Help:      "Failed sink flushes by sink.",
			},
			[]string{"sink"},
		),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Open dashboard sessions.",
		}),
		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_duration_seconds",
				Help:      "Duration of selection store calls by op and outcome.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op", "outcome"},
		),
		gatherer: reg,
	}
	reg.MustRegister(m.Evaluations, m.EvalDuration, m.Invalidations, m.FlushDuration, m.SinkFailures, m.Sessions, m.StoreDuration)
	return m
}

// Hooks returns graph hooks recording into m.
func (m *Metrics) Hooks() reactive.Hooks {
	return reactive.Hooks{
		OnEvaluate: func(e *reactive.EvalEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			m.Evaluations.WithLabelValues(e.Node, string(e.Kind), outcome).Inc()
			m.EvalDuration.WithLabelValues(string(e.Kind)).Observe(e.Duration.Seconds())
		},
		OnInvalidate: func(e *reactive.InvalidateEvent) {
			m.Invalidations.Add(float64(e.Marked))
		},
		OnFlush: func(e *reactive.FlushEvent) {
			m.FlushDuration.Observe(e.Duration.Seconds())
		},
	}
}

// ReportSinkFailure counts a failed sink; it has the reactive.ErrorReporter
// shape.
func (m *Metrics) ReportSinkFailure(sink string, err error) {
	m.SinkFailures.WithLabelValues(sink).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
