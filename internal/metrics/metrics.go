// Package metrics exposes Prometheus instruments for scoring, segmentation
// and session persistence.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "navigator"

// Metrics groups the service's collectors
type Metrics struct {
	registry *prometheus.Registry

	ScoresComputed      prometheus.Counter
	ScorePercentage     prometheus.Histogram
	SegmentsSelected    *prometheus.CounterVec
	PromotionsArmed     prometheus.Counter
	PromotionsFired     prometheus.Counter
	PersistenceFailures *prometheus.CounterVec
	TableUpdates        *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ScoresComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_computed_total",
			Help:      "Attribute records scored.",
		}),
		ScorePercentage: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score_percentage",
			Help:      "Distribution of computed conversion potential scores.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		SegmentsSelected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_selected_total",
			Help:      "Segment selections by segment and decision source.",
		}, []string{"segment", "source"}),
		PromotionsArmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotions_armed_total",
			Help:      "Promotion dwell timers started by a qualifying interaction.",
		}),
		PromotionsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotions_fired_total",
			Help:      "Sessions promoted from general to highIntent.",
		}),
		PersistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Swallowed session store failures by operation.",
		}, []string{"op"}),
		TableUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_table_updates_total",
			Help:      "Rule table uploads by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.ScoresComputed,
		m.ScorePercentage,
		m.SegmentsSelected,
		m.PromotionsArmed,
		m.PromotionsFired,
		m.PersistenceFailures,
		m.TableUpdates,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry backing m
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
