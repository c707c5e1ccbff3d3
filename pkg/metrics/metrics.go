// Package metrics holds the Prometheus instruments of a publishing
// server.
package metrics

import (
	"time"

	"github.com/hasgeek/nodular/pkg/traverse"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nodular"

// Publish outcomes.
const (
	OutcomeRendered         = "rendered"
	OutcomeRedirect         = "redirect"
	OutcomeNotFound         = "not_found"
	OutcomeMethodNotAllowed = "method_not_allowed"
	OutcomeGone             = "gone"
	OutcomeForbidden        = "forbidden"
	OutcomeError            = "error"
)

// Metrics counts traversals and publishes.
type Metrics struct {
	// TraverseTotal counts traversals by status.
	TraverseTotal *prometheus.CounterVec
	// PublishTotal counts publish calls by outcome.
	PublishTotal *prometheus.CounterVec
	// PublishDuration measures publish calls end to end.
	PublishDuration prometheus.Histogram
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TraverseTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traverse_total",
			Help:      "Path traversals by resulting status.",
		}, []string{"status"}),
		PublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Publish calls by outcome.",
		}, []string{"outcome"}),
		PublishDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time spent publishing a path.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
}

// ObserveTraverse counts one traversal. It fits traverse.WithObserver.
func (m *Metrics) ObserveTraverse(s traverse.Status) {
	m.TraverseTotal.WithLabelValues(s.String()).Inc()
}

// ObservePublish records one publish call that started at start.
func (m *Metrics) ObservePublish(outcome string, start time.Time) {
	m.PublishTotal.WithLabelValues(outcome).Inc()
	m.PublishDuration.Observe(time.Since(start).Seconds())
}
