// Package metrics provides Prometheus-based metrics recording for pipeline
// operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder observes pipeline activity. A nil *PrometheusRecorder is a valid
// no-op recorder so callers never nil-check.
type Recorder interface {
	ObserveFeature(role string, status string, duration time.Duration)
	ObserveBuild(status string, features int, duration time.Duration)
	IncRepair(outcome string)
	ObserveTokens(role string, tokens int)
}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	featuresTotal   *prometheus.CounterVec
	featureDuration *prometheus.HistogramVec
	buildsTotal     *prometheus.CounterVec
	buildDuration   prometheus.Histogram
	buildFeatures   prometheus.Histogram
	repairsTotal    *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder registered on reg, or on the
// default registerer when reg is nil.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	if reg == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
	}

	return &PrometheusRecorder{
		featuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_features_total",
				Help: "Total number of feature pipeline passes by role and status",
			},
			[]string{"role", "status"},
		),
		featureDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_feature_duration_seconds",
				Help:    "Duration of per-feature pipeline steps in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"role"},
		),
		buildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_builds_total",
				Help: "Total number of full builds by status",
			},
			[]string{"status"},
		),
		buildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pipeline_build_duration_seconds",
				Help:    "Duration of full builds in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		buildFeatures: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pipeline_build_features",
				Help:    "Number of features per build",
				Buckets: prometheus.LinearBuckets(1, 2, 10),
			},
		),
		repairsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_repairs_total",
				Help: "Total number of execution repair attempts by outcome",
			},
			[]string{"outcome"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_prompt_tokens_total",
				Help: "Approximate prompt tokens sent per role",
			},
			[]string{"role"},
		),
	}
}

// ObserveFeature records one per-feature pipeline step.
func (p *PrometheusRecorder) ObserveFeature(role, status string, duration time.Duration) {
	if p == nil {
		return
	}
	p.featuresTotal.WithLabelValues(role, status).Inc()
	p.featureDuration.WithLabelValues(role).Observe(duration.Seconds())
}

// ObserveBuild records a completed build.
func (p *PrometheusRecorder) ObserveBuild(status string, features int, duration time.Duration) {
	if p == nil {
		return
	}
	p.buildsTotal.WithLabelValues(status).Inc()
	p.buildDuration.Observe(duration.Seconds())
	p.buildFeatures.Observe(float64(features))
}

// IncRepair counts a repair attempt outcome.
func (p *PrometheusRecorder) IncRepair(outcome string) {
	if p == nil {
		return
	}
	p.repairsTotal.WithLabelValues(outcome).Inc()
}

// ObserveTokens records approximate prompt token usage for a role.
func (p *PrometheusRecorder) ObserveTokens(role string, tokens int) {
	if p == nil {
		return
	}
	p.tokensTotal.WithLabelValues(role).Add(float64(tokens))
}
