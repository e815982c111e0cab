// Package metrics exposes Prometheus instrumentation for the generation path.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"seqgen/internal/core/apperror"
	"seqgen/internal/domain/sequence"
)

// Recorder implements sequence.Hooks on Prometheus collectors.
type Recorder struct {
	generated *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewRecorder registers the engine's collectors with reg. Pass
// prometheus.DefaultRegisterer for the standard /metrics endpoint.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		generated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seqgen",
			Name:      "generated_total",
			Help:      "Sequence numbers generated, by scope and sequence.",
		}, []string{"scope", "sequence"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seqgen",
			Name:      "generation_failures_total",
			Help:      "Failed generation attempts, by error code.",
		}, []string{"scope", "sequence", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "seqgen",
			Name:      "generation_duration_seconds",
			Help:      "End-to-end generation latency.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"scope", "sequence"}),
	}
}

var _ sequence.Hooks = (*Recorder)(nil)

// ObserveGeneration implements sequence.Hooks.
func (r *Recorder) ObserveGeneration(scope, name string, err error, elapsed time.Duration) {
	r.duration.WithLabelValues(scope, name).Observe(elapsed.Seconds())
	if err != nil {
		code := apperror.CodeInternal
		if appErr, ok := apperror.AsAppError(err); ok {
			code = appErr.Code
		}
		r.failures.WithLabelValues(scope, name, code).Inc()
		return
	}
	r.generated.WithLabelValues(scope, name).Inc()
}
