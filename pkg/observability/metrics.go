// Package observability exposes engine lifecycle events as Prometheus
// metrics.
package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dugoutlabs/dugout/pkg/domain"
)

// Metrics holds the collectors fed by engine lifecycle hooks.
type Metrics struct {
	stepRuns     *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	interrupts   *prometheus.CounterVec
	checkpoints  prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stepRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dugout_step_runs_total",
				Help: "Total number of step executions",
			},
			[]string{"step"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dugout_step_duration_seconds",
				Help: "Duration of step executions",
			},
			[]string{"step"},
		),
		interrupts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dugout_interrupts_total",
				Help: "Total number of raised interrupts",
			},
			[]string{"step", "kind"},
		),
		checkpoints: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dugout_checkpoints_total",
				Help: "Total number of persisted checkpoints",
			},
		),
	}
	reg.MustRegister(m.stepRuns, m.stepDuration, m.interrupts, m.checkpoints)
	return m
}

// Hooks returns lifecycle hooks that feed the collectors. Existing hooks can
// be chained by the caller; these never block.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnd: func(ctx context.Context, ev *domain.StepEvent) {
			m.stepRuns.WithLabelValues(ev.Step).Inc()
			m.stepDuration.WithLabelValues(ev.Step).Observe(float64(ev.Took) / float64(time.Second))
		},
		OnInterrupt: func(ctx context.Context, ev *domain.InterruptEvent) {
			m.interrupts.WithLabelValues(ev.Step, string(ev.Kind)).Inc()
		},
		OnCheckpoint: func(ctx context.Context, ev *domain.CheckpointEvent) {
			m.checkpoints.Inc()
		},
	}
}
