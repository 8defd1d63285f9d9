// Package telemetry provides evaluation observers that export metrics and
// trace events.
package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/open-feature/assignd/pkg/eval"
	"github.com/open-feature/assignd/pkg/model"
)

const (
	namespace = "assignd"
	subsystem = "evaluation"
)

// Metrics holds the collectors shared by every MetricsObserver.
type Metrics struct {
	evaluations *prometheus.CounterVec
	allocations *prometheus.CounterVec
	skipped     prometheus.Counter
	bandits     *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors. A nil registerer uses the
// default prometheus registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "flags_total",
			Help:      "Flag evaluations by flag and outcome.",
		}, []string{"flag", "outcome"}),
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "allocations_total",
			Help:      "Allocation evaluations by result code.",
		}, []string{"code"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "conditions_skipped_total",
			Help:      "Conditions excluded from matching because their definition is malformed.",
		}),
		bandits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bandit_actions_total",
			Help:      "Bandit evaluations by outcome.",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{m.evaluations, m.allocations, m.skipped, m.bandits} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("unable to register evaluation metrics: %w", err)
		}
	}
	return m, nil
}

// Observer returns an evaluation observer that records into m.
func (m *Metrics) Observer() MetricsObserver {
	return MetricsObserver{metrics: m}
}

type MetricsObserver struct {
	eval.NoopObserver
	metrics *Metrics
}

func (o MetricsObserver) OnCondition(_ *model.Condition, _ model.AttributeValue, result eval.ConditionResult) {
	if result == eval.ConditionSkipped {
		o.metrics.skipped.Inc()
	}
}

func (o MetricsObserver) OnAllocationResult(_ int, _ *model.Allocation, code model.AllocationCode) {
	o.metrics.allocations.WithLabelValues(string(code)).Inc()
}

func (o MetricsObserver) OnResult(assignment *model.Assignment, err error) {
	if err != nil {
		var flag string
		var evalErr *model.EvaluationError
		if errors.As(err, &evalErr) {
			flag = evalErr.FlagKey
		}
		o.metrics.evaluations.WithLabelValues(flag, string(model.KindOf(err))).Inc()
		return
	}
	o.metrics.evaluations.WithLabelValues(assignment.FlagKey, string(model.AllocationMatch)).Inc()
}

func (o MetricsObserver) OnBanditResult(result *model.BanditResult, err error) {
	switch {
	case err != nil:
		o.metrics.bandits.WithLabelValues(string(model.KindOf(err))).Inc()
	case result.Action != nil:
		o.metrics.bandits.WithLabelValues("ACTION_SELECTED").Inc()
	default:
		o.metrics.bandits.WithLabelValues("NO_ACTION").Inc()
	}
}
