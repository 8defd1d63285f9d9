package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/open-feature/assignd/pkg/eval"
	"github.com/open-feature/assignd/pkg/model"
)

// SpanObserver records evaluation stages as events on an existing span.
type SpanObserver struct {
	eval.NoopObserver
	Span trace.Span
}

func NewSpanObserver(span trace.Span) SpanObserver {
	return SpanObserver{Span: span}
}

func (o SpanObserver) OnAllocationResult(index int, allocation *model.Allocation, code model.AllocationCode) {
	o.Span.AddEvent("allocation", trace.WithAttributes(
		attribute.String("allocation.key", allocation.Key),
		attribute.Int("allocation.index", index),
		attribute.String("allocation.code", string(code)),
	))
}

func (o SpanObserver) OnCondition(c *model.Condition, _ model.AttributeValue, result eval.ConditionResult) {
	if result != eval.ConditionSkipped {
		return
	}
	o.Span.AddEvent("condition.skipped", trace.WithAttributes(
		attribute.String("condition.attribute", c.Attribute),
		attribute.String("condition.operator", string(c.Operator)),
		attribute.String("condition.reason", c.SkipReason),
	))
}

func (o SpanObserver) OnResult(assignment *model.Assignment, err error) {
	if err != nil {
		o.Span.RecordError(err)
		o.Span.SetAttributes(attribute.String("feature_flag.evaluation.error", string(model.KindOf(err))))
		o.Span.SetStatus(codes.Error, err.Error())
		return
	}
	o.Span.SetAttributes(
		attribute.String("feature_flag.key", assignment.FlagKey),
		attribute.String("feature_flag.allocation", assignment.AllocationKey),
		attribute.String("feature_flag.variant", assignment.Variation.Key),
		attribute.String("feature_flag.reason", assignment.Reason),
	)
}

func (o SpanObserver) OnBanditResult(result *model.BanditResult, err error) {
	attrs := []attribute.KeyValue{attribute.String("bandit.variation", result.Variation)}
	if result.Action != nil {
		attrs = append(attrs, attribute.String("bandit.action", *result.Action))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("bandit.error", string(model.KindOf(err))))
	}
	o.Span.AddEvent("bandit", trace.WithAttributes(attrs...))
}
