package eval

import (
	"encoding/json"
	"time"

	"github.com/open-feature/assignd/pkg/bandit"
	"github.com/open-feature/assignd/pkg/model"
	"github.com/open-feature/assignd/pkg/shard"
	"github.com/open-feature/assignd/pkg/store"
)

// Evaluator resolves flag assignments and bandit actions against a
// Configuration snapshot. It holds no mutable state and is safe for
// concurrent use.
type Evaluator struct {
	sharder  shard.Sharder
	selector BanditSelector
	now      func() time.Time
	metadata map[string]string
}

type Option func(*Evaluator)

func WithSharder(s shard.Sharder) Option {
	return func(e *Evaluator) { e.sharder = s }
}

func WithBanditSelector(s BanditSelector) Option {
	return func(e *Evaluator) { e.selector = s }
}

// WithClock sets the time used for allocation windows and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// WithMetadata attaches metadata to assignment and bandit events.
func WithMetadata(md map[string]string) Option {
	return func(e *Evaluator) { e.metadata = md }
}

func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		sharder: shard.MD5Sharder{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.selector == nil {
		e.selector = bandit.NewSelector(e.sharder)
	}
	return e
}

// Assign evaluates flagKey for subject. expected may be empty to accept any
// variation type.
func (e *Evaluator) Assign(cfg *store.Configuration, flagKey string, subject model.Subject, expected model.VariationType) (*model.Assignment, error) {
	return assign(e, NoopObserver{}, cfg, flagKey, subject, expected)
}

// AssignObserved is Assign with every evaluation stage reported to obs.
func AssignObserved[O Observer](e *Evaluator, obs O, cfg *store.Configuration, flagKey string, subject model.Subject, expected model.VariationType) (*model.Assignment, error) {
	return assign(e, obs, cfg, flagKey, subject, expected)
}

func assign[O Observer](e *Evaluator, obs O, cfg *store.Configuration, flagKey string, subject model.Subject, expected model.VariationType) (*model.Assignment, error) {
	assignment, err := evaluateFlag(e, obs, cfg, flagKey, subject, expected)
	obs.OnResult(assignment, err)
	return assignment, err
}

func evaluateFlag[O Observer](e *Evaluator, obs O, cfg *store.Configuration, flagKey string, subject model.Subject, expected model.VariationType) (*model.Assignment, error) {
	if cfg == nil {
		return nil, &model.EvaluationError{Kind: model.ConfigurationMissingErrorCode, FlagKey: flagKey}
	}
	obs.OnConfiguration(cfg)

	entry, found := cfg.GetFlag(flagKey)
	obs.OnFlag(flagKey, entry, found)
	if !found {
		return nil, &model.EvaluationError{Kind: model.FlagNotFoundErrorCode, FlagKey: flagKey}
	}
	if !entry.Ok() {
		return nil, &model.EvaluationError{Kind: model.FlagParseFailedErrorCode, FlagKey: flagKey, Cause: entry.Err}
	}
	flag := entry.Value
	if !flag.Enabled {
		return nil, &model.EvaluationError{Kind: model.FlagDisabledErrorCode, FlagKey: flagKey}
	}
	if expected != "" && expected != flag.VariationType {
		return nil, &model.EvaluationError{
			Kind:     model.TypeMismatchErrorCode,
			FlagKey:  flagKey,
			Expected: expected,
			Actual:   flag.VariationType,
		}
	}

	now := e.now()
	view := subjectView{key: subject.Key, attrs: subject.Attributes}
	match, rejected, ok := selectAllocation(obs, e.sharder, flag, view, now)
	if !ok {
		return nil, &model.EvaluationError{
			Kind:        model.NoAllocationMatchedErrorCode,
			FlagKey:     flagKey,
			Allocations: rejected,
		}
	}

	variation, ok := flag.Variations[match.split.VariationKey]
	if !ok {
		return nil, &model.EvaluationError{
			Kind:         model.VariationNotFoundErrorCode,
			FlagKey:      flagKey,
			VariationKey: match.split.VariationKey,
		}
	}

	assignment := &model.Assignment{
		FlagKey:       flagKey,
		AllocationKey: match.allocation.Key,
		Variation:     variation,
		VariationType: flag.VariationType,
		Reason:        reasonFor(match),
		ExtraLogging:  match.split.ExtraLogging,
	}
	if match.allocation.DoLog {
		assignment.Event = &model.AssignmentEvent{
			FeatureFlag:       flagKey,
			Allocation:        match.allocation.Key,
			Experiment:        flagKey + "-" + match.allocation.Key,
			Variation:         variation.Key,
			Subject:           subject.Key,
			SubjectAttributes: subject.Attributes,
			Timestamp:         now,
			ExtraLogging:      match.split.ExtraLogging,
			MetaData:          e.metadata,
		}
	}
	return assignment, nil
}

func reasonFor(m allocationMatch) string {
	switch {
	case len(m.allocation.Rules) > 0:
		return model.TargetingMatchReason
	case len(m.split.Shards) > 0:
		return model.SplitReason
	default:
		return model.StaticReason
	}
}

// StringAssignment returns the assigned string, or def alongside the error.
func (e *Evaluator) StringAssignment(cfg *store.Configuration, flagKey string, subject model.Subject, def string) (string, error) {
	a, err := e.Assign(cfg, flagKey, subject, model.StringVariation)
	if err != nil {
		return def, err
	}
	v, _ := a.Variation.Value.AsString()
	return v, nil
}

func (e *Evaluator) IntegerAssignment(cfg *store.Configuration, flagKey string, subject model.Subject, def int64) (int64, error) {
	a, err := e.Assign(cfg, flagKey, subject, model.IntegerVariation)
	if err != nil {
		return def, err
	}
	v, _ := a.Variation.Value.AsInt()
	return v, nil
}

func (e *Evaluator) NumericAssignment(cfg *store.Configuration, flagKey string, subject model.Subject, def float64) (float64, error) {
	a, err := e.Assign(cfg, flagKey, subject, model.NumericVariation)
	if err != nil {
		return def, err
	}
	v, _ := a.Variation.Value.AsFloat()
	return v, nil
}

func (e *Evaluator) BooleanAssignment(cfg *store.Configuration, flagKey string, subject model.Subject, def bool) (bool, error) {
	a, err := e.Assign(cfg, flagKey, subject, model.BooleanVariation)
	if err != nil {
		return def, err
	}
	v, _ := a.Variation.Value.AsBool()
	return v, nil
}

func (e *Evaluator) JSONAssignment(cfg *store.Configuration, flagKey string, subject model.Subject, def json.RawMessage) (json.RawMessage, error) {
	a, err := e.Assign(cfg, flagKey, subject, model.JSONVariation)
	if err != nil {
		return def, err
	}
	v, _ := a.Variation.Value.AsJSON()
	return v, nil
}
