package eval

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/open-feature/assignd/pkg/model"
	"github.com/open-feature/assignd/pkg/store"
)

// EvaluationDetails explains how a single evaluation reached its result.
type EvaluationDetails struct {
	FlagKey           string           `json:"flagKey"`
	SubjectKey        string           `json:"subjectKey"`
	SubjectAttributes model.Attributes `json:"subjectAttributes,omitempty"`
	Timestamp         time.Time        `json:"timestamp"`

	ConfigFetchedAt   time.Time `json:"configFetchedAt"`
	ConfigPublishedAt time.Time `json:"configPublishedAt"`
	Environment       string    `json:"environmentName,omitempty"`

	// Code is MATCH on success, otherwise the failure kind.
	Code        string           `json:"flagEvaluationCode"`
	Description string           `json:"flagEvaluationDescription"`
	Variation   *model.Variation `json:"variation,omitempty"`

	BanditKey    string  `json:"banditKey,omitempty"`
	BanditAction *string `json:"banditAction,omitempty"`

	Allocations []AllocationDetails `json:"allocations"`
}

type AllocationDetails struct {
	Key          string               `json:"key"`
	Index        int                  `json:"orderPosition"`
	Code         model.AllocationCode `json:"allocationEvaluationCode"`
	Rules        []RuleDetails        `json:"evaluatedRules,omitempty"`
	MatchedSplit *model.Split         `json:"matchedSplit,omitempty"`
}

type RuleDetails struct {
	Index      int                `json:"index"`
	Matched    bool               `json:"matched"`
	Conditions []ConditionDetails `json:"conditions"`
}

type ConditionDetails struct {
	Attribute      string               `json:"attribute"`
	Operator       model.Operator       `json:"operator"`
	Value          json.RawMessage      `json:"value"`
	AttributeValue model.AttributeValue `json:"attributeValue"`
	Result         ConditionResult      `json:"result"`
	SkipReason     string               `json:"skipReason,omitempty"`
}

// DetailsRecorder is an Observer that builds EvaluationDetails.
type DetailsRecorder struct {
	details    EvaluationDetails
	current    int
	conditions []ConditionDetails
}

func NewDetailsRecorder(flagKey string, subject model.Subject, now time.Time) *DetailsRecorder {
	return &DetailsRecorder{
		details: EvaluationDetails{
			FlagKey:           flagKey,
			SubjectKey:        subject.Key,
			SubjectAttributes: subject.Attributes,
			Timestamp:         now,
			Allocations:       []AllocationDetails{},
		},
		current: -1,
	}
}

func (r *DetailsRecorder) Details() EvaluationDetails { return r.details }

func (r *DetailsRecorder) OnConfiguration(cfg *store.Configuration) {
	md := cfg.Metadata()
	r.details.ConfigFetchedAt = md.FetchedAt
	r.details.ConfigPublishedAt = md.CreatedAt
	r.details.Environment = md.Environment
}

// OnFlag lists every allocation up front so those never reached stay UNEVALUATED.
func (r *DetailsRecorder) OnFlag(_ string, entry *model.TryParse[model.Flag], found bool) {
	if !found || !entry.Ok() {
		return
	}
	for i, a := range entry.Value.Allocations {
		r.details.Allocations = append(r.details.Allocations, AllocationDetails{
			Key:   a.Key,
			Index: i,
			Code:  model.AllocationUnevaluated,
		})
	}
}

func (r *DetailsRecorder) OnAllocation(index int, _ *model.Allocation) {
	r.current = index
	r.conditions = nil
}

func (r *DetailsRecorder) OnCondition(c *model.Condition, value model.AttributeValue, result ConditionResult) {
	r.conditions = append(r.conditions, ConditionDetails{
		Attribute:      c.Attribute,
		Operator:       c.Operator,
		Value:          c.Value,
		AttributeValue: value,
		Result:         result,
		SkipReason:     c.SkipReason,
	})
}

func (r *DetailsRecorder) OnRule(index int, _ *model.Rule, matched bool) {
	if a := r.allocation(); a != nil {
		a.Rules = append(a.Rules, RuleDetails{Index: index, Matched: matched, Conditions: r.conditions})
	}
	r.conditions = nil
}

func (r *DetailsRecorder) OnSplit(split *model.Split, matched bool) {
	if a := r.allocation(); a != nil && matched {
		a.MatchedSplit = split
	}
}

func (r *DetailsRecorder) OnAllocationResult(index int, _ *model.Allocation, code model.AllocationCode) {
	if index < len(r.details.Allocations) {
		r.details.Allocations[index].Code = code
	}
}

func (r *DetailsRecorder) OnResult(assignment *model.Assignment, err error) {
	if err != nil {
		r.details.Code = string(model.KindOf(err))
		r.details.Description = err.Error()
		return
	}
	v := assignment.Variation
	r.details.Code = string(model.AllocationMatch)
	r.details.Description = "assigned " + v.Key + " by allocation " + assignment.AllocationKey
	r.details.Variation = &v
}

func (r *DetailsRecorder) OnBanditResult(result *model.BanditResult, err error) {
	var evalErr *model.EvaluationError
	switch {
	case result.Event != nil:
		r.details.BanditKey = result.Event.BanditKey
	case errors.As(err, &evalErr):
		r.details.BanditKey = evalErr.BanditKey
	}
	r.details.BanditAction = result.Action
	if err != nil && r.details.Code == string(model.AllocationMatch) {
		r.details.Description += "; bandit: " + err.Error()
	}
}

func (r *DetailsRecorder) allocation() *AllocationDetails {
	if r.current < 0 || r.current >= len(r.details.Allocations) {
		return nil
	}
	return &r.details.Allocations[r.current]
}

// AssignWithDetails evaluates the flag and returns how the result was reached.
func (e *Evaluator) AssignWithDetails(cfg *store.Configuration, flagKey string, subject model.Subject, expected model.VariationType) (*model.Assignment, EvaluationDetails, error) {
	rec := NewDetailsRecorder(flagKey, subject, e.now())
	a, err := assign(e, rec, cfg, flagKey, subject, expected)
	return a, rec.Details(), err
}

// BanditActionWithDetails is BanditAction plus the evaluation trace.
func (e *Evaluator) BanditActionWithDetails(
	cfg *store.Configuration,
	flagKey string,
	subjectKey string,
	subjectAttributes model.ContextAttributes,
	actions map[string]model.ContextAttributes,
	defaultVariation string,
) (model.BanditResult, EvaluationDetails, error) {
	subject := model.Subject{Key: subjectKey, Attributes: subjectAttributes.ToGeneric()}
	rec := NewDetailsRecorder(flagKey, subject, e.now())
	result, err := banditAction(e, rec, cfg, flagKey, subjectKey, subjectAttributes, actions, defaultVariation)
	return result, rec.Details(), err
}
