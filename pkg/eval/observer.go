package eval

import (
	"github.com/open-feature/assignd/pkg/model"
	"github.com/open-feature/assignd/pkg/store"
)

type ConditionResult uint8

const (
	ConditionMatched ConditionResult = iota
	ConditionFailed
	ConditionSkipped
)

func (r ConditionResult) String() string {
	switch r {
	case ConditionMatched:
		return "MATCHED"
	case ConditionFailed:
		return "FAILED"
	default:
		return "SKIPPED"
	}
}

func (r ConditionResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Observer receives a callback at every stage of an evaluation. Hooks are
// called synchronously on the evaluating goroutine and must not retain the
// pointers they are given past the call unless they treat them as read-only.
//
// Implementations usually embed NoopObserver and override the hooks they need.
// The evaluator is generic over the observer type, so the NoopObserver
// instantiation is compiled separately and its calls are empty.
type Observer interface {
	OnConfiguration(cfg *store.Configuration)
	OnFlag(flagKey string, entry *model.TryParse[model.Flag], found bool)
	OnAllocation(index int, allocation *model.Allocation)
	OnCondition(condition *model.Condition, value model.AttributeValue, result ConditionResult)
	OnRule(index int, rule *model.Rule, matched bool)
	OnSplit(split *model.Split, matched bool)
	OnAllocationResult(index int, allocation *model.Allocation, code model.AllocationCode)
	OnResult(assignment *model.Assignment, err error)
	OnBanditResult(result *model.BanditResult, err error)
}

// NoopObserver ignores every hook.
type NoopObserver struct{}

func (NoopObserver) OnConfiguration(*store.Configuration)                                {}
func (NoopObserver) OnFlag(string, *model.TryParse[model.Flag], bool)                    {}
func (NoopObserver) OnAllocation(int, *model.Allocation)                                 {}
func (NoopObserver) OnCondition(*model.Condition, model.AttributeValue, ConditionResult) {}
func (NoopObserver) OnRule(int, *model.Rule, bool)                                       {}
func (NoopObserver) OnSplit(*model.Split, bool)                                          {}
func (NoopObserver) OnAllocationResult(int, *model.Allocation, model.AllocationCode)     {}
func (NoopObserver) OnResult(*model.Assignment, error)                                   {}
func (NoopObserver) OnBanditResult(*model.BanditResult, error)                           {}

// Observers fans every hook out to each observer in order.
type Observers []Observer

func (o Observers) OnConfiguration(cfg *store.Configuration) {
	for _, ob := range o {
		ob.OnConfiguration(cfg)
	}
}

func (o Observers) OnFlag(flagKey string, entry *model.TryParse[model.Flag], found bool) {
	for _, ob := range o {
		ob.OnFlag(flagKey, entry, found)
	}
}

func (o Observers) OnAllocation(index int, allocation *model.Allocation) {
	for _, ob := range o {
		ob.OnAllocation(index, allocation)
	}
}

func (o Observers) OnCondition(condition *model.Condition, value model.AttributeValue, result ConditionResult) {
	for _, ob := range o {
		ob.OnCondition(condition, value, result)
	}
}

func (o Observers) OnRule(index int, rule *model.Rule, matched bool) {
	for _, ob := range o {
		ob.OnRule(index, rule, matched)
	}
}

func (o Observers) OnSplit(split *model.Split, matched bool) {
	for _, ob := range o {
		ob.OnSplit(split, matched)
	}
}

func (o Observers) OnAllocationResult(index int, allocation *model.Allocation, code model.AllocationCode) {
	for _, ob := range o {
		ob.OnAllocationResult(index, allocation, code)
	}
}

func (o Observers) OnResult(assignment *model.Assignment, err error) {
	for _, ob := range o {
		ob.OnResult(assignment, err)
	}
}

func (o Observers) OnBanditResult(result *model.BanditResult, err error) {
	for _, ob := range o {
		ob.OnBanditResult(result, err)
	}
}
