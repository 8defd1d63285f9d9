package model

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind is the closed set of reasons an evaluation produced no assignment
// (or, for bandits, a degraded one).
type FailureKind string

const (
	ConfigurationMissingErrorCode  FailureKind = "CONFIGURATION_MISSING"
	FlagNotFoundErrorCode          FailureKind = "FLAG_NOT_FOUND"
	FlagParseFailedErrorCode       FailureKind = "FLAG_PARSE_FAILED"
	FlagDisabledErrorCode          FailureKind = "FLAG_DISABLED"
	TypeMismatchErrorCode          FailureKind = "TYPE_MISMATCH"
	NoAllocationMatchedErrorCode   FailureKind = "NO_ALLOCATION_MATCHED"
	VariationNotFoundErrorCode     FailureKind = "VARIATION_NOT_FOUND"
	BanditNotFoundErrorCode        FailureKind = "BANDIT_NOT_FOUND"
	BanditModelMissingErrorCode    FailureKind = "BANDIT_MODEL_MISSING"
	BanditSelectionFailedErrorCode FailureKind = "BANDIT_SELECTION_FAILED"
)

var (
	ErrConfigurationMissing  = &EvaluationError{Kind: ConfigurationMissingErrorCode}
	ErrFlagNotFound          = &EvaluationError{Kind: FlagNotFoundErrorCode}
	ErrFlagParseFailed       = &EvaluationError{Kind: FlagParseFailedErrorCode}
	ErrFlagDisabled          = &EvaluationError{Kind: FlagDisabledErrorCode}
	ErrTypeMismatch          = &EvaluationError{Kind: TypeMismatchErrorCode}
	ErrNoAllocationMatched   = &EvaluationError{Kind: NoAllocationMatchedErrorCode}
	ErrVariationNotFound     = &EvaluationError{Kind: VariationNotFoundErrorCode}
	ErrBanditNotFound        = &EvaluationError{Kind: BanditNotFoundErrorCode}
	ErrBanditModelMissing    = &EvaluationError{Kind: BanditModelMissingErrorCode}
	ErrBanditSelectionFailed = &EvaluationError{Kind: BanditSelectionFailedErrorCode}
)

// EvaluationError is the typed failure returned by the evaluator. It carries
// enough context to be logged without looking at the configuration.
type EvaluationError struct {
	Kind    FailureKind `json:"kind"`
	FlagKey string      `json:"flagKey,omitempty"`

	// Allocations lists why each allocation was rejected for
	// NO_ALLOCATION_MATCHED.
	Allocations []AllocationEvaluation `json:"allocations,omitempty"`

	Expected VariationType `json:"expected,omitempty"`
	Actual   VariationType `json:"actual,omitempty"`

	BanditKey    string `json:"banditKey,omitempty"`
	VariationKey string `json:"variationKey,omitempty"`

	Cause error `json:"-"`
}

func (e *EvaluationError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.FlagKey != "" {
		fmt.Fprintf(&b, ": flag %q", e.FlagKey)
	}
	switch e.Kind {
	case TypeMismatchErrorCode:
		fmt.Fprintf(&b, ": expected %s, found %s", e.Expected, e.Actual)
	case NoAllocationMatchedErrorCode:
		for i, a := range e.Allocations {
			if i == 0 {
				b.WriteString(":")
			} else {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, " %s=%s", a.Key, a.Code)
		}
	case VariationNotFoundErrorCode:
		fmt.Fprintf(&b, ": variation %q", e.VariationKey)
	case BanditNotFoundErrorCode, BanditModelMissingErrorCode, BanditSelectionFailedErrorCode:
		if e.BanditKey != "" {
			fmt.Fprintf(&b, ": bandit %q", e.BanditKey)
		}
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *EvaluationError) Unwrap() error { return e.Cause }

// Is matches on Kind so errors.Is(err, ErrFlagNotFound) works for any flag.
func (e *EvaluationError) Is(target error) bool {
	var t *EvaluationError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the failure kind of err, or "" if err is not an evaluation error.
func KindOf(err error) FailureKind {
	var e *EvaluationError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AllocationCode explains the outcome of evaluating one allocation.
type AllocationCode string

const (
	AllocationMatch               AllocationCode = "MATCH"
	AllocationBeforeStartTime     AllocationCode = "BEFORE_START_TIME"
	AllocationAfterEndTime        AllocationCode = "AFTER_END_TIME"
	AllocationFailingRule         AllocationCode = "FAILING_RULE"
	AllocationTrafficExposureMiss AllocationCode = "TRAFFIC_EXPOSURE_MISS"
	AllocationUnevaluated         AllocationCode = "UNEVALUATED"
)

type AllocationEvaluation struct {
	Key   string         `json:"key"`
	Index int            `json:"index"`
	Code  AllocationCode `json:"code"`
}
