package model

import "time"

const (
	StaticReason         = "STATIC"
	TargetingMatchReason = "TARGETING_MATCH"
	SplitReason          = "SPLIT"
)

// Assignment is a successful flag evaluation.
type Assignment struct {
	FlagKey       string            `json:"flagKey"`
	AllocationKey string            `json:"allocationKey"`
	Variation     Variation         `json:"variation"`
	VariationType VariationType     `json:"variationType"`
	Reason        string            `json:"reason"`
	ExtraLogging  map[string]string `json:"extraLogging,omitempty"`

	// Event is set when the matched allocation asks for exposures to be logged.
	Event *AssignmentEvent `json:"event,omitempty"`
}

type AssignmentEvent struct {
	FeatureFlag       string            `json:"featureFlag"`
	Allocation        string            `json:"allocation"`
	Experiment        string            `json:"experiment"`
	Variation         string            `json:"variation"`
	Subject           string            `json:"subject"`
	SubjectAttributes Attributes        `json:"subjectAttributes"`
	Timestamp         time.Time         `json:"timestamp"`
	ExtraLogging      map[string]string `json:"extraLogging,omitempty"`
	MetaData          map[string]string `json:"metaData,omitempty"`
}

// BanditResult always carries a variation. Action is nil when no bandit
// action was selected.
type BanditResult struct {
	Variation string       `json:"variation"`
	Action    *string      `json:"action"`
	Event     *BanditEvent `json:"event,omitempty"`
}

type BanditEvent struct {
	FlagKey                      string             `json:"flagKey"`
	BanditKey                    string             `json:"banditKey"`
	Subject                      string             `json:"subject"`
	Action                       string             `json:"action"`
	ActionProbability            float64            `json:"actionProbability"`
	OptimalityGap                float64            `json:"optimalityGap"`
	ModelVersion                 string             `json:"modelVersion"`
	Timestamp                    time.Time          `json:"timestamp"`
	SubjectNumericAttributes     map[string]float64 `json:"subjectNumericAttributes"`
	SubjectCategoricalAttributes map[string]string  `json:"subjectCategoricalAttributes"`
	ActionNumericAttributes      map[string]float64 `json:"actionNumericAttributes"`
	ActionCategoricalAttributes  map[string]string  `json:"actionCategoricalAttributes"`
	MetaData                     map[string]string  `json:"metaData,omitempty"`
}
