package model

import "time"

// BanditVariation links a flag variation to the bandit that picks its action.
type BanditVariation struct {
	Key            string `json:"key"`
	FlagKey        string `json:"flagKey"`
	VariationKey   string `json:"variationKey"`
	VariationValue string `json:"variationValue"`
}

// BanditResponse is the bandit model document handed over by the fetch
// collaborator.
type BanditResponse struct {
	Bandits   map[string]BanditConfiguration `json:"bandits"`
	UpdatedAt time.Time                      `json:"updatedAt"`
}

type BanditConfiguration struct {
	BanditKey    string           `json:"banditKey"`
	ModelName    string           `json:"modelName"`
	ModelVersion string           `json:"modelVersion"`
	ModelData    *BanditModelData `json:"modelData"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

type BanditModelData struct {
	Gamma                  float64                       `json:"gamma"`
	DefaultActionScore     float64                       `json:"defaultActionScore"`
	ActionProbabilityFloor float64                       `json:"actionProbabilityFloor"`
	Coefficients           map[string]BanditCoefficients `json:"coefficients"`
}

// BanditCoefficients is the linear model for one action.
type BanditCoefficients struct {
	ActionKey                      string                           `json:"actionKey"`
	Intercept                      float64                          `json:"intercept"`
	SubjectNumericCoefficients     []BanditNumericAttributeCoef     `json:"subjectNumericCoefficients"`
	SubjectCategoricalCoefficients []BanditCategoricalAttributeCoef `json:"subjectCategoricalCoefficients"`
	ActionNumericCoefficients      []BanditNumericAttributeCoef     `json:"actionNumericCoefficients"`
	ActionCategoricalCoefficients  []BanditCategoricalAttributeCoef `json:"actionCategoricalCoefficients"`
}

type BanditNumericAttributeCoef struct {
	AttributeKey            string  `json:"attributeKey"`
	Coefficient             float64 `json:"coefficient"`
	MissingValueCoefficient float64 `json:"missingValueCoefficient"`
}

type BanditCategoricalAttributeCoef struct {
	AttributeKey            string             `json:"attributeKey"`
	ValueCoefficients       map[string]float64 `json:"valueCoefficients"`
	MissingValueCoefficient float64            `json:"missingValueCoefficient"`
}
