// Package bandit is the default contextual bandit action selector: a linear
// score per action, inverse-gap weighting, and a deterministic draw.
package bandit

import (
	"errors"
	"math"
	"sort"

	"github.com/open-feature/assignd/pkg/model"
	"github.com/open-feature/assignd/pkg/shard"
)

const totalShards = 10000

var ErrNoActions = errors.New("no actions to select from")

type Input struct {
	FlagKey           string
	SubjectKey        string
	SubjectAttributes model.ContextAttributes
	Actions           map[string]model.ContextAttributes
	Model             *model.BanditModelData
}

// Selection is the chosen action plus the scores and weights it was drawn from.
type Selection struct {
	ActionKey     string             `json:"actionKey"`
	ActionWeight  float64            `json:"actionWeight"`
	OptimalityGap float64            `json:"optimalityGap"`
	Scores        map[string]float64 `json:"scores"`
	Weights       map[string]float64 `json:"weights"`
}

type Selector struct {
	sharder shard.Sharder
}

func NewSelector(sharder shard.Sharder) *Selector {
	if sharder == nil {
		sharder = shard.MD5Sharder{}
	}
	return &Selector{sharder: sharder}
}

func (s *Selector) Select(in Input) (Selection, error) {
	if len(in.Actions) == 0 {
		return Selection{}, ErrNoActions
	}
	m := in.Model
	if m == nil {
		m = &model.BanditModelData{}
	}

	keys := make([]string, 0, len(in.Actions))
	for k := range in.Actions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	scores := make(map[string]float64, len(keys))
	for _, k := range keys {
		coef, ok := m.Coefficients[k]
		if !ok {
			scores[k] = m.DefaultActionScore
			continue
		}
		scores[k] = Score(coef, in.SubjectAttributes, in.Actions[k])
	}

	weights, best := Weigh(keys, scores, m.Gamma, m.ActionProbabilityFloor)

	shuffled := make([]string, len(keys))
	copy(shuffled, keys)
	order := make(map[string]uint64, len(keys))
	for _, k := range shuffled {
		order[k] = s.sharder.Shard(in.FlagKey+"-"+in.SubjectKey+"-"+k, totalShards)
	}
	sort.SliceStable(shuffled, func(i, j int) bool {
		oi, oj := order[shuffled[i]], order[shuffled[j]]
		if oi != oj {
			return oi < oj
		}
		return shuffled[i] < shuffled[j]
	})

	draw := float64(s.sharder.Shard(in.FlagKey+"-"+in.SubjectKey, totalShards)) / totalShards
	selected := shuffled[len(shuffled)-1]
	cumulative := 0.0
	for _, k := range shuffled {
		cumulative += weights[k]
		if cumulative > draw {
			selected = k
			break
		}
	}

	return Selection{
		ActionKey:     selected,
		ActionWeight:  weights[selected],
		OptimalityGap: scores[best] - scores[selected],
		Scores:        scores,
		Weights:       weights,
	}, nil
}

// Score evaluates one action's linear model.
func Score(coef model.BanditCoefficients, subject, action model.ContextAttributes) float64 {
	score := coef.Intercept
	score += numericScore(coef.SubjectNumericCoefficients, subject.Numeric)
	score += categoricalScore(coef.SubjectCategoricalCoefficients, subject.Categorical)
	score += numericScore(coef.ActionNumericCoefficients, action.Numeric)
	score += categoricalScore(coef.ActionCategoricalCoefficients, action.Categorical)
	return score
}

func numericScore(coefs []model.BanditNumericAttributeCoef, attrs map[string]float64) float64 {
	total := 0.0
	for _, c := range coefs {
		v, ok := attrs[c.AttributeKey]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			total += c.MissingValueCoefficient
			continue
		}
		total += v * c.Coefficient
	}
	return total
}

func categoricalScore(coefs []model.BanditCategoricalAttributeCoef, attrs map[string]string) float64 {
	total := 0.0
	for _, c := range coefs {
		v, ok := attrs[c.AttributeKey]
		if !ok {
			total += c.MissingValueCoefficient
			continue
		}
		if w, ok := c.ValueCoefficients[v]; ok {
			total += w
		} else {
			total += c.MissingValueCoefficient
		}
	}
	return total
}

// Weigh turns scores into selection probabilities. keys must be sorted; the
// best action is the highest score, ties going to the first key.
func Weigh(keys []string, scores map[string]float64, gamma, floor float64) (map[string]float64, string) {
	best := keys[0]
	for _, k := range keys[1:] {
		if scores[k] > scores[best] {
			best = k
		}
	}

	n := float64(len(keys))
	minProbability := floor / n
	weights := make(map[string]float64, len(keys))
	remaining := 1.0
	for _, k := range keys {
		if k == best {
			continue
		}
		w := 1 / (n + gamma*(scores[best]-scores[k]))
		w = math.Max(w, minProbability)
		weights[k] = w
		remaining -= w
	}
	weights[best] = math.Max(remaining, 0)
	return weights, best
}
