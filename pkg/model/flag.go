package model

import (
	"encoding/json"
	"fmt"
	"time"
)

const DefaultTotalShards = 10000

// UniversalFlagConfig is the flag document handed over by the fetch
// collaborator. Each flag is decoded independently so that one broken flag does
// not take the others down with it.
type UniversalFlagConfig struct {
	CreatedAt   time.Time                    `json:"createdAt"`
	Format      string                       `json:"format,omitempty"`
	Environment Environment                  `json:"environment"`
	Flags       map[string]TryParse[Flag]    `json:"flags"`
	Bandits     map[string][]BanditVariation `json:"bandits,omitempty"`
}

type Environment struct {
	Name string `json:"name"`
}

// TryParse holds either a decoded value or the raw payload that failed to
// decode, together with the reason.
type TryParse[T any] struct {
	Value *T
	Raw   json.RawMessage
	Err   error
}

func Parsed[T any](v T) TryParse[T] {
	return TryParse[T]{Value: &v}
}

func (p TryParse[T]) Ok() bool { return p.Value != nil }

func (p *TryParse[T]) UnmarshalJSON(data []byte) error {
	p.Raw = append(json.RawMessage(nil), data...)
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		p.Value, p.Err = nil, err
		return nil
	}
	p.Value, p.Err = &v, nil
	return nil
}

func (p TryParse[T]) MarshalJSON() ([]byte, error) {
	if p.Raw != nil {
		return p.Raw, nil
	}
	if p.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value)
}

type Flag struct {
	Key           string               `json:"key"`
	Enabled       bool                 `json:"enabled"`
	VariationType VariationType        `json:"variationType"`
	Variations    map[string]Variation `json:"variations"`
	Allocations   []Allocation         `json:"allocations"`
	TotalShards   uint64               `json:"totalShards"`
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	type wireVariation struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	var w struct {
		Key           string                   `json:"key"`
		Enabled       bool                     `json:"enabled"`
		VariationType VariationType            `json:"variationType"`
		Variations    map[string]wireVariation `json:"variations"`
		Allocations   []Allocation             `json:"allocations"`
		TotalShards   *uint64                  `json:"totalShards"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.VariationType.Valid() {
		return fmt.Errorf("flag %q: unknown variation type %q", w.Key, w.VariationType)
	}

	variations := make(map[string]Variation, len(w.Variations))
	for k, v := range w.Variations {
		value, err := ParseValue(w.VariationType, v.Value)
		if err != nil {
			return fmt.Errorf("flag %q variation %q: %w", w.Key, k, err)
		}
		key := v.Key
		if key == "" {
			key = k
		}
		variations[k] = Variation{Key: key, Value: value}
	}

	total := uint64(DefaultTotalShards)
	if w.TotalShards != nil {
		total = *w.TotalShards
	}
	if total == 0 {
		return fmt.Errorf("flag %q: totalShards must be positive", w.Key)
	}

	*f = Flag{
		Key:           w.Key,
		Enabled:       w.Enabled,
		VariationType: w.VariationType,
		Variations:    variations,
		Allocations:   w.Allocations,
		TotalShards:   total,
	}
	return nil
}

type Variation struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

type Allocation struct {
	Key     string     `json:"key"`
	Rules   []Rule     `json:"rules,omitempty"`
	StartAt *time.Time `json:"startAt,omitempty"`
	EndAt   *time.Time `json:"endAt,omitempty"`
	Splits  []Split    `json:"splits"`
	DoLog   bool       `json:"doLog"`
}

func (a *Allocation) UnmarshalJSON(data []byte) error {
	type wire Allocation
	w := wire{DoLog: true}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*a = Allocation(w)
	return nil
}

// Active reports whether now falls within [StartAt, EndAt).
func (a *Allocation) Active(now time.Time) AllocationCode {
	if a.StartAt != nil && now.Before(*a.StartAt) {
		return AllocationBeforeStartTime
	}
	if a.EndAt != nil && !now.Before(*a.EndAt) {
		return AllocationAfterEndTime
	}
	return AllocationMatch
}

type Split struct {
	VariationKey string            `json:"variationKey"`
	Shards       []Shard           `json:"shards"`
	ExtraLogging map[string]string `json:"extraLogging,omitempty"`
}

// Shard selects subjects whose hash of (Salt, subject key) falls into any of
// the ranges. The salt is the allocation's own selection key.
type Shard struct {
	Salt   string       `json:"salt"`
	Ranges []ShardRange `json:"ranges"`
}

// ShardRange is the half-open interval [Start, End).
type ShardRange struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

func (r ShardRange) Contains(v uint64) bool {
	return r.Start <= v && v < r.End
}
