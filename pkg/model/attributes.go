package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

type AttributeKind uint8

const (
	AttributeNull AttributeKind = iota
	AttributeString
	AttributeNumber
	AttributeBoolean
	AttributeList
)

// AttributeValue is a single subject attribute. The zero value is null.
// Lists hold scalar elements only.
type AttributeValue struct {
	kind AttributeKind
	str  string
	num  float64
	b    bool
	list []AttributeValue
}

func String(s string) AttributeValue  { return AttributeValue{kind: AttributeString, str: s} }
func Number(n float64) AttributeValue { return AttributeValue{kind: AttributeNumber, num: n} }
func Boolean(b bool) AttributeValue   { return AttributeValue{kind: AttributeBoolean, b: b} }
func Null() AttributeValue            { return AttributeValue{} }

// List builds a list attribute such as a set of tags or numeric ids.
func List(elems ...AttributeValue) AttributeValue {
	return AttributeValue{kind: AttributeList, list: elems}
}

// AttributeOf converts a decoded JSON scalar or flat list into an
// AttributeValue. Objects, nested lists and null list elements are reported
// as an error.
func AttributeOf(v interface{}) (AttributeValue, error) {
	switch t := v.(type) {
	case []interface{}:
		elems := make([]AttributeValue, 0, len(t))
		for i, e := range t {
			ev, err := AttributeOf(e)
			if err != nil {
				return Null(), fmt.Errorf("list element %d: %w", i, err)
			}
			if ev.kind == AttributeNull || ev.kind == AttributeList {
				return Null(), fmt.Errorf("list element %d: lists may only hold strings, numbers and booleans", i)
			}
			elems = append(elems, ev)
		}
		return List(elems...), nil
	case []string:
		elems := make([]AttributeValue, len(t))
		for i, e := range t {
			elems[i] = String(e)
		}
		return List(elems...), nil
	case []float64:
		elems := make([]AttributeValue, len(t))
		for i, e := range t {
			elems[i] = Number(e)
		}
		return List(elems...), nil
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Boolean(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Null(), fmt.Errorf("invalid number attribute %q: %w", t, err)
		}
		return Number(f), nil
	default:
		return Null(), fmt.Errorf("unsupported attribute type %T", v)
	}
}

func (v AttributeValue) Kind() AttributeKind { return v.kind }
func (v AttributeValue) IsNull() bool        { return v.kind == AttributeNull }

func (v AttributeValue) AsString() (string, bool) {
	return v.str, v.kind == AttributeString
}

func (v AttributeValue) AsNumber() (float64, bool) {
	return v.num, v.kind == AttributeNumber
}

func (v AttributeValue) AsBoolean() (bool, bool) {
	return v.b, v.kind == AttributeBoolean
}

func (v AttributeValue) AsList() ([]AttributeValue, bool) {
	return v.list, v.kind == AttributeList
}

// Render returns the string form used by set membership and regex conditions.
// Integral numbers render without a fractional part so 42 matches "42".
// Lists have no single string form.
func (v AttributeValue) Render() (string, bool) {
	switch v.kind {
	case AttributeString:
		return v.str, true
	case AttributeBoolean:
		return strconv.FormatBool(v.b), true
	case AttributeNumber:
		return formatNumber(v.num), true
	default:
		return "", false
	}
}

func formatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func (v AttributeValue) Interface() interface{} {
	switch v.kind {
	case AttributeString:
		return v.str
	case AttributeNumber:
		return v.num
	case AttributeBoolean:
		return v.b
	case AttributeList:
		out := make([]interface{}, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

func (v AttributeValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := AttributeOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Attributes are the subject attributes conditions are matched against.
type Attributes map[string]AttributeValue

// AttributesFrom converts a generic map, dropping values that are neither
// scalars nor flat lists.
func AttributesFrom(raw map[string]interface{}) Attributes {
	attrs := make(Attributes, len(raw))
	for k, v := range raw {
		if av, err := AttributeOf(v); err == nil {
			attrs[k] = av
		}
	}
	return attrs
}

// Get returns the attribute, treating an explicit null like a missing key.
func (a Attributes) Get(name string) (AttributeValue, bool) {
	v, ok := a[name]
	if !ok || v.IsNull() {
		return Null(), false
	}
	return v, true
}

// ToContext splits attributes for bandit scoring: numbers are numeric,
// strings and booleans are categorical. Lists have no coefficient and are left out.
func (a Attributes) ToContext() ContextAttributes {
	ctx := ContextAttributes{
		Numeric:     map[string]float64{},
		Categorical: map[string]string{},
	}
	for k, v := range a {
		switch v.kind {
		case AttributeNumber:
			ctx.Numeric[k] = v.num
		case AttributeString, AttributeBoolean:
			ctx.Categorical[k], _ = v.Render()
		}
	}
	return ctx
}

// ContextAttributes are the attributes used for bandit scoring.
type ContextAttributes struct {
	Numeric     map[string]float64 `json:"numericAttributes"`
	Categorical map[string]string  `json:"categoricalAttributes"`
}

// ToGeneric merges both attribute families into flag-matching attributes.
func (c ContextAttributes) ToGeneric() Attributes {
	attrs := make(Attributes, len(c.Numeric)+len(c.Categorical))
	for k, v := range c.Numeric {
		attrs[k] = Number(v)
	}
	for k, v := range c.Categorical {
		attrs[k] = String(v)
	}
	return attrs
}

// Subject is the entity being evaluated.
type Subject struct {
	Key        string     `json:"subjectKey"`
	Attributes Attributes `json:"subjectAttributes,omitempty"`
}
