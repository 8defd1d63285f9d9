package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

type VariationType string

const (
	StringVariation  VariationType = "STRING"
	IntegerVariation VariationType = "INTEGER"
	NumericVariation VariationType = "NUMERIC"
	BooleanVariation VariationType = "BOOLEAN"
	JSONVariation    VariationType = "JSON"
)

func (t VariationType) Valid() bool {
	switch t {
	case StringVariation, IntegerVariation, NumericVariation, BooleanVariation, JSONVariation:
		return true
	}
	return false
}

// Value is a variation payload converted to the flag's declared type.
type Value struct {
	typ  VariationType
	str  string
	num  float64
	i    int64
	b    bool
	json json.RawMessage
}

func StringValue(s string) Value   { return Value{typ: StringVariation, str: s} }
func IntegerValue(i int64) Value   { return Value{typ: IntegerVariation, i: i} }
func NumericValue(f float64) Value { return Value{typ: NumericVariation, num: f} }
func BooleanValue(b bool) Value    { return Value{typ: BooleanVariation, b: b} }

// JSONValue wraps an encoded JSON document. The string form is the raw text.
func JSONValue(raw json.RawMessage) Value {
	return Value{typ: JSONVariation, str: string(raw), json: raw}
}

// ParseValue converts a raw variation value into the declared type.
// JSON flags carry their payload as an encoded string, the same as the
// configuration server sends them.
func ParseValue(typ VariationType, raw json.RawMessage) (Value, error) {
	switch typ {
	case StringVariation:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, fmt.Errorf("expected string value: %w", err)
		}
		return StringValue(s), nil
	case IntegerVariation:
		// parse the literal directly so values beyond 2^53 keep every digit
		if i, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64); err == nil {
			return IntegerValue(i), nil
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return Value{}, fmt.Errorf("expected integer value: %w", err)
		}
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return Value{}, fmt.Errorf("expected integer value, got %v", f)
		}
		return IntegerValue(int64(f)), nil
	case NumericVariation:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return Value{}, fmt.Errorf("expected numeric value: %w", err)
		}
		return NumericValue(f), nil
	case BooleanVariation:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, fmt.Errorf("expected boolean value: %w", err)
		}
		return BooleanValue(b), nil
	case JSONVariation:
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err == nil {
			if !json.Valid([]byte(encoded)) {
				return Value{}, fmt.Errorf("invalid json value %q", encoded)
			}
			return JSONValue(json.RawMessage(encoded)), nil
		}
		if !json.Valid(raw) {
			return Value{}, fmt.Errorf("invalid json value")
		}
		return JSONValue(bytes.TrimSpace(raw)), nil
	default:
		return Value{}, fmt.Errorf("unknown variation type %q", typ)
	}
}

func (v Value) Type() VariationType { return v.typ }

func (v Value) AsString() (string, bool)        { return v.str, v.typ == StringVariation }
func (v Value) AsBool() (bool, bool)            { return v.b, v.typ == BooleanVariation }
func (v Value) AsJSON() (json.RawMessage, bool) { return v.json, v.typ == JSONVariation }

func (v Value) AsInt() (int64, bool) {
	return v.i, v.typ == IntegerVariation
}

// AsFloat returns numeric and integer values as float64.
func (v Value) AsFloat() (float64, bool) {
	if v.typ == IntegerVariation {
		return float64(v.i), true
	}
	return v.num, v.typ == NumericVariation
}

// Render is the string form used to look up bandit associations.
func (v Value) Render() string {
	switch v.typ {
	case StringVariation, JSONVariation:
		return v.str
	case BooleanVariation:
		if v.b {
			return "true"
		}
		return "false"
	case IntegerVariation:
		return strconv.FormatInt(v.i, 10)
	default:
		return formatNumber(v.num)
	}
}

func (v Value) Interface() interface{} {
	switch v.typ {
	case StringVariation:
		return v.str
	case IntegerVariation:
		return v.i
	case NumericVariation:
		return v.num
	case BooleanVariation:
		return v.b
	case JSONVariation:
		var out interface{}
		if err := json.Unmarshal(v.json, &out); err != nil {
			return nil
		}
		return out
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.typ == JSONVariation {
		return v.json, nil
	}
	return json.Marshal(v.Interface())
}
