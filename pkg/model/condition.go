package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

type Operator string

const (
	OperatorMatches    Operator = "MATCHES"
	OperatorNotMatches Operator = "NOT_MATCHES"
	OperatorGT         Operator = "GT"
	OperatorGTE        Operator = "GTE"
	OperatorLT         Operator = "LT"
	OperatorLTE        Operator = "LTE"
	OperatorOneOf      Operator = "ONE_OF"
	OperatorNotOneOf   Operator = "NOT_ONE_OF"
	OperatorIsNull     Operator = "IS_NULL"
)

// Condition is a single targeting predicate. The target value is compiled when
// the flag is decoded; a condition whose definition cannot be compiled is kept
// with SkipReason set so the matcher can exclude it.
type Condition struct {
	Attribute string          `json:"attribute"`
	Operator  Operator        `json:"operator"`
	Value     json.RawMessage `json:"value"`

	SkipReason string `json:"-"`

	regex   *regexp.Regexp
	set     map[string]struct{}
	number  float64
	version string
	isNull  bool
	numeric bool
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	type wire Condition
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Condition(w)
	if err := c.compile(); err != nil {
		c.SkipReason = err.Error()
	}
	return nil
}

func (c *Condition) compile() error {
	if c.Attribute == "" {
		return fmt.Errorf("condition has no attribute")
	}
	switch c.Operator {
	case OperatorMatches, OperatorNotMatches:
		var pattern string
		if err := json.Unmarshal(c.Value, &pattern); err != nil {
			return fmt.Errorf("%s expects a string pattern: %w", c.Operator, err)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid regex %q: %w", pattern, err)
		}
		c.regex = re
	case OperatorOneOf, OperatorNotOneOf:
		var values []string
		if err := json.Unmarshal(c.Value, &values); err != nil {
			return fmt.Errorf("%s expects a list of strings: %w", c.Operator, err)
		}
		c.set = make(map[string]struct{}, len(values))
		for _, v := range values {
			c.set[v] = struct{}{}
		}
	case OperatorGT, OperatorGTE, OperatorLT, OperatorLTE:
		var n float64
		if err := json.Unmarshal(c.Value, &n); err == nil {
			c.number, c.numeric = n, true
			return nil
		}
		var s string
		if err := json.Unmarshal(c.Value, &s); err != nil {
			return fmt.Errorf("%s expects a number or version: %w", c.Operator, err)
		}
		if v, ok := ParseSemver(s); ok {
			c.version = v
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			c.number, c.numeric = n, true
		}
		if c.version == "" && !c.numeric {
			return fmt.Errorf("%s target %q is neither numeric nor a version", c.Operator, s)
		}
	case OperatorIsNull:
		if err := json.Unmarshal(c.Value, &c.isNull); err != nil {
			return fmt.Errorf("IS_NULL expects a boolean: %w", err)
		}
	default:
		return fmt.Errorf("unknown operator %q", c.Operator)
	}
	return nil
}

func (c *Condition) Skipped() bool { return c.SkipReason != "" }

// Match evaluates the condition against a single attribute. present is false
// when the subject lacks the attribute. Callers must check Skipped first.
func (c *Condition) Match(v AttributeValue, present bool) bool {
	if c.Operator == OperatorIsNull {
		return !present == c.isNull
	}
	if !present {
		return false
	}
	switch c.Operator {
	case OperatorMatches, OperatorNotMatches:
		s, ok := v.Render()
		if !ok {
			return false
		}
		return c.regex.MatchString(s) == (c.Operator == OperatorMatches)
	case OperatorOneOf, OperatorNotOneOf:
		if elems, ok := v.AsList(); ok {
			return c.anyInSet(elems) == (c.Operator == OperatorOneOf)
		}
		s, ok := v.Render()
		if !ok {
			return false
		}
		_, in := c.set[s]
		return in == (c.Operator == OperatorOneOf)
	default:
		cmp, ok := c.compare(v)
		if !ok {
			return false
		}
		switch c.Operator {
		case OperatorGT:
			return cmp > 0
		case OperatorGTE:
			return cmp >= 0
		case OperatorLT:
			return cmp < 0
		default:
			return cmp <= 0
		}
	}
}

// anyInSet reports whether any list element is a member of the target set.
func (c *Condition) anyInSet(elems []AttributeValue) bool {
	for _, e := range elems {
		if s, ok := e.Render(); ok {
			if _, in := c.set[s]; in {
				return true
			}
		}
	}
	return false
}

// compare orders the attribute against the target, preferring semantic
// versions when both sides are versions.
func (c *Condition) compare(v AttributeValue) (int, bool) {
	if s, ok := v.AsString(); ok && c.version != "" {
		if av, ok := ParseSemver(s); ok {
			return semver.Compare(av, c.version), true
		}
	}
	if !c.numeric {
		return 0, false
	}
	var n float64
	switch v.Kind() {
	case AttributeNumber:
		n, _ = v.AsNumber()
	case AttributeString:
		s, _ := v.AsString()
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	switch {
	case n < c.number:
		return -1, true
	case n > c.number:
		return 1, true
	}
	return 0, true
}

// ParseSemver accepts full MAJOR.MINOR.PATCH versions, with optional
// pre-release and build suffixes, and returns the form x/mod/semver expects.
func ParseSemver(s string) (string, bool) {
	if s == "" || s[0] == 'v' {
		return "", false
	}
	core := s
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	if strings.Count(core, ".") != 2 {
		return "", false
	}
	v := "v" + s
	return v, semver.IsValid(v)
}

// Rule matches when all of its conditions match.
type Rule struct {
	Conditions []Condition `json:"conditions"`
}
