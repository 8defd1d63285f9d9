package eval

import "github.com/open-feature/assignd/pkg/model"

// subjectView exposes the subject key as the "id" attribute unless the caller
// supplied one, without copying the attribute map.
type subjectView struct {
	key   string
	attrs model.Attributes
}

func (s subjectView) get(name string) (model.AttributeValue, bool) {
	if v, ok := s.attrs.Get(name); ok {
		return v, true
	}
	if name == "id" {
		if _, set := s.attrs[name]; !set {
			return model.String(s.key), true
		}
	}
	return model.Null(), false
}

// matchRules reports whether any rule matches. No rules means everyone matches.
func matchRules[O Observer](obs O, rules []model.Rule, subject subjectView) bool {
	if len(rules) == 0 {
		return true
	}
	for i := range rules {
		matched := matchRule(obs, &rules[i], subject)
		obs.OnRule(i, &rules[i], matched)
		if matched {
			return true
		}
	}
	return false
}

// matchRule requires every evaluated condition to match. Skipped conditions
// are left out; a rule made only of skipped conditions never matches.
func matchRule[O Observer](obs O, rule *model.Rule, subject subjectView) bool {
	if len(rule.Conditions) == 0 {
		return true
	}
	evaluated := 0
	for i := range rule.Conditions {
		c := &rule.Conditions[i]
		if c.Skipped() {
			obs.OnCondition(c, model.Null(), ConditionSkipped)
			continue
		}
		evaluated++
		v, present := subject.get(c.Attribute)
		if !c.Match(v, present) {
			obs.OnCondition(c, v, ConditionFailed)
			return false
		}
		obs.OnCondition(c, v, ConditionMatched)
	}
	return evaluated > 0
}
