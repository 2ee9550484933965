package engine

import (
	"strings"

	"github.com/RealZimboGuy/gopherstep/internal/datapath"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

// evaluateChoice returns the next state of the first rule that holds, or the
// default. A missing path or a type mismatch makes a comparison false.
func evaluateChoice(c *domain.ChoiceState, data any) string {
	for _, rule := range c.Choices {
		if evaluate(rule.Condition, data) {
			return rule.Next
		}
	}
	return c.Default
}

func evaluate(cond domain.Condition, data any) bool {
	switch {
	case len(cond.And) > 0:
		for _, c := range cond.And {
			if !evaluate(c, data) {
				return false
			}
		}
		return true
	case len(cond.Or) > 0:
		for _, c := range cond.Or {
			if evaluate(c, data) {
				return true
			}
		}
		return false
	case cond.Not != nil:
		return !evaluate(*cond.Not, data)
	}

	p, err := datapath.Parse(cond.Variable)
	if err != nil {
		return false
	}
	actual, present := p.Get(data)
	return compare(cond.Operator, actual, present, cond.Value)
}

func compare(op string, actual any, present bool, value any) bool {
	if op == domain.OpIsPresent {
		want, _ := value.(bool)
		return present == want
	}
	if !present {
		return false
	}

	switch op {
	case domain.OpIsNull:
		return (actual == nil) == asBool(value)
	case domain.OpIsString:
		_, ok := actual.(string)
		return ok == asBool(value)
	case domain.OpIsNumeric:
		_, ok := toFloat(actual)
		return ok == asBool(value)
	case domain.OpIsBoolean:
		_, ok := actual.(bool)
		return ok == asBool(value)
	case domain.OpBooleanEquals:
		a, ok := actual.(bool)
		b, ok2 := value.(bool)
		return ok && ok2 && a == b
	}

	if strings.HasPrefix(op, "String") {
		a, ok := actual.(string)
		b, ok2 := value.(string)
		if !ok || !ok2 {
			return false
		}
		switch op {
		case domain.OpStringEquals:
			return a == b
		case domain.OpStringNotEquals:
			return a != b
		case domain.OpStringLessThan:
			return a < b
		case domain.OpStringGreaterThan:
			return a > b
		case domain.OpStringLessThanEquals:
			return a <= b
		case domain.OpStringGreaterThanEquals:
			return a >= b
		case domain.OpStringMatches:
			return wildcardMatch(b, a)
		}
		return false
	}

	a, ok := toFloat(actual)
	b, ok2 := toFloat(value)
	if !ok || !ok2 {
		return false
	}
	switch op {
	case domain.OpNumericEquals:
		return a == b
	case domain.OpNumericNotEquals:
		return a != b
	case domain.OpNumericLessThan:
		return a < b
	case domain.OpNumericGreaterThan:
		return a > b
	case domain.OpNumericLessThanEquals:
		return a <= b
	case domain.OpNumericGreaterThanEquals:
		return a >= b
	}
	return false
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

// wildcardMatch matches s against pattern where * stands for any run of
// characters, including none.
func wildcardMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(s, part)
		if i < 0 {
			return false
		}
		s = s[i+len(part):]
	}
	return strings.HasSuffix(s, last)
}
