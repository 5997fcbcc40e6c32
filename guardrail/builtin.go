package guardrail

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/smallnest/nodeflow/data"
)

// Text returns the textual form of input: strings as is, other scalars
// through the string conversion of the data package.
func Text(input data.Data) string {
	if s, ok := input.AsString(); ok {
		return s
	}
	if d, err := data.Convert(input, data.Types(data.String)); err == nil {
		s, _ := d.AsString()
		return s
	}
	return fmt.Sprint(input.Value)
}

func number(v any) (float64, bool) {
	return data.Coerce(v).AsNumber()
}

// NotEmpty holds for non-blank text and non-empty arrays.
func NotEmpty() *Predicate {
	return NewPredicate("is not empty", nil, func(in data.Data, _ Variables) bool {
		if items, ok := in.Items(); ok {
			return len(items) > 0
		}
		return strings.TrimSpace(Text(in)) != ""
	})
}

// MinLength holds when the text has at least min runes.
func MinLength(min int) *Predicate {
	return NewPredicate(fmt.Sprintf("has at least %d characters", min), Variables{"min": min},
		func(in data.Data, vars Variables) bool {
			n, ok := number(vars["min"])
			return ok && float64(utf8.RuneCountInString(Text(in))) >= n
		})
}

// MaxLength holds when the text has at most max runes.
func MaxLength(max int) *Predicate {
	return NewPredicate(fmt.Sprintf("has at most %d characters", max), Variables{"max": max},
		func(in data.Data, vars Variables) bool {
			n, ok := number(vars["max"])
			return ok && float64(utf8.RuneCountInString(Text(in))) <= n
		})
}

// Contains holds when the text contains substr, ignoring case.
func Contains(substr string) *Predicate {
	return NewPredicate(fmt.Sprintf("contains %q", substr), Variables{"substr": substr},
		func(in data.Data, vars Variables) bool {
			s, _ := vars["substr"].(string)
			return strings.Contains(strings.ToLower(Text(in)), strings.ToLower(s))
		})
}

// Matches holds when the text matches the regular expression.
func Matches(pattern string) (*Predicate, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return NewPredicate(fmt.Sprintf("matches /%s/", pattern), Variables{"pattern": pattern},
		func(in data.Data, vars Variables) bool {
			p, _ := vars["pattern"].(string)
			re, err := regexp.Compile(p)
			return err == nil && re.MatchString(Text(in))
		}), nil
}

// Between holds for numbers, or numeric strings, within [min, max].
func Between(min, max float64) *Predicate {
	return NewPredicate(fmt.Sprintf("is between %g and %g", min, max), Variables{"min": min, "max": max},
		func(in data.Data, vars Variables) bool {
			v, ok := in.AsNumber()
			if !ok {
				d, err := data.Convert(in, data.Types(data.Number))
				if err != nil {
					return false
				}
				v, _ = d.AsNumber()
			}
			lo, _ := number(vars["min"])
			hi, _ := number(vars["max"])
			return v >= lo && v <= hi
		})
}

// OneOf holds when the text equals one of the values.
func OneOf(values ...string) *Predicate {
	return NewPredicate(fmt.Sprintf("is one of %s", strings.Join(values, ", ")), Variables{"values": values},
		func(in data.Data, vars Variables) bool {
			allowed, _ := vars["values"].([]string)
			s := Text(in)
			for _, a := range allowed {
				if s == a {
					return true
				}
			}
			return false
		})
}

// Not negates r.
func Not(r Rule) *Predicate {
	return NewPredicate("not ("+r.Description()+")", r.Variables(), func(in data.Data, vars Variables) bool {
		return !r.Evaluate(in, vars)
	})
}

// Spec describes a builtin rule by name, as found in graph descriptors.
type Spec struct {
	Name  string `json:"name" validate:"required"`
	Value any    `json:"value,omitempty"`
}

// Build turns a spec into a rule.
func Build(s Spec) (Rule, error) {
	switch s.Name {
	case "notEmpty":
		return NotEmpty(), nil
	case "minLength", "maxLength":
		n, ok := number(s.Value)
		if !ok {
			return nil, fmt.Errorf("%s needs a numeric value", s.Name)
		}
		if s.Name == "minLength" {
			return MinLength(int(n)), nil
		}
		return MaxLength(int(n)), nil
	case "contains":
		str, ok := s.Value.(string)
		if !ok {
			return nil, fmt.Errorf("contains needs a string value")
		}
		return Contains(str), nil
	case "matches":
		str, ok := s.Value.(string)
		if !ok {
			return nil, fmt.Errorf("matches needs a string value")
		}
		return Matches(str)
	case "between":
		bounds, ok := s.Value.([]any)
		if !ok || len(bounds) != 2 {
			return nil, fmt.Errorf("between needs [min, max]")
		}
		lo, ok1 := number(bounds[0])
		hi, ok2 := number(bounds[1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("between needs numeric bounds")
		}
		return Between(lo, hi), nil
	case "oneOf":
		items, ok := s.Value.([]any)
		if !ok {
			return nil, fmt.Errorf("oneOf needs a list of strings")
		}
		values := make([]string, len(items))
		for i, item := range items {
			values[i] = fmt.Sprint(item)
		}
		return OneOf(values...), nil
	}
	return nil, fmt.Errorf("unknown rule %q", s.Name)
}
