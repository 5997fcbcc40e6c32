package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/guardrail"
	"github.com/smallnest/nodeflow/node"
)

// ErrRejected is wrapped by strict validators when the rule does not hold.
var ErrRejected = errors.New("value rejected by guardrail")

// Validator gates a value with a guardrail rule. The value is published on
// "value" only when the rule holds; "valid" always reports the outcome.
type Validator struct {
	Rule   guardrail.Rule
	Strict bool
}

// NewValidator builds a validator from args "rule" (a guardrail.Rule) or
// "rules" (a list of {name, value} builtin specs) joined by "conjunction".
// With "strict" set, a rejected value fails the node.
func NewValidator(args map[string]any) (*Validator, error) {
	v := &Validator{Strict: argBool(args, "strict")}
	if r, ok := args["rule"].(guardrail.Rule); ok {
		v.Rule = r
		return v, nil
	}

	conj, err := guardrail.ParseConjunction(argString(args, "conjunction", string(guardrail.And)))
	if err != nil {
		return nil, err
	}
	specs, err := ruleSpecs(args["rules"])
	if err != nil {
		return nil, err
	}
	rules := make([]guardrail.Rule, 0, len(specs))
	for _, s := range specs {
		r, err := guardrail.Build(s)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("validator needs at least one rule")
	}
	if conj == guardrail.Or {
		v.Rule = guardrail.Any(rules...)
	} else {
		v.Rule = guardrail.All(rules...)
	}
	return v, nil
}

func ruleSpecs(v any) ([]guardrail.Spec, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []guardrail.Spec:
		return x, nil
	case []any:
		out := make([]guardrail.Spec, len(x))
		for i, item := range x {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("rules[%d] must be an object", i)
			}
			out[i].Name, _ = m["name"].(string)
			out[i].Value = m["value"]
		}
		return out, nil
	}
	return nil, fmt.Errorf("rules must be a list, got %T", v)
}

func (v *Validator) Kind() (string, string) { return "guardrail", "validator" }

func (v *Validator) Ports() (inputs, outputs []node.PortDef) {
	return []node.PortDef{{Name: "value", Types: data.Types(data.Unknown), Required: true}},
		[]node.PortDef{
			{Name: "value", Types: data.Types(data.Unknown)},
			{Name: "valid", Types: data.Types(data.Boolean)},
		}
}

func (v *Validator) Process(_ context.Context, in node.Values, pc *node.ProcessContext) (node.Values, error) {
	value := in["value"]
	if guardrail.Validate(v.Rule, value) {
		return node.Values{"value": value, "valid": data.Data{Type: data.Boolean, Value: true}}, nil
	}
	pc.Trace("rejected: %s", v.Rule.Description())
	if v.Strict {
		return nil, fmt.Errorf("%w: %s", ErrRejected, v.Rule.Description())
	}
	return node.Values{"valid": data.Data{Type: data.Boolean, Value: false}}, nil
}
