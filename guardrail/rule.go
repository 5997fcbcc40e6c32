// Package guardrail provides composable predicates over data values. Rules
// gate node outputs: a validator node passes its input through only when
// its rule holds.
package guardrail

import (
	"fmt"
	"strings"

	"github.com/smallnest/nodeflow/data"
)

// Conjunction joins two rules.
type Conjunction string

const (
	And Conjunction = "and"
	Or  Conjunction = "or"
)

// ParseConjunction accepts "and" or "or" in any case.
func ParseConjunction(s string) (Conjunction, error) {
	switch c := Conjunction(strings.ToLower(strings.TrimSpace(s))); c {
	case And, Or:
		return c, nil
	}
	return "", fmt.Errorf("unknown conjunction %q", s)
}

// Variables parameterize a rule.
type Variables map[string]any

// Func decides whether input satisfies a rule.
type Func func(input data.Data, vars Variables) bool

// Rule is a predicate with a human readable description.
type Rule interface {
	Description() string

	// Variables are the rule's parameters. Composite rules prefix the keys
	// of their operands with "left." and "right.".
	Variables() Variables

	// Evaluate checks input against the rule using vars in place of the
	// rule's own variables.
	Evaluate(input data.Data, vars Variables) bool
}

// Validate checks input against r with r's own variables.
func Validate(r Rule, input data.Data) bool {
	return r.Evaluate(input, r.Variables())
}

// Predicate is a leaf rule.
type Predicate struct {
	Desc string
	Vars Variables
	Func Func
}

// NewPredicate builds a leaf rule.
func NewPredicate(desc string, vars Variables, fn Func) *Predicate {
	return &Predicate{Desc: desc, Vars: vars, Func: fn}
}

func (p *Predicate) Description() string { return p.Desc }

func (p *Predicate) Variables() Variables {
	out := make(Variables, len(p.Vars))
	for k, v := range p.Vars {
		out[k] = v
	}
	return out
}

func (p *Predicate) Evaluate(input data.Data, vars Variables) bool {
	if p.Func == nil {
		return true
	}
	return p.Func(input, vars)
}

// Expression is two rules joined by a conjunction.
type Expression struct {
	Left        Rule
	Right       Rule
	Conjunction Conjunction
}

// Concat joins left and right. Evaluation short-circuits. Any conjunction
// other than Or is treated as And.
func Concat(left, right Rule, c Conjunction) *Expression {
	if c != Or {
		c = And
	}
	return &Expression{Left: left, Right: right, Conjunction: c}
}

func (e *Expression) conjunction() Conjunction {
	if e.Conjunction == Or {
		return Or
	}
	return And
}

// All joins rules with And, left to right. It returns nil for no rules.
func All(rules ...Rule) Rule { return fold(And, rules) }

// Any joins rules with Or, left to right. It returns nil for no rules.
func Any(rules ...Rule) Rule { return fold(Or, rules) }

func fold(c Conjunction, rules []Rule) Rule {
	if len(rules) == 0 {
		return nil
	}
	out := rules[0]
	for _, r := range rules[1:] {
		out = Concat(out, r, c)
	}
	return out
}

// Description joins the operand descriptions. An operand that is itself an
// expression with the other conjunction is parenthesized.
func (e *Expression) Description() string {
	op := strings.ToUpper(string(e.conjunction()))
	return e.operand(e.Left) + " " + op + " " + e.operand(e.Right)
}

func (e *Expression) operand(r Rule) string {
	if inner, ok := r.(*Expression); ok && inner.conjunction() != e.conjunction() {
		return "(" + inner.Description() + ")"
	}
	return r.Description()
}

func (e *Expression) Variables() Variables {
	out := make(Variables)
	for k, v := range e.Left.Variables() {
		out["left."+k] = v
	}
	for k, v := range e.Right.Variables() {
		out["right."+k] = v
	}
	return out
}

func (e *Expression) Evaluate(input data.Data, vars Variables) bool {
	left := e.Left.Evaluate(input, scope(vars, "left."))
	switch e.conjunction() {
	case Or:
		if left {
			return true
		}
	default:
		if !left {
			return false
		}
	}
	return e.Right.Evaluate(input, scope(vars, "right."))
}

func scope(vars Variables, prefix string) Variables {
	out := make(Variables)
	for k, v := range vars {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			out[rest] = v
		}
	}
	return out
}
