// Package pattern recognizes common implication shapes between known facts
// and a goal without running the elimination engine.
package pattern

import (
	"fmt"
	"math/big"

	"github.com/orizon-lang/refinement/internal/constraint"
	perrors "github.com/orizon-lang/refinement/internal/errors"
	"github.com/orizon-lang/refinement/internal/facts"
	"github.com/orizon-lang/refinement/internal/proof"
)

// atom is a fact whose predicate parsed as a linear constraint.
type atom struct {
	fact facts.Fact
	c    constraint.LinearConstraint
}

// goal is the parsed target of a proof attempt.
type goal struct {
	text string
	c    constraint.LinearConstraint
}

type rule func(g goal, atoms []atom) (proof.Result, bool)

// rules are tried in order; the first match wins.
var rules = []rule{
	boundTightening,
	equalityImplication,
	signComposition,
	transitivity,
	signComparison,
}

// TrySimple attempts to prove goalText from fs using the fixed rule library.
// A goal no rule covers yields an unproven result, never an error.
func TrySimple(goalText string, fs []facts.Fact) proof.Result {
	text := facts.Normalize(goalText)
	if text == "" {
		return proof.Unproven("empty goal")
	}

	if r, ok := directMatch(text, fs); ok {
		return r
	}

	gc, err := constraint.Require(text)
	if err != nil {
		return proof.Unproven("%s", perrors.Summary(err))
	}

	atoms := parseAtoms(fs)
	if len(atoms) == 0 {
		return proof.Unproven("no linear facts available")
	}

	g := goal{text: text, c: gc}
	for _, r := range rules {
		if res, ok := r(g, atoms); ok {
			return res
		}
	}

	return proof.Unproven("no pattern rule matched %q", text)
}

func parseAtoms(fs []facts.Fact) []atom {
	var atoms []atom
	for _, f := range fs {
		if c, ok := constraint.Parse(f.Predicate); ok {
			atoms = append(atoms, atom{fact: f, c: c})
		}
	}
	return atoms
}

func proven(ruleName, description, justification string, used ...facts.Fact) proof.Result {
	return proof.Proven(proof.MethodLinear, proof.StrategyPattern, proof.Step{
		Rule:          ruleName,
		Description:   description,
		Justification: justification,
		UsedFacts:     used,
	})
}

func directMatch(text string, fs []facts.Fact) (proof.Result, bool) {
	for _, f := range fs {
		if facts.Normalize(f.Predicate) == text {
			return proven(proof.RuleDirectMatch,
				"goal is a known fact",
				fmt.Sprintf("%s is given", text), f), true
		}
	}
	return proof.Result{}, false
}

func boundTightening(g goal, atoms []atom) (proof.Result, bool) {
	gv, gop, gval, ok := g.c.Bound()
	if !ok || gop == constraint.OpEQ {
		return proof.Result{}, false
	}

	for _, a := range atoms {
		v, op, val, ok := a.c.Bound()
		if !ok || v != gv || op == constraint.OpEQ {
			continue
		}
		if implies(op, val, gop, gval) {
			return proven(proof.RuleBoundTightening,
				fmt.Sprintf("bound on %s is at least as strict as the goal", v),
				fmt.Sprintf("%s %s %s implies %s %s %s since %s %s %s",
					v, op, val.RatString(), v, gop, gval.RatString(),
					val.RatString(), cmpText(op, gop), gval.RatString()),
				a.fact), true
		}
	}

	return proof.Result{}, false
}

func equalityImplication(g goal, atoms []atom) (proof.Result, bool) {
	gv, gop, gval, ok := g.c.Bound()
	if !ok {
		return proof.Result{}, false
	}

	for _, a := range atoms {
		v, op, val, ok := a.c.Bound()
		if !ok || v != gv || op != constraint.OpEQ {
			continue
		}
		if gop.Holds(val, gval) {
			return proven(proof.RuleEqualityImplication,
				fmt.Sprintf("%s has a known value", v),
				fmt.Sprintf("%s == %s and %s %s %s", v, val.RatString(), val.RatString(), gop, gval.RatString()),
				a.fact), true
		}
	}

	return proof.Result{}, false
}

// signComposition proves x + y op c by adding the strongest bounds known
// for x and y in the goal's direction.
func signComposition(g goal, atoms []atom) (proof.Result, bool) {
	gop := g.c.Op
	if gop == constraint.OpEQ || len(g.c.Coefficients) != 2 {
		return proof.Result{}, false
	}
	one := big.NewRat(1, 1)
	vars := g.c.Variables()
	for _, v := range vars {
		if g.c.Coefficients[v].Cmp(one) != 0 {
			return proof.Result{}, false
		}
	}

	lower := gop.IsLower()
	bx, okx := best(atoms, vars[0], lower)
	by, oky := best(atoms, vars[1], lower)
	if !okx || !oky {
		return proof.Result{}, false
	}

	total := new(big.Rat).Add(bx.value, by.value)
	op := gop.WithStrictness(bx.strict || by.strict)
	if !implies(op, total, gop, g.c.Constant) {
		return proof.Result{}, false
	}

	return proven(proof.RuleSignComposition,
		fmt.Sprintf("sum of bounds on %s and %s", vars[0], vars[1]),
		fmt.Sprintf("%s and %s give %s + %s %s %s", bx.atom.fact.Predicate, by.atom.fact.Predicate,
			vars[0], vars[1], op, total.RatString()),
		bx.atom.fact, by.atom.fact), true
}

// signComparison proves x op y from a bound on x and an opposite bound on y
// that separate the two values.
func signComparison(g goal, atoms []atom) (proof.Result, bool) {
	x, y, ok := relationVars(g.c)
	if !ok || g.c.Op == constraint.OpEQ {
		return proof.Result{}, false
	}

	lower := g.c.Op.IsLower()
	bx, okx := best(atoms, x, lower)
	by, oky := best(atoms, y, !lower)
	if !okx || !oky {
		return proof.Result{}, false
	}

	gap := new(big.Rat).Sub(bx.value, by.value)
	op := g.c.Op.WithStrictness(bx.strict || by.strict)
	if !implies(op, gap, g.c.Op, g.c.Constant) {
		return proof.Result{}, false
	}

	return proven(proof.RuleSignComparison,
		fmt.Sprintf("bounds separate %s and %s", x, y),
		fmt.Sprintf("%s and %s give %s - %s %s %s", bx.atom.fact.Predicate, by.atom.fact.Predicate,
			x, y, op, gap.RatString()),
		bx.atom.fact, by.atom.fact), true
}

// implies reports whether "t op v" entails "t gop gv" for the same term t.
func implies(op constraint.Operator, v *big.Rat, gop constraint.Operator, gv *big.Rat) bool {
	if op == constraint.OpEQ {
		return gop.Holds(v, gv)
	}

	c := v.Cmp(gv)
	switch {
	case op.IsLower() && gop == constraint.OpGE:
		return c >= 0
	case op.IsLower() && gop == constraint.OpGT:
		return c > 0 || (c == 0 && op.Strict())
	case op.IsUpper() && gop == constraint.OpLE:
		return c <= 0
	case op.IsUpper() && gop == constraint.OpLT:
		return c < 0 || (c == 0 && op.Strict())
	default:
		return false
	}
}

func cmpText(op, gop constraint.Operator) string {
	if op.IsLower() {
		if gop.Strict() && !op.Strict() {
			return ">"
		}
		return ">="
	}
	if gop.Strict() && !op.Strict() {
		return "<"
	}
	return "<="
}
