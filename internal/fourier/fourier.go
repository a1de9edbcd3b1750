// Package fourier decides linear goals by Fourier-Motzkin variable
// elimination. A goal is proven when the known facts together with the
// goal's negation are unsatisfiable over the rationals.
package fourier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orizon-lang/refinement/internal/constraint"
	perrors "github.com/orizon-lang/refinement/internal/errors"
	"github.com/orizon-lang/refinement/internal/facts"
	"github.com/orizon-lang/refinement/internal/proof"
)

// MaxRows caps the constraint set during elimination. Pairing bounds is
// quadratic per variable; past this size the attempt is abandoned as
// unproven.
const MaxRows = 4096

// goalOrigin marks rows derived from the negated goal.
const goalOrigin = -1

// row is a lower-form constraint plus the indices of the facts it came from.
type row struct {
	c       constraint.LinearConstraint
	origins []int
}

// Outcome describes one elimination run.
type Outcome struct {
	Contradiction bool
	Aborted       bool
	Eliminated    []string
	Witness       constraint.LinearConstraint
	// Origins indexes the input constraints that produced Witness.
	Origins []int
}

// Refute runs elimination over cs and reports whether they are jointly
// unsatisfiable.
func Refute(cs []constraint.LinearConstraint) Outcome {
	var rows []row
	for i, c := range cs {
		rows = append(rows, lower(c, i)...)
	}
	return fold(rows, variables(rows), nil)
}

// Decide proves goalText from fs by contradiction.
func Decide(goalText string, fs []facts.Fact) proof.Result {
	text := facts.Normalize(goalText)
	goal, err := constraint.Require(text)
	if err != nil {
		return proof.Unproven("%s", perrors.Summary(err))
	}

	var (
		sources []facts.Fact
		base    []row
	)
	for _, f := range fs {
		c, ok := constraint.Parse(f.Predicate)
		if !ok {
			continue
		}
		base = append(base, lower(c, len(sources))...)
		sources = append(sources, f)
	}

	if len(sources) == 0 && !goal.IsConstant() {
		return proof.Unproven("no linear facts to eliminate against")
	}

	if goal.Op != constraint.OpEQ {
		return refute(base, goal.Negate(), sources)
	}

	// x != c is the union of x < c and x > c; both branches must close.
	halves := goal.NegateEquality()
	left := refute(base, halves[0], sources)
	if !left.Proven {
		return proof.Unproven("branch %s is satisfiable", halves[0])
	}
	right := refute(base, halves[1], sources)
	if !right.Proven {
		return proof.Unproven("branch %s is satisfiable", halves[1])
	}

	return proof.Proven(proof.MethodLinear, proof.StrategyElimination, proof.Step{
		Rule:          proof.RuleEqualitySplit,
		Description:   "negated equality split into < and > branches",
		Justification: fmt.Sprintf("both %s and %s contradict the facts", halves[0], halves[1]),
		UsedFacts:     union(left.UsedFacts(), right.UsedFacts()),
		Subgoals:      []proof.Result{left, right},
	})
}

func refute(base []row, negated constraint.LinearConstraint, sources []facts.Fact) proof.Result {
	rows := append(append([]row(nil), base...), lower(negated, goalOrigin)...)

	out := fold(rows, variables(rows), nil)
	switch {
	case out.Aborted:
		return proof.Unproven("elimination exceeded %d constraints", MaxRows)
	case !out.Contradiction:
		return proof.Unproven("%s is consistent with the facts", negated)
	}

	var used []facts.Fact
	for _, i := range out.Origins {
		if i != goalOrigin {
			used = append(used, sources[i])
		}
	}

	desc := fmt.Sprintf("assumed %s", negated)
	if len(out.Eliminated) > 0 {
		desc += "; eliminated " + strings.Join(out.Eliminated, ", ")
	}

	return proof.Proven(proof.MethodLinear, proof.StrategyElimination, proof.Step{
		Rule:          proof.RuleFourierMotzkin,
		Description:   desc,
		Justification: fmt.Sprintf("%s is false (from %s)", out.Witness, out.Witness.Provenance),
		UsedFacts:     used,
	})
}

// fold eliminates vars one at a time. Each step yields a fresh row set with
// one fewer variable, so the recursion ends after len(vars) steps.
func fold(rows []row, vars []string, done []string) Outcome {
	for _, r := range rows {
		if r.c.TriviallyFalse() {
			return Outcome{Contradiction: true, Eliminated: done, Witness: r.c, Origins: r.origins}
		}
	}
	if len(vars) == 0 {
		return Outcome{Eliminated: done}
	}
	if len(rows) > MaxRows {
		return Outcome{Aborted: true, Eliminated: done}
	}

	next, ok := eliminate(rows, vars[0])
	if !ok {
		return Outcome{Aborted: true, Eliminated: done}
	}
	return fold(next, vars[1:], append(done[:len(done):len(done)], vars[0]))
}

// eliminate removes v by pairing every lower bound on v with every upper
// bound on v. Rows that do not mention v pass through. ok is false, and no
// pairs are built, when the round could produce more than MaxRows rows.
func eliminate(rows []row, v string) (next []row, ok bool) {
	var lowers, uppers, out []row
	for _, r := range rows {
		switch k := r.c.Coefficient(v); k.Sign() {
		case 1:
			lowers = append(lowers, r)
		case -1:
			uppers = append(uppers, r)
		default:
			out = append(out, r)
		}
	}

	if len(out)+len(lowers)*len(uppers) > MaxRows {
		return nil, false
	}

	for _, l := range lowers {
		a := l.c.Coefficient(v)
		for _, u := range uppers {
			b := u.c.Coefficient(v)
			b.Neg(b)

			prov := fmt.Sprintf("eliminate %s from (%s) and (%s)", v, l.c, u.c)
			c, err := constraint.Sum(l.c.Scale(b), u.c.Scale(a), prov)
			if err != nil || c.TriviallyTrue() {
				continue
			}
			out = append(out, row{c: c, origins: merge(l.origins, u.origins)})
		}
	}

	return out, true
}

// lower converts c into lower-form rows tagged with origin.
func lower(c constraint.LinearConstraint, origin int) []row {
	var rows []row
	for _, lc := range c.LowerForm() {
		rows = append(rows, row{c: lc, origins: []int{origin}})
	}
	return rows
}

func variables(rows []row) []string {
	seen := map[string]bool{}
	var vars []string
	for _, r := range rows {
		for _, v := range r.c.Variables() {
			if !seen[v] {
				seen[v] = true
				vars = append(vars, v)
			}
		}
	}
	sort.Strings(vars)
	return vars
}

func merge(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	var out []int
	for _, list := range [][]int{a, b} {
		for _, i := range list {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	sort.Ints(out)
	return out
}

func union(a, b []facts.Fact) []facts.Fact {
	seen := map[facts.Fact]bool{}
	var out []facts.Fact
	for _, f := range append(append([]facts.Fact(nil), a...), b...) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
