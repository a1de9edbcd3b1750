package pattern

import (
	"fmt"
	"math/big"

	"github.com/orizon-lang/refinement/internal/constraint"
	"github.com/orizon-lang/refinement/internal/proof"
)

// bound is a one-sided limit on a variable drawn from a single fact.
type bound struct {
	atom   atom
	value  *big.Rat
	strict bool
}

// best returns the strongest lower (or upper) bound on v among atoms.
// Equality facts count as non-strict bounds on both sides.
func best(atoms []atom, v string, lower bool) (bound, bool) {
	var out bound
	found := false

	for _, a := range atoms {
		bv, op, val, ok := a.c.Bound()
		if !ok || bv != v {
			continue
		}
		if op != constraint.OpEQ && op.IsLower() != lower {
			continue
		}

		cand := bound{atom: a, value: val, strict: op.Strict()}
		if !found || stronger(cand, out, lower) {
			out, found = cand, true
		}
	}

	return out, found
}

func stronger(a, b bound, lower bool) bool {
	c := a.value.Cmp(b.value)
	if !lower {
		c = -c
	}
	return c > 0 || (c == 0 && a.strict && !b.strict)
}

// relation is "left op right" where right is either a variable or, when
// right is empty, the constant value.
type relation struct {
	atom  atom
	left  string
	op    constraint.Operator
	right string
	value *big.Rat
}

// relationVars recognizes a two-variable constraint x - y op c.
func relationVars(c constraint.LinearConstraint) (string, string, bool) {
	if len(c.Coefficients) != 2 {
		return "", "", false
	}

	var pos, neg string
	for v, k := range c.Coefficients {
		switch {
		case k.Cmp(big.NewRat(1, 1)) == 0:
			pos = v
		case k.Cmp(big.NewRat(-1, 1)) == 0:
			neg = v
		}
	}
	if pos == "" || neg == "" {
		return "", "", false
	}
	return pos, neg, true
}

// relations lists every fact as a relation, in both orientations for
// variable-to-variable facts.
func relations(atoms []atom) []relation {
	var rels []relation
	for _, a := range atoms {
		if x, y, ok := relationVars(a.c); ok && a.c.Constant.Sign() == 0 {
			rels = append(rels,
				relation{atom: a, left: x, op: a.c.Op, right: y},
				relation{atom: a, left: y, op: a.c.Op.Flip(), right: x})
			continue
		}
		if v, op, val, ok := a.c.Bound(); ok {
			rels = append(rels, relation{atom: a, left: v, op: op, value: val})
		}
	}
	return rels
}

// compose chains "x op1 y" and "y op2 z" into "x op z".
func compose(op1, op2 constraint.Operator) (constraint.Operator, bool) {
	switch {
	case op1 == constraint.OpEQ && op2 == constraint.OpEQ:
		return constraint.OpEQ, true
	case op1 == constraint.OpEQ:
		return op2, true
	case op2 == constraint.OpEQ:
		return op1, true
	case op1.SameFamily(op2):
		return op1.WithStrictness(op1.Strict() || op2.Strict()), true
	default:
		return 0, false
	}
}

// transitivity proves x op z from x op1 y and y op2 z, where z is either a
// variable or a constant anchor such as 0.
func transitivity(g goal, atoms []atom) (proof.Result, bool) {
	var (
		gx, gz string
		gval   *big.Rat
	)
	if x, z, ok := relationVars(g.c); ok && g.c.Constant.Sign() == 0 {
		gx, gz = x, z
	} else if v, _, val, ok := g.c.Bound(); ok {
		gx, gval = v, val
	} else {
		return proof.Result{}, false
	}
	gop := g.c.Op
	if gz == "" {
		_, gop, _, _ = g.c.Bound()
	}

	rels := relations(atoms)
	for _, r1 := range rels {
		if r1.left != gx || r1.right == "" || r1.right == gx {
			continue
		}
		for _, r2 := range rels {
			if r2.left != r1.right || r2.atom.fact == r1.atom.fact {
				continue
			}

			op, ok := compose(r1.op, r2.op)
			if !ok {
				continue
			}

			var holds bool
			switch {
			case gz != "" && r2.right == gz:
				holds = implies(op, new(big.Rat), gop, new(big.Rat))
			case gz == "" && r2.right == "":
				holds = implies(op, r2.value, gop, gval)
			}
			if !holds {
				continue
			}

			return proven(proof.RuleTransitivity,
				fmt.Sprintf("chain through %s", r1.right),
				fmt.Sprintf("%s and %s give %s", r1.atom.fact.Predicate, r2.atom.fact.Predicate, g.text),
				r1.atom.fact, r2.atom.fact), true
		}
	}

	return proof.Result{}, false
}
