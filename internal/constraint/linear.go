// Package constraint normalizes predicate text into linear constraints of the
// form Σ coefficient·variable op constant.
//
// All arithmetic is exact (math/big rationals). Constraints are values: every
// operation returns a fresh constraint and never mutates its receiver.
package constraint

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// LinearConstraint is Σ Coefficients[v]·v Op Constant. Zero coefficients are
// never stored.
type LinearConstraint struct {
	Coefficients map[string]*big.Rat
	Op           Operator
	Constant     *big.Rat
	Provenance   string
}

// New builds a constraint, copying its inputs and dropping zero coefficients.
func New(coefficients map[string]*big.Rat, op Operator, constant *big.Rat, provenance string) LinearConstraint {
	coeffs := make(map[string]*big.Rat, len(coefficients))
	for v, c := range coefficients {
		if c == nil || c.Sign() == 0 {
			continue
		}
		coeffs[v] = new(big.Rat).Set(c)
	}

	k := new(big.Rat)
	if constant != nil {
		k.Set(constant)
	}

	return LinearConstraint{Coefficients: coeffs, Op: op, Constant: k, Provenance: provenance}
}

// Variables returns the variables with a non-zero coefficient, sorted.
func (c LinearConstraint) Variables() []string {
	vars := make([]string, 0, len(c.Coefficients))
	for v := range c.Coefficients {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

// Coefficient returns a copy of v's coefficient, zero when absent.
func (c LinearConstraint) Coefficient(v string) *big.Rat {
	if k, ok := c.Coefficients[v]; ok {
		return new(big.Rat).Set(k)
	}
	return new(big.Rat)
}

// Mentions reports whether v has a non-zero coefficient.
func (c LinearConstraint) Mentions(v string) bool {
	_, ok := c.Coefficients[v]
	return ok
}

// IsConstant reports whether the constraint mentions no variables.
func (c LinearConstraint) IsConstant() bool {
	return len(c.Coefficients) == 0
}

// TriviallyFalse reports a constant-only constraint whose relation fails,
// e.g. 0 >= 5.
func (c LinearConstraint) TriviallyFalse() bool {
	return c.IsConstant() && !c.Op.Holds(new(big.Rat), c.Constant)
}

// TriviallyTrue reports a constant-only constraint whose relation holds.
func (c LinearConstraint) TriviallyTrue() bool {
	return c.IsConstant() && c.Op.Holds(new(big.Rat), c.Constant)
}

// WithProvenance returns a copy carrying a different provenance.
func (c LinearConstraint) WithProvenance(p string) LinearConstraint {
	return New(c.Coefficients, c.Op, c.Constant, p)
}

// Negate returns the complement of c. For == the result is the < half only;
// see NegateEquality.
func (c LinearConstraint) Negate() LinearConstraint {
	return New(c.Coefficients, c.Op.Negate(), c.Constant, "not("+c.label()+")")
}

// NegateEquality returns the two halves of the complement of an equality,
// Σ < k and Σ > k.
func (c LinearConstraint) NegateEquality() [2]LinearConstraint {
	p := "not(" + c.label() + ")"
	return [2]LinearConstraint{
		New(c.Coefficients, OpLT, c.Constant, p+" [<]"),
		New(c.Coefficients, OpGT, c.Constant, p+" [>]"),
	}
}

// Scale multiplies both sides by k. A negative k flips the relation; k must
// be non-zero.
func (c LinearConstraint) Scale(k *big.Rat) LinearConstraint {
	coeffs := make(map[string]*big.Rat, len(c.Coefficients))
	for v, a := range c.Coefficients {
		coeffs[v] = new(big.Rat).Mul(a, k)
	}

	op := c.Op
	if k.Sign() < 0 {
		op = op.Flip()
	}

	return New(coeffs, op, new(big.Rat).Mul(c.Constant, k), c.Provenance)
}

// LowerForm rewrites c as one or two constraints using only > and >=.
// Equalities become a pair of opposite non-strict bounds.
func (c LinearConstraint) LowerForm() []LinearConstraint {
	minusOne := big.NewRat(-1, 1)
	switch c.Op {
	case OpGT, OpGE:
		return []LinearConstraint{c}
	case OpLT, OpLE:
		return []LinearConstraint{c.Scale(minusOne)}
	default:
		ge := New(c.Coefficients, OpGE, c.Constant, c.Provenance)
		le := New(c.Coefficients, OpLE, c.Constant, c.Provenance)
		return []LinearConstraint{ge, le.Scale(minusOne)}
	}
}

// Sum adds two lower-form constraints. The result is strict when either
// input is strict.
func Sum(a, b LinearConstraint, provenance string) (LinearConstraint, error) {
	if !a.Op.IsLower() || !b.Op.IsLower() {
		return LinearConstraint{}, fmt.Errorf("sum requires lower-form constraints, got %s and %s", a.Op, b.Op)
	}

	coeffs := make(map[string]*big.Rat, len(a.Coefficients)+len(b.Coefficients))
	for v, k := range a.Coefficients {
		coeffs[v] = new(big.Rat).Set(k)
	}
	for v, k := range b.Coefficients {
		if prev, ok := coeffs[v]; ok {
			coeffs[v] = prev.Add(prev, k)
		} else {
			coeffs[v] = new(big.Rat).Set(k)
		}
	}

	op := OpGE
	if a.Op.Strict() || b.Op.Strict() {
		op = OpGT
	}

	return New(coeffs, op, new(big.Rat).Add(a.Constant, b.Constant), provenance), nil
}

// Bound interprets a single-variable constraint a·x op k as x op' k/a.
func (c LinearConstraint) Bound() (variable string, op Operator, value *big.Rat, ok bool) {
	if len(c.Coefficients) != 1 {
		return "", 0, nil, false
	}

	for v, a := range c.Coefficients {
		variable = v
		value = new(big.Rat).Quo(c.Constant, a)
		op = c.Op
		if a.Sign() < 0 {
			op = op.Flip()
		}
	}

	return variable, op, value, true
}

// Eval evaluates the constraint under an assignment. Missing variables are
// treated as zero.
func (c LinearConstraint) Eval(assignment map[string]*big.Rat) bool {
	sum := new(big.Rat)
	for v, a := range c.Coefficients {
		if x, ok := assignment[v]; ok {
			sum.Add(sum, new(big.Rat).Mul(a, x))
		}
	}
	return c.Op.Holds(sum, c.Constant)
}

func (c LinearConstraint) label() string {
	if c.Provenance != "" {
		return c.Provenance
	}
	return c.String()
}

// String renders the constraint in canonical form, e.g. "x - 2*y >= 3".
func (c LinearConstraint) String() string {
	var sb strings.Builder
	for i, v := range c.Variables() {
		k := c.Coefficients[v]
		abs := new(big.Rat).Abs(k)
		switch {
		case i == 0 && k.Sign() < 0:
			sb.WriteString("-")
		case i > 0 && k.Sign() < 0:
			sb.WriteString(" - ")
		case i > 0:
			sb.WriteString(" + ")
		}
		if abs.Cmp(big.NewRat(1, 1)) != 0 {
			sb.WriteString(abs.RatString())
			sb.WriteString("*")
		}
		sb.WriteString(v)
	}
	if sb.Len() == 0 {
		sb.WriteString("0")
	}

	return fmt.Sprintf("%s %s %s", sb.String(), c.Op, c.Constant.RatString())
}
