package constraint

import "math/big"

// Operator represents the comparison relating the left-hand sum to the
// constant of a linear constraint.
type Operator int

const (
	OpLT Operator = iota // <
	OpLE                 // <=
	OpGT                 // >
	OpGE                 // >=
	OpEQ                 // ==
)

func (op Operator) String() string {
	switch op {
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpGT:
		return ">"
	case OpGE:
		return ">="
	case OpEQ:
		return "=="
	default:
		return "unknown"
	}
}

// ParseOperator maps operator text to an Operator. "!=" has no single linear
// form and is rejected.
func ParseOperator(text string) (Operator, bool) {
	switch text {
	case "<":
		return OpLT, true
	case "<=":
		return OpLE, true
	case ">":
		return OpGT, true
	case ">=":
		return OpGE, true
	case "==", "===":
		return OpEQ, true
	default:
		return 0, false
	}
}

// Negate returns the complement relation. The complement of == is a union
// and cannot be expressed by one operator; Negate returns < for it, which
// covers only half of the complement. Use LinearConstraint.NegateEquality
// when both halves are needed.
func (op Operator) Negate() Operator {
	switch op {
	case OpLT:
		return OpGE
	case OpLE:
		return OpGT
	case OpGT:
		return OpLE
	case OpGE:
		return OpLT
	default:
		return OpLT
	}
}

// Flip returns the operator obtained by swapping both sides of the relation.
func (op Operator) Flip() Operator {
	switch op {
	case OpLT:
		return OpGT
	case OpLE:
		return OpGE
	case OpGT:
		return OpLT
	case OpGE:
		return OpLE
	default:
		return op
	}
}

// Strict reports whether the relation excludes equality.
func (op Operator) Strict() bool {
	return op == OpLT || op == OpGT
}

// IsLower reports whether op bounds the left side from below.
func (op Operator) IsLower() bool {
	return op == OpGT || op == OpGE
}

// IsUpper reports whether op bounds the left side from above.
func (op Operator) IsUpper() bool {
	return op == OpLT || op == OpLE
}

// SameFamily reports whether two operators bound in the same direction.
func (op Operator) SameFamily(other Operator) bool {
	return (op.IsLower() && other.IsLower()) || (op.IsUpper() && other.IsUpper())
}

// WithStrictness returns the operator of op's family with the given strictness.
func (op Operator) WithStrictness(strict bool) Operator {
	switch {
	case op.IsLower() && strict:
		return OpGT
	case op.IsLower():
		return OpGE
	case op.IsUpper() && strict:
		return OpLT
	case op.IsUpper():
		return OpLE
	default:
		return op
	}
}

// Holds evaluates lhs op rhs.
func (op Operator) Holds(lhs, rhs *big.Rat) bool {
	c := lhs.Cmp(rhs)
	switch op {
	case OpLT:
		return c < 0
	case OpLE:
		return c <= 0
	case OpGT:
		return c > 0
	case OpGE:
		return c >= 0
	case OpEQ:
		return c == 0
	default:
		return false
	}
}
