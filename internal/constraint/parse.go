package constraint

import (
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	perrors "github.com/orizon-lang/refinement/internal/errors"
)

// Shape is the closed set of predicate layouts the normalizer recognizes.
type Shape int

const (
	ShapeNone       Shape = iota // not linear
	ShapeVarZero                 // x op 0
	ShapeVarConst                // x op c
	ShapeConstVar                // c op x
	ShapeVarVar                  // x op y
	ShapeSumConst                // x + y op c
	ShapeDiffConst               // x - y op c
	ShapeConstConst              // c op d
)

func (s Shape) String() string {
	switch s {
	case ShapeVarZero:
		return "var-zero"
	case ShapeVarConst:
		return "var-const"
	case ShapeConstVar:
		return "const-var"
	case ShapeVarVar:
		return "var-var"
	case ShapeSumConst:
		return "sum-const"
	case ShapeDiffConst:
		return "diff-const"
	case ShapeConstConst:
		return "const-const"
	default:
		return "none"
	}
}

// maxExponent bounds scientific-notation exponents so a hostile literal
// cannot allocate an enormous rational.
const maxExponent = 4096

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokPlus
	tokMinus
	tokOp
)

type token struct {
	kind tokenKind
	text string
	op   Operator
	num  *big.Rat
}

// signatures maps token-kind layouts to shapes. ShapeVarZero is refined from
// ShapeVarConst once the constant is known.
var signatures = map[string]Shape{
	"ion":   ShapeVarConst,
	"noi":   ShapeConstVar,
	"ioi":   ShapeVarVar,
	"i+ion": ShapeSumConst,
	"i-ion": ShapeDiffConst,
	"non":   ShapeConstConst,
}

// Classify reports which shape text matches.
func Classify(text string) Shape {
	_, shape := classify(text)
	return shape
}

// Parse converts predicate text into a linear constraint. ok is false when
// the text matches no recognized shape.
func Parse(text string) (LinearConstraint, bool) {
	toks, shape := classify(text)
	if shape == ShapeNone {
		return LinearConstraint{}, false
	}
	return build(shape, toks, strings.TrimSpace(text)), true
}

// Require is Parse for text that must be linear. A mismatch is a PARSE
// error matching errors.ErrNotLinear.
func Require(text string) (LinearConstraint, error) {
	c, ok := Parse(text)
	if !ok {
		return LinearConstraint{}, perrors.ParseFailure(strings.TrimSpace(text))
	}
	return c, nil
}

func classify(text string) ([]token, Shape) {
	toks, ok := lex(text)
	if !ok {
		return nil, ShapeNone
	}

	var sig strings.Builder
	for _, t := range toks {
		switch t.kind {
		case tokIdent:
			sig.WriteByte('i')
		case tokNumber:
			sig.WriteByte('n')
		case tokPlus:
			sig.WriteByte('+')
		case tokMinus:
			sig.WriteByte('-')
		case tokOp:
			sig.WriteByte('o')
		}
	}

	shape, ok := signatures[sig.String()]
	if !ok {
		return nil, ShapeNone
	}
	if shape == ShapeVarConst && toks[2].num.Sign() == 0 {
		shape = ShapeVarZero
	}

	return toks, shape
}

func build(shape Shape, toks []token, provenance string) LinearConstraint {
	one := big.NewRat(1, 1)
	minusOne := big.NewRat(-1, 1)

	switch shape {
	case ShapeVarZero, ShapeVarConst:
		return New(map[string]*big.Rat{toks[0].text: one}, toks[1].op, toks[2].num, provenance)
	case ShapeConstVar:
		return New(map[string]*big.Rat{toks[2].text: one}, toks[1].op.Flip(), toks[0].num, provenance)
	case ShapeVarVar:
		return New(addTerms(toks[0].text, one, toks[2].text, minusOne), toks[1].op, nil, provenance)
	case ShapeSumConst:
		return New(addTerms(toks[0].text, one, toks[2].text, one), toks[3].op, toks[4].num, provenance)
	case ShapeDiffConst:
		return New(addTerms(toks[0].text, one, toks[2].text, minusOne), toks[3].op, toks[4].num, provenance)
	case ShapeConstConst:
		return New(nil, toks[1].op, new(big.Rat).Sub(toks[2].num, toks[0].num), provenance)
	case ShapeNone:
		return LinearConstraint{}
	default:
		panic("constraint: unhandled shape " + shape.String())
	}
}

// addTerms combines two signed terms, merging them when the variables match.
func addTerms(x string, a *big.Rat, y string, b *big.Rat) map[string]*big.Rat {
	if x == y {
		return map[string]*big.Rat{x: new(big.Rat).Add(a, b)}
	}
	return map[string]*big.Rat{x: a, y: b}
}

func lex(text string) ([]token, bool) {
	var toks []token
	s := text

	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)

		switch {
		case unicode.IsSpace(r):
			s = s[size:]
		case isIdentStart(r):
			n := identLen(s)
			toks = append(toks, token{kind: tokIdent, text: s[:n]})
			s = s[n:]
		case isDigit(r) || (r == '.' && len(s) > 1 && isDigit(rune(s[1]))):
			n, num, ok := number(s)
			if !ok {
				return nil, false
			}
			toks = append(toks, token{kind: tokNumber, text: s[:n], num: num})
			s = s[n:]
		case r == '-' && expectsOperand(toks) && len(s) > 1 && (isDigit(rune(s[1])) || s[1] == '.'):
			n, num, ok := number(s[1:])
			if !ok {
				return nil, false
			}
			toks = append(toks, token{kind: tokNumber, text: s[:n+1], num: num.Neg(num)})
			s = s[n+1:]
		case r == '+':
			toks = append(toks, token{kind: tokPlus, text: "+"})
			s = s[1:]
		case r == '-':
			toks = append(toks, token{kind: tokMinus, text: "-"})
			s = s[1:]
		case r == '<' || r == '>' || r == '=':
			n := 1
			for n < len(s) && n < 3 && s[n] == '=' {
				n++
			}
			op, ok := ParseOperator(s[:n])
			if !ok {
				return nil, false
			}
			toks = append(toks, token{kind: tokOp, text: s[:n], op: op})
			s = s[n:]
		default:
			return nil, false
		}
	}

	return toks, true
}

func expectsOperand(toks []token) bool {
	if len(toks) == 0 {
		return true
	}
	switch toks[len(toks)-1].kind {
	case tokOp, tokPlus, tokMinus:
		return true
	default:
		return false
	}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '$'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

// identLen returns the byte length of the identifier at the start of s,
// including dotted member segments such as buf.len.
func identLen(s string) int {
	i := 0
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if isIdentPart(r) {
			i += size
			continue
		}
		if r == '.' && i+1 < len(s) {
			next, _ := utf8.DecodeRuneInString(s[i+1:])
			if isIdentStart(next) {
				i += size
				continue
			}
		}
		break
	}
	return i
}

// number scans a decimal or scientific literal at the start of s.
func number(s string) (int, *big.Rat, bool) {
	i := 0
	for i < len(s) && isDigit(rune(s[i])) {
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(rune(s[i])) {
			i++
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		start := j
		for j < len(s) && isDigit(rune(s[j])) {
			j++
		}
		if j == start {
			return 0, nil, false
		}
		exp, err := strconv.Atoi(s[start:j])
		if err != nil || exp > maxExponent {
			return 0, nil, false
		}
		i = j
	}

	// A literal running straight into an identifier ("5x") is not a number.
	if i < len(s) {
		if r, _ := utf8.DecodeRuneInString(s[i:]); isIdentPart(r) || r == '.' {
			return 0, nil, false
		}
	}

	num, ok := new(big.Rat).SetString(s[:i])
	if !ok {
		return 0, nil, false
	}
	return i, num, true
}
