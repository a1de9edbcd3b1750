package solver

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/orizon-lang/refinement/internal/facts"
)

// Script is an SMT-LIB2 query asking whether the facts and the negated goal
// are jointly satisfiable.
type Script struct {
	Text      string
	Variables []string
	// Used lists the facts that were translated into assertions.
	Used []facts.Fact
	// Skipped lists facts with no SMT-LIB translation.
	Skipped []facts.Fact
}

// BuildScript translates goal and fs into an SMT-LIB2 script. Facts that
// cannot be translated are left out, which only weakens the query. A goal
// that cannot be translated is an error.
func BuildScript(goal string, fs []facts.Fact) (*Script, error) {
	vars := map[string]bool{}

	g, err := Translate(goal, vars)
	if err != nil {
		return nil, fmt.Errorf("translate goal: %w", err)
	}

	s := &Script{}
	var asserts []string
	for _, f := range fs {
		local := map[string]bool{}
		expr, err := Translate(f.Predicate, local)
		if err != nil {
			s.Skipped = append(s.Skipped, f)
			continue
		}
		for v := range local {
			vars[v] = true
		}
		asserts = append(asserts, "(assert "+expr+")")
		s.Used = append(s.Used, f)
	}

	for v := range vars {
		s.Variables = append(s.Variables, v)
	}
	sort.Strings(s.Variables)

	var sb strings.Builder
	for _, v := range s.Variables {
		fmt.Fprintf(&sb, "(declare-const %s Real)\n", symbol(v))
	}
	for _, a := range asserts {
		sb.WriteString(a)
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "(assert (not %s))\n", g)
	sb.WriteString("(check-sat)\n")
	s.Text = sb.String()

	return s, nil
}

// Translate converts predicate text into an SMT-LIB2 term, recording the
// variables it mentions in vars.
func Translate(text string, vars map[string]bool) (string, error) {
	p := newExprParser(text, vars)
	p.skipWhitespace()

	expr, err := p.parseOr()
	if err != nil {
		return "", err
	}

	p.skipWhitespace()
	if p.current != 0 {
		return "", fmt.Errorf("unexpected %q at offset %d", p.current, p.position-p.width)
	}
	if expr.sort != sortBool {
		return "", fmt.Errorf("%q is not a boolean predicate", text)
	}

	return expr.text, nil
}

type termSort int

const (
	sortBool termSort = iota
	sortReal
)

type term struct {
	text string
	sort termSort
}

// exprParser is a recursive-descent parser over the predicate grammar
//
//	or      := and ("||" and)*
//	and     := cmp ("&&" cmp)*
//	cmp     := sum (op sum)?
//	sum     := product (("+"|"-") product)*
//	product := unary (("*"|"/") unary)*
//	unary   := "!" unary | "-" unary | primary
//	primary := "(" or ")" | "true" | "false" | number | identifier
type exprParser struct {
	input    string
	position int
	width    int
	current  rune
	vars     map[string]bool
}

func newExprParser(input string, vars map[string]bool) *exprParser {
	p := &exprParser{input: input, vars: vars}
	p.advance()
	return p
}

func (p *exprParser) advance() {
	if p.position < len(p.input) {
		r, w := utf8.DecodeRuneInString(p.input[p.position:])
		p.current, p.width = r, w
		p.position += w
	} else {
		p.current, p.width = 0, 0
	}
}

func (p *exprParser) rest() string {
	return p.input[p.position-p.width:]
}

func (p *exprParser) skipWhitespace() {
	for unicode.IsSpace(p.current) {
		p.advance()
	}
}

func (p *exprParser) consume(s string) bool {
	if !strings.HasPrefix(p.rest(), s) {
		return false
	}
	for range s {
		p.advance()
	}
	return true
}

func (p *exprParser) parseOr() (term, error) {
	left, err := p.parseAnd()
	if err != nil {
		return term{}, err
	}

	for {
		p.skipWhitespace()
		if !p.consume("||") {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return term{}, err
		}
		if left, err = logical("or", left, right); err != nil {
			return term{}, err
		}
	}
}

func (p *exprParser) parseAnd() (term, error) {
	left, err := p.parseComparison()
	if err != nil {
		return term{}, err
	}

	for {
		p.skipWhitespace()
		if !p.consume("&&") {
			return left, nil
		}
		right, err := p.parseComparison()
		if err != nil {
			return term{}, err
		}
		if left, err = logical("and", left, right); err != nil {
			return term{}, err
		}
	}
}

func (p *exprParser) parseComparison() (term, error) {
	left, err := p.parseSum()
	if err != nil {
		return term{}, err
	}

	p.skipWhitespace()

	var op string
	switch {
	case p.consume("==="), p.consume("=="):
		op = "="
	case p.consume("!="):
		op = "distinct"
	case p.consume("<="):
		op = "<="
	case p.consume(">="):
		op = ">="
	case p.consume("<"):
		op = "<"
	case p.consume(">"):
		op = ">"
	default:
		return left, nil
	}

	right, err := p.parseSum()
	if err != nil {
		return term{}, err
	}
	if left.sort != sortReal || right.sort != sortReal {
		return term{}, fmt.Errorf("comparison %s needs numeric operands", op)
	}

	return term{text: fmt.Sprintf("(%s %s %s)", op, left.text, right.text), sort: sortBool}, nil
}

func (p *exprParser) parseSum() (term, error) {
	left, err := p.parseProduct()
	if err != nil {
		return term{}, err
	}

	for {
		p.skipWhitespace()
		var op string
		switch {
		case p.current == '+':
			op = "+"
		case p.current == '-':
			op = "-"
		default:
			return left, nil
		}
		p.advance()

		right, err := p.parseProduct()
		if err != nil {
			return term{}, err
		}
		if left, err = arithmetic(op, left, right); err != nil {
			return term{}, err
		}
	}
}

func (p *exprParser) parseProduct() (term, error) {
	left, err := p.parseUnary()
	if err != nil {
		return term{}, err
	}

	for {
		p.skipWhitespace()
		var op string
		switch {
		case p.current == '*':
			op = "*"
		case p.current == '/':
			op = "/"
		default:
			return left, nil
		}
		p.advance()

		right, err := p.parseUnary()
		if err != nil {
			return term{}, err
		}
		if left, err = arithmetic(op, left, right); err != nil {
			return term{}, err
		}
	}
}

func (p *exprParser) parseUnary() (term, error) {
	p.skipWhitespace()

	switch {
	case p.current == '!' && !strings.HasPrefix(p.rest(), "!="):
		p.advance()
		t, err := p.parseUnary()
		if err != nil {
			return term{}, err
		}
		if t.sort != sortBool {
			return term{}, fmt.Errorf("'!' needs a boolean operand")
		}
		return term{text: "(not " + t.text + ")", sort: sortBool}, nil
	case p.current == '-':
		p.advance()
		t, err := p.parseUnary()
		if err != nil {
			return term{}, err
		}
		if t.sort != sortReal {
			return term{}, fmt.Errorf("unary '-' needs a numeric operand")
		}
		return term{text: "(- " + t.text + ")", sort: sortReal}, nil
	}

	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (term, error) {
	p.skipWhitespace()

	if p.current == '(' {
		p.advance()
		t, err := p.parseOr()
		if err != nil {
			return term{}, err
		}
		p.skipWhitespace()
		if p.current != ')' {
			return term{}, fmt.Errorf("expected ')'")
		}
		p.advance()
		return t, nil
	}

	if p.current == 0 {
		return term{}, fmt.Errorf("unexpected end of input")
	}

	if isDigit(p.current) || p.current == '.' {
		return p.parseNumber()
	}

	if !identStart(p.current) {
		return term{}, fmt.Errorf("unexpected character: %c", p.current)
	}

	var sb strings.Builder
	for identPart(p.current) || (p.current == '.' && p.position < len(p.input) && identStart(peek(p.input[p.position:]))) {
		sb.WriteRune(p.current)
		p.advance()
	}
	name := sb.String()

	p.skipWhitespace()
	if p.current == '(' {
		return term{}, fmt.Errorf("function application %s(...) is not supported", name)
	}

	switch name {
	case "true", "false":
		return term{text: name, sort: sortBool}, nil
	}

	p.vars[name] = true
	return term{text: symbol(name), sort: sortReal}, nil
}

func (p *exprParser) parseNumber() (term, error) {
	start := p.position - p.width
	for isDigit(p.current) || p.current == '.' {
		p.advance()
	}
	if p.current == 'e' || p.current == 'E' {
		p.advance()
		if p.current == '+' || p.current == '-' {
			p.advance()
		}
		for isDigit(p.current) {
			p.advance()
		}
	}
	text := p.input[start : p.position-p.width]

	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return term{}, fmt.Errorf("invalid number: %s", text)
	}
	return term{text: realLiteral(r), sort: sortReal}, nil
}

func logical(op string, left, right term) (term, error) {
	if left.sort != sortBool || right.sort != sortBool {
		return term{}, fmt.Errorf("'%s' needs boolean operands", op)
	}
	return term{text: fmt.Sprintf("(%s %s %s)", op, left.text, right.text), sort: sortBool}, nil
}

func arithmetic(op string, left, right term) (term, error) {
	if left.sort != sortReal || right.sort != sortReal {
		return term{}, fmt.Errorf("'%s' needs numeric operands", op)
	}
	return term{text: fmt.Sprintf("(%s %s %s)", op, left.text, right.text), sort: sortReal}, nil
}

// realLiteral renders r as an SMT-LIB Real term.
func realLiteral(r *big.Rat) string {
	abs := new(big.Rat).Abs(r)
	var lit string
	if abs.IsInt() {
		lit = abs.Num().String() + ".0"
	} else {
		lit = fmt.Sprintf("(/ %s.0 %s.0)", abs.Num(), abs.Denom())
	}
	if r.Sign() < 0 {
		return "(- " + lit + ")"
	}
	return lit
}

// symbol quotes a variable name as an SMT-LIB symbol.
func symbol(name string) string {
	return "|" + strings.NewReplacer("|", "_", `\`, "_").Replace(name) + "|"
}

func peek(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func identStart(r rune) bool { return unicode.IsLetter(r) || r == '_' || r == '$' }

func identPart(r rune) bool { return identStart(r) || unicode.IsDigit(r) }
