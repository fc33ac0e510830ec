// Package calc evaluates arithmetic expressions without executing code.
//
// Input is first reduced to the characters "0123456789+-*/(). ". The
// remaining text is tokenized and parsed by recursive descent with the usual
// precedence: parentheses, then "**" (right associative), unary sign, then
// "*", "/" and "//", then "+" and "-".
//
// Values follow the rules of a dynamically typed calculator language:
// integer literals are exact and arbitrarily large, a literal with a decimal
// point is a float, "/" always yields a float, and any float operand makes
// the result a float. Floats print in shortest round-trip form with a
// trailing ".0" for whole numbers ("2.0", "1e+16").
package calc

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

var (
	// ErrSyntax is returned for malformed or empty expressions.
	ErrSyntax = errors.New("calc: invalid expression")
	// ErrDivisionByZero is returned when a divisor evaluates to zero.
	ErrDivisionByZero = errors.New("calc: division by zero")
	// ErrOverflow is returned when a result cannot be represented, either
	// as a float or as an integer short enough to print.
	ErrOverflow = errors.New("calc: result out of range")
	// ErrDomain is returned when a result is not a real number, such as a
	// fractional power of a negative base.
	ErrDomain = errors.New("calc: result is not a real number")
	// ErrType is returned for operations the operand types do not support.
	ErrType = errors.New("calc: unsupported operand type")
)

const allowed = "0123456789+-*/(). "

const (
	// maxDigits bounds integer literals and printed integer results.
	maxDigits = 4300
	// maxBits bounds intermediate integers so a short input cannot demand
	// unbounded work.
	maxBits = 1 << 17
)

// Sanitize drops every character outside the arithmetic alphabet.
func Sanitize(expr string) string {
	var b strings.Builder
	for _, r := range expr {
		if strings.ContainsRune(allowed, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type kind int

const (
	kindInt kind = iota
	kindFloat
	kindTuple
)

// Value is the result of an expression: an exact integer, a float, or the
// empty tuple written as "()".
type Value struct {
	kind kind
	i    *big.Int
	f    float64
}

func intValue(i *big.Int) Value  { return Value{kind: kindInt, i: i} }
func floatValue(f float64) Value { return Value{kind: kindFloat, f: f} }

// IsInteger reports whether v is an exact integer.
func (v Value) IsInteger() bool { return v.kind == kindInt }

func (v Value) typeName() string {
	switch v.kind {
	case kindInt:
		return "int"
	case kindFloat:
		return "float"
	}
	return "tuple"
}

// String renders v the way the calculator prints results.
func (v Value) String() string {
	switch v.kind {
	case kindInt:
		return v.i.String()
	case kindFloat:
		return formatFloat(v.f)
	}
	return "()"
}

// Float64 converts v to a float. Integers too large for a float report
// ErrOverflow.
func (v Value) Float64() (float64, error) {
	switch v.kind {
	case kindFloat:
		return v.f, nil
	case kindInt:
		f, _ := new(big.Float).SetInt(v.i).Float64()
		if math.IsInf(f, 0) {
			return 0, ErrOverflow
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: tuple is not a number", ErrType)
}

// Eval sanitizes and evaluates expr.
func Eval(expr string) (Value, error) {
	toks, err := tokenize(Sanitize(expr))
	if err != nil {
		return Value{}, err
	}
	if len(toks) == 0 {
		return Value{}, ErrSyntax
	}
	p := &parser{toks: toks}
	v, err := p.expr()
	if err != nil {
		return Value{}, err
	}
	if p.pos != len(p.toks) {
		return Value{}, fmt.Errorf("%w: unexpected %q", ErrSyntax, p.toks[p.pos].text)
	}
	if v.kind == kindInt && digits(v.i) > maxDigits {
		return Value{}, fmt.Errorf("%w: more than %d digits", ErrOverflow, maxDigits)
	}
	return v, nil
}

func digits(i *big.Int) int {
	n := len(i.String())
	if i.Sign() < 0 {
		n--
	}
	return n
}

// formatFloat prints the shortest string that reads back as f. Whole
// numbers keep a ".0"; exponents are used below 1e-4 and from 1e16 up.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	sign := ""
	if math.Signbit(f) {
		sign = "-"
		f = -f
	}
	if f == 0 {
		return sign + "0.0"
	}

	// d.ddde±XX
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, expText, _ := strings.Cut(s, "e")
	exp, _ := strconv.Atoi(expText)
	ds := strings.Replace(mant, ".", "", 1)
	point := exp + 1

	if point <= -4 || point > 16 {
		m := ds[:1]
		if len(ds) > 1 {
			m += "." + ds[1:]
		}
		esign := "+"
		if exp < 0 {
			esign = "-"
			exp = -exp
		}
		return fmt.Sprintf("%s%se%s%02d", sign, m, esign, exp)
	}

	switch {
	case point <= 0:
		return sign + "0." + strings.Repeat("0", -point) + ds
	case point >= len(ds):
		return sign + ds + strings.Repeat("0", point-len(ds)) + ".0"
	default:
		return sign + ds[:point] + "." + ds[point:]
	}
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind  tokenKind
	text  string
	value Value
}

func tokenize(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ':
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
				i++
			}
			v, err := literal(s[start:i])
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokNumber, text: s[start:i], value: v})
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		case c == '*' || c == '/':
			if i+1 < len(s) && s[i+1] == c {
				toks = append(toks, token{kind: tokOp, text: s[i : i+2]})
				i += 2
				continue
			}
			toks = append(toks, token{kind: tokOp, text: string(c)})
			i++
		case c == '+' || c == '-':
			toks = append(toks, token{kind: tokOp, text: string(c)})
			i++
		default:
			return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, c)
		}
	}
	return toks, nil
}

// literal parses one number. Integer literals may not carry leading zeros
// unless they are all zeros; float literals overflow to infinity.
func literal(text string) (Value, error) {
	dots := strings.Count(text, ".")
	if dots > 1 || text == "." {
		return Value{}, fmt.Errorf("%w: bad number %q", ErrSyntax, text)
	}
	if dots == 1 {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return Value{}, fmt.Errorf("%w: bad number %q", ErrSyntax, text)
		}
		return floatValue(f), nil
	}
	if len(text) > 1 && text[0] == '0' && strings.Trim(text, "0") != "" {
		return Value{}, fmt.Errorf("%w: leading zeros in %q", ErrSyntax, text)
	}
	if len(text) > maxDigits {
		return Value{}, fmt.Errorf("%w: literal longer than %d digits", ErrOverflow, maxDigits)
	}
	i, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return Value{}, fmt.Errorf("%w: bad number %q", ErrSyntax, text)
	}
	return intValue(i), nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peekOp(ops ...string) (string, bool) {
	if p.pos >= len(p.toks) || p.toks[p.pos].kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if p.toks[p.pos].text == op {
			return op, true
		}
	}
	return "", false
}

// expr := term (("+" | "-") term)*
func (p *parser) expr() (Value, error) {
	left, err := p.term()
	if err != nil {
		return Value{}, err
	}
	for {
		op, ok := p.peekOp("+", "-")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.term()
		if err != nil {
			return Value{}, err
		}
		if left, err = binary(op, left, right); err != nil {
			return Value{}, err
		}
	}
}

// term := unary (("*" | "/" | "//") unary)*
func (p *parser) term() (Value, error) {
	left, err := p.unary()
	if err != nil {
		return Value{}, err
	}
	for {
		op, ok := p.peekOp("*", "/", "//")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.unary()
		if err != nil {
			return Value{}, err
		}
		if left, err = binary(op, left, right); err != nil {
			return Value{}, err
		}
	}
}

// unary := ("+" | "-") unary | power
func (p *parser) unary() (Value, error) {
	op, ok := p.peekOp("+", "-")
	if !ok {
		return p.power()
	}
	p.pos++
	v, err := p.unary()
	if err != nil {
		return Value{}, err
	}
	switch {
	case v.kind == kindTuple:
		return Value{}, fmt.Errorf("%w: bad operand for unary %s: tuple", ErrType, op)
	case op == "+":
		return v, nil
	case v.kind == kindInt:
		return intValue(new(big.Int).Neg(v.i)), nil
	default:
		return floatValue(-v.f), nil
	}
}

// power := primary ("**" unary)?
func (p *parser) power() (Value, error) {
	base, err := p.primary()
	if err != nil {
		return Value{}, err
	}
	if _, ok := p.peekOp("**"); !ok {
		return base, nil
	}
	p.pos++
	exp, err := p.unary()
	if err != nil {
		return Value{}, err
	}
	return binary("**", base, exp)
}

// primary := number | "(" ")" | "(" expr ")"
func (p *parser) primary() (Value, error) {
	if p.pos >= len(p.toks) {
		return Value{}, fmt.Errorf("%w: unexpected end of input", ErrSyntax)
	}
	tok := p.toks[p.pos]
	switch tok.kind {
	case tokNumber:
		p.pos++
		return tok.value, nil
	case tokLParen:
		p.pos++
		if p.pos < len(p.toks) && p.toks[p.pos].kind == tokRParen {
			p.pos++
			return Value{kind: kindTuple}, nil
		}
		v, err := p.expr()
		if err != nil {
			return Value{}, err
		}
		if p.pos >= len(p.toks) || p.toks[p.pos].kind != tokRParen {
			return Value{}, fmt.Errorf("%w: missing closing parenthesis", ErrSyntax)
		}
		p.pos++
		return v, nil
	default:
		return Value{}, fmt.Errorf("%w: unexpected %q", ErrSyntax, tok.text)
	}
}
