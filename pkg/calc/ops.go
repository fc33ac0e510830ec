package calc

import (
	"fmt"
	"math"
	"math/big"
)

// binary applies op. Two integers stay exact except under "/" and negative
// powers; any float operand converts the other side to a float first.
func binary(op string, a, b Value) (Value, error) {
	if a.kind == kindTuple || b.kind == kindTuple {
		return tupleOp(op, a, b)
	}
	if a.kind == kindInt && b.kind == kindInt {
		if op != "**" || b.i.Sign() >= 0 {
			return intOp(op, a.i, b.i)
		}
	}
	x, err := a.Float64()
	if err != nil {
		return Value{}, err
	}
	y, err := b.Float64()
	if err != nil {
		return Value{}, err
	}
	return floatOp(op, x, y)
}

func intOp(op string, x, y *big.Int) (Value, error) {
	switch op {
	case "+":
		return checked(new(big.Int).Add(x, y))
	case "-":
		return checked(new(big.Int).Sub(x, y))
	case "*":
		if x.BitLen()+y.BitLen() > maxBits+1 {
			return Value{}, ErrOverflow
		}
		return checked(new(big.Int).Mul(x, y))
	case "/":
		if y.Sign() == 0 {
			return Value{}, ErrDivisionByZero
		}
		f, _ := new(big.Rat).SetFrac(x, y).Float64()
		if math.IsInf(f, 0) {
			return Value{}, ErrOverflow
		}
		return floatValue(f), nil
	case "//":
		if y.Sign() == 0 {
			return Value{}, ErrDivisionByZero
		}
		q, r := new(big.Int).QuoRem(x, y, new(big.Int))
		if r.Sign() != 0 && (r.Sign() < 0) != (y.Sign() < 0) {
			q.Sub(q, big.NewInt(1))
		}
		return intValue(q), nil
	case "**":
		return intPow(x, y)
	}
	return Value{}, fmt.Errorf("%w: unknown operator %q", ErrSyntax, op)
}

// intPow computes x**y exactly for y >= 0.
func intPow(x, y *big.Int) (Value, error) {
	if abs := new(big.Int).Abs(x); abs.Cmp(big.NewInt(1)) > 0 {
		if !y.IsInt64() || y.Int64() > maxBits {
			return Value{}, ErrOverflow
		}
		if int64(abs.BitLen()-1)*y.Int64() > maxBits {
			return Value{}, ErrOverflow
		}
	}
	return checked(new(big.Int).Exp(x, y, nil))
}

func checked(i *big.Int) (Value, error) {
	if i.BitLen() > maxBits {
		return Value{}, ErrOverflow
	}
	return intValue(i), nil
}

// floatOp follows IEEE arithmetic, except that dividing by zero, raising
// zero to a negative power and overflowing a power are errors.
func floatOp(op string, x, y float64) (Value, error) {
	switch op {
	case "+":
		return floatValue(x + y), nil
	case "-":
		return floatValue(x - y), nil
	case "*":
		return floatValue(x * y), nil
	case "/":
		if y == 0 {
			return Value{}, ErrDivisionByZero
		}
		return floatValue(x / y), nil
	case "//":
		if y == 0 {
			return Value{}, ErrDivisionByZero
		}
		return floatValue(floorDiv(x, y)), nil
	case "**":
		return floatPow(x, y)
	}
	return Value{}, fmt.Errorf("%w: unknown operator %q", ErrSyntax, op)
}

// floorDiv rounds x/y toward negative infinity. The quotient is derived from
// the remainder so it agrees with x - y*floorDiv(x, y).
func floorDiv(x, y float64) float64 {
	mod := math.Mod(x, y)
	div := (x - mod) / y
	if mod != 0 && (y < 0) != (mod < 0) {
		div -= 1
	}
	if div == 0 {
		return math.Copysign(0, x/y)
	}
	f := math.Floor(div)
	if div-f > 0.5 {
		f++
	}
	return f
}

func floatPow(x, y float64) (Value, error) {
	finite := !math.IsInf(x, 0) && !math.IsInf(y, 0) && !math.IsNaN(x) && !math.IsNaN(y)
	if finite {
		if x == 0 && y < 0 {
			return Value{}, ErrDivisionByZero
		}
		if x < 0 && y != math.Trunc(y) {
			return Value{}, ErrDomain
		}
	}
	r := math.Pow(x, y)
	if finite && math.IsInf(r, 0) {
		return Value{}, ErrOverflow
	}
	return floatValue(r), nil
}

// tupleOp supports the only arithmetic the empty tuple has: concatenation
// with another tuple and repetition by an integer.
func tupleOp(op string, a, b Value) (Value, error) {
	switch {
	case op == "+" && a.kind == kindTuple && b.kind == kindTuple:
		return Value{kind: kindTuple}, nil
	case op == "*" && a.kind == kindTuple && b.kind == kindInt:
		return repeat(b.i)
	case op == "*" && a.kind == kindInt && b.kind == kindTuple:
		return repeat(a.i)
	}
	return Value{}, fmt.Errorf("%w: %s %s %s", ErrType, a.typeName(), op, b.typeName())
}

func repeat(n *big.Int) (Value, error) {
	if !n.IsInt64() {
		return Value{}, ErrOverflow
	}
	return Value{kind: kindTuple}, nil
}
