package value

import (
	"github.com/forbearing/stratadb/kerr"
	"github.com/shopspring/decimal"
)

// Add implements `+` over the numeric lattice, string/string concatenation,
// and array/array concatenation (spec.md §4.3).
func Add(a, b Value) (Value, error) {
	if a.Kind == KindString && b.Kind == KindString {
		return String(a.s + b.s), nil
	}
	if a.Kind == KindArray && b.Kind == KindArray {
		return Array(append(append([]Value(nil), a.arr...), b.arr...)...), nil
	}
	if a.Kind == KindDatetime && b.Kind == KindDuration {
		return Datetime(a.dt.Add(b.dur)), nil
	}
	if a.Kind == KindDuration && b.Kind == KindDuration {
		return Duration(a.dur + b.dur), nil
	}
	return numericOp(a, b, "+",
		func(x, y int64) (int64, bool) { s := x + y; return s, (s-y == x) },
		func(x, y float64) float64 { return x + y },
		func(x, y decimal.Decimal) decimal.Decimal { return x.Add(y) },
	)
}

// Sub implements `-`.
func Sub(a, b Value) (Value, error) {
	if a.Kind == KindDatetime && b.Kind == KindDuration {
		return Datetime(a.dt.Add(-b.dur)), nil
	}
	if a.Kind == KindDatetime && b.Kind == KindDatetime {
		return Duration(a.dt.Sub(b.dt)), nil
	}
	if a.Kind == KindDuration && b.Kind == KindDuration {
		return Duration(a.dur - b.dur), nil
	}
	return numericOp(a, b, "-",
		func(x, y int64) (int64, bool) { s := x - y; return s, (s+y == x) },
		func(x, y float64) float64 { return x - y },
		func(x, y decimal.Decimal) decimal.Decimal { return x.Sub(y) },
	)
}

// Mul implements `*`.
func Mul(a, b Value) (Value, error) {
	return numericOp(a, b, "*",
		func(x, y int64) (int64, bool) {
			if x == 0 || y == 0 {
				return 0, true
			}
			p := x * y
			return p, p/y == x
		},
		func(x, y float64) float64 { return x * y },
		func(x, y decimal.Decimal) decimal.Decimal { return x.Mul(y) },
	)
}

// Div implements `/`, always widening to Float64 on integer division so
// 5/2 yields 2.5 rather than truncating, matching SurrealQL's float-first
// division semantics (see original_source notes in SPEC_FULL.md §12).
func Div(a, b Value) (Value, error) {
	if !isNumeric(a.Kind) || !isNumeric(b.Kind) {
		return Value{}, kerr.TypeMismatch("numeric", a.Kind.String())
	}
	if b.Kind == KindDecimal && b.dec.IsZero() || toFloat64(b) == 0 {
		return Value{}, kerr.TypeMismatch("non-zero divisor", "0")
	}
	if a.Kind == KindDecimal || b.Kind == KindDecimal {
		wa, wb := widenPair(a, b)
		return Decimal(wa.dec.Div(wb.dec)), nil
	}
	return Float64(toFloat64(a) / toFloat64(b)), nil
}

// Neg implements unary `-`.
func Neg(a Value) (Value, error) {
	switch a.Kind {
	case KindInt64:
		return Int64(-a.i), nil
	case KindFloat64:
		return Float64(-a.f), nil
	case KindDecimal:
		return Decimal(a.dec.Neg()), nil
	default:
		return Value{}, kerr.TypeMismatch("numeric", a.Kind.String())
	}
}

func numericOp(
	a, b Value, op string,
	intOp func(int64, int64) (int64, bool),
	floatOp func(float64, float64) float64,
	decOp func(decimal.Decimal, decimal.Decimal) decimal.Decimal,
) (Value, error) {
	if !isNumeric(a.Kind) || !isNumeric(b.Kind) {
		return Value{}, kerr.TypeMismatch("numeric", a.Kind.String()+" "+op+" "+b.Kind.String())
	}
	wa, wb := widenPair(a, b)
	switch wa.Kind {
	case KindInt64:
		r, ok := intOp(wa.i, wb.i)
		if !ok {
			// overflow escalates to Decimal rather than wrapping silently.
			da, db := Decimal(toDecimal(wa)), Decimal(toDecimal(wb))
			return Decimal(decOp(da.dec, db.dec)), nil
		}
		return Int64(r), nil
	case KindFloat64:
		return Float64(floatOp(wa.f, wb.f)), nil
	case KindDecimal:
		return Decimal(decOp(wa.dec, wb.dec)), nil
	default:
		return Value{}, kerr.TypeMismatch("numeric", wa.Kind.String())
	}
}
