package value

import (
	"github.com/forbearing/stratadb/kerr"
	"github.com/shopspring/decimal"
)

// CoerceTo attempts to convert v to the given kind following the widening
// rules a field's TYPE clause enforces (spec.md §4.2 DEFINE FIELD TYPE).
// Only the conversions a schema check would accept are implemented; any
// other pair is a kerr.ErrTypeMismatch.
func CoerceTo(v Value, to Kind) (Value, error) {
	if v.Kind == to {
		return v, nil
	}
	switch to {
	case KindFloat64:
		if isNumeric(v.Kind) {
			return Float64(toFloat64(v)), nil
		}
	case KindDecimal:
		if isNumeric(v.Kind) {
			return Decimal(toDecimal(v)), nil
		}
	case KindInt64:
		switch v.Kind {
		case KindFloat64:
			return Int64(int64(v.f)), nil
		case KindDecimal:
			return Int64(v.dec.IntPart()), nil
		}
	case KindString:
		return String(v.String()), nil
	case KindArray:
		if v.Kind == KindSet {
			return Array(v.set...), nil
		}
	case KindSet:
		if v.Kind == KindArray {
			return SetVal(v.arr...), nil
		}
	}
	return Value{}, kerr.TypeMismatch(to.String(), v.Kind.String())
}

// DecimalFromFloat is a convenience wrapper so callers outside this
// package never need to import shopspring/decimal directly for the common
// literal-to-Decimal path.
func DecimalFromFloat(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }
