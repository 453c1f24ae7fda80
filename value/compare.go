package value

import (
	"bytes"
	"time"

	"github.com/shopspring/decimal"
)

// numericRank orders the numeric kinds for widening: Int64 < Float64 <
// Decimal, per spec.md §4.3's "int -> float -> decimal" coercion lattice.
func numericRank(k Kind) int {
	switch k {
	case KindInt64:
		return 0
	case KindFloat64:
		return 1
	case KindDecimal:
		return 2
	default:
		return -1
	}
}

func isNumeric(k Kind) bool { return numericRank(k) >= 0 }

// widenPair promotes a pair of numeric values to their common kind: if
// either operand is Decimal both become Decimal, else if either is Float64
// both become Float64, else both stay Int64.
func widenPair(a, b Value) (Value, Value) {
	if !isNumeric(a.Kind) || !isNumeric(b.Kind) {
		return a, b
	}
	target := a.Kind
	if numericRank(b.Kind) > numericRank(target) {
		target = b.Kind
	}
	return coerceNumeric(a, target), coerceNumeric(b, target)
}

func coerceNumeric(v Value, to Kind) Value {
	if v.Kind == to {
		return v
	}
	switch to {
	case KindFloat64:
		return Float64(toFloat64(v))
	case KindDecimal:
		return Decimal(toDecimal(v))
	default:
		return v
	}
}

func toFloat64(v Value) float64 {
	switch v.Kind {
	case KindInt64:
		return float64(v.i)
	case KindFloat64:
		return v.f
	case KindDecimal:
		f, _ := v.dec.Float64()
		return f
	default:
		return 0
	}
}

func toDecimal(v Value) decimal.Decimal {
	switch v.Kind {
	case KindInt64:
		return decimal.NewFromInt(v.i)
	case KindFloat64:
		return decimal.NewFromFloat(v.f)
	case KindDecimal:
		return v.dec
	default:
		return decimal.Zero
	}
}

// Equal reports structural equality, coercing across the numeric lattice
// (1 == 1.0 == 1.0dec) but never across non-numeric kinds.
func Equal(a, b Value) bool {
	if isNumeric(a.Kind) && isNumeric(b.Kind) {
		wa, wb := widenPair(a, b)
		return compareSameKind(wa, wb) == 0
	}
	if a.Kind != b.Kind {
		return false
	}
	return compareSameKind(a, b) == 0
}

// Compare returns -1, 0, 1 ordering a against b. Values of different,
// non-numeric kinds compare by Kind tag order (spec.md §4.3), which gives
// a total order usable for index key construction and ORDER BY.
func Compare(a, b Value) int {
	if isNumeric(a.Kind) && isNumeric(b.Kind) {
		wa, wb := widenPair(a, b)
		return compareSameKind(wa, wb)
	}
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	return compareSameKind(a, b)
}

func compareSameKind(a, b Value) int {
	switch a.Kind {
	case KindNone, KindNull:
		return 0
	case KindBool:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	case KindInt64:
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		default:
			return 0
		}
	case KindFloat64:
		switch {
		case a.f < b.f:
			return -1
		case a.f > b.f:
			return 1
		default:
			return 0
		}
	case KindDecimal:
		return a.dec.Cmp(b.dec)
	case KindString, KindRegex:
		return stringsCompare(a.s, b.s)
	case KindBytes:
		return bytes.Compare(a.byts, b.byts)
	case KindDuration:
		switch {
		case a.dur < b.dur:
			return -1
		case a.dur > b.dur:
			return 1
		default:
			return 0
		}
	case KindDatetime:
		return timeCompare(a.dt, b.dt)
	case KindUuid:
		return stringsCompare(a.id.String(), b.id.String())
	case KindArray:
		return compareSlices(a.arr, b.arr)
	case KindSet:
		return compareSlices(a.set, b.set)
	case KindObject:
		return compareObjects(a.obj, b.obj)
	case KindTable:
		return stringsCompare(a.table, b.table)
	case KindRecordID:
		if c := stringsCompare(a.rid.Table, b.rid.Table); c != 0 {
			return c
		}
		return Compare(a.rid.Key, b.rid.Key)
	default:
		return 0
	}
}

func stringsCompare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func timeCompare(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

func compareSlices(a, b []Value) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func compareObjects(a, b *Object) int {
	if a == nil || b == nil {
		if a == b {
			return 0
		}
		if a == nil {
			return -1
		}
		return 1
	}
	ak, bk := a.Keys(), b.Keys()
	n := len(ak)
	if len(bk) < n {
		n = len(bk)
	}
	for i := 0; i < n; i++ {
		if c := stringsCompare(ak[i], bk[i]); c != 0 {
			return c
		}
		av, _ := a.Get(ak[i])
		bv, _ := b.Get(bk[i])
		if c := Compare(av, bv); c != 0 {
			return c
		}
	}
	switch {
	case len(ak) < len(bk):
		return -1
	case len(ak) > len(bk):
		return 1
	default:
		return 0
	}
}
