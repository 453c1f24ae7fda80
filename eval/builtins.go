package eval

import (
	"math"
	"strings"

	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/value"
)

// builtins is the minimal function library spec.md §4.3 calls out by
// namespace (count, array::*, string::*, math::*, type::*, is::*). Each
// entry takes already-evaluated arguments, matching how evalFuncCall
// dispatches after evaluating an ast.KindFuncCall's arg list.
var builtins = map[string]func([]value.Value) (value.Value, error){
	"count": func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Int64(1), nil
		}
		switch args[0].Kind {
		case value.KindArray:
			return value.Int64(int64(len(args[0].ArrayVal()))), nil
		case value.KindSet:
			return value.Int64(int64(len(args[0].SetItems()))), nil
		default:
			if args[0].Truthy() {
				return value.Int64(1), nil
			}
			return value.Int64(0), nil
		}
	},
	"array::len": func(args []value.Value) (value.Value, error) {
		return value.Int64(int64(len(requireArray(args)))), nil
	},
	"array::distinct": func(args []value.Value) (value.Value, error) {
		return value.SetVal(requireArray(args)...), nil
	},
	"array::first": func(args []value.Value) (value.Value, error) {
		arr := requireArray(args)
		if len(arr) == 0 {
			return value.None(), nil
		}
		return arr[0], nil
	},
	"array::last": func(args []value.Value) (value.Value, error) {
		arr := requireArray(args)
		if len(arr) == 0 {
			return value.None(), nil
		}
		return arr[len(arr)-1], nil
	},
	"string::len": func(args []value.Value) (value.Value, error) {
		return value.Int64(int64(len(requireString(args)))), nil
	},
	"string::uppercase": func(args []value.Value) (value.Value, error) {
		return value.String(strings.ToUpper(requireString(args))), nil
	},
	"string::lowercase": func(args []value.Value) (value.Value, error) {
		return value.String(strings.ToLower(requireString(args))), nil
	},
	"string::trim": func(args []value.Value) (value.Value, error) {
		return value.String(strings.TrimSpace(requireString(args))), nil
	},
	"string::starts_with": func(args []value.Value) (value.Value, error) {
		if len(args) < 2 {
			return value.Bool(false), nil
		}
		return value.Bool(strings.HasPrefix(args[0].Str(), args[1].Str())), nil
	},
	"string::ends_with": func(args []value.Value) (value.Value, error) {
		if len(args) < 2 {
			return value.Bool(false), nil
		}
		return value.Bool(strings.HasSuffix(args[0].Str(), args[1].Str())), nil
	},
	"math::abs": func(args []value.Value) (value.Value, error) {
		n := requireFloat(args)
		return value.Float64(math.Abs(n)), nil
	},
	"math::floor": func(args []value.Value) (value.Value, error) {
		return value.Int64(int64(math.Floor(requireFloat(args)))), nil
	},
	"math::ceil": func(args []value.Value) (value.Value, error) {
		return value.Int64(int64(math.Ceil(requireFloat(args)))), nil
	},
	"math::round": func(args []value.Value) (value.Value, error) {
		return value.Int64(int64(math.Round(requireFloat(args)))), nil
	},
	"math::max": func(args []value.Value) (value.Value, error) {
		return reduceNumeric(args, func(a, b float64) float64 {
			if a > b {
				return a
			}
			return b
		})
	},
	"math::min": func(args []value.Value) (value.Value, error) {
		return reduceNumeric(args, func(a, b float64) float64 {
			if a < b {
				return a
			}
			return b
		})
	},
	"type::string": func(args []value.Value) (value.Value, error) {
		return Coerce(first(args), "string")
	},
	"type::int": func(args []value.Value) (value.Value, error) {
		return Coerce(first(args), "int")
	},
	"type::float": func(args []value.Value) (value.Value, error) {
		return Coerce(first(args), "float")
	},
	"type::bool": func(args []value.Value) (value.Value, error) {
		return Coerce(first(args), "bool")
	},
	"is::none": func(args []value.Value) (value.Value, error) {
		return value.Bool(first(args).IsNone()), nil
	},
	"is::null": func(args []value.Value) (value.Value, error) {
		return value.Bool(first(args).IsNull()), nil
	},
}

func first(args []value.Value) value.Value {
	if len(args) == 0 {
		return value.None()
	}
	return args[0]
}

func requireArray(args []value.Value) []value.Value {
	v := first(args)
	if v.Kind == value.KindArray {
		return v.ArrayVal()
	}
	if v.Kind == value.KindSet {
		return v.SetItems()
	}
	return nil
}

func requireString(args []value.Value) string {
	return first(args).Str()
}

func requireFloat(args []value.Value) float64 {
	return toFloat(first(args))
}

func reduceNumeric(args []value.Value, pick func(a, b float64) float64) (value.Value, error) {
	vals := requireArray(args)
	if len(vals) == 0 {
		return value.Value{}, kerr.TypeMismatch("non-empty array", "empty")
	}
	acc := toFloat(vals[0])
	for _, v := range vals[1:] {
		acc = pick(acc, toFloat(v))
	}
	return value.Float64(acc), nil
}
