// Package eval walks an ast.Arena and produces value.Values: the shared
// expression evaluator spec.md §4.3 describes, used by the executor for
// WHERE/SET/RETURN clauses, by the planner for sargability constant
// folding, and by the access-control layer for Specific(expr) permission
// checks. Keeping evaluation in one package rather than duplicating it in
// exec and iam avoids the two drifting on operator semantics.
package eval

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/value"
	"github.com/shopspring/decimal"
)

// Hooks lets a caller supply the two expression forms eval cannot resolve
// on its own: a SubQuery runs a nested statement, and an EdgeExpr walks a
// graph edge, both of which require a kv.Transaction and catalog the eval
// package has no business importing. A permission check (iam) typically
// leaves Hooks nil; a statement executor (exec) always supplies both.
type Hooks struct {
	SubQuery func(stmt ast.ID) (value.Value, error)
	Edge     func(op ast.BinOp, base value.Value, table string, where ast.ID) (value.Value, error)

	// Script resolves a `fn::name(...)` call to the opaque script host
	// spec.md §1 scopes out of this engine — name is given without its
	// "fn::" prefix. A nil Script (the default for an embedder that
	// hasn't wired one) makes every fn:: call fail the same "known
	// function" check an unrecognized builtin name fails.
	Script func(name string, args []value.Value) (value.Value, error)
}

// Env is the evaluation environment: the document $this binds to (field
// access with no explicit receiver resolves against Doc), the session's
// bound variables ($auth, $before, $after, $value, user LETs, ...), and
// optional Hooks for subqueries/graph edges.
type Env struct {
	Arena *ast.Arena
	Doc   value.Value
	Vars  map[string]value.Value
	Hooks *Hooks
}

func (e *Env) lookupVar(name string) (value.Value, bool) {
	if e.Vars == nil {
		return value.Value{}, false
	}
	v, ok := e.Vars[name]
	return v, ok
}

// Eval evaluates the expression rooted at id against env.
func Eval(env *Env, id ast.ID) (value.Value, error) {
	if id == ast.Nil {
		return value.None(), nil
	}
	n := env.Arena.Get(id)
	switch n.Kind {
	case ast.KindLiteral:
		return n.Lit, nil
	case ast.KindParam:
		if v, ok := env.lookupVar(n.Str); ok {
			return v, nil
		}
		return value.None(), nil
	case ast.KindIdent:
		return evalIdent(env, n.Str)
	case ast.KindIdiom:
		return evalIdiom(env, n)
	case ast.KindBinary:
		return evalBinary(env, n)
	case ast.KindUnary:
		return evalUnary(env, n)
	case ast.KindFuncCall:
		return evalFuncCall(env, n)
	case ast.KindArrayExpr:
		return evalArray(env, n)
	case ast.KindObjectExpr:
		return evalObject(env, n)
	case ast.KindRangeExpr:
		return evalRange(env, n)
	case ast.KindCast:
		return evalCast(env, n)
	case ast.KindIfExpr:
		return evalIf(env, n)
	case ast.KindSubQuery:
		if env.Hooks == nil || env.Hooks.SubQuery == nil {
			return value.Value{}, kerr.TypeMismatch("evaluable expression", "subquery without executor hook")
		}
		return env.Hooks.SubQuery(n.A)
	case ast.KindEdgeExpr:
		base, err := Eval(env, n.A)
		if err != nil {
			return value.Value{}, err
		}
		if env.Hooks == nil || env.Hooks.Edge == nil {
			return value.Value{}, kerr.TypeMismatch("evaluable expression", "graph traversal without executor hook")
		}
		return env.Hooks.Edge(n.Op, base, n.Str, n.B)
	case ast.KindRecordIDExpr:
		key, err := Eval(env, n.A)
		if err != nil {
			return value.Value{}, err
		}
		return value.RecordIDVal(n.Str, key), nil
	case ast.KindWhatExpr:
		return Eval(env, n.A)
	default:
		return value.Value{}, kerr.TypeMismatch("evaluable expression", "ast node kind "+strconv.Itoa(int(n.Kind)))
	}
}

func evalIdent(env *Env, name string) (value.Value, error) {
	if v, ok := env.lookupVar(name); ok {
		return v, nil
	}
	return fieldOf(env.Doc, name), nil
}

func fieldOf(v value.Value, name string) value.Value {
	switch v.Kind {
	case value.KindObject:
		if v.ObjectRef() == nil {
			return value.None()
		}
		if got, ok := v.ObjectRef().Get(name); ok {
			return got
		}
		return value.None()
	case value.KindRecordID:
		if name == "id" {
			return v
		}
		return value.None()
	default:
		return value.None()
	}
}

func evalIdiom(env *Env, n ast.Node) (value.Value, error) {
	cur, err := Eval(env, n.A)
	if err != nil {
		return value.Value{}, err
	}
	for _, partID := range n.List {
		part := env.Arena.Get(partID)
		if part.Kind == ast.KindIdent {
			cur = fieldOf(cur, part.Str)
			continue
		}
		key, err := Eval(env, partID)
		if err != nil {
			return value.Value{}, err
		}
		cur = indexInto(cur, key)
	}
	return cur, nil
}

func indexInto(cur, key value.Value) value.Value {
	switch cur.Kind {
	case value.KindArray:
		if key.Kind == value.KindInt64 {
			i := int(key.Int())
			arr := cur.ArrayVal()
			if i < 0 {
				i += len(arr)
			}
			if i >= 0 && i < len(arr) {
				return arr[i]
			}
		}
		return value.None()
	case value.KindObject:
		if key.Kind == value.KindString {
			return fieldOf(cur, key.Str())
		}
		return value.None()
	default:
		return value.None()
	}
}

func evalArray(env *Env, n ast.Node) (value.Value, error) {
	items := make([]value.Value, 0, len(n.List))
	for _, id := range n.List {
		v, err := Eval(env, id)
		if err != nil {
			return value.Value{}, err
		}
		items = append(items, v)
	}
	return value.Array(items...), nil
}

func evalObject(env *Env, n ast.Node) (value.Value, error) {
	obj := value.NewObject()
	for _, kv := range n.Pairs {
		v, err := Eval(env, kv.Val)
		if err != nil {
			return value.Value{}, err
		}
		obj.Set(kv.Key, v)
	}
	return value.ObjectVal(obj), nil
}

func evalRange(env *Env, n ast.Node) (value.Value, error) {
	startIncl, endIncl := n.RangeBounds()
	start, err := Eval(env, n.A)
	if err != nil {
		return value.Value{}, err
	}
	end, err := Eval(env, n.B)
	if err != nil {
		return value.Value{}, err
	}
	r := &value.Range{Start: boundOf(start, n.A, startIncl), End: boundOf(end, n.B, endIncl)}
	return value.RangeVal(r), nil
}

func boundOf(v value.Value, id ast.ID, incl bool) value.Bound {
	if id == ast.Nil {
		return value.Bound{Kind: value.Unbounded}
	}
	if incl {
		return value.Bound{Kind: value.Included, Value: v}
	}
	return value.Bound{Kind: value.Excluded, Value: v}
}

func evalIf(env *Env, n ast.Node) (value.Value, error) {
	cond, err := Eval(env, n.A)
	if err != nil {
		return value.Value{}, err
	}
	if cond.Truthy() {
		return Eval(env, n.B)
	}
	if n.C == ast.Nil {
		return value.None(), nil
	}
	return Eval(env, n.C)
}

func evalUnary(env *Env, n ast.Node) (value.Value, error) {
	v, err := Eval(env, n.A)
	if err != nil {
		return value.Value{}, err
	}
	switch n.UnOp {
	case ast.OpNeg:
		return negate(v), nil
	case ast.OpNot:
		return value.Bool(!v.Truthy()), nil
	default:
		return value.Value{}, kerr.TypeMismatch("unary operator", "unknown")
	}
}

func negate(v value.Value) value.Value {
	switch v.Kind {
	case value.KindInt64:
		return value.Int64(-v.Int())
	case value.KindFloat64:
		return value.Float64(-v.Float())
	case value.KindDecimal:
		return value.Decimal(v.DecimalVal().Neg())
	default:
		return v
	}
}

func evalBinary(env *Env, n ast.Node) (value.Value, error) {
	// AND/OR short-circuit: the rhs is never evaluated if the lhs already
	// decides the result.
	if n.Op == ast.OpAnd {
		lhs, err := Eval(env, n.A)
		if err != nil {
			return value.Value{}, err
		}
		if !lhs.Truthy() {
			return value.Bool(false), nil
		}
		rhs, err := Eval(env, n.B)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(rhs.Truthy()), nil
	}
	if n.Op == ast.OpOr {
		lhs, err := Eval(env, n.A)
		if err != nil {
			return value.Value{}, err
		}
		if lhs.Truthy() {
			return value.Bool(true), nil
		}
		rhs, err := Eval(env, n.B)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(rhs.Truthy()), nil
	}

	lhs, err := Eval(env, n.A)
	if err != nil {
		return value.Value{}, err
	}
	rhs, err := Eval(env, n.B)
	if err != nil {
		return value.Value{}, err
	}

	switch n.Op {
	case ast.OpAdd:
		return add(lhs, rhs)
	case ast.OpSub:
		return arith(lhs, rhs, '-')
	case ast.OpMul:
		return arith(lhs, rhs, '*')
	case ast.OpDiv:
		return arith(lhs, rhs, '/')
	case ast.OpEq:
		return value.Bool(value.Equal(lhs, rhs)), nil
	case ast.OpExactEq:
		return value.Bool(lhs.Kind == rhs.Kind && value.Equal(lhs, rhs)), nil
	case ast.OpNeq:
		return value.Bool(!value.Equal(lhs, rhs)), nil
	case ast.OpAnyEq:
		return value.Bool(anyEq(lhs, rhs)), nil
	case ast.OpLt:
		return value.Bool(value.Compare(lhs, rhs) < 0), nil
	case ast.OpLte:
		return value.Bool(value.Compare(lhs, rhs) <= 0), nil
	case ast.OpGt:
		return value.Bool(value.Compare(lhs, rhs) > 0), nil
	case ast.OpGte:
		return value.Bool(value.Compare(lhs, rhs) >= 0), nil
	case ast.OpContains:
		return value.Bool(contains(lhs, rhs)), nil
	case ast.OpContainsNot:
		return value.Bool(!contains(lhs, rhs)), nil
	case ast.OpInside:
		return value.Bool(contains(rhs, lhs)), nil
	case ast.OpNotInside:
		return value.Bool(!contains(rhs, lhs)), nil
	case ast.OpMatches:
		return matches(lhs, rhs)
	default:
		return value.Value{}, kerr.TypeMismatch("binary operator", "unknown")
	}
}

func anyEq(lhs, rhs value.Value) bool {
	if rhs.Kind == value.KindArray || rhs.Kind == value.KindSet {
		items := rhs.ArrayVal()
		if rhs.Kind == value.KindSet {
			items = rhs.SetItems()
		}
		for _, it := range items {
			if value.Equal(lhs, it) {
				return true
			}
		}
		return false
	}
	return value.Equal(lhs, rhs)
}

func contains(container, item value.Value) bool {
	switch container.Kind {
	case value.KindArray:
		for _, it := range container.ArrayVal() {
			if value.Equal(it, item) {
				return true
			}
		}
		return false
	case value.KindSet:
		for _, it := range container.SetItems() {
			if value.Equal(it, item) {
				return true
			}
		}
		return false
	case value.KindString:
		return item.Kind == value.KindString && strings.Contains(container.Str(), item.Str())
	default:
		return false
	}
}

func matches(lhs, rhs value.Value) (value.Value, error) {
	if lhs.Kind != value.KindString {
		return value.Bool(false), nil
	}
	pattern := rhs.Str()
	re, err := regexp.Compile(pattern)
	if err != nil {
		return value.Value{}, kerr.TypeMismatch("valid regex", pattern)
	}
	return value.Bool(re.MatchString(lhs.Str())), nil
}

// add implements `+`, which besides numeric addition also concatenates
// strings and arrays, per spec.md §4.3's operator table.
func add(lhs, rhs value.Value) (value.Value, error) {
	if lhs.Kind == value.KindString && rhs.Kind == value.KindString {
		return value.String(lhs.Str() + rhs.Str()), nil
	}
	if lhs.Kind == value.KindArray && rhs.Kind == value.KindArray {
		return value.Array(append(append([]value.Value(nil), lhs.ArrayVal()...), rhs.ArrayVal()...)...), nil
	}
	if lhs.Kind == value.KindDuration || rhs.Kind == value.KindDuration {
		return value.Duration(lhs.DurationVal() + rhs.DurationVal()), nil
	}
	return arith(lhs, rhs, '+')
}

func arith(lhs, rhs value.Value, op byte) (value.Value, error) {
	if !isNumeric(lhs.Kind) || !isNumeric(rhs.Kind) {
		return value.Value{}, kerr.TypeMismatch("numeric operand", lhs.Kind.String()+"/"+rhs.Kind.String())
	}
	if lhs.Kind == value.KindDecimal || rhs.Kind == value.KindDecimal {
		a, b := toDecimal(lhs), toDecimal(rhs)
		switch op {
		case '+':
			return value.Decimal(a.Add(b)), nil
		case '-':
			return value.Decimal(a.Sub(b)), nil
		case '*':
			return value.Decimal(a.Mul(b)), nil
		case '/':
			if b.IsZero() {
				return value.Value{}, kerr.TypeMismatch("non-zero divisor", "0")
			}
			return value.Decimal(a.Div(b)), nil
		}
	}
	if lhs.Kind == value.KindFloat64 || rhs.Kind == value.KindFloat64 || op == '/' {
		a, b := toFloat(lhs), toFloat(rhs)
		switch op {
		case '+':
			return value.Float64(a + b), nil
		case '-':
			return value.Float64(a - b), nil
		case '*':
			return value.Float64(a * b), nil
		case '/':
			if b == 0 {
				return value.Value{}, kerr.TypeMismatch("non-zero divisor", "0")
			}
			return value.Float64(a / b), nil
		}
	}
	a, b := lhs.Int(), rhs.Int()
	switch op {
	case '+':
		return value.Int64(a + b), nil
	case '-':
		return value.Int64(a - b), nil
	case '*':
		return value.Int64(a * b), nil
	}
	return value.Value{}, kerr.TypeMismatch("arithmetic operator", string(op))
}

func isNumeric(k value.Kind) bool {
	return k == value.KindInt64 || k == value.KindFloat64 || k == value.KindDecimal
}

func toFloat(v value.Value) float64 {
	switch v.Kind {
	case value.KindInt64:
		return float64(v.Int())
	case value.KindFloat64:
		return v.Float()
	case value.KindDecimal:
		f, _ := v.DecimalVal().Float64()
		return f
	default:
		return 0
	}
}

func toDecimal(v value.Value) decimal.Decimal {
	switch v.Kind {
	case value.KindInt64:
		return decimal.NewFromInt(v.Int())
	case value.KindFloat64:
		return decimal.NewFromFloat(v.Float())
	case value.KindDecimal:
		return v.DecimalVal()
	default:
		return decimal.Zero
	}
}

func evalCast(env *Env, n ast.Node) (value.Value, error) {
	v, err := Eval(env, n.A)
	if err != nil {
		return value.Value{}, err
	}
	return Coerce(v, n.Str)
}

// Coerce converts v to the named type, per spec.md §4.3's coercion rules.
// Used by casts, field TYPE enforcement, and index key construction alike.
func Coerce(v value.Value, typeName string) (value.Value, error) {
	base, _, _ := strings.Cut(typeName, "<")
	switch base {
	case "string":
		return value.String(v.String()), nil
	case "int":
		switch v.Kind {
		case value.KindInt64:
			return v, nil
		case value.KindFloat64:
			return value.Int64(int64(v.Float())), nil
		case value.KindString:
			n, err := strconv.ParseInt(v.Str(), 10, 64)
			if err != nil {
				return value.Value{}, kerr.TypeMismatch("int", v.Str())
			}
			return value.Int64(n), nil
		default:
			return value.Value{}, kerr.TypeMismatch("int", v.Kind.String())
		}
	case "float":
		return value.Float64(toFloat(v)), nil
	case "decimal":
		return value.Decimal(toDecimal(v)), nil
	case "bool":
		return value.Bool(v.Truthy()), nil
	case "array":
		if v.Kind == value.KindArray {
			return v, nil
		}
		return value.Array(v), nil
	case "object":
		return v, nil
	default:
		return v, nil
	}
}

func evalFuncCall(env *Env, n ast.Node) (value.Value, error) {
	args := make([]value.Value, 0, len(n.List))
	for _, id := range n.List {
		v, err := Eval(env, id)
		if err != nil {
			return value.Value{}, err
		}
		args = append(args, v)
	}
	if name, ok := strings.CutPrefix(n.Str, "fn::"); ok {
		if env.Hooks == nil || env.Hooks.Script == nil {
			return value.Value{}, kerr.TypeMismatch("known function", n.Str)
		}
		return env.Hooks.Script(name, args)
	}
	fn, ok := builtins[n.Str]
	if !ok {
		return value.Value{}, kerr.TypeMismatch("known function", n.Str)
	}
	return fn(args)
}
