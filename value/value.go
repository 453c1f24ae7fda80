// Package value implements the runtime value universe of spec.md §3: a
// tagged union of scalars, composites, identifiers, ranges, files, and
// closures, with the comparison/coercion/arithmetic lattice from spec.md
// §4.3. github.com/shopspring/decimal backs the Decimal scalar and
// github.com/paulmach/orb backs Geometry, per SPEC_FULL.md §11.2.
package value

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/orcaman/concurrent-map/v2"
	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
)

// Kind tags the runtime type of a Value. Ordering here also fixes the
// "kind tag" total order used by spec.md §4.3 for cross-kind comparison.
type Kind uint8

const (
	KindNone Kind = iota
	KindNull
	KindBool
	KindInt64
	KindFloat64
	KindDecimal
	KindString
	KindBytes
	KindDuration
	KindDatetime
	KindUuid
	KindRegex
	KindArray
	KindObject
	KindSet
	KindGeometry
	KindTable
	KindRecordID
	KindRange
	KindFile
	KindClosure
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int"
	case KindFloat64:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindDuration:
		return "duration"
	case KindDatetime:
		return "datetime"
	case KindUuid:
		return "uuid"
	case KindRegex:
		return "regex"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindSet:
		return "set"
	case KindGeometry:
		return "geometry"
	case KindTable:
		return "table"
	case KindRecordID:
		return "record"
	case KindRange:
		return "range"
	case KindFile:
		return "file"
	case KindClosure:
		return "closure"
	default:
		return "unknown"
	}
}

// Value is the tagged union every expression evaluates to.
//
// Only one of the typed fields is meaningful at a time, selected by Kind.
// A struct-of-fields representation (rather than `any`) keeps comparison
// and arithmetic dispatch a plain switch instead of a type assertion
// cascade, and keeps Value cheap to copy for scalars.
type Value struct {
	Kind Kind

	b    bool
	i    int64
	f    float64
	dec  decimal.Decimal
	s    string
	byts []byte
	dur  time.Duration
	dt   time.Time
	id   uuid.UUID
	geom orb.Geometry

	arr   []Value
	obj   *Object
	set   []Value
	table string
	rid   *RecordID
	rng   *Range
	file  *File
	clos  *Closure
}

// Object is a string-keyed, sorted map, per spec.md §3 "string-keyed Object
// (sorted)". Keys are kept sorted so two structurally equal objects built
// in different field order compare and encode identically.
type Object struct {
	keys []string
	vals map[string]Value
}

func NewObject() *Object {
	return &Object{vals: make(map[string]Value)}
}

func (o *Object) Set(key string, v Value) {
	if _, ok := o.vals[key]; !ok {
		idx := sort.SearchStrings(o.keys, key)
		o.keys = append(o.keys, "")
		copy(o.keys[idx+1:], o.keys[idx:])
		o.keys[idx] = key
	}
	o.vals[key] = v
}

func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.vals[key]
	return v, ok
}

func (o *Object) Delete(key string) {
	if _, ok := o.vals[key]; !ok {
		return
	}
	delete(o.vals, key)
	idx := sort.SearchStrings(o.keys, key)
	if idx < len(o.keys) && o.keys[idx] == key {
		o.keys = append(o.keys[:idx], o.keys[idx+1:]...)
	}
}

// Keys returns the object's keys in sorted order.
func (o *Object) Keys() []string { return o.keys }

func (o *Object) Len() int { return len(o.keys) }

// Clone returns a deep-enough copy for copy-on-write mutation (PATCH,
// SET/MERGE) without aliasing the source object's key slice.
func (o *Object) Clone() *Object {
	n := &Object{
		keys: append([]string(nil), o.keys...),
		vals: make(map[string]Value, len(o.vals)),
	}
	for k, v := range o.vals {
		n.vals[k] = v
	}
	return n
}

// RecordID is a (table, key) pair, spec.md §3's "Thing".
type RecordID struct {
	Table string
	Key   Value // Int64, String, Uuid, Array, Object, or Range kind
}

func (r *RecordID) String() string {
	return fmt.Sprintf("%s:%s", r.Table, formatIDKey(r.Key))
}

func formatIDKey(v Value) string {
	switch v.Kind {
	case KindString:
		return v.s
	case KindInt64:
		return fmt.Sprintf("%d", v.i)
	case KindUuid:
		return v.id.String()
	default:
		return v.String()
	}
}

// Bound is an inclusive/exclusive/unbounded endpoint, mirroring Rust's
// std::ops::Bound<Value> per spec.md §3.
type BoundKind uint8

const (
	Unbounded BoundKind = iota
	Included
	Excluded
)

type Bound struct {
	Kind  BoundKind
	Value Value
}

// Range is a Range over Bound<Value>, spec.md §3.
type Range struct {
	Start, End Bound
}

// File identifies a stored blob by bucket and path, spec.md §3.
type File struct {
	Bucket, Path string
}

// Closure is a captured expression plus parameter list, spec.md §3. Expr
// is left as `any` here to avoid a value <-> ast import cycle; the exec
// package stores *ast.ClosureExpr and a captured-variable frame here.
type Closure struct {
	Params []string
	Expr   any
	Frame  cmap.ConcurrentMap[string, Value]
}

// --- constructors ---

func None() Value { return Value{Kind: KindNone} }
func Null() Value { return Value{Kind: KindNull} }

func Bool(b bool) Value     { return Value{Kind: KindBool, b: b} }
func Int64(i int64) Value   { return Value{Kind: KindInt64, i: i} }
func Float64(f float64) Value { return Value{Kind: KindFloat64, f: f} }

func Decimal(d decimal.Decimal) Value { return Value{Kind: KindDecimal, dec: d} }

func String(s string) Value { return Value{Kind: KindString, s: s} }
func Bytes(b []byte) Value  { return Value{Kind: KindBytes, byts: b} }

func Duration(d time.Duration) Value { return Value{Kind: KindDuration, dur: d} }
func Datetime(t time.Time) Value     { return Value{Kind: KindDatetime, dt: t} }
func Uuid(u uuid.UUID) Value         { return Value{Kind: KindUuid, id: u} }
func Regex(pattern string) Value     { return Value{Kind: KindRegex, s: pattern} }

func Array(items ...Value) Value { return Value{Kind: KindArray, arr: items} }
func ObjectVal(o *Object) Value  { return Value{Kind: KindObject, obj: o} }

// Set deduplicates items (by Equal) and keeps them in first-seen order,
// per spec.md §3 "Set (deduplicated ordered)".
func SetVal(items ...Value) Value {
	out := make([]Value, 0, len(items))
	for _, it := range items {
		dup := false
		for _, o := range out {
			if Equal(it, o) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, it)
		}
	}
	return Value{Kind: KindSet, set: out}
}

func GeometryVal(g orb.Geometry) Value { return Value{Kind: KindGeometry, geom: g} }

func Table(name string) Value { return Value{Kind: KindTable, table: name} }

func RecordIDVal(table string, key Value) Value {
	return Value{Kind: KindRecordID, rid: &RecordID{Table: table, Key: key}}
}

func RangeVal(r *Range) Value { return Value{Kind: KindRange, rng: r} }

func FileVal(bucket, path string) Value {
	return Value{Kind: KindFile, file: &File{Bucket: bucket, Path: path}}
}

func ClosureVal(c *Closure) Value { return Value{Kind: KindClosure, clos: c} }

// --- accessors ---

func (v Value) Bool() bool             { return v.b }
func (v Value) Int() int64 {
	if v.Kind == KindFloat64 {
		return int64(v.f)
	}
	return v.i
}
func (v Value) Float() float64         { return v.f }
func (v Value) DecimalVal() decimal.Decimal { return v.dec }
func (v Value) Str() string            { return v.s }
func (v Value) BytesVal() []byte       { return v.byts }
func (v Value) DurationVal() time.Duration { return v.dur }
func (v Value) Time() time.Time        { return v.dt }
func (v Value) UUID() uuid.UUID        { return v.id }
func (v Value) ArrayVal() []Value      { return v.arr }
func (v Value) ObjectRef() *Object     { return v.obj }
func (v Value) SetItems() []Value      { return v.set }
func (v Value) Geom() orb.Geometry     { return v.geom }
func (v Value) TableName() string      { return v.table }
func (v Value) RID() *RecordID         { return v.rid }
func (v Value) RangeVal() *Range       { return v.rng }
func (v Value) FileVal() *File         { return v.file }
func (v Value) ClosureVal() *Closure   { return v.clos }

func (v Value) IsNone() bool { return v.Kind == KindNone }
func (v Value) IsNull() bool { return v.Kind == KindNull }
func (v Value) IsNullish() bool { return v.Kind == KindNone || v.Kind == KindNull }

// Truthy implements the engine's truthiness rule used by WHERE/IF/?: —
// everything is truthy except None, Null, false, zero numbers, and empty
// strings/arrays/objects.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNone, KindNull:
		return false
	case KindBool:
		return v.b
	case KindInt64:
		return v.i != 0
	case KindFloat64:
		return v.f != 0
	case KindDecimal:
		return !v.dec.IsZero()
	case KindString:
		return v.s != ""
	case KindArray:
		return len(v.arr) > 0
	case KindSet:
		return len(v.set) > 0
	case KindObject:
		return v.obj != nil && v.obj.Len() > 0
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNone:
		return "NONE"
	case KindNull:
		return "NULL"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt64:
		return fmt.Sprintf("%d", v.i)
	case KindFloat64:
		return fmt.Sprintf("%g", v.f)
	case KindDecimal:
		return v.dec.String()
	case KindString:
		return v.s
	case KindBytes:
		return fmt.Sprintf("%x", v.byts)
	case KindDuration:
		return v.dur.String()
	case KindDatetime:
		return v.dt.Format(time.RFC3339Nano)
	case KindUuid:
		return v.id.String()
	case KindRegex:
		return "/" + v.s + "/"
	case KindArray:
		return fmt.Sprintf("%v", v.arr)
	case KindSet:
		return fmt.Sprintf("%v", v.set)
	case KindObject:
		return fmt.Sprintf("%v", v.obj.vals)
	case KindGeometry:
		return fmt.Sprintf("%v", v.geom)
	case KindTable:
		return v.table
	case KindRecordID:
		return v.rid.String()
	case KindRange:
		return "range"
	case KindFile:
		return fmt.Sprintf("f:%s/%s", v.file.Bucket, v.file.Path)
	case KindClosure:
		return "closure"
	default:
		return "?"
	}
}
