package exec

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/forbearing/stratadb/value"
)

// EncodeRecord serializes a document (value.Value of Kind Object) to the
// bytes stored under its keys.Record key. JSON is the teacher's own
// on-the-wire/storage serialization choice elsewhere (catalog.Expr,
// index/fulltext's postings); this is the one place that choice is
// extended to an arbitrary value.Value tree rather than a fixed Go struct.
func EncodeRecord(v value.Value) ([]byte, error) {
	return json.Marshal(toJSON(v))
}

// DecodeRecord is EncodeRecord's inverse, and satisfies planner.Decoder.
func DecodeRecord(raw []byte) (value.Value, error) {
	var x any
	if err := json.Unmarshal(raw, &x); err != nil {
		return value.Value{}, err
	}
	return fromJSON(x), nil
}

// toJSON/fromJSON round-trip through Go's JSON number representation
// (float64), so an Int64 field written by CREATE and read back by a later
// SELECT comes back as Float64. Every stored numeric comparison in this
// engine (value.Compare, keys.EncodeValue) already coerces Int64/Float64/
// Decimal onto the same numeric line, so this loses no distinguishing
// power where it matters (ordering and equality) at the cost of a
// cosmetic kind change — an acceptable trade for reusing encoding/json
// rather than hand-rolling a typed binary record format.
func toJSON(v value.Value) any {
	switch v.Kind {
	case value.KindNone, value.KindNull:
		return nil
	case value.KindBool:
		return v.Bool()
	case value.KindInt64:
		return v.Int()
	case value.KindFloat64:
		return v.Float()
	case value.KindDecimal:
		f, _ := v.DecimalVal().Float64()
		return f
	case value.KindString:
		return v.Str()
	case value.KindBytes:
		return string(v.BytesVal())
	case value.KindUuid:
		return map[string]any{"$uuid": v.UUID().String()}
	case value.KindDatetime:
		return v.Time().Format("2006-01-02T15:04:05.999999999Z07:00")
	case value.KindDuration:
		return v.DurationVal().String()
	case value.KindArray:
		arr := v.ArrayVal()
		out := make([]any, len(arr))
		for i, it := range arr {
			out[i] = toJSON(it)
		}
		return out
	case value.KindSet:
		items := v.SetItems()
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = toJSON(it)
		}
		return out
	case value.KindObject:
		obj := v.ObjectRef()
		if obj == nil {
			return map[string]any{}
		}
		m := make(map[string]any, obj.Len())
		for _, k := range obj.Keys() {
			vv, _ := obj.Get(k)
			m[k] = toJSON(vv)
		}
		return m
	case value.KindRecordID:
		rid := v.RID()
		return map[string]any{"$rid": true, "table": rid.Table, "key": toJSON(rid.Key)}
	default:
		return v.String()
	}
}

// isRecordID reports whether a decoded JSON map is toJSON's tagged
// RecordID encoding, distinguishing a stored `id`/`in`/`out` field from
// an ordinary object that happens to have "table"/"key" keys: the "$rid"
// marker is never a field name a DEFINE FIELD/SET clause can produce,
// since object literals in this language key on identifiers or quoted
// strings a user writes, not this codec's own reserved tag.
func isRecordID(m map[string]any) (table string, key any, ok bool) {
	tag, hasTag := m["$rid"]
	if !hasTag || tag != true {
		return "", nil, false
	}
	table, _ = m["table"].(string)
	return table, m["key"], true
}

// isUUID mirrors isRecordID for toJSON's tagged Uuid encoding, kept so a
// record id (almost always a generated UUID) survives a store/fetch round
// trip as value.KindUuid rather than degrading to a plain string.
func isUUID(m map[string]any) (string, bool) {
	s, ok := m["$uuid"].(string)
	return s, ok
}

func fromJSON(x any) value.Value {
	switch t := x.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Bool(t)
	case float64:
		return value.Float64(t)
	case string:
		return value.String(t)
	case []any:
		items := make([]value.Value, len(t))
		for i, it := range t {
			items[i] = fromJSON(it)
		}
		return value.Array(items...)
	case map[string]any:
		if table, key, ok := isRecordID(t); ok {
			return value.RecordIDVal(table, fromJSON(key))
		}
		if s, ok := isUUID(t); ok {
			if u, err := uuid.Parse(s); err == nil {
				return value.Uuid(u)
			}
		}
		obj := value.NewObject()
		for k, v := range t {
			obj.Set(k, fromJSON(v))
		}
		return value.ObjectVal(obj)
	default:
		return value.None()
	}
}
