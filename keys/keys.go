// Package keys implements the byte-key codec spec.md §3/§6 requires: every
// logical key (namespace, database, table, record, index entry, change
// feed, live query) encodes to a byte string whose lexicographic order
// matches the logical tuple order, so a kv.Transaction range scan over
// encoded keys is equivalent to a range scan over the logical tuple space.
//
// Variable naming follows the erigon-lib kv convention (k/v for key/value,
// ns/db/tb for namespace/database/table) rather than spelling Namespace
// and Database out at every call site.
package keys

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/google/uuid"

	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/value"
)

var (
	errDecodeShort       = kerr.TypeMismatch("complete encoded value", "truncated buffer")
	errDecodeUnsupported = kerr.TypeMismatch("decodable value tag", "unrecognized tag byte")
)

func uuidFromBytes(b [16]byte) (uuid.UUID, error) {
	return uuid.FromBytes(b[:])
}

// Category discriminates the top-level key space, encoded as the first
// byte so categories sort before any key within a later category.
type Category byte

const (
	CatNamespace Category = 'N'
	CatDatabase  Category = 'D'
	CatTable     Category = 'T'
	CatField     Category = 'F'
	CatIndexDef  Category = 'X'
	CatEvent     Category = 'E'
	CatUser      Category = 'U'
	CatAccess    Category = 'A'
	CatRecord    Category = 'r'
	CatIndex     Category = 'i'
	CatChange    Category = 'c'
	CatLive      Category = 'l'
)

const sep = 0x00

// appendSegment writes s followed by a separator, escaping any embedded
// separator byte as 0x00 0xFF so segment boundaries stay unambiguous and
// order-preserving (0x00 0x00 < 0x00 0xFF < 0x01).
func appendSegment(buf []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == sep {
			buf = append(buf, sep, 0xFF)
		} else {
			buf = append(buf, c)
		}
	}
	buf = append(buf, sep)
	return buf
}

// Namespace encodes the key under which a namespace definition is stored.
func Namespace(ns string) []byte {
	buf := []byte{byte(CatNamespace)}
	return appendSegment(buf, ns)
}

// Database encodes a database definition key.
func Database(ns, db string) []byte {
	buf := []byte{byte(CatDatabase)}
	buf = appendSegment(buf, ns)
	return appendSegment(buf, db)
}

// Table encodes a table definition key.
func Table(ns, db, tb string) []byte {
	buf := []byte{byte(CatTable)}
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	return appendSegment(buf, tb)
}

// TablePrefix encodes the prefix shared by every table definition key in
// (ns, db), for range-scanning "list tables in database".
func TablePrefix(ns, db string) []byte {
	buf := []byte{byte(CatTable)}
	buf = appendSegment(buf, ns)
	return appendSegment(buf, db)
}

// Field encodes a field definition key: (ns, db, tb, field name).
func Field(ns, db, tb, name string) []byte {
	buf := []byte{byte(CatField)}
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	buf = appendSegment(buf, tb)
	return appendSegment(buf, name)
}

// FieldPrefix encodes the prefix for every field definition on (ns, db, tb).
func FieldPrefix(ns, db, tb string) []byte {
	buf := []byte{byte(CatField)}
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	return appendSegment(buf, tb)
}

// IndexDef encodes an index definition key: (ns, db, tb, index name). Kept
// in a category distinct from CatIndex (the index's data entries) so
// listing definitions never scans entry data and vice versa.
func IndexDef(ns, db, tb, name string) []byte {
	buf := []byte{byte(CatIndexDef)}
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	buf = appendSegment(buf, tb)
	return appendSegment(buf, name)
}

// IndexDefPrefix encodes the prefix for every index definition on (ns, db, tb).
func IndexDefPrefix(ns, db, tb string) []byte {
	buf := []byte{byte(CatIndexDef)}
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	return appendSegment(buf, tb)
}

// Event encodes an event-trigger definition key: (ns, db, tb, event name).
func Event(ns, db, tb, name string) []byte {
	buf := []byte{byte(CatEvent)}
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	buf = appendSegment(buf, tb)
	return appendSegment(buf, name)
}

// EventPrefix encodes the prefix for every event defined on (ns, db, tb).
func EventPrefix(ns, db, tb string) []byte {
	buf := []byte{byte(CatEvent)}
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	return appendSegment(buf, tb)
}

// User encodes a user definition key, scoped by level: Root users have
// ns == db == "", namespace-level users have db == "".
func User(ns, db, name string) []byte {
	buf := []byte{byte(CatUser)}
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	return appendSegment(buf, name)
}

// UserPrefix encodes the prefix for every user defined at the (ns, db) scope.
func UserPrefix(ns, db string) []byte {
	buf := []byte{byte(CatUser)}
	buf = appendSegment(buf, ns)
	return appendSegment(buf, db)
}

// Access encodes an access-method definition key, scoped like User.
func Access(ns, db, name string) []byte {
	buf := []byte{byte(CatAccess)}
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	return appendSegment(buf, name)
}

// AccessPrefix encodes the prefix for every access method at the (ns, db) scope.
func AccessPrefix(ns, db string) []byte {
	buf := []byte{byte(CatAccess)}
	buf = appendSegment(buf, ns)
	return appendSegment(buf, db)
}

// Record encodes a record's primary-storage key: (ns, db, tb, id), where id
// is the record id's key component encoded via EncodeValue so record scans
// respect the same total order as value.Compare.
func Record(ns, db, tb string, id value.Value) []byte {
	buf := []byte{byte(CatRecord)}
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	buf = appendSegment(buf, tb)
	return EncodeValue(buf, id)
}

// RecordPrefix encodes the prefix for every record in (ns, db, tb), the
// start of a full-table scan.
func RecordPrefix(ns, db, tb string) []byte {
	buf := []byte{byte(CatRecord)}
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	return appendSegment(buf, tb)
}

// IndexEntry encodes a secondary-index entry key: (ns, db, tb, ix, indexed
// value..., record id), so an Index::Range/Index::Single plan step can scan
// a contiguous byte range for "all entries whose indexed value is in [a,b)"
// without touching the primary record store.
func IndexEntry(ns, db, tb, ix string, vals []value.Value, id value.Value) []byte {
	buf := []byte{byte(CatIndex)}
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	buf = appendSegment(buf, tb)
	buf = appendSegment(buf, ix)
	for _, v := range vals {
		buf = EncodeValue(buf, v)
	}
	return EncodeValue(buf, id)
}

// IndexPrefix encodes the prefix for every entry of index ix, or, with
// vals supplied, the prefix for entries matching that leading value tuple
// (used for equality and range index lookups).
func IndexPrefix(ns, db, tb, ix string, vals ...value.Value) []byte {
	buf := []byte{byte(CatIndex)}
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	buf = appendSegment(buf, tb)
	buf = appendSegment(buf, ix)
	for _, v := range vals {
		buf = EncodeValue(buf, v)
	}
	return buf
}

// Change encodes a change-feed entry key: (ns, db, tb, versionstamp),
// ordered so a forward scan from a versionstamp yields changes in commit
// order, per spec.md §3's append-only mutation log.
func Change(ns, db, tb string, versionstamp uint64) []byte {
	buf := []byte{byte(CatChange)}
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	buf = appendSegment(buf, tb)
	var vs [8]byte
	binary.BigEndian.PutUint64(vs[:], versionstamp)
	return append(buf, vs[:]...)
}

// ChangePrefix encodes the prefix for every change-feed entry of (ns, db, tb).
func ChangePrefix(ns, db, tb string) []byte {
	buf := []byte{byte(CatChange)}
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	return appendSegment(buf, tb)
}

// LiveQuery encodes a registered live query's lease key: (ns, db, tb, id).
func LiveQuery(ns, db, tb string, id [16]byte) []byte {
	buf := []byte{byte(CatLive)}
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	buf = appendSegment(buf, tb)
	return append(buf, id[:]...)
}

// LiveQueryPrefix encodes the prefix for every live query registered
// against (ns, db, tb).
func LiveQueryPrefix(ns, db, tb string) []byte {
	buf := []byte{byte(CatLive)}
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	return appendSegment(buf, tb)
}

// value type tags for EncodeValue, ordered to match value.Kind's total
// order for cross-kind comparisons that leak into an index (spec.md §4.3).
const (
	tagNull   byte = 0x01
	tagFalse  byte = 0x02
	tagTrue   byte = 0x03
	tagNumber byte = 0x04
	tagString byte = 0x05
	tagBytes  byte = 0x06
	tagUuid   byte = 0x07
	tagArray  byte = 0x08
)

// EncodeValue appends v's order-preserving encoding to buf. Only the kinds
// usable as a record-id key or index column (spec.md §3) are supported;
// others are encoded by string fallback so construction never panics, but
// such a value should never reach an index in practice.
func EncodeValue(buf []byte, v value.Value) []byte {
	switch v.Kind {
	case value.KindNull, value.KindNone:
		return append(buf, tagNull, sep)
	case value.KindBool:
		if v.Bool() {
			return append(buf, tagTrue, sep)
		}
		return append(buf, tagFalse, sep)
	case value.KindInt64:
		buf = append(buf, tagNumber)
		return appendOrderedFloat(buf, float64(v.Int()))
	case value.KindFloat64:
		buf = append(buf, tagNumber)
		return appendOrderedFloat(buf, v.Float())
	case value.KindDecimal:
		buf = append(buf, tagNumber)
		f, _ := v.DecimalVal().Float64()
		return appendOrderedFloat(buf, f)
	case value.KindString:
		buf = append(buf, tagString)
		return appendSegment(buf, v.Str())
	case value.KindBytes:
		buf = append(buf, tagBytes)
		return appendSegment(buf, string(v.BytesVal()))
	case value.KindUuid:
		buf = append(buf, tagUuid)
		id := v.UUID()
		return append(buf, id[:]...)
	case value.KindArray:
		buf = append(buf, tagArray)
		for _, item := range v.ArrayVal() {
			buf = EncodeValue(buf, item)
		}
		return append(buf, sep)
	default:
		buf = append(buf, tagString)
		return appendSegment(buf, v.String())
	}
}

// DecodeValue reads one EncodeValue-encoded value off the front of buf,
// returning it along with the number of bytes consumed. It only recovers
// the kinds EncodeValue emits a tag for (Null/Bool/Number/String/Bytes/
// Uuid/Array); Number decodes as Float64 regardless of whether the
// original was Int64/Float64/Decimal, since the ordered-float encoding
// does not preserve which of the three numeric kinds produced it — the
// only caller that needs the distinction (index planning) keeps its own
// value alongside the key and uses DecodeValue solely to recover a
// trailing record id.
func DecodeValue(buf []byte) (value.Value, int, error) {
	if len(buf) == 0 {
		return value.Value{}, 0, errDecodeShort
	}
	switch buf[0] {
	case tagNull:
		return value.Null(), 2, nil
	case tagFalse:
		return value.Bool(false), 2, nil
	case tagTrue:
		return value.Bool(true), 2, nil
	case tagNumber:
		if len(buf) < 9 {
			return value.Value{}, 0, errDecodeShort
		}
		bits := binary.BigEndian.Uint64(buf[1:9])
		if bits&(1<<63) != 0 {
			bits &^= 1 << 63
		} else {
			bits = ^bits
		}
		return value.Float64(math.Float64frombits(bits)), 9, nil
	case tagString:
		s, n := readSegment(buf[1:])
		return value.String(s), n + 1, nil
	case tagBytes:
		s, n := readSegment(buf[1:])
		return value.Bytes([]byte(s)), n + 1, nil
	case tagUuid:
		if len(buf) < 17 {
			return value.Value{}, 0, errDecodeShort
		}
		var id [16]byte
		copy(id[:], buf[1:17])
		u, err := uuidFromBytes(id)
		if err != nil {
			return value.Value{}, 0, err
		}
		return value.Uuid(u), 17, nil
	case tagArray:
		var items []value.Value
		n := 1
		for n < len(buf) && buf[n] != sep {
			item, m, err := DecodeValue(buf[n:])
			if err != nil {
				return value.Value{}, 0, err
			}
			items = append(items, item)
			n += m
		}
		if n >= len(buf) {
			return value.Value{}, 0, errDecodeShort
		}
		return value.Array(items...), n + 1, nil
	default:
		return value.Value{}, 0, errDecodeUnsupported
	}
}

// readSegment decodes an appendSegment-framed string starting at buf[0],
// returning the unescaped string and the number of bytes consumed
// including the trailing separator.
func readSegment(buf []byte) (string, int) {
	var out []byte
	i := 0
	for i < len(buf) {
		if buf[i] == sep {
			if i+1 < len(buf) && buf[i+1] == 0xFF {
				out = append(out, sep)
				i += 2
				continue
			}
			i++
			break
		}
		out = append(out, buf[i])
		i++
	}
	return string(out), i
}

// appendOrderedFloat encodes f as 8 bytes whose unsigned big-endian byte
// order matches IEEE-754 total order: flip the sign bit for non-negative
// numbers and flip every bit for negative numbers, the standard trick for
// making float64 bit patterns byte-comparable.
func appendOrderedFloat(buf []byte, f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], bits)
	return append(buf, b[:]...)
}

// HasPrefix reports whether k starts with prefix, the primitive every
// range-scan planner step (Index::Range, Index::Union, RecordPrefix scans)
// is built on.
func HasPrefix(k, prefix []byte) bool {
	return bytes.HasPrefix(k, prefix)
}

// PrefixUpperBound returns the smallest key greater than every key sharing
// prefix, so [prefix, PrefixUpperBound(prefix)) is an explicit half-open
// range equivalent to "starts with prefix". Returns nil if prefix is all
// 0xFF bytes (no finite upper bound exists; caller should scan to the end
// of the keyspace instead).
func PrefixUpperBound(prefix []byte) []byte {
	out := append([]byte(nil), prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}
