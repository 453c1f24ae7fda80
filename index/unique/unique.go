// Package unique maintains a uniqueness-enforcing secondary index: same
// entry shape as index/btree, but Insert first checks for an existing
// entry under a different record id and fails closed with a
// kerr.IndexExists-marked error, per spec.md §4.6's UNIQUE index and
// spec.md §3's IndexExistsErr.
package unique

import (
	"context"

	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/keys"
	"github.com/forbearing/stratadb/kv"
	"github.com/forbearing/stratadb/value"
)

// Maintainer keeps one UNIQUE index's entries in sync with record
// mutations, rejecting inserts that collide on an existing value.
type Maintainer struct {
	NS, DB, Table string
	Index         catalog.Index
}

func New(ns, db, table string, ix catalog.Index) *Maintainer {
	return &Maintainer{NS: ns, DB: db, Table: table, Index: ix}
}

// Insert adds an entry for id's indexed column values, failing with
// kerr.ErrIndexExists if another record already holds the same values.
func (m *Maintainer) Insert(ctx context.Context, tx kv.Transaction, id value.Value, vals []value.Value) error {
	prefix := keys.IndexPrefix(m.NS, m.DB, m.Table, m.Index.Name, vals...)
	conflict := false
	var existing value.Value
	if err := tx.ScanPrefix(ctx, prefix, func(kvp kv.KeyValue) (bool, error) {
		other, _, derr := keys.DecodeValue(kvp.Value)
		if derr != nil {
			return false, derr
		}
		if !value.Equal(other, id) {
			conflict = true
			existing = other
		}
		return false, nil
	}); err != nil {
		return err
	}
	if conflict {
		return kerr.IndexExists(existing.String(), m.Index.Name, valuesToAny(vals))
	}
	key := keys.IndexEntry(m.NS, m.DB, m.Table, m.Index.Name, vals, id)
	return tx.Put(ctx, key, keys.EncodeValue(nil, id))
}

// Remove deletes the entry previously inserted for id/vals.
func (m *Maintainer) Remove(ctx context.Context, tx kv.Transaction, id value.Value, vals []value.Value) error {
	return tx.Delete(ctx, keys.IndexEntry(m.NS, m.DB, m.Table, m.Index.Name, vals, id))
}

// Update replaces the old entry with the new one, re-checking uniqueness
// against the new values; leaves the old entry untouched if the check
// fails so the record's prior state stays indexed.
func (m *Maintainer) Update(ctx context.Context, tx kv.Transaction, id value.Value, oldVals, newVals []value.Value) error {
	if sameTuple(oldVals, newVals) {
		return nil
	}
	if err := m.Insert(ctx, tx, id, newVals); err != nil {
		return err
	}
	return m.Remove(ctx, tx, id, oldVals)
}

// Lookup returns the record id holding vals, if any.
func (m *Maintainer) Lookup(ctx context.Context, tx kv.Transaction, vals []value.Value) (value.Value, bool, error) {
	prefix := keys.IndexPrefix(m.NS, m.DB, m.Table, m.Index.Name, vals...)
	var found value.Value
	var ok bool
	err := tx.ScanPrefix(ctx, prefix, func(kvp kv.KeyValue) (bool, error) {
		id, _, derr := keys.DecodeValue(kvp.Value)
		if derr != nil {
			return false, derr
		}
		found, ok = id, true
		return false, nil
	})
	return found, ok, err
}

func sameTuple(a, b []value.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !value.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func valuesToAny(vals []value.Value) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v.String()
	}
	return out
}
