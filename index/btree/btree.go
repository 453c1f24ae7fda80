// Package btree maintains an ordered secondary index: one kv entry per
// (indexed column values, record id) tuple, keyed so a lexicographic scan
// over the entry range matches the logical value order (spec.md §4.6's
// B-tree index). There is no in-memory page tree here — keys.IndexEntry's
// order-preserving encoding makes the underlying kv.Transaction itself the
// ordered structure, the same way the teacher leans on its storage
// backend's native ordering rather than building a tree on top of it.
package btree

import (
	"context"

	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/keys"
	"github.com/forbearing/stratadb/kv"
	"github.com/forbearing/stratadb/value"
)

// Maintainer keeps one index's entries in sync with record mutations.
type Maintainer struct {
	NS, DB, Table string
	Index         catalog.Index
}

func New(ns, db, table string, ix catalog.Index) *Maintainer {
	return &Maintainer{NS: ns, DB: db, Table: table, Index: ix}
}

// Insert adds an entry for id's indexed column values. The record id is
// also duplicated into the entry's value (not just its key) so Single/
// Range can recover it without depending on how many columns prefixed it
// in the key.
func (m *Maintainer) Insert(ctx context.Context, tx kv.Transaction, id value.Value, vals []value.Value) error {
	key := keys.IndexEntry(m.NS, m.DB, m.Table, m.Index.Name, vals, id)
	return tx.Put(ctx, key, keys.EncodeValue(nil, id))
}

// Remove deletes the entry previously inserted for id/vals.
func (m *Maintainer) Remove(ctx context.Context, tx kv.Transaction, id value.Value, vals []value.Value) error {
	return tx.Delete(ctx, keys.IndexEntry(m.NS, m.DB, m.Table, m.Index.Name, vals, id))
}

// Update removes the old entry and inserts the new one; it is a no-op,
// writing nothing, when oldVals equals newVals by value.
func (m *Maintainer) Update(ctx context.Context, tx kv.Transaction, id value.Value, oldVals, newVals []value.Value) error {
	if sameTuple(oldVals, newVals) {
		return nil
	}
	if err := m.Remove(ctx, tx, id, oldVals); err != nil {
		return err
	}
	return m.Insert(ctx, tx, id, newVals)
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

// Entry is one decoded index hit: the record id that produced it.
type Entry struct {
	RecordID value.Value
}

// Single scans every entry matching an equality lookup on the index's
// leading column(s), in key order. Used by the planner's Index::Single step.
func (m *Maintainer) Single(ctx context.Context, tx kv.Transaction, vals []value.Value, fn func(Entry) (bool, error)) error {
	prefix := keys.IndexPrefix(m.NS, m.DB, m.Table, m.Index.Name, vals...)
	return tx.ScanPrefix(ctx, prefix, func(kvp kv.KeyValue) (bool, error) {
		id, _, err := keys.DecodeValue(kvp.Value)
		if err != nil {
			return false, err
		}
		return fn(Entry{RecordID: id})
	})
}

// Range scans every entry whose leading column falls within [lo, hi)
// (either bound may be an empty slice to mean unbounded on that side),
// used by the planner's Index::Range step.
func (m *Maintainer) Range(ctx context.Context, tx kv.Transaction, lo, hi []value.Value, fn func(Entry) (bool, error)) error {
	base := keys.IndexPrefix(m.NS, m.DB, m.Table, m.Index.Name)
	start := base
	if len(lo) > 0 {
		start = keys.IndexPrefix(m.NS, m.DB, m.Table, m.Index.Name, lo...)
	}
	end := keys.PrefixUpperBound(base)
	if len(hi) > 0 {
		end = keys.IndexPrefix(m.NS, m.DB, m.Table, m.Index.Name, hi...)
	}
	return tx.Scan(ctx, start, end, func(kvp kv.KeyValue) (bool, error) {
		id, _, err := keys.DecodeValue(kvp.Value)
		if err != nil {
			return false, err
		}
		return fn(Entry{RecordID: id})
	})
}
