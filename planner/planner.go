// Package planner turns a SELECT/UPDATE/DELETE's WHERE clause, WITH
// INDEX/NOINDEX hint, and a table's defined indexes into an access path —
// Index::Single, Index::Range, Index::Union, or a full Index::TableScan —
// per spec.md §4.4. Every path still re-evaluates the complete WHERE
// expression against each candidate record before yielding it, so an
// index is purely a narrowing optimization: picking the wrong (or no)
// index only costs performance, never correctness, which keeps this
// package's job limited to "find a cheap superset of matching records"
// rather than a full cost-based query optimizer.
package planner

import (
	"context"

	"github.com/samber/lo"

	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/eval"
	"github.com/forbearing/stratadb/index/btree"
	"github.com/forbearing/stratadb/keys"
	"github.com/forbearing/stratadb/kv"
	"github.com/forbearing/stratadb/value"
)

// Strategy names the access path chosen, surfaced for EXPLAIN-style
// introspection and tests.
type Strategy string

const (
	StrategyTableScan   Strategy = "table_scan"
	StrategyIndexSingle Strategy = "index_single"
	StrategyIndexRange  Strategy = "index_range"
	StrategyIndexUnion  Strategy = "index_union"
)

// Row is one record a Cursor yields: its id and its decoded document.
type Row struct {
	ID     value.Value
	Record value.Value
}

// Cursor is the executor's pull-based iteration interface over a Plan's
// candidate records, already filtered by the full WHERE expression.
type Cursor interface {
	Next(ctx context.Context) (Row, bool, error)
}

// Decoder turns a stored record's raw bytes back into a value.Value
// (Kind Object). Ownership of the on-disk record encoding belongs to the
// executor, not the planner, so Decoder is supplied by the caller rather
// than hardcoded here.
type Decoder func([]byte) (value.Value, error)

// Plan is one resolved access path plus the cursor that executes it.
type Plan struct {
	Strategy  Strategy
	IndexName string
	Cursor    Cursor
}

// Build resolves table's access path for where (may be ast.Nil for "match
// everything") against the table's defined indexes, honoring with's
// WITH INDEX/NOINDEX hint, and returns a Plan ready to iterate.
func Build(ctx context.Context, tx kv.Transaction, env *eval.Env, ns, db, table string, where ast.ID, with ast.WithIndex, indexes []catalog.Index, decode Decoder) (*Plan, error) {
	strategy, ids, ixName, err := chooseAccessPath(ctx, tx, env, ns, db, table, where, with, indexes)
	if err != nil {
		return nil, err
	}
	cur := &sliceCursor{
		ids:   ids,
		fetch: makeFetcher(tx, ns, db, table, decode),
		env:   env,
		where: where,
	}
	return &Plan{Strategy: strategy, IndexName: ixName, Cursor: cur}, nil
}

func makeFetcher(tx kv.Transaction, ns, db, table string, decode Decoder) func(context.Context, value.Value) (value.Value, bool, error) {
	return func(ctx context.Context, id value.Value) (value.Value, bool, error) {
		raw, ok, err := tx.Get(ctx, keys.Record(ns, db, table, id))
		if err != nil || !ok {
			return value.Value{}, ok, err
		}
		v, err := decode(raw)
		return v, true, err
	}
}

type sliceCursor struct {
	ids   []value.Value
	idx   int
	fetch func(context.Context, value.Value) (value.Value, bool, error)
	env   *eval.Env
	where ast.ID
}

func (c *sliceCursor) Next(ctx context.Context) (Row, bool, error) {
	for c.idx < len(c.ids) {
		id := c.ids[c.idx]
		c.idx++
		rec, ok, err := c.fetch(ctx, id)
		if err != nil {
			return Row{}, false, err
		}
		if !ok {
			continue
		}
		if c.where != ast.Nil {
			c.env.Doc = rec
			v, err := eval.Eval(c.env, c.where)
			if err != nil {
				return Row{}, false, err
			}
			if !v.Truthy() {
				continue
			}
		}
		return Row{ID: id, Record: rec}, true, nil
	}
	return Row{}, false, nil
}

func allowedIndex(with ast.WithIndex, name string) bool {
	if len(with.Names) == 0 {
		return true
	}
	for _, n := range with.Names {
		if n == name {
			return true
		}
	}
	return false
}

func chooseAccessPath(ctx context.Context, tx kv.Transaction, env *eval.Env, ns, db, table string, where ast.ID, with ast.WithIndex, indexes []catalog.Index) (Strategy, []value.Value, string, error) {
	if where == ast.Nil || with.NoIndex {
		ids, err := scanAllIDs(ctx, tx, ns, db, table)
		return StrategyTableScan, ids, "", err
	}
	arena := env.Arena
	conjuncts := flattenBinary(arena, where, ast.OpAnd)

	for _, ix := range indexes {
		if !allowedIndex(with, ix.Name) || len(ix.Columns) == 0 {
			continue
		}
		if ix.Kind != catalog.IndexBTree && ix.Kind != catalog.IndexUnique {
			continue
		}
		col := ix.Columns[0]
		for _, c := range conjuncts {
			field, val, op, ok := asFieldConst(arena, env, c)
			if ok && op == ast.OpEq && field == col {
				ids, err := singleScan(ctx, tx, ns, db, table, ix, []value.Value{val})
				return StrategyIndexSingle, ids, ix.Name, err
			}
		}
	}

	for _, ix := range indexes {
		if !allowedIndex(with, ix.Name) || len(ix.Columns) == 0 || ix.Kind != catalog.IndexBTree {
			continue
		}
		col := ix.Columns[0]
		var loVal, hiVal []value.Value
		for _, c := range conjuncts {
			field, val, op, ok := asFieldConst(arena, env, c)
			if !ok || field != col {
				continue
			}
			switch op {
			case ast.OpGt, ast.OpGte:
				loVal = []value.Value{val}
			case ast.OpLt:
				hiVal = []value.Value{val}
			}
		}
		if loVal != nil || hiVal != nil {
			ids, err := rangeScan(ctx, tx, ns, db, table, ix, loVal, hiVal)
			return StrategyIndexRange, ids, ix.Name, err
		}
	}

	if n := arena.Get(where); n.Kind == ast.KindBinary && n.Op == ast.OpOr {
		branches := flattenBinary(arena, where, ast.OpOr)
		for _, ix := range indexes {
			if !allowedIndex(with, ix.Name) || len(ix.Columns) == 0 {
				continue
			}
			if ix.Kind != catalog.IndexBTree && ix.Kind != catalog.IndexUnique {
				continue
			}
			col := ix.Columns[0]
			vals := make([]value.Value, 0, len(branches))
			matched := true
			for _, b := range branches {
				field, val, op, ok := asFieldConst(arena, env, b)
				if !ok || op != ast.OpEq || field != col {
					matched = false
					break
				}
				vals = append(vals, val)
			}
			if matched && len(vals) > 0 {
				var all []value.Value
				for _, v := range vals {
					ids, err := singleScan(ctx, tx, ns, db, table, ix, []value.Value{v})
					if err != nil {
						return "", nil, "", err
					}
					all = append(all, ids...)
				}
				all = lo.UniqBy(all, func(v value.Value) string { return v.String() })
				return StrategyIndexUnion, all, ix.Name, nil
			}
		}
	}

	ids, err := scanAllIDs(ctx, tx, ns, db, table)
	return StrategyTableScan, ids, "", err
}

// flattenBinary splits a chain of same-operator binary nodes (AND or OR)
// into its leaves, so `a AND b AND c` yields [a, b, c] rather than
// requiring the caller to walk the (left-associative) tree itself.
func flattenBinary(arena *ast.Arena, id ast.ID, op ast.BinOp) []ast.ID {
	n := arena.Get(id)
	if n.Kind == ast.KindBinary && n.Op == op {
		return append(flattenBinary(arena, n.A, op), flattenBinary(arena, n.B, op)...)
	}
	return []ast.ID{id}
}

// asFieldConst recognizes `field OP const` or `const OP field`, where
// field is a bare identifier and const evaluates without touching a
// cursor document (a literal or a $param). Anything else (both sides
// document-dependent, a nested idiom, a function call) is left for the
// cursor's full-WHERE residual filter instead of being made sargable.
func asFieldConst(arena *ast.Arena, env *eval.Env, id ast.ID) (field string, val value.Value, op ast.BinOp, ok bool) {
	n := arena.Get(id)
	if n.Kind != ast.KindBinary {
		return "", value.Value{}, 0, false
	}
	switch n.Op {
	case ast.OpEq, ast.OpExactEq, ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte:
	default:
		return "", value.Value{}, 0, false
	}
	lf, lok := identName(arena, n.A)
	rf, rok := identName(arena, n.B)
	switch {
	case lok && !rok:
		v, err := evalConst(env, n.B)
		if err != nil {
			return "", value.Value{}, 0, false
		}
		return lf, v, n.Op, true
	case rok && !lok:
		v, err := evalConst(env, n.A)
		if err != nil {
			return "", value.Value{}, 0, false
		}
		return rf, v, flipOp(n.Op), true
	default:
		return "", value.Value{}, 0, false
	}
}

func identName(arena *ast.Arena, id ast.ID) (string, bool) {
	n := arena.Get(id)
	if n.Kind == ast.KindIdent {
		return n.Str, true
	}
	return "", false
}

// evalConst evaluates id with no cursor document bound, so any attempt to
// reference a record field surfaces as an error instead of silently
// treating the field's zero value as a constant.
func evalConst(env *eval.Env, id ast.ID) (value.Value, error) {
	sub := &eval.Env{Arena: env.Arena, Vars: env.Vars, Hooks: env.Hooks}
	return eval.Eval(sub, id)
}

func flipOp(op ast.BinOp) ast.BinOp {
	switch op {
	case ast.OpLt:
		return ast.OpGt
	case ast.OpLte:
		return ast.OpGte
	case ast.OpGt:
		return ast.OpLt
	case ast.OpGte:
		return ast.OpLte
	default:
		return op
	}
}

func scanAllIDs(ctx context.Context, tx kv.Transaction, ns, db, table string) ([]value.Value, error) {
	prefix := keys.RecordPrefix(ns, db, table)
	var ids []value.Value
	err := tx.ScanPrefix(ctx, prefix, func(kvp kv.KeyValue) (bool, error) {
		id, _, err := keys.DecodeValue(kvp.Key[len(prefix):])
		if err != nil {
			return false, err
		}
		ids = append(ids, id)
		return true, nil
	})
	return ids, err
}

func singleScan(ctx context.Context, tx kv.Transaction, ns, db, table string, ix catalog.Index, vals []value.Value) ([]value.Value, error) {
	m := btree.New(ns, db, table, ix)
	var ids []value.Value
	err := m.Single(ctx, tx, vals, func(e btree.Entry) (bool, error) {
		ids = append(ids, e.RecordID)
		return true, nil
	})
	return ids, err
}

func rangeScan(ctx context.Context, tx kv.Transaction, ns, db, table string, ix catalog.Index, loVal, hiVal []value.Value) ([]value.Value, error) {
	m := btree.New(ns, db, table, ix)
	var ids []value.Value
	err := m.Range(ctx, tx, loVal, hiVal, func(e btree.Entry) (bool, error) {
		ids = append(ids, e.RecordID)
		return true, nil
	})
	return ids, err
}
