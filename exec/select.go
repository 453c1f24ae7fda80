package exec

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/eval"
	"github.com/forbearing/stratadb/keys"
	"github.com/forbearing/stratadb/planner"
	"github.com/forbearing/stratadb/value"
)

// execSelect runs a SELECT: resolve What into targets, fetch each
// target's candidate rows (via planner for a whole table, directly for a
// specific record id), apply permission filtering, GROUP/ORDER/START/
// LIMIT/FETCH, and project Fields.
func (ex *Executor) execSelect(ctx context.Context, arena *ast.Arena, stmt *ast.SelectStmt) (value.Value, error) {
	if stmt.Timeout != ast.Nil {
		d, err := eval.Eval(ex.newEnv(ctx, arena, value.None()), stmt.Timeout)
		if err != nil {
			return value.Value{}, err
		}
		if d.Kind == value.KindDuration && d.DurationVal() > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.DurationVal())
			defer cancel()
		}
	}

	targets, err := ex.resolveWhat(ctx, arena, stmt.What)
	if err != nil {
		return value.Value{}, err
	}

	var (
		docs []value.Value
		mu   sync.Mutex
	)
	collect := func(ctx context.Context, t target) error {
		rows, err := ex.selectTarget(ctx, arena, t, stmt)
		if err != nil {
			return err
		}
		mu.Lock()
		docs = append(docs, rows...)
		mu.Unlock()
		return nil
	}
	if stmt.Parallel && len(targets) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for _, t := range targets {
			t := t
			g.Go(func() error { return collect(gctx, t) })
		}
		if err := g.Wait(); err != nil {
			return value.Value{}, err
		}
	} else {
		for _, t := range targets {
			if err := collect(ctx, t); err != nil {
				return value.Value{}, err
			}
		}
	}

	if stmt.GroupAll || len(stmt.Group) > 0 {
		docs, err = ex.groupRows(ctx, arena, stmt, docs)
		if err != nil {
			return value.Value{}, err
		}
	}

	if len(stmt.Order) > 0 {
		if err := ex.orderRows(ctx, arena, docs, stmt.Order); err != nil {
			return value.Value{}, err
		}
	}

	docs, err = ex.paginate(ctx, arena, docs, stmt.Start, stmt.Limit)
	if err != nil {
		return value.Value{}, err
	}

	out := make([]value.Value, 0, len(docs))
	for _, doc := range docs {
		projected := doc
		if len(stmt.Fields) > 0 {
			projected, err = ex.projectFields(ctx, arena, stmt.Fields, doc)
			if err != nil {
				return value.Value{}, err
			}
		}
		if len(stmt.Fetch) > 0 {
			projected, err = ex.fetchFields(ctx, projected, stmt.Fetch)
			if err != nil {
				return value.Value{}, err
			}
		}
		out = append(out, projected)
	}
	return value.Array(out...), nil
}

// selectTarget fetches one target's candidate documents, already filtered
// by WHERE and by per-record SELECT permission.
func (ex *Executor) selectTarget(ctx context.Context, arena *ast.Arena, t target, stmt *ast.SelectStmt) ([]value.Value, error) {
	var out []value.Value
	keep := func(doc value.Value, table string) (bool, error) {
		return ex.checkPerm(ctx, VerbSelect, table, doc)
	}
	if !t.wholeTable {
		raw, ok, err := ex.Tx.Get(ctx, keys.Record(ex.NS, ex.DB, t.table, t.id))
		if err != nil || !ok {
			return nil, err
		}
		doc, err := DecodeRecord(raw)
		if err != nil {
			return nil, err
		}
		if stmt.Where != ast.Nil {
			v, err := eval.Eval(ex.newEnv(ctx, arena, doc), stmt.Where)
			if err != nil {
				return nil, err
			}
			if !v.Truthy() {
				return nil, nil
			}
		}
		if ok, err := keep(doc, t.table); err != nil {
			return nil, err
		} else if ok {
			out = append(out, doc)
		}
		return out, nil
	}

	indexes, err := ex.tableIndexes(ctx, t.table)
	if err != nil {
		return nil, err
	}
	env := ex.newEnv(ctx, arena, value.None())
	plan, err := planner.Build(ctx, ex.Tx, env, ex.NS, ex.DB, t.table, stmt.Where, stmt.With, indexes, DecodeRecord)
	if err != nil {
		return nil, err
	}
	for {
		row, ok, err := plan.Cursor.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if ok, err := keep(row.Record, t.table); err != nil {
			return nil, err
		} else if ok {
			out = append(out, row.Record)
		}
	}
	return out, nil
}

// groupRows partitions docs by the tuple of Group expression values
// (GROUP ALL collapses everything into one group). Within a group, a
// field that is one of the grouping expressions keeps its scalar value;
// every other top-level field becomes the array of that field's value
// across the group's rows, matching the convention that non-grouped
// SELECT fields are meant to feed an aggregate builtin (count(), math::
// mean(), etc.) rather than be read directly.
func (ex *Executor) groupRows(ctx context.Context, arena *ast.Arena, stmt *ast.SelectStmt, docs []value.Value) ([]value.Value, error) {
	type group struct {
		key  []value.Value
		rows []value.Value
	}
	var groups []*group
	keyOf := func(doc value.Value) ([]value.Value, error) {
		if stmt.GroupAll {
			return nil, nil
		}
		env := ex.newEnv(ctx, arena, doc)
		key := make([]value.Value, len(stmt.Group))
		for i, gid := range stmt.Group {
			v, err := eval.Eval(env, gid)
			if err != nil {
				return nil, err
			}
			key[i] = v
		}
		return key, nil
	}
	sameKey := func(a, b []value.Value) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i].String() != b[i].String() {
				return false
			}
		}
		return true
	}
	for _, doc := range docs {
		k, err := keyOf(doc)
		if err != nil {
			return nil, err
		}
		var g *group
		for _, cand := range groups {
			if sameKey(cand.key, k) {
				g = cand
				break
			}
		}
		if g == nil {
			g = &group{key: k}
			groups = append(groups, g)
		}
		g.rows = append(g.rows, doc)
	}
	groupFieldNames := make(map[string]bool, len(stmt.Group))
	for _, gid := range stmt.Group {
		groupFieldNames[exprLabel(arena, gid)] = true
	}
	out := make([]value.Value, 0, len(groups))
	for _, g := range groups {
		agg := value.NewObject()
		fields := map[string][]value.Value{}
		for _, row := range g.rows {
			if row.Kind != value.KindObject || row.ObjectRef() == nil {
				continue
			}
			for _, k := range row.ObjectRef().Keys() {
				v, _ := row.ObjectRef().Get(k)
				fields[k] = append(fields[k], v)
			}
		}
		for name, vals := range fields {
			if groupFieldNames[name] && len(vals) > 0 {
				agg.Set(name, vals[0])
			} else {
				agg.Set(name, value.Array(vals...))
			}
		}
		out = append(out, value.ObjectVal(agg))
	}
	return out, nil
}

func (ex *Executor) orderRows(ctx context.Context, arena *ast.Arena, docs []value.Value, order []ast.OrderBy) error {
	var sortErr error
	sort.SliceStable(docs, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		for _, ob := range order {
			vi, err := eval.Eval(ex.newEnv(ctx, arena, docs[i]), ob.Expr)
			if err != nil {
				sortErr = err
				return false
			}
			vj, err := eval.Eval(ex.newEnv(ctx, arena, docs[j]), ob.Expr)
			if err != nil {
				sortErr = err
				return false
			}
			c := value.Compare(vi, vj)
			if c == 0 {
				continue
			}
			if ob.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return sortErr
}

func (ex *Executor) paginate(ctx context.Context, arena *ast.Arena, docs []value.Value, start, limit ast.ID) ([]value.Value, error) {
	s := 0
	if start != ast.Nil {
		v, err := eval.Eval(ex.newEnv(ctx, arena, value.None()), start)
		if err != nil {
			return nil, err
		}
		s = int(v.Int())
	}
	if s < 0 {
		s = 0
	}
	if s >= len(docs) {
		return nil, nil
	}
	docs = docs[s:]
	if limit != ast.Nil {
		v, err := eval.Eval(ex.newEnv(ctx, arena, value.None()), limit)
		if err != nil {
			return nil, err
		}
		l := int(v.Int())
		if l >= 0 && l < len(docs) {
			docs = docs[:l]
		}
	}
	return docs, nil
}

// fetchFields resolves a RecordID (or array of RecordIDs) stored under
// one of names into its full stored document, the one-level-deep graph
// traversal FETCH supplements over a plain field projection.
func (ex *Executor) fetchFields(ctx context.Context, doc value.Value, names []string) (value.Value, error) {
	if doc.Kind != value.KindObject || doc.ObjectRef() == nil {
		return doc, nil
	}
	obj := doc.ObjectRef().Clone()
	for _, name := range names {
		v, ok := obj.Get(name)
		if !ok {
			continue
		}
		resolved, err := ex.fetchValue(ctx, v)
		if err != nil {
			return value.Value{}, err
		}
		obj.Set(name, resolved)
	}
	return value.ObjectVal(obj), nil
}

func (ex *Executor) fetchValue(ctx context.Context, v value.Value) (value.Value, error) {
	switch v.Kind {
	case value.KindRecordID:
		rid := v.RID()
		raw, ok, err := ex.Tx.Get(ctx, keys.Record(ex.NS, ex.DB, rid.Table, rid.Key))
		if err != nil || !ok {
			return v, err
		}
		return DecodeRecord(raw)
	case value.KindArray:
		items := v.ArrayVal()
		out := make([]value.Value, len(items))
		for i, it := range items {
			r, err := ex.fetchValue(ctx, it)
			if err != nil {
				return value.Value{}, err
			}
			out[i] = r
		}
		return value.Array(out...), nil
	default:
		return v, nil
	}
}
