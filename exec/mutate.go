package exec

import (
	"context"

	"github.com/google/uuid"

	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/eval"
	"github.com/forbearing/stratadb/index/btree"
	"github.com/forbearing/stratadb/index/fulltext"
	"github.com/forbearing/stratadb/index/unique"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/keys"
	"github.com/forbearing/stratadb/value"
)

func randomUUID() uuid.UUID { return uuid.New() }

func fieldVal(doc value.Value, name string) value.Value {
	if doc.Kind != value.KindObject || doc.ObjectRef() == nil {
		return value.None()
	}
	v, ok := doc.ObjectRef().Get(name)
	if !ok {
		return value.None()
	}
	return v
}

func columnTuple(doc value.Value, cols []string) []value.Value {
	out := make([]value.Value, len(cols))
	for i, c := range cols {
		out[i] = fieldVal(doc, c)
	}
	return out
}

func vectorOf(doc value.Value, col string) []float64 {
	v := fieldVal(doc, col)
	if v.Kind != value.KindArray {
		return nil
	}
	arr := v.ArrayVal()
	out := make([]float64, len(arr))
	for i, it := range arr {
		out[i] = it.Float()
	}
	return out
}

// maintainOneIndex applies one index's update for a record transitioning
// from oldDoc to newDoc (either may be value.None() for an insert/delete).
// index/btree, index/unique, and index/fulltext all read/write through
// ex.Tx, so their calls are serialized under ex.mu — memkv's transaction
// keeps its pending writes in a plain map with no internal lock, so two
// goroutines racing Put calls on the same kv.Transaction would corrupt it.
// index/hnsw and index/mtree are resident, mutex-guarded structures that
// never touch ex.Tx, so their maintenance needs no such guard.
func (ex *Executor) maintainOneIndex(ctx context.Context, ix catalog.Index, id value.Value, oldDoc, newDoc value.Value) error {
	switch ix.Kind {
	case catalog.IndexBTree:
		ex.mu.Lock()
		defer ex.mu.Unlock()
		m := btree.New(ix.Namespace, ix.Database, ix.Table, ix)
		switch {
		case oldDoc.IsNone() && !newDoc.IsNone():
			return m.Insert(ctx, ex.Tx, id, columnTuple(newDoc, ix.Columns))
		case !oldDoc.IsNone() && newDoc.IsNone():
			return m.Remove(ctx, ex.Tx, id, columnTuple(oldDoc, ix.Columns))
		default:
			return m.Update(ctx, ex.Tx, id, columnTuple(oldDoc, ix.Columns), columnTuple(newDoc, ix.Columns))
		}
	case catalog.IndexUnique:
		ex.mu.Lock()
		defer ex.mu.Unlock()
		m := unique.New(ix.Namespace, ix.Database, ix.Table, ix)
		switch {
		case oldDoc.IsNone() && !newDoc.IsNone():
			return m.Insert(ctx, ex.Tx, id, columnTuple(newDoc, ix.Columns))
		case !oldDoc.IsNone() && newDoc.IsNone():
			return m.Remove(ctx, ex.Tx, id, columnTuple(oldDoc, ix.Columns))
		default:
			return m.Update(ctx, ex.Tx, id, columnTuple(oldDoc, ix.Columns), columnTuple(newDoc, ix.Columns))
		}
	case catalog.IndexFullText:
		ex.mu.Lock()
		defer ex.mu.Unlock()
		m := fulltext.New(ix.Namespace, ix.Database, ix.Table, ix)
		col := ix.Columns[0]
		oldText, newText := fieldVal(oldDoc, col).Str(), fieldVal(newDoc, col).Str()
		switch {
		case oldDoc.IsNone() && !newDoc.IsNone():
			return m.Index(ctx, ex.Tx, id, newText)
		case !oldDoc.IsNone() && newDoc.IsNone():
			return m.Remove(ctx, ex.Tx, id, oldText)
		default:
			return m.Update(ctx, ex.Tx, id, oldText, newText)
		}
	case catalog.IndexHNSW:
		g := ex.HNSW.GetOrCreate(ix.Namespace, ix.Database, ix.Table, ix)
		col := ix.Columns[0]
		if !oldDoc.IsNone() {
			g.Remove(id)
		}
		if !newDoc.IsNone() {
			return g.Insert(id, vectorOf(newDoc, col))
		}
		return nil
	case catalog.IndexMTree:
		t := ex.MTree.GetOrCreate(ix.Namespace, ix.Database, ix.Table, ix)
		col := ix.Columns[0]
		if !newDoc.IsNone() {
			return t.Insert(id, vectorOf(newDoc, col))
		}
		return nil
	default:
		return kerr.TypeMismatch("index kind", "unknown")
	}
}

// maintainIndexes applies every index of table to one record mutation,
// fanning out across ex's index-maintenance pool. oldDoc/newDoc follow
// maintainOneIndex's convention (value.None() means absent).
func (ex *Executor) maintainIndexes(ctx context.Context, indexes []catalog.Index, id value.Value, oldDoc, newDoc value.Value) error {
	if len(indexes) == 0 {
		return nil
	}
	type result struct{ err error }
	results := make(chan result, len(indexes))
	pool := ex.indexPool()
	for _, ix := range indexes {
		ix := ix
		job := func() {
			results <- result{ex.maintainOneIndex(ctx, ix, id, oldDoc, newDoc)}
		}
		if err := pool.Submit(job); err != nil {
			// Pool saturated or closed: run inline rather than drop the
			// maintenance step.
			job()
		}
	}
	var first error
	for range indexes {
		if r := <-results; r.err != nil && first == nil {
			first = r.err
		}
	}
	return first
}

func (ex *Executor) checkPerm(ctx context.Context, verb Verb, table string, rec value.Value) (bool, error) {
	if ex.Hooks == nil || ex.Hooks.CheckPermission == nil {
		return true, nil
	}
	return ex.Hooks.CheckPermission(ctx, verb, ex.NS, ex.DB, table, rec)
}

func (ex *Executor) notify(ctx context.Context, table string, kind MutationKind, id, before, after value.Value) {
	if ex.Hooks != nil && ex.Hooks.Notify != nil {
		ex.Hooks.Notify(ctx, ex.NS, ex.DB, table, kind, id, before, after)
	}
}

// applyData evaluates a Data clause (CONTENT/SET/MERGE/PATCH/REPLACE)
// against base (the existing document, or an empty object on CREATE),
// producing the resulting document.
func (ex *Executor) applyData(ctx context.Context, arena *ast.Arena, base value.Value, data ast.Data) (value.Value, error) {
	switch data.Kind {
	case ast.DataNone:
		return base, nil
	case ast.DataContent, ast.DataReplace:
		v, err := eval.Eval(ex.newEnv(ctx, arena, base), data.Expr)
		if err != nil {
			return value.Value{}, err
		}
		if v.Kind != value.KindObject {
			return value.Value{}, kerr.TypeMismatch("object", v.Kind.String())
		}
		return v, nil
	case ast.DataMerge:
		v, err := eval.Eval(ex.newEnv(ctx, arena, base), data.Expr)
		if err != nil {
			return value.Value{}, err
		}
		out := base.ObjectRef()
		if out == nil {
			out = value.NewObject()
		} else {
			out = out.Clone()
		}
		if v.Kind == value.KindObject && v.ObjectRef() != nil {
			for _, k := range v.ObjectRef().Keys() {
				fv, _ := v.ObjectRef().Get(k)
				out.Set(k, fv)
			}
		}
		return value.ObjectVal(out), nil
	case ast.DataSet:
		out := base.ObjectRef()
		if out == nil {
			out = value.NewObject()
		} else {
			out = out.Clone()
		}
		env := ex.newEnv(ctx, arena, value.ObjectVal(out))
		for _, kv := range data.Set {
			v, err := eval.Eval(env, kv.Val)
			if err != nil {
				return value.Value{}, err
			}
			out.Set(kv.Key, v)
			env.Doc = value.ObjectVal(out)
		}
		return value.ObjectVal(out), nil
	case ast.DataPatch:
		// PATCH is supplemented beyond the distilled grammar's scope; a
		// minimal JSON-merge-patch-like semantics (array of {op,path,value}
		// objects with op in "add"/"replace"/"remove") covers the common
		// case without pulling in a dedicated JSON Patch library the
		// example corpus never uses.
		v, err := eval.Eval(ex.newEnv(ctx, arena, base), data.Expr)
		if err != nil {
			return value.Value{}, err
		}
		out := base.ObjectRef()
		if out == nil {
			out = value.NewObject()
		} else {
			out = out.Clone()
		}
		if v.Kind == value.KindArray {
			for _, op := range v.ArrayVal() {
				if op.Kind != value.KindObject {
					continue
				}
				path, _ := op.ObjectRef().Get("path")
				kind, _ := op.ObjectRef().Get("op")
				field := path.Str()
				switch kind.Str() {
				case "remove":
					out.Delete(field)
				default:
					val, _ := op.ObjectRef().Get("value")
					out.Set(field, val)
				}
			}
		}
		return value.ObjectVal(out), nil
	default:
		return base, nil
	}
}

func (ex *Executor) tableIndexes(ctx context.Context, table string) ([]catalog.Index, error) {
	return ex.Catalog.ListIndexes(ctx, ex.NS, ex.DB, table)
}

func (ex *Executor) projectOutput(ctx context.Context, arena *ast.Arena, out ast.Output, before, after value.Value) (value.Value, error) {
	switch out.Kind {
	case ast.OutputNone:
		return value.None(), nil
	case ast.OutputBefore:
		return before, nil
	case ast.OutputDiff:
		return diffObjects(before, after), nil
	case ast.OutputFields:
		return ex.projectFields(ctx, arena, out.Fields, after)
	default: // OutputAfter
		return after, nil
	}
}

func (ex *Executor) projectFields(ctx context.Context, arena *ast.Arena, fields []ast.Field, doc value.Value) (value.Value, error) {
	out := value.NewObject()
	env := ex.newEnv(ctx, arena, doc)
	for _, f := range fields {
		if f.All {
			if doc.Kind == value.KindObject && doc.ObjectRef() != nil {
				for _, k := range doc.ObjectRef().Keys() {
					v, _ := doc.ObjectRef().Get(k)
					out.Set(k, v)
				}
			}
			continue
		}
		v, err := eval.Eval(env, f.Expr)
		if err != nil {
			return value.Value{}, err
		}
		name := f.Alias
		if name == "" {
			name = exprLabel(arena, f.Expr)
		}
		out.Set(name, v)
	}
	return value.ObjectVal(out), nil
}

func exprLabel(arena *ast.Arena, id ast.ID) string {
	n := arena.Get(id)
	if n.Kind == ast.KindIdent {
		return n.Str
	}
	return "field"
}

// diffObjects produces a minimal JSON-merge-patch-style object: every key
// present in after with a value differing from before (including keys
// absent from before), plus Null for every key removed from before.
func diffObjects(before, after value.Value) value.Value {
	out := value.NewObject()
	var beforeObj, afterObj *value.Object
	if before.Kind == value.KindObject {
		beforeObj = before.ObjectRef()
	}
	if after.Kind == value.KindObject {
		afterObj = after.ObjectRef()
	}
	seen := map[string]bool{}
	if afterObj != nil {
		for _, k := range afterObj.Keys() {
			av, _ := afterObj.Get(k)
			if beforeObj != nil {
				if bv, ok := beforeObj.Get(k); ok && bv.String() == av.String() {
					seen[k] = true
					continue
				}
			}
			out.Set(k, av)
			seen[k] = true
		}
	}
	if beforeObj != nil {
		for _, k := range beforeObj.Keys() {
			if !seen[k] {
				out.Set(k, value.Null())
			}
		}
	}
	return value.ObjectVal(out)
}

// --- CREATE ---

func (ex *Executor) execCreate(ctx context.Context, arena *ast.Arena, stmt *ast.CreateStmt) (value.Value, error) {
	targets, err := ex.resolveWhat(ctx, arena, stmt.What)
	if err != nil {
		return value.Value{}, err
	}
	var results []value.Value
	for _, t := range targets {
		id := t.id
		if id.IsNone() {
			id = value.Uuid(randomUUID())
		}
		doc, err := ex.applyData(ctx, arena, value.ObjectVal(value.NewObject()), stmt.Data)
		if err != nil {
			return value.Value{}, err
		}
		obj := doc.ObjectRef()
		if obj == nil {
			obj = value.NewObject()
		}
		obj.Set("id", value.RecordIDVal(t.table, id))
		doc = value.ObjectVal(obj)

		rid := keys.Record(ex.NS, ex.DB, t.table, id)
		exists, err := ex.Tx.Has(ctx, rid)
		if err != nil {
			return value.Value{}, err
		}
		if exists {
			return value.Value{}, kerr.RecordExists((&value.RecordID{Table: t.table, Key: id}).String())
		}
		if ok, err := ex.checkPerm(ctx, VerbCreate, t.table, doc); err != nil {
			return value.Value{}, err
		} else if !ok {
			return value.Value{}, kerr.PermissionDenied(t.table, "create")
		}
		raw, err := EncodeRecord(doc)
		if err != nil {
			return value.Value{}, err
		}
		if err := ex.Tx.Put(ctx, rid, raw); err != nil {
			return value.Value{}, err
		}
		indexes, err := ex.tableIndexes(ctx, t.table)
		if err != nil {
			return value.Value{}, err
		}
		if err := ex.maintainIndexes(ctx, indexes, id, value.None(), doc); err != nil {
			return value.Value{}, err
		}
		ex.notify(ctx, t.table, MutationCreate, id, value.None(), doc)
		out, err := ex.projectOutput(ctx, arena, stmt.Output, value.None(), doc)
		if err != nil {
			return value.Value{}, err
		}
		results = append(results, out)
	}
	return collapse(results), nil
}

// --- UPDATE / UPSERT ---

func (ex *Executor) execUpdate(ctx context.Context, arena *ast.Arena, stmt *ast.UpdateStmt) (value.Value, error) {
	targets, err := ex.resolveWhat(ctx, arena, stmt.What)
	if err != nil {
		return value.Value{}, err
	}
	var results []value.Value
	for _, t := range targets {
		ids, err := ex.expandTarget(ctx, t, arena, stmt.Where)
		if err != nil {
			return value.Value{}, err
		}
		if len(ids) == 0 && stmt.Upsert && !t.wholeTable {
			ids = []value.Value{t.id}
		}
		for _, id := range ids {
			rid := keys.Record(ex.NS, ex.DB, t.table, id)
			raw, ok, err := ex.Tx.Get(ctx, rid)
			var before value.Value
			if err != nil {
				return value.Value{}, err
			}
			if ok {
				before, err = DecodeRecord(raw)
				if err != nil {
					return value.Value{}, err
				}
			} else if stmt.Upsert {
				obj := value.NewObject()
				obj.Set("id", value.RecordIDVal(t.table, id))
				before = value.ObjectVal(obj)
			} else {
				continue
			}
			after, err := ex.applyData(ctx, arena, before, stmt.Data)
			if err != nil {
				return value.Value{}, err
			}
			afterObj := after.ObjectRef()
			if afterObj == nil {
				afterObj = value.NewObject()
			}
			afterObj.Set("id", value.RecordIDVal(t.table, id))
			after = value.ObjectVal(afterObj)

			if ok, err := ex.checkPerm(ctx, VerbUpdate, t.table, after); err != nil {
				return value.Value{}, err
			} else if !ok {
				return value.Value{}, kerr.PermissionDenied(t.table, "update")
			}
			rawAfter, err := EncodeRecord(after)
			if err != nil {
				return value.Value{}, err
			}
			if err := ex.Tx.Put(ctx, rid, rawAfter); err != nil {
				return value.Value{}, err
			}
			indexes, err := ex.tableIndexes(ctx, t.table)
			if err != nil {
				return value.Value{}, err
			}
			if err := ex.maintainIndexes(ctx, indexes, id, before, after); err != nil {
				return value.Value{}, err
			}
			ex.notify(ctx, t.table, MutationUpdate, id, before, after)
			out, err := ex.projectOutput(ctx, arena, stmt.Output, before, after)
			if err != nil {
				return value.Value{}, err
			}
			results = append(results, out)
		}
	}
	return collapse(results), nil
}

// --- DELETE ---

func (ex *Executor) execDelete(ctx context.Context, arena *ast.Arena, stmt *ast.DeleteStmt) (value.Value, error) {
	targets, err := ex.resolveWhat(ctx, arena, stmt.What)
	if err != nil {
		return value.Value{}, err
	}
	var results []value.Value
	for _, t := range targets {
		ids, err := ex.expandTarget(ctx, t, arena, stmt.Where)
		if err != nil {
			return value.Value{}, err
		}
		for _, id := range ids {
			rid := keys.Record(ex.NS, ex.DB, t.table, id)
			raw, ok, err := ex.Tx.Get(ctx, rid)
			if err != nil {
				return value.Value{}, err
			}
			if !ok {
				continue
			}
			before, err := DecodeRecord(raw)
			if err != nil {
				return value.Value{}, err
			}
			if ok, err := ex.checkPerm(ctx, VerbDelete, t.table, before); err != nil {
				return value.Value{}, err
			} else if !ok {
				return value.Value{}, kerr.PermissionDenied(t.table, "delete")
			}
			if err := ex.Tx.Delete(ctx, rid); err != nil {
				return value.Value{}, err
			}
			indexes, err := ex.tableIndexes(ctx, t.table)
			if err != nil {
				return value.Value{}, err
			}
			if err := ex.maintainIndexes(ctx, indexes, id, before, value.None()); err != nil {
				return value.Value{}, err
			}
			ex.notify(ctx, t.table, MutationDelete, id, before, value.None())
			out, err := ex.projectOutput(ctx, arena, stmt.Output, before, value.None())
			if err != nil {
				return value.Value{}, err
			}
			results = append(results, out)
		}
	}
	return collapse(results), nil
}

// expandTarget turns one resolved target plus an optional WHERE into the
// concrete record ids to operate on: a single-id target yields itself
// (subject to WHERE matching its current document), a whole-table target
// scans every record, applying WHERE as a filter.
func (ex *Executor) expandTarget(ctx context.Context, t target, arena *ast.Arena, where ast.ID) ([]value.Value, error) {
	if !t.wholeTable {
		if where == ast.Nil {
			return []value.Value{t.id}, nil
		}
		raw, ok, err := ex.Tx.Get(ctx, keys.Record(ex.NS, ex.DB, t.table, t.id))
		if err != nil || !ok {
			return nil, err
		}
		doc, err := DecodeRecord(raw)
		if err != nil {
			return nil, err
		}
		v, err := eval.Eval(ex.newEnv(ctx, arena, doc), where)
		if err != nil {
			return nil, err
		}
		if !v.Truthy() {
			return nil, nil
		}
		return []value.Value{t.id}, nil
	}
	var ids []value.Value
	err := ex.scanTable(ctx, t.table, func(id, doc value.Value) (bool, error) {
		if where != ast.Nil {
			v, err := eval.Eval(ex.newEnv(ctx, arena, doc), where)
			if err != nil {
				return false, err
			}
			if !v.Truthy() {
				return true, nil
			}
		}
		ids = append(ids, id)
		return true, nil
	})
	return ids, err
}

func collapse(results []value.Value) value.Value {
	switch len(results) {
	case 0:
		return value.Array()
	case 1:
		return results[0]
	default:
		return value.Array(results...)
	}
}

// --- INSERT ---

func (ex *Executor) execInsert(ctx context.Context, arena *ast.Arena, stmt *ast.InsertStmt) (value.Value, error) {
	rows, err := ex.insertRows(ctx, arena, stmt)
	if err != nil {
		return value.Value{}, err
	}
	var results []value.Value
	for _, row := range rows {
		idv, ok := row.ObjectRef().Get("id")
		var id value.Value
		if ok && idv.Kind == value.KindRecordID {
			id = idv.RID().Key
		} else {
			id = value.Uuid(randomUUID())
			row.ObjectRef().Set("id", value.RecordIDVal(stmt.Into, id))
		}
		rid := keys.Record(ex.NS, ex.DB, stmt.Into, id)
		exists, err := ex.Tx.Has(ctx, rid)
		if err != nil {
			return value.Value{}, err
		}
		if exists {
			if stmt.OnConflict == nil {
				return value.Value{}, kerr.RecordExists((&value.RecordID{Table: stmt.Into, Key: id}).String())
			}
			raw, _, err := ex.Tx.Get(ctx, rid)
			if err != nil {
				return value.Value{}, err
			}
			before, err := DecodeRecord(raw)
			if err != nil {
				return value.Value{}, err
			}
			env := ex.newEnv(ctx, arena, before)
			obj := before.ObjectRef().Clone()
			for _, kv := range stmt.OnConflict {
				v, err := eval.Eval(env, kv.Val)
				if err != nil {
					return value.Value{}, err
				}
				obj.Set(kv.Key, v)
				env.Doc = value.ObjectVal(obj)
			}
			after := value.ObjectVal(obj)
			rawAfter, err := EncodeRecord(after)
			if err != nil {
				return value.Value{}, err
			}
			if err := ex.Tx.Put(ctx, rid, rawAfter); err != nil {
				return value.Value{}, err
			}
			indexes, err := ex.tableIndexes(ctx, stmt.Into)
			if err != nil {
				return value.Value{}, err
			}
			if err := ex.maintainIndexes(ctx, indexes, id, before, after); err != nil {
				return value.Value{}, err
			}
			ex.notify(ctx, stmt.Into, MutationUpdate, id, before, after)
			out, err := ex.projectOutput(ctx, arena, stmt.Output, before, after)
			if err != nil {
				return value.Value{}, err
			}
			results = append(results, out)
			continue
		}
		if ok, err := ex.checkPerm(ctx, VerbCreate, stmt.Into, row); err != nil {
			return value.Value{}, err
		} else if !ok {
			return value.Value{}, kerr.PermissionDenied(stmt.Into, "create")
		}
		raw, err := EncodeRecord(row)
		if err != nil {
			return value.Value{}, err
		}
		if err := ex.Tx.Put(ctx, rid, raw); err != nil {
			return value.Value{}, err
		}
		indexes, err := ex.tableIndexes(ctx, stmt.Into)
		if err != nil {
			return value.Value{}, err
		}
		if err := ex.maintainIndexes(ctx, indexes, id, value.None(), row); err != nil {
			return value.Value{}, err
		}
		ex.notify(ctx, stmt.Into, MutationCreate, id, value.None(), row)
		out, err := ex.projectOutput(ctx, arena, stmt.Output, value.None(), row)
		if err != nil {
			return value.Value{}, err
		}
		results = append(results, out)
	}
	return collapse(results), nil
}

func (ex *Executor) insertRows(ctx context.Context, arena *ast.Arena, stmt *ast.InsertStmt) ([]value.Value, error) {
	var rows []value.Value
	if stmt.Source != ast.Nil {
		v, err := eval.Eval(ex.newEnv(ctx, arena, value.None()), stmt.Source)
		if err != nil {
			return nil, err
		}
		switch v.Kind {
		case value.KindArray:
			rows = append(rows, v.ArrayVal()...)
		case value.KindObject:
			rows = append(rows, v)
		default:
			return nil, kerr.TypeMismatch("object or array", v.Kind.String())
		}
		return rows, nil
	}
	for _, row := range stmt.Rows {
		obj := value.NewObject()
		env := ex.newEnv(ctx, arena, value.None())
		for i, col := range stmt.Columns {
			if i >= len(row) {
				break
			}
			v, err := eval.Eval(env, row[i])
			if err != nil {
				return nil, err
			}
			obj.Set(col, v)
		}
		rows = append(rows, value.ObjectVal(obj))
	}
	return rows, nil
}

// --- RELATE ---

func (ex *Executor) execRelate(ctx context.Context, arena *ast.Arena, stmt *ast.RelateStmt) (value.Value, error) {
	fromTargets, err := ex.resolveExprTarget(ctx, arena, stmt.From)
	if err != nil {
		return value.Value{}, err
	}
	toTargets, err := ex.resolveExprTarget(ctx, arena, stmt.To)
	if err != nil {
		return value.Value{}, err
	}
	var results []value.Value
	for _, from := range fromTargets {
		for _, to := range toTargets {
			id := value.Uuid(randomUUID())
			doc, err := ex.applyData(ctx, arena, value.ObjectVal(value.NewObject()), stmt.Data)
			if err != nil {
				return value.Value{}, err
			}
			obj := doc.ObjectRef()
			if obj == nil {
				obj = value.NewObject()
			}
			obj.Set("id", value.RecordIDVal(stmt.Edge, id))
			obj.Set("in", value.RecordIDVal(from.table, from.id))
			obj.Set("out", value.RecordIDVal(to.table, to.id))
			doc = value.ObjectVal(obj)

			rid := keys.Record(ex.NS, ex.DB, stmt.Edge, id)
			if ok, err := ex.checkPerm(ctx, VerbCreate, stmt.Edge, doc); err != nil {
				return value.Value{}, err
			} else if !ok {
				return value.Value{}, kerr.PermissionDenied(stmt.Edge, "create")
			}
			raw, err := EncodeRecord(doc)
			if err != nil {
				return value.Value{}, err
			}
			if err := ex.Tx.Put(ctx, rid, raw); err != nil {
				return value.Value{}, err
			}
			indexes, err := ex.tableIndexes(ctx, stmt.Edge)
			if err != nil {
				return value.Value{}, err
			}
			if err := ex.maintainIndexes(ctx, indexes, id, value.None(), doc); err != nil {
				return value.Value{}, err
			}
			ex.notify(ctx, stmt.Edge, MutationCreate, id, value.None(), doc)
			out, err := ex.projectOutput(ctx, arena, stmt.Output, value.None(), doc)
			if err != nil {
				return value.Value{}, err
			}
			results = append(results, out)
		}
	}
	return collapse(results), nil
}
