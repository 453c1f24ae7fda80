package exec

import (
	"context"

	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/eval"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/value"
)

// target is one resolved FROM/UPDATE/DELETE/CREATE destination: either a
// whole table (wholeTable true, id zero) or a single record id within
// table. A WhatExpr list resolves to zero or more targets, since a bare
// table name fans out to every matching record while a record id or an
// array of ids names specific rows.
type target struct {
	table      string
	wholeTable bool
	id         value.Value
}

// resolveWhat expands a statement's What list (one WhatExpr id per
// entry) into concrete targets.
//
// A bare table name parses as a plain KindIdent wrapped in a WhatExpr —
// there is no dedicated "table name" AST node (see parser's parseWhatList)
// — so generic eval.Eval cannot tell a table name from a field reference:
// evalIdent only consults Vars and then falls back to looking the name up
// as a field of the bound document, which is None() with no document
// bound. resolveExprTarget special-cases the shapes a WhatExpr can take
// before falling back to generic evaluation for the rest (params,
// subqueries, idioms).
func (ex *Executor) resolveWhat(ctx context.Context, arena *ast.Arena, what []ast.ID) ([]target, error) {
	var out []target
	for _, w := range what {
		n := arena.Get(w)
		inner := n.A
		if n.Kind != ast.KindWhatExpr {
			inner = w // tolerate a bare expr id, as some builders pass already-unwrapped ids
		}
		ts, err := ex.resolveExprTarget(ctx, arena, inner)
		if err != nil {
			return nil, err
		}
		out = append(out, ts...)
	}
	return out, nil
}

func (ex *Executor) resolveExprTarget(ctx context.Context, arena *ast.Arena, id ast.ID) ([]target, error) {
	n := arena.Get(id)
	switch n.Kind {
	case ast.KindIdent:
		return []target{{table: n.Str, wholeTable: true}}, nil
	case ast.KindRecordIDExpr:
		keyVal, err := eval.Eval(ex.newEnv(ctx, arena, value.None()), n.A)
		if err != nil {
			return nil, err
		}
		return []target{{table: n.Str, id: keyVal}}, nil
	case ast.KindArrayExpr:
		var out []target
		for _, item := range n.List {
			ts, err := ex.resolveExprTarget(ctx, arena, item)
			if err != nil {
				return nil, err
			}
			out = append(out, ts...)
		}
		return out, nil
	default:
		v, err := eval.Eval(ex.newEnv(ctx, arena, value.None()), id)
		if err != nil {
			return nil, err
		}
		return ex.targetsFromValue(v)
	}
}

// targetsFromValue dispatches on an already-evaluated value — the path
// taken for $params, subqueries, and idiom chains that produce a record
// id, table, string, array, or object carrying an "id" field.
func (ex *Executor) targetsFromValue(v value.Value) ([]target, error) {
	switch v.Kind {
	case value.KindRecordID:
		rid := v.RID()
		return []target{{table: rid.Table, id: rid.Key}}, nil
	case value.KindTable:
		return []target{{table: v.TableName(), wholeTable: true}}, nil
	case value.KindString:
		return []target{{table: v.Str(), wholeTable: true}}, nil
	case value.KindArray:
		var out []target
		for _, it := range v.ArrayVal() {
			ts, err := ex.targetsFromValue(it)
			if err != nil {
				return nil, err
			}
			out = append(out, ts...)
		}
		return out, nil
	case value.KindObject:
		if idv, ok := v.ObjectRef().Get("id"); ok {
			return ex.targetsFromValue(idv)
		}
		return nil, kerr.TypeMismatch("record target", "object without id")
	default:
		return nil, kerr.TypeMismatch("record target", v.Kind.String())
	}
}
