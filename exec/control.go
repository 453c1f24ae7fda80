package exec

import (
	"context"

	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/eval"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/value"
)

// execLet evaluates expr and binds it into ex.Vars under name, visible to
// every statement after it for the rest of Run (spec.md §4.9's
// session/context variable, not a block-scoped one).
func (ex *Executor) execLet(ctx context.Context, arena *ast.Arena, stmt *ast.LetStmt) error {
	v, err := eval.Eval(ex.newEnv(ctx, arena, value.None()), stmt.Expr)
	if err != nil {
		return err
	}
	ex.Vars[stmt.Name] = v
	return nil
}

// execBlockValue runs every statement in a block in order, returning the
// last statement's value as the block's own value (the convention a
// closure body or THEN clause relies on to produce a result without an
// explicit RETURN). A control-flow error (BREAK/CONTINUE/RETURN) or a
// non-Continue Outcome (COMMIT/CANCEL inside the block) stops the block
// immediately and propagates to the caller, which is why FOR's loop body
// below unwraps FlowBreak/FlowContinue itself rather than letting them
// escape the loop.
func (ex *Executor) execBlockValue(ctx context.Context, arena *ast.Arena, stmt *ast.BlockStmt) (value.Value, error) {
	var last value.Value
	for _, id := range stmt.Stmts {
		v, outcome, err := ex.execStmt(ctx, arena, id)
		if err != nil {
			return value.Value{}, err
		}
		if outcome != OutcomeContinue {
			return v, nil
		}
		last = v
	}
	return last, nil
}

// execIf evaluates each condition in order (IF/ELSE IF/ELSE IF/.../ELSE),
// running the first matching block's value, or Else's if none match and
// an Else block is present.
func (ex *Executor) execIf(ctx context.Context, arena *ast.Arena, stmt *ast.IfStmt) (value.Value, error) {
	for i, condID := range stmt.Conds {
		cond, err := eval.Eval(ex.newEnv(ctx, arena, value.None()), condID)
		if err != nil {
			return value.Value{}, err
		}
		if cond.Truthy() {
			return ex.execStmtValue(ctx, arena, stmt.Blocks[i])
		}
	}
	if stmt.Else != ast.Nil {
		return ex.execStmtValue(ctx, arena, stmt.Else)
	}
	return value.None(), nil
}

// execStmtValue runs one statement id and returns its value, surfacing
// any non-Continue outcome's value the same way execBlockValue does for
// a nested BEGIN/COMMIT/CANCEL inside an IF/FOR body.
func (ex *Executor) execStmtValue(ctx context.Context, arena *ast.Arena, id ast.ID) (value.Value, error) {
	v, _, err := ex.execStmt(ctx, arena, id)
	return v, err
}

// execFor evaluates Iter once to an array and runs Body once per element,
// binding it to Var. BREAK stops the loop; CONTINUE skips to the next
// element; both are ordinary kerr.ControlFlowErr values execStmt produces
// for ast.KindBreakStmt/KindContinueStmt, unwrapped here rather than
// escaping to Run the way FlowReturn does.
func (ex *Executor) execFor(ctx context.Context, arena *ast.Arena, stmt *ast.ForStmt) (value.Value, error) {
	iter, err := eval.Eval(ex.newEnv(ctx, arena, value.None()), stmt.Iter)
	if err != nil {
		return value.Value{}, err
	}
	var items []value.Value
	switch iter.Kind {
	case value.KindArray:
		items = iter.ArrayVal()
	case value.KindNone:
		items = nil
	default:
		items = []value.Value{iter}
	}
	for _, item := range items {
		ex.Vars[stmt.Var] = item
		_, _, err := ex.execStmt(ctx, arena, stmt.Body)
		if err != nil {
			if cf, ok := kerr.AsControlFlow(err); ok {
				switch cf.Kind {
				case kerr.FlowBreak:
					return value.None(), nil
				case kerr.FlowContinue:
					continue
				}
			}
			return value.Value{}, err
		}
	}
	return value.None(), nil
}

// execKill evaluates QueryID and asks Hooks to tear down the matching
// live query. A nil Hooks (livequery not wired into this Executor) makes
// KILL a no-op rather than an error, the same default CheckPermission
// uses for an embedding caller that hasn't wired iam yet.
func (ex *Executor) execKill(ctx context.Context, arena *ast.Arena, stmt *ast.KillStmt) error {
	id, err := eval.Eval(ex.newEnv(ctx, arena, value.None()), stmt.QueryID)
	if err != nil {
		return err
	}
	if ex.Hooks == nil || ex.Hooks.KillLive == nil {
		return nil
	}
	return ex.Hooks.KillLive(ctx, id)
}

// execLive registers a live query via Hooks and returns its generated id.
// Field projection and change delivery for the registered query happen
// entirely inside livequery, driven by the Notify hook every mutating
// statement already calls — exec's only job here is handing over the
// query's shape (table, WHERE, fields, DIFF mode) once at registration.
func (ex *Executor) execLive(ctx context.Context, arena *ast.Arena, stmt *ast.LiveStmt) (value.Value, error) {
	if ex.Hooks == nil || ex.Hooks.RegisterLive == nil {
		return value.None(), nil
	}
	return ex.Hooks.RegisterLive(ctx, ex.NS, ex.DB, stmt.What, stmt.Diff, stmt.Fields, stmt.Where, arena)
}
