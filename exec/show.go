package exec

import (
	"context"

	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/eval"
	"github.com/forbearing/stratadb/value"
)

const showChangesDefaultLimit = 100

// execShowChanges evaluates SINCE/LIMIT and delegates to Hooks.ShowChanges,
// returning NONE (not an error) when no changefeed is wired — the same
// "unconfigured feature is a no-op, not a failure" convention execLive/
// execKill use for an unwired livequery.
func (ex *Executor) execShowChanges(ctx context.Context, arena *ast.Arena, stmt *ast.ShowChangesStmt) (value.Value, error) {
	if ex.Hooks == nil || ex.Hooks.ShowChanges == nil {
		return value.None(), nil
	}

	var since uint64
	if stmt.Since != ast.Nil {
		v, err := eval.Eval(ex.newEnv(ctx, arena, value.None()), stmt.Since)
		if err != nil {
			return value.Value{}, err
		}
		since = sinceVersionstamp(v)
	}

	limit := showChangesDefaultLimit
	if stmt.Limit != ast.Nil {
		v, err := eval.Eval(ex.newEnv(ctx, arena, value.None()), stmt.Limit)
		if err != nil {
			return value.Value{}, err
		}
		if v.Kind == value.KindInt64 {
			limit = int(v.Int())
		}
	}

	rows, err := ex.Hooks.ShowChanges(ctx, ex.NS, ex.DB, stmt.Table, since, limit)
	if err != nil {
		return value.Value{}, err
	}
	return value.Array(rows...), nil
}

// sinceVersionstamp accepts either an integer versionstamp or a datetime,
// per spec.md §6's "SINCE (version|datetime)".
func sinceVersionstamp(v value.Value) uint64 {
	switch v.Kind {
	case value.KindInt64:
		return uint64(v.Int())
	case value.KindDatetime:
		return uint64(v.Time().UnixNano())
	default:
		return 0
	}
}
