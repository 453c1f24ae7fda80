// Package exec implements the statement executor spec.md §4 describes:
// given a parsed ast.Arena and one or more top-level statement ids, it
// runs each statement against a kv.Transaction, maintains every
// secondary index a table defines, and produces the RETURN-clause output
// values. It is the one package that ties together catalog (definitions),
// planner (access paths), eval (expression evaluation), and index/*
// (secondary index maintenance) into a single request's execution.
//
// Permission checks, live-query delivery, change-feed appends, and
// script invocation are all supplied via Hooks rather than imported
// directly — the same indirection eval.Hooks uses to keep exec from
// depending on iam/livequery/changefeed/script, which in turn lets those
// packages depend on exec's result shapes without an import cycle.
package exec

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/eval"
	"github.com/forbearing/stratadb/index/hnsw"
	"github.com/forbearing/stratadb/index/mtree"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/keys"
	"github.com/forbearing/stratadb/kv"
	"github.com/forbearing/stratadb/value"
)

// Verb is one of the four record-level actions iam's permission checks
// and DEFINE TABLE/FIELD's PERMISSIONS clauses are evaluated against.
type Verb uint8

const (
	VerbSelect Verb = iota
	VerbCreate
	VerbUpdate
	VerbDelete
)

// MutationKind tags what changed for Hooks.Notify (livequery delivery,
// change-feed append).
type MutationKind uint8

const (
	MutationCreate MutationKind = iota
	MutationUpdate
	MutationDelete
)

// Hooks supplies the components exec has no business importing directly.
// CheckPermission is called once per record per Verb before the record is
// included in a result or mutated; a nil Hooks (or a nil CheckPermission)
// means "everything permitted", the right default for an embedding caller
// that hasn't wired iam yet. Notify fires once per committed mutation,
// after the owning statement's index maintenance succeeds. RunScript
// invokes the `fn::` script host for user-defined functions.
type Hooks struct {
	CheckPermission func(ctx context.Context, verb Verb, ns, db, table string, rec value.Value) (bool, error)
	Notify          func(ctx context.Context, ns, db, table string, kind MutationKind, id, before, after value.Value)
	RunScript       func(ctx context.Context, name string, args []value.Value) (value.Value, error)

	// RegisterLive/KillLive back LIVE SELECT/KILL. arena is handed to
	// RegisterLive because the registered query's WHERE/Fields ids are
	// only meaningful against the Arena they were parsed from, and
	// livequery re-evaluates them against every later mutation.
	RegisterLive func(ctx context.Context, ns, db, table string, diff bool, fields []ast.Field, where ast.ID, arena *ast.Arena) (value.Value, error)
	KillLive     func(ctx context.Context, queryID value.Value) error

	// ShowChanges backs SHOW CHANGES FOR TABLE ... SINCE ... LIMIT n,
	// returning each matching change-feed entry as an object with
	// "versionstamp"/"kind"/"id"/"before"/"after" fields.
	ShowChanges func(ctx context.Context, ns, db, table string, since uint64, limit int) ([]value.Value, error)
}

// Outcome reports what Run's caller should do with the transaction it
// handed in: OutcomeContinue means the script ran to completion (the
// caller decides commit/cancel itself, e.g. auto-commit a single
// statement), while OutcomeCommit/OutcomeCancel are explicit BEGIN/
// COMMIT/CANCEL markers the script itself issued.
type Outcome uint8

const (
	OutcomeContinue Outcome = iota
	OutcomeCommit
	OutcomeCancel
)

// Executor runs one statement list against one transaction/catalog scope.
// It is not safe for concurrent Run calls — a single Executor is scoped
// to one request the way the teacher's ServiceContext is scoped to one
// inbound call.
type Executor struct {
	Catalog *catalog.Store
	Tx      kv.Transaction
	NS, DB  string
	HNSW    *hnsw.Registry
	MTree   *mtree.Registry
	Hooks   *Hooks

	// Source is the statement-list source text Arena was parsed from.
	// DEFINE FIELD/TABLE/EVENT/ACCESS re-derive a catalog.Expr's source
	// by slicing Source at a node's Span rather than pretty-printing the
	// arena, since spec.md §3's catalog definitions must survive past
	// the defining statement's own Arena.
	Source string

	// Vars backs every $-prefixed variable for the lifetime of Run: LET
	// bindings, $auth/$before/$after/$value, and closure parameters all
	// live in this one flat map. spec.md §4.9 calls LET's target a
	// "session/context variable" rather than a block-scoped one, so a
	// single shared map (rather than a parent-chained Scope per block)
	// matches the language's own described semantics.
	Vars map[string]value.Value

	mu   sync.Mutex // serializes Tx access from index-maintenance fan-out
	pool *ants.Pool
}

// New builds an Executor. hnswReg/mtreeReg may be nil if the statement
// list is known not to touch any HNSW/MTREE index (e.g. catalog-only
// DEFINE statements); a nil registry used for vector-index maintenance
// surfaces as a programmer error via panic, not a silent no-op.
func New(cat *catalog.Store, tx kv.Transaction, ns, db string, hnswReg *hnsw.Registry, mtreeReg *mtree.Registry, hooks *Hooks) *Executor {
	return &Executor{
		Catalog: cat,
		Tx:      tx,
		NS:      ns,
		DB:      db,
		HNSW:    hnswReg,
		MTree:   mtreeReg,
		Hooks:   hooks,
		Vars:    make(map[string]value.Value),
	}
}

func (ex *Executor) indexPool() *ants.Pool {
	if ex.pool == nil {
		p, err := ants.NewPool(8)
		if err != nil {
			// Only fails on an invalid pool size, which 8 never is.
			panic(err)
		}
		ex.pool = p
	}
	return ex.pool
}

// Close releases background resources (the index-maintenance pool). Safe
// to call even if no pool was ever created.
func (ex *Executor) Close() {
	if ex.pool != nil {
		ex.pool.Release()
	}
}

// Run executes every statement in stmts in order against arena, returning
// one result value per statement that produces one (CREATE/UPDATE/DELETE/
// SELECT/INSERT/RELATE's RETURN output; DEFINE/REMOVE/LET/USE/etc. return
// value.None()) plus the transaction Outcome the caller should act on.
func (ex *Executor) Run(ctx context.Context, arena *ast.Arena, stmts []ast.ID) ([]value.Value, Outcome, error) {
	results := make([]value.Value, 0, len(stmts))
	for _, id := range stmts {
		v, outcome, err := ex.execStmt(ctx, arena, id)
		if err != nil {
			if cf, ok := kerr.AsControlFlow(err); ok && cf.Kind == kerr.FlowReturn {
				if rv, ok := cf.Value.(value.Value); ok {
					results = append(results, rv)
				}
				return results, OutcomeContinue, nil
			}
			return results, OutcomeContinue, err
		}
		results = append(results, v)
		if outcome != OutcomeContinue {
			return results, outcome, nil
		}
	}
	return results, OutcomeContinue, nil
}

func (ex *Executor) newEnv(ctx context.Context, arena *ast.Arena, doc value.Value) *eval.Env {
	env := &eval.Env{Arena: arena, Doc: doc, Vars: ex.Vars}
	env.Hooks = &eval.Hooks{
		SubQuery: func(stmtID ast.ID) (value.Value, error) {
			return ex.execSubQuery(ctx, arena, stmtID)
		},
		Edge: func(op ast.BinOp, base value.Value, table string, where ast.ID) (value.Value, error) {
			return ex.evalEdge(ctx, arena, op, base, table, where)
		},
		Script: func(name string, args []value.Value) (value.Value, error) {
			if ex.Hooks == nil || ex.Hooks.RunScript == nil {
				return value.Value{}, kerr.TypeMismatch("known function", "fn::"+name)
			}
			return ex.Hooks.RunScript(ctx, name, args)
		},
	}
	return env
}

// execStmt dispatches one top-level or nested statement id by its arena
// Kind, delegating to the per-statement-family files in this package.
func (ex *Executor) execStmt(ctx context.Context, arena *ast.Arena, id ast.ID) (value.Value, Outcome, error) {
	n := arena.Get(id)
	switch n.Kind {
	case ast.KindSelectStmt:
		v, err := ex.execSelect(ctx, arena, n.Stmt.(*ast.SelectStmt))
		return v, OutcomeContinue, err
	case ast.KindCreateStmt:
		v, err := ex.execCreate(ctx, arena, n.Stmt.(*ast.CreateStmt))
		return v, OutcomeContinue, err
	case ast.KindUpdateStmt, ast.KindUpsertStmt:
		v, err := ex.execUpdate(ctx, arena, n.Stmt.(*ast.UpdateStmt))
		return v, OutcomeContinue, err
	case ast.KindDeleteStmt:
		v, err := ex.execDelete(ctx, arena, n.Stmt.(*ast.DeleteStmt))
		return v, OutcomeContinue, err
	case ast.KindInsertStmt:
		v, err := ex.execInsert(ctx, arena, n.Stmt.(*ast.InsertStmt))
		return v, OutcomeContinue, err
	case ast.KindRelateStmt:
		v, err := ex.execRelate(ctx, arena, n.Stmt.(*ast.RelateStmt))
		return v, OutcomeContinue, err
	case ast.KindDefineNamespace, ast.KindDefineDatabase, ast.KindDefineTable,
		ast.KindDefineField, ast.KindDefineIndex, ast.KindDefineUser,
		ast.KindDefineEvent, ast.KindDefineAccess:
		err := ex.execDefine(ctx, arena, n)
		return value.None(), OutcomeContinue, err
	case ast.KindRemoveStmt:
		err := ex.execRemove(ctx, n.Stmt.(*ast.RemoveStmt))
		return value.None(), OutcomeContinue, err
	case ast.KindAlterTable:
		err := ex.execAlterTable(ctx, arena, n.Stmt.(*ast.AlterTableStmt))
		return value.None(), OutcomeContinue, err
	case ast.KindBeginStmt:
		return value.None(), OutcomeContinue, nil
	case ast.KindCommitStmt:
		return value.None(), OutcomeCommit, nil
	case ast.KindCancelStmt:
		return value.None(), OutcomeCancel, nil
	case ast.KindThrowStmt:
		stmt := n.Stmt.(*ast.ThrowStmt)
		msg, err := eval.Eval(ex.newEnv(ctx, arena, value.None()), stmt.Message)
		if err != nil {
			return value.Value{}, OutcomeContinue, err
		}
		return value.Value{}, OutcomeContinue, kerr.Thrown(msg.String())
	case ast.KindLetStmt:
		return value.None(), OutcomeContinue, ex.execLet(ctx, arena, n.Stmt.(*ast.LetStmt))
	case ast.KindUseStmt:
		stmt := n.Stmt.(*ast.UseStmt)
		if stmt.Namespace != "" {
			ex.NS = stmt.Namespace
		}
		if stmt.Database != "" {
			ex.DB = stmt.Database
		}
		return value.None(), OutcomeContinue, nil
	case ast.KindBlockStmt:
		v, err := ex.execBlockValue(ctx, arena, n.Stmt.(*ast.BlockStmt))
		return v, OutcomeContinue, err
	case ast.KindIfStmt:
		v, err := ex.execIf(ctx, arena, n.Stmt.(*ast.IfStmt))
		return v, OutcomeContinue, err
	case ast.KindForStmt:
		v, err := ex.execFor(ctx, arena, n.Stmt.(*ast.ForStmt))
		return v, OutcomeContinue, err
	case ast.KindBreakStmt:
		return value.Value{}, OutcomeContinue, kerr.ControlFlow(kerr.FlowBreak, nil)
	case ast.KindContinueStmt:
		return value.Value{}, OutcomeContinue, kerr.ControlFlow(kerr.FlowContinue, nil)
	case ast.KindReturnStmt:
		stmt := n.Stmt.(*ast.ReturnStmt)
		v, err := eval.Eval(ex.newEnv(ctx, arena, value.None()), stmt.Expr)
		if err != nil {
			return value.Value{}, OutcomeContinue, err
		}
		return value.Value{}, OutcomeContinue, kerr.ControlFlow(kerr.FlowReturn, v)
	case ast.KindKillStmt:
		return value.None(), OutcomeContinue, ex.execKill(ctx, arena, n.Stmt.(*ast.KillStmt))
	case ast.KindLiveStmt:
		v, err := ex.execLive(ctx, arena, n.Stmt.(*ast.LiveStmt))
		return v, OutcomeContinue, err
	case ast.KindShowChanges:
		v, err := ex.execShowChanges(ctx, arena, n.Stmt.(*ast.ShowChangesStmt))
		return v, OutcomeContinue, err
	default:
		return value.Value{}, OutcomeContinue, kerr.TypeMismatch("executable statement", fmt.Sprintf("ast kind %d", n.Kind))
	}
}

// execSubQuery runs a nested statement (always a single statement id,
// typically a SelectStmt) and returns its result value exactly as
// execStmt produces it. Rows are not folded: an empty result does not
// become NONE and a single row is not unwrapped.
func (ex *Executor) execSubQuery(ctx context.Context, arena *ast.Arena, stmtID ast.ID) (value.Value, error) {
	v, _, err := ex.execStmt(ctx, arena, stmtID)
	return v, err
}

// evalEdge walks a graph edge: op selects direction (-> out, <- in, <->
// both), table is the edge (RELATION) table, base is the anchoring
// record's id, and where optionally filters candidate edge records. It
// returns an array of the opposite endpoint's record id for every
// matching edge record in table, found via a full scan of table (no
// edge-specific secondary index exists to narrow this, since RELATE
// records are regular table records as far as index/* is concerned).
func (ex *Executor) evalEdge(ctx context.Context, arena *ast.Arena, op ast.BinOp, base value.Value, table string, where ast.ID) (value.Value, error) {
	if base.Kind != value.KindRecordID {
		return value.Value{}, kerr.TypeMismatch("record id", base.Kind.String())
	}
	var out []value.Value
	err := ex.scanTable(ctx, table, func(id, rec value.Value) (bool, error) {
		in, _ := rec.ObjectRef().Get("in")
		outField, _ := rec.ObjectRef().Get("out")
		var other value.Value
		matched := false
		switch op {
		case ast.OpOutgoing:
			if recordIDEqual(in, base) {
				other, matched = outField, true
			}
		case ast.OpIncoming:
			if recordIDEqual(outField, base) {
				other, matched = in, true
			}
		case ast.OpBoth:
			if recordIDEqual(in, base) {
				other, matched = outField, true
			} else if recordIDEqual(outField, base) {
				other, matched = in, true
			}
		}
		if !matched {
			return true, nil
		}
		if where != ast.Nil {
			env := ex.newEnv(ctx, arena, rec)
			cond, err := eval.Eval(env, where)
			if err != nil {
				return false, err
			}
			if !cond.Truthy() {
				return true, nil
			}
		}
		out = append(out, other)
		return true, nil
	})
	if err != nil {
		return value.Value{}, err
	}
	return value.Array(out...), nil
}

// scanTable walks every record currently stored in table under the
// executor's namespace/database, decoding each and invoking fn with its
// id and document. fn returning false stops the scan early.
func (ex *Executor) scanTable(ctx context.Context, table string, fn func(id, rec value.Value) (bool, error)) error {
	prefix := keys.RecordPrefix(ex.NS, ex.DB, table)
	return ex.Tx.ScanPrefix(ctx, prefix, func(kvp kv.KeyValue) (bool, error) {
		id, _, err := keys.DecodeValue(kvp.Key[len(prefix):])
		if err != nil {
			return false, err
		}
		rec, err := DecodeRecord(kvp.Value)
		if err != nil {
			return false, err
		}
		return fn(id, rec)
	})
}

func recordIDEqual(a, b value.Value) bool {
	if a.Kind != value.KindRecordID || b.Kind != value.KindRecordID {
		return false
	}
	return a.RID().String() == b.RID().String()
}
