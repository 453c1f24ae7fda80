// Package catalog stores and resolves the definitions spec.md §3 calls
// "catalog containers": namespaces, databases, tables, fields, indexes,
// events, users, and access methods. Every definition is persisted as a
// JSON-encoded value under its own key (built by the keys package) inside
// the same kv.Transaction the calling statement is already running in, so
// a DEFINE/REMOVE participates in the statement's atomicity and a reader
// sees a consistent snapshot — "owned catalog snapshots cloned on read"
// per spec.md §9's cycle-avoidance note: a Store read always decodes a
// fresh value, never a shared pointer into another transaction's state.
package catalog

import (
	"context"
	"encoding/json"

	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/kv"
	"github.com/forbearing/stratadb/syn/parser"
)

// Expr is a catalog-owned expression: DEFAULT/VALUE/ASSERT clauses, the
// Specific(expr) permission case, DEFINE EVENT's WHEN condition, and
// DEFINE ACCESS's SIGNUP/SIGNIN clauses. A parser Arena is
// transient (one per statement), but a catalog definition outlives the
// statement that created it, so Expr stores its own self-contained
// single-expression Arena, re-parsed from Source on load.
type Expr struct {
	Source string
	arena  *ast.Arena
	root   ast.ID
}

// NewExpr parses source as a standalone expression, wrapped in a RETURN
// statement so the ordinary statement parser can produce it, then caches
// the resulting root id for repeated evaluation.
func NewExpr(source string) (Expr, error) {
	stmts, arena, err := parser.Parse("RETURN "+source, parser.DefaultOptions())
	if err != nil {
		return Expr{}, err
	}
	if len(stmts) != 1 {
		return Expr{}, kerr.ParseErr(kerr.Span{}, "expected exactly one expression")
	}
	ret := arena.Get(stmts[0]).Stmt.(*ast.ReturnStmt)
	return Expr{Source: source, arena: arena, root: ret.Expr}, nil
}

// Arena and Root expose the expression's backing arena/id for evaluation.
func (e Expr) Arena() *ast.Arena { return e.arena }
func (e Expr) Root() ast.ID      { return e.root }
func (e Expr) IsZero() bool      { return e.arena == nil }

func (e Expr) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Source)
}

func (e *Expr) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*e = Expr{}
		return nil
	}
	parsed, err := NewExpr(s)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// Permissions mirrors ast.Permissions but with catalog-owned Exprs instead
// of arena-local ast.IDs, so it survives past the defining statement.
type Permissions struct {
	Select Perm `json:"select"`
	Create Perm `json:"create"`
	Update Perm `json:"update"`
	Delete Perm `json:"delete"`
}

// Perm is one verb's permission value: None (zero value), Full, or a
// Specific boolean expression evaluated per-record (spec.md §4.8).
type Perm struct {
	Full bool `json:"full,omitempty"`
	Expr Expr `json:"expr,omitempty"`
}

func (p Perm) IsNone() bool    { return !p.Full && p.Expr.IsZero() }
func (p Perm) IsSpecific() bool { return !p.Full && !p.Expr.IsZero() }

// Store resolves and persists catalog definitions against one transaction.
type Store struct {
	tx kv.Transaction
}

func New(tx kv.Transaction) *Store { return &Store{tx: tx} }

func get[T any](ctx context.Context, tx kv.Getter, key []byte, notFound error, name string) (T, error) {
	var zero T
	raw, ok, err := tx.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, kerr.NotFound(notFound, name)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, err
	}
	return v, nil
}

func put(ctx context.Context, tx kv.Putter, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Put(ctx, key, raw)
}

func scanPrefix[T any](ctx context.Context, tx kv.Getter, prefix []byte) ([]T, error) {
	var out []T
	err := tx.ScanPrefix(ctx, prefix, func(kvp kv.KeyValue) (bool, error) {
		var v T
		if err := json.Unmarshal(kvp.Value, &v); err != nil {
			return false, err
		}
		out = append(out, v)
		return true, nil
	})
	return out, err
}
