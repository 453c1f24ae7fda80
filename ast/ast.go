// Package ast defines the arena-indexed abstract syntax tree spec.md §4.2
// describes: every expression and statement node lives in one Arena slice
// and is referenced by its integer ID rather than by pointer, so a cyclic
// shape (a subquery referencing its enclosing statement's alias, a closure
// capturing an outer idiom) never needs Go pointer cycles or a GC-visible
// graph — it's just indices into a slice, per spec.md §9's design note.
package ast

import "github.com/forbearing/stratadb/value"

// ID indexes a node in an Arena. The zero ID is reserved as "absent" so a
// struct field of type ID can mean "no child" without an extra bool.
type ID int

const Nil ID = 0

// Kind tags what a Node actually is, since Arena stores a single Node
// union rather than per-kind slices (keeping insertion order stable and
// avoiding N separate ID spaces).
type Kind uint8

const (
	KindInvalid Kind = iota

	// expressions
	KindLiteral
	KindParam
	KindIdent
	KindIdiom
	KindBinary
	KindUnary
	KindFuncCall
	KindClosure
	KindArrayExpr
	KindObjectExpr
	KindRangeExpr
	KindCast
	KindIfExpr
	KindSubQuery
	KindEdgeExpr
	KindRecordIDExpr
	KindWhatExpr

	// statements
	KindSelectStmt
	KindCreateStmt
	KindUpdateStmt
	KindUpsertStmt
	KindDeleteStmt
	KindRelateStmt
	KindInsertStmt
	KindDefineNamespace
	KindDefineDatabase
	KindDefineTable
	KindDefineField
	KindDefineIndex
	KindDefineUser
	KindDefineEvent
	KindDefineAccess
	KindRemoveStmt
	KindAlterTable
	KindKillStmt
	KindLiveStmt
	KindShowChanges
	KindBeginStmt
	KindCommitStmt
	KindCancelStmt
	KindThrowStmt
	KindLetStmt
	KindUseStmt
	KindBlockStmt
	KindIfStmt
	KindForStmt
	KindBreakStmt
	KindContinueStmt
	KindReturnStmt
)

// Node is the union payload for one arena slot. Only the fields relevant
// to Kind are populated; this mirrors value.Value's tagged-union shape for
// the same reason (dispatch by switch, not by type assertion).
type Node struct {
	Kind Kind
	Span Span

	// scalar payloads
	Lit   value.Value
	Str   string  // ident/param name, function name, cast type name
	Op    BinOp   // KindBinary
	UnOp  UnaryOp // KindUnary

	// structural payloads (children referenced by ID)
	A, B, C ID   // generic child slots (operands, condition/then/else, ...)
	List    []ID // generic child list (array items, call args, block stmts)
	Pairs   []KV // object expr fields, DEFINE FIELD option lists, etc.

	Stmt any // *SelectStmt, *CreateStmt, ... — see stmt.go
}

// KV is one key/expr pair, used by object expressions and anywhere a
// statement clause is a set of named options.
type KV struct {
	Key string
	Val ID
}

// Span locates a node in source text for error reporting (spec.md §7).
type Span struct {
	Start, End int
	Line, Col  int
}

// BinOp enumerates binary operators (spec.md §4.2/§4.3).
type BinOp uint8

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpExactEq
	OpNeq
	OpAnyEq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
	OpContains
	OpContainsNot
	OpInside
	OpNotInside
	OpMatches
	OpOutgoing  // ->
	OpIncoming  // <-
	OpBoth      // <->
)

// UnaryOp enumerates unary operators.
type UnaryOp uint8

const (
	OpNeg UnaryOp = iota
	OpNot
)

// Arena owns every node of one compiled statement list. Arena is built
// once per PARSE call and then only read by the planner/executor.
type Arena struct {
	nodes []Node
}

func NewArena() *Arena {
	// index 0 is Nil/KindInvalid, so real nodes start at 1.
	return &Arena{nodes: make([]Node, 1, 64)}
}

func (a *Arena) add(n Node) ID {
	a.nodes = append(a.nodes, n)
	return ID(len(a.nodes) - 1)
}

// Get returns the node at id. Get(Nil) returns the zero Node with
// KindInvalid.
func (a *Arena) Get(id ID) Node {
	if int(id) < 0 || int(id) >= len(a.nodes) {
		return Node{}
	}
	return a.nodes[id]
}

// Set overwrites the node at id in place, used when a later parse stage
// (e.g. resolving a forward reference) needs to patch a node after
// insertion without changing its ID.
func (a *Arena) Set(id ID, n Node) {
	if int(id) > 0 && int(id) < len(a.nodes) {
		a.nodes[id] = n
	}
}

func (a *Arena) Len() int { return len(a.nodes) }

// --- expression constructors ---

func (a *Arena) Literal(span Span, v value.Value) ID {
	return a.add(Node{Kind: KindLiteral, Span: span, Lit: v})
}

func (a *Arena) Param(span Span, name string) ID {
	return a.add(Node{Kind: KindParam, Span: span, Str: name})
}

func (a *Arena) Ident(span Span, name string) ID {
	return a.add(Node{Kind: KindIdent, Span: span, Str: name})
}

// Idiom builds a field-access/path expression: base.List holds the
// successive path parts, each itself an ID (ident, index expr, ? graph
// edge, etc.), per spec.md §4.2's dot/bracket idiom chains.
func (a *Arena) Idiom(span Span, base ID, parts []ID) ID {
	return a.add(Node{Kind: KindIdiom, Span: span, A: base, List: parts})
}

func (a *Arena) Binary(span Span, op BinOp, lhs, rhs ID) ID {
	return a.add(Node{Kind: KindBinary, Span: span, Op: op, A: lhs, B: rhs})
}

func (a *Arena) Unary(span Span, op UnaryOp, operand ID) ID {
	return a.add(Node{Kind: KindUnary, Span: span, UnOp: op, A: operand})
}

func (a *Arena) FuncCall(span Span, name string, args []ID) ID {
	return a.add(Node{Kind: KindFuncCall, Span: span, Str: name, List: args})
}

func (a *Arena) Closure(span Span, params []string, body ID) ID {
	n := Node{Kind: KindClosure, Span: span, A: body}
	for _, p := range params {
		n.Pairs = append(n.Pairs, KV{Key: p})
	}
	return a.add(n)
}

func (a *Arena) ArrayExpr(span Span, items []ID) ID {
	return a.add(Node{Kind: KindArrayExpr, Span: span, List: items})
}

func (a *Arena) ObjectExpr(span Span, pairs []KV) ID {
	return a.add(Node{Kind: KindObjectExpr, Span: span, Pairs: pairs})
}

func (a *Arena) RangeExpr(span Span, start, end ID, startIncl, endIncl bool) ID {
	op := OpAdd // reuse A/B for bounds; inclusivity encoded via UnOp bitset
	var u UnaryOp
	if startIncl {
		u |= 1
	}
	if endIncl {
		u |= 2
	}
	return a.add(Node{Kind: KindRangeExpr, Span: span, A: start, B: end, Op: op, UnOp: u})
}

func (a *Arena) Cast(span Span, typeName string, operand ID) ID {
	return a.add(Node{Kind: KindCast, Span: span, Str: typeName, A: operand})
}

func (a *Arena) IfExpr(span Span, cond, then, els ID) ID {
	return a.add(Node{Kind: KindIfExpr, Span: span, A: cond, B: then, C: els})
}

// SubQuery wraps a nested statement ID (built via the parser's statement
// constructors in stmt.go) as an expression usable inside SELECT's
// field list or WHERE clause.
func (a *Arena) SubQuery(span Span, stmt ID) ID {
	return a.add(Node{Kind: KindSubQuery, Span: span, A: stmt})
}

// EdgeExpr represents a graph traversal step: base->table or
// base<-table or base<->table, optionally filtered by a WHERE id.
func (a *Arena) EdgeExpr(span Span, op BinOp, base ID, table string, where ID) ID {
	return a.add(Node{Kind: KindEdgeExpr, Span: span, Op: op, A: base, B: where, Str: table})
}

// RecordIDExpr builds `table:key`, where key is itself an expression
// (literal, range, array, or object) evaluated at statement time.
func (a *Arena) RecordIDExpr(span Span, table string, key ID) ID {
	return a.add(Node{Kind: KindRecordIDExpr, Span: span, Str: table, A: key})
}

// WhatExpr is a FROM/UPDATE/DELETE target: a table name, a record id
// expression, or a parenthesized subquery — spec.md §4.2's "What".
func (a *Arena) WhatExpr(span Span, target ID) ID {
	return a.add(Node{Kind: KindWhatExpr, Span: span, A: target})
}

// RangeBounds extracts a KindRangeExpr node's inclusivity flags.
func (n Node) RangeBounds() (startIncl, endIncl bool) {
	return n.UnOp&1 != 0, n.UnOp&2 != 0
}

// AddStmt inserts a statement node wrapping the given concrete *Stmt value
// (see stmt.go) tagged with kind, returning its arena ID.
func (a *Arena) AddStmt(span Span, kind Kind, stmt any) ID {
	return a.add(Node{Kind: kind, Span: span, Stmt: stmt})
}
