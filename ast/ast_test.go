package ast

import (
	"testing"

	"github.com/forbearing/stratadb/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaNilIsInvalid(t *testing.T) {
	a := NewArena()
	n := a.Get(Nil)
	assert.Equal(t, KindInvalid, n.Kind)
}

func TestArenaLiteralRoundtrip(t *testing.T) {
	a := NewArena()
	id := a.Literal(Span{}, value.Int64(42))
	n := a.Get(id)
	require.Equal(t, KindLiteral, n.Kind)
	assert.Equal(t, int64(42), n.Lit.Int())
}

func TestArenaBinaryReferencesChildrenByID(t *testing.T) {
	a := NewArena()
	lhs := a.Literal(Span{}, value.Int64(1))
	rhs := a.Literal(Span{}, value.Int64(2))
	bin := a.Binary(Span{}, OpAdd, lhs, rhs)

	n := a.Get(bin)
	assert.Equal(t, lhs, n.A)
	assert.Equal(t, rhs, n.B)
	assert.Equal(t, int64(1), a.Get(n.A).Lit.Int())
	assert.Equal(t, int64(2), a.Get(n.B).Lit.Int())
}

func TestArenaStmtWrapping(t *testing.T) {
	a := NewArena()
	stmt := &SelectStmt{What: nil}
	id := a.AddStmt(Span{}, KindSelectStmt, stmt)
	n := a.Get(id)
	require.Equal(t, KindSelectStmt, n.Kind)
	got, ok := n.Stmt.(*SelectStmt)
	require.True(t, ok)
	assert.Same(t, stmt, got)
}

func TestRangeBoundsInclusivity(t *testing.T) {
	a := NewArena()
	start := a.Literal(Span{}, value.Int64(1))
	end := a.Literal(Span{}, value.Int64(5))
	id := a.RangeExpr(Span{}, start, end, true, false)
	si, ei := a.Get(id).RangeBounds()
	assert.True(t, si)
	assert.False(t, ei)
}
