package parser

import (
	"testing"

	"github.com/forbearing/stratadb/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShowChangesBasic(t *testing.T) {
	n, _ := parseOne(t, "SHOW CHANGES FOR TABLE person")
	require.Equal(t, ast.KindShowChanges, n.Kind)
	stmt := n.Stmt.(*ast.ShowChangesStmt)
	assert.Equal(t, "person", stmt.Table)
	assert.Equal(t, ast.Nil, stmt.Since)
	assert.Equal(t, ast.Nil, stmt.Limit)
}

func TestParseShowChangesSinceAndLimit(t *testing.T) {
	n, _ := parseOne(t, "SHOW CHANGES FOR TABLE person SINCE 100 LIMIT 50")
	stmt := n.Stmt.(*ast.ShowChangesStmt)
	assert.Equal(t, "person", stmt.Table)
	assert.NotEqual(t, ast.Nil, stmt.Since)
	assert.NotEqual(t, ast.Nil, stmt.Limit)
}

func TestParseShowChangesMissingTableErrors(t *testing.T) {
	_, _, err := Parse("SHOW CHANGES FOR person", DefaultOptions())
	require.Error(t, err)
}
