package catalog

import (
	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/value"
)

// exprFromID slices id's span out of src and re-wraps it as a catalog Expr.
// Arena nodes only carry byte offsets into the statement that produced
// them, never a copy of the source text, so building a persisted Expr
// always needs the original src string alongside the arena/id pair.
func exprFromID(src string, arena *ast.Arena, id ast.ID) (Expr, error) {
	if id == ast.Nil {
		return Expr{}, nil
	}
	n := arena.Get(id)
	text := src[n.Span.Start:n.Span.End]
	return NewExpr(text)
}

func permFromID(src string, arena *ast.Arena, id ast.ID) (Perm, error) {
	if id == ast.Nil {
		return Perm{}, nil
	}
	n := arena.Get(id)
	if n.Kind == ast.KindLiteral && n.Lit.Kind == value.KindBool && n.Lit.Bool() {
		return Perm{Full: true}, nil
	}
	e, err := exprFromID(src, arena, id)
	if err != nil {
		return Perm{}, err
	}
	return Perm{Expr: e}, nil
}

// BuildPermissions converts an arena-local ast.Permissions (Select/Create/
// Update/Delete as Nil/literal-true/boolean-expr ast.IDs) into a catalog
// Permissions whose fields survive past the defining statement.
func BuildPermissions(src string, arena *ast.Arena, p ast.Permissions) (Permissions, error) {
	var out Permissions
	var err error
	if out.Select, err = permFromID(src, arena, p.Select); err != nil {
		return Permissions{}, err
	}
	if out.Create, err = permFromID(src, arena, p.Create); err != nil {
		return Permissions{}, err
	}
	if out.Update, err = permFromID(src, arena, p.Update); err != nil {
		return Permissions{}, err
	}
	if out.Delete, err = permFromID(src, arena, p.Delete); err != nil {
		return Permissions{}, err
	}
	return out, nil
}

// BuildField converts a parsed DefineFieldStmt into a persisted Field.
func BuildField(src string, arena *ast.Arena, ns, db string, stmt *ast.DefineFieldStmt) (Field, error) {
	def, err := exprFromID(src, arena, stmt.Default)
	if err != nil {
		return Field{}, err
	}
	val, err := exprFromID(src, arena, stmt.Value)
	if err != nil {
		return Field{}, err
	}
	assert, err := exprFromID(src, arena, stmt.Assert)
	if err != nil {
		return Field{}, err
	}
	perm, err := BuildPermissions(src, arena, stmt.Permissions)
	if err != nil {
		return Field{}, err
	}
	return Field{
		Namespace:   ns,
		Database:    db,
		Table:       stmt.Table,
		Name:        stmt.Name,
		Flexible:    stmt.Flexible,
		TypeName:    stmt.TypeName,
		Default:     def,
		Value:       val,
		Assert:      assert,
		Permissions: perm,
		Comment:     stmt.Comment,
	}, nil
}

// BuildTable converts a parsed DefineTableStmt into a persisted Table.
func BuildTable(src string, arena *ast.Arena, ns, db string, stmt *ast.DefineTableStmt) (Table, error) {
	perm, err := BuildPermissions(src, arena, stmt.Permissions)
	if err != nil {
		return Table{}, err
	}
	return Table{
		Namespace:   ns,
		Database:    db,
		Name:        stmt.Name,
		SchemaFull:  stmt.SchemaFull,
		Kind:        ToCatalogTableKind(stmt.Kind),
		EnforcedIn:  stmt.EnforcedIn,
		EnforcedOut: stmt.EnforcedOut,
		Permissions: perm,
		Comment:     stmt.Comment,
	}, nil
}

// BuildIndex converts a parsed DefineIndexStmt into a persisted Index.
func BuildIndex(ns, db string, stmt *ast.DefineIndexStmt) Index {
	return Index{
		Namespace:      ns,
		Database:       db,
		Table:          stmt.Table,
		Name:           stmt.Name,
		Columns:        append([]string(nil), stmt.Columns...),
		Kind:           ToCatalogIndexKind(stmt.Kind),
		BM25K1:         stmt.BM25K1,
		BM25B:          stmt.BM25B,
		Dimension:      stmt.Dimension,
		DistanceMetric: stmt.DistanceMetric,
		M:              stmt.M,
		EfConstruction: stmt.EfConstruction,
		Comment:        stmt.Comment,
	}
}

// BuildEvent converts a parsed DefineEventStmt into a persisted Event. The
// THEN block's statements are re-sliced from the first to the last
// statement's span so a single source string re-parses into an equivalent
// block on load.
func BuildEvent(src string, arena *ast.Arena, ns, db string, stmt *ast.DefineEventStmt) (Event, error) {
	when, err := exprFromID(src, arena, stmt.When)
	if err != nil {
		return Event{}, err
	}
	then := ""
	if len(stmt.Then) > 0 {
		first := arena.Get(stmt.Then[0]).Span
		last := arena.Get(stmt.Then[len(stmt.Then)-1]).Span
		then = src[first.Start:last.End]
	}
	return Event{
		Namespace: ns,
		Database:  db,
		Table:     stmt.Table,
		Name:      stmt.Name,
		When:      when,
		Then:      then,
		Comment:   stmt.Comment,
	}, nil
}

// BuildAccess converts a parsed DefineAccessStmt into a persisted Access.
func BuildAccess(src string, arena *ast.Arena, ns, db string, stmt *ast.DefineAccessStmt, duration string) (Access, error) {
	signup, err := exprFromID(src, arena, stmt.Signup)
	if err != nil {
		return Access{}, err
	}
	signin, err := exprFromID(src, arena, stmt.Signin)
	if err != nil {
		return Access{}, err
	}
	return Access{
		Namespace: ns,
		Database:  db,
		Name:      stmt.Name,
		Level:     ToCatalogLevel(stmt.Level),
		Signup:    signup,
		Signin:    signin,
		JWTSecret: stmt.JWTSecret,
		Duration:  duration,
		Comment:   stmt.Comment,
	}, nil
}
