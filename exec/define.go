package exec

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/kerr"
)

// sourceOf slices ex.Source at id's span, recovering the exact text a
// catalog.Expr needs to become self-contained past this statement's own
// Arena. DEFINE's sub-expressions (DEFAULT/VALUE/ASSERT/PERMISSIONS/WHEN)
// have no arena-to-source pretty-printer in this package, so re-parsing
// the original slice is simpler and exact, at the cost of requiring the
// caller to keep Source in sync with Arena (engine does this by
// construction: both come from the same parser.Parse call).
func (ex *Executor) sourceOf(arena *ast.Arena, id ast.ID) string {
	if id == ast.Nil {
		return "NULL"
	}
	n := arena.Get(id)
	if n.Span.End > n.Span.Start && n.Span.End <= len(ex.Source) {
		return ex.Source[n.Span.Start:n.Span.End]
	}
	return "NULL"
}

func (ex *Executor) sourceOfBlock(arena *ast.Arena, ids []ast.ID) string {
	if len(ids) == 0 {
		return "{}"
	}
	first := arena.Get(ids[0]).Span
	last := arena.Get(ids[len(ids)-1]).Span
	if last.End > first.Start && last.End <= len(ex.Source) {
		return ex.Source[first.Start:last.End]
	}
	return "{}"
}

// convertPermissions re-derives each clause of an ast.Permissions into a
// catalog.Perm: Nil means NONE, a bare literal `true` means FULL, and
// anything else is stored as a catalog.Expr re-evaluated per record
// (spec.md §4.8's Specific(expr) case).
func (ex *Executor) convertPermissions(arena *ast.Arena, p ast.Permissions) (catalog.Permissions, error) {
	conv := func(id ast.ID) (catalog.Perm, error) {
		if id == ast.Nil {
			return catalog.Perm{}, nil
		}
		n := arena.Get(id)
		if n.Kind == ast.KindLiteral && n.Lit.Truthy() {
			return catalog.Perm{Full: true}, nil
		}
		expr, err := catalog.NewExpr(ex.sourceOf(arena, id))
		if err != nil {
			return catalog.Perm{}, err
		}
		return catalog.Perm{Expr: expr}, nil
	}
	sel, err := conv(p.Select)
	if err != nil {
		return catalog.Permissions{}, err
	}
	cre, err := conv(p.Create)
	if err != nil {
		return catalog.Permissions{}, err
	}
	upd, err := conv(p.Update)
	if err != nil {
		return catalog.Permissions{}, err
	}
	del, err := conv(p.Delete)
	if err != nil {
		return catalog.Permissions{}, err
	}
	return catalog.Permissions{Select: sel, Create: cre, Update: upd, Delete: del}, nil
}

func (ex *Executor) execDefine(ctx context.Context, arena *ast.Arena, n ast.Node) error {
	switch n.Kind {
	case ast.KindDefineNamespace:
		s := n.Stmt.(*ast.DefineNamespaceStmt)
		if s.IfNotEx {
			if ok, err := ex.Catalog.HasNamespace(ctx, s.Name); err != nil {
				return err
			} else if ok {
				return nil
			}
		}
		return ex.Catalog.PutNamespace(ctx, catalog.Namespace{Name: s.Name, Comment: s.Comment})
	case ast.KindDefineDatabase:
		s := n.Stmt.(*ast.DefineDatabaseStmt)
		if s.IfNotEx {
			if ok, err := ex.Catalog.HasDatabase(ctx, ex.NS, s.Name); err != nil {
				return err
			} else if ok {
				return nil
			}
		}
		return ex.Catalog.PutDatabase(ctx, catalog.Database{Namespace: ex.NS, Name: s.Name, Comment: s.Comment})
	case ast.KindDefineTable:
		s := n.Stmt.(*ast.DefineTableStmt)
		if s.IfNotEx {
			if ok, err := ex.Catalog.HasTable(ctx, ex.NS, ex.DB, s.Name); err != nil {
				return err
			} else if ok {
				return nil
			}
		}
		perms, err := ex.convertPermissions(arena, s.Permissions)
		if err != nil {
			return err
		}
		return ex.Catalog.PutTable(ctx, catalog.Table{
			Namespace: ex.NS, Database: ex.DB, Name: s.Name,
			SchemaFull:  s.SchemaFull,
			Kind:        catalog.ToCatalogTableKind(s.Kind),
			EnforcedIn:  s.EnforcedIn,
			EnforcedOut: s.EnforcedOut,
			Permissions: perms,
			Comment:     s.Comment,
		})
	case ast.KindDefineField:
		s := n.Stmt.(*ast.DefineFieldStmt)
		if s.IfNotEx {
			if _, err := ex.Catalog.GetField(ctx, ex.NS, ex.DB, s.Table, s.Name); err == nil {
				return nil
			}
		}
		perms, err := ex.convertPermissions(arena, s.Permissions)
		if err != nil {
			return err
		}
		f := catalog.Field{
			Namespace: ex.NS, Database: ex.DB, Table: s.Table, Name: s.Name,
			Flexible: s.Flexible, TypeName: s.TypeName, Permissions: perms, Comment: s.Comment,
		}
		if s.Default != ast.Nil {
			if f.Default, err = catalog.NewExpr(ex.sourceOf(arena, s.Default)); err != nil {
				return err
			}
		}
		if s.Value != ast.Nil {
			if f.Value, err = catalog.NewExpr(ex.sourceOf(arena, s.Value)); err != nil {
				return err
			}
		}
		if s.Assert != ast.Nil {
			if f.Assert, err = catalog.NewExpr(ex.sourceOf(arena, s.Assert)); err != nil {
				return err
			}
		}
		return ex.Catalog.PutField(ctx, f)
	case ast.KindDefineIndex:
		s := n.Stmt.(*ast.DefineIndexStmt)
		if s.IfNotEx {
			if _, err := ex.Catalog.GetIndex(ctx, ex.NS, ex.DB, s.Table, s.Name); err == nil {
				return nil
			}
		}
		ix := catalog.Index{
			Namespace: ex.NS, Database: ex.DB, Table: s.Table, Name: s.Name,
			Columns: s.Columns, Kind: catalog.ToCatalogIndexKind(s.Kind),
			BM25K1: s.BM25K1, BM25B: s.BM25B,
			Dimension: s.Dimension, DistanceMetric: s.DistanceMetric,
			M: s.M, EfConstruction: s.EfConstruction,
			Comment: s.Comment,
		}
		if err := ex.Catalog.PutIndex(ctx, ix); err != nil {
			return err
		}
		switch ix.Kind {
		case catalog.IndexHNSW:
			ex.HNSW.GetOrCreate(ix.Namespace, ix.Database, ix.Table, ix)
		case catalog.IndexMTree:
			ex.MTree.GetOrCreate(ix.Namespace, ix.Database, ix.Table, ix)
		}
		return nil
	case ast.KindDefineUser:
		s := n.Stmt.(*ast.DefineUserStmt)
		hash, err := bcrypt.GenerateFromPassword([]byte(s.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		level := catalog.ToCatalogLevel(s.Level)
		var ns, db string
		if level != catalog.LevelRoot {
			ns = ex.NS
		}
		if level == catalog.LevelDatabase {
			db = ex.DB
		}
		return ex.Catalog.PutUser(ctx, catalog.User{
			Namespace: ns, Database: db, Name: s.Name, Level: level,
			PassHash: string(hash), Roles: s.Roles, Comment: s.Comment,
		})
	case ast.KindDefineEvent:
		s := n.Stmt.(*ast.DefineEventStmt)
		when, err := catalog.NewExpr(ex.sourceOf(arena, s.When))
		if err != nil {
			return err
		}
		return ex.Catalog.PutEvent(ctx, catalog.Event{
			Namespace: ex.NS, Database: ex.DB, Table: s.Table, Name: s.Name,
			When: when, Then: ex.sourceOfBlock(arena, s.Then), Comment: s.Comment,
		})
	case ast.KindDefineAccess:
		s := n.Stmt.(*ast.DefineAccessStmt)
		a := catalog.Access{
			Namespace: ex.NS, Database: ex.DB, Name: s.Name,
			Level: catalog.ToCatalogLevel(s.Level), JWTSecret: s.JWTSecret, Comment: s.Comment,
		}
		var err error
		if s.Signup != ast.Nil {
			if a.Signup, err = catalog.NewExpr(ex.sourceOf(arena, s.Signup)); err != nil {
				return err
			}
		}
		if s.Signin != ast.Nil {
			if a.Signin, err = catalog.NewExpr(ex.sourceOf(arena, s.Signin)); err != nil {
				return err
			}
		}
		return ex.Catalog.PutAccess(ctx, a)
	default:
		return kerr.TypeMismatch("define statement", "unknown")
	}
}

func (ex *Executor) execRemove(ctx context.Context, s *ast.RemoveStmt) error {
	notFoundOK := func(err error) error {
		if s.IfExist && err != nil {
			return nil
		}
		return err
	}
	switch s.Target {
	case ast.RemoveNamespace:
		return notFoundOK(ex.Catalog.RemoveNamespace(ctx, s.Name))
	case ast.RemoveDatabase:
		return notFoundOK(ex.Catalog.RemoveDatabase(ctx, ex.NS, s.Name))
	case ast.RemoveTable:
		return notFoundOK(ex.Catalog.RemoveTable(ctx, ex.NS, ex.DB, s.Name))
	case ast.RemoveField:
		return notFoundOK(ex.Catalog.RemoveField(ctx, ex.NS, ex.DB, s.Table, s.Name))
	case ast.RemoveIndex:
		ex.HNSW.Drop(ex.NS, ex.DB, s.Table, s.Name)
		ex.MTree.Drop(ex.NS, ex.DB, s.Table, s.Name)
		return notFoundOK(ex.Catalog.RemoveIndex(ctx, ex.NS, ex.DB, s.Table, s.Name))
	case ast.RemoveUser:
		return notFoundOK(ex.Catalog.RemoveUser(ctx, ex.NS, ex.DB, s.Name))
	case ast.RemoveAccess:
		return notFoundOK(ex.Catalog.RemoveAccess(ctx, ex.NS, ex.DB, s.Name))
	case ast.RemoveEvent:
		return notFoundOK(ex.Catalog.RemoveEvent(ctx, ex.NS, ex.DB, s.Table, s.Name))
	default:
		return kerr.TypeMismatch("remove target", "unknown")
	}
}

func (ex *Executor) execAlterTable(ctx context.Context, arena *ast.Arena, s *ast.AlterTableStmt) error {
	t, err := ex.Catalog.GetTable(ctx, ex.NS, ex.DB, s.Name)
	if err != nil {
		return err
	}
	if s.SetSchemaFull != nil {
		t.SchemaFull = *s.SetSchemaFull
	}
	if s.Comment != nil {
		t.Comment = *s.Comment
	}
	if s.Permissions != nil {
		perms, err := ex.convertPermissions(arena, *s.Permissions)
		if err != nil {
			return err
		}
		t.Permissions = perms
	}
	return ex.Catalog.PutTable(ctx, t)
}
