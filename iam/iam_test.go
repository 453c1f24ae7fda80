package iam

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/exec"
	"github.com/forbearing/stratadb/kv/memkv"
	"github.com/forbearing/stratadb/value"
)

func newCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	store := memkv.New()
	tx, err := store.Begin(context.Background(), false)
	require.NoError(t, err)
	return catalog.New(tx)
}

func TestAllowRootBypassesEverything(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	cat := newCatalog(t)

	ok, err := c.Allow(context.Background(), cat, Principal{Name: "root", Level: catalog.LevelRoot}, exec.VerbDelete, "app", "main", "person", value.None())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllowMissingTableGrantsByDefault(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	cat := newCatalog(t)
	require.NoError(t, c.AssignRole("alice", "writer"))
	require.NoError(t, c.GrantScope("writer", ScopeResource("app", "main", "person"), "create"))

	p := Principal{Name: "alice", Level: catalog.LevelDatabase, Namespace: "app", Database: "main"}
	ok, err := c.Allow(context.Background(), cat, p, exec.VerbCreate, "app", "main", "person", value.None())
	require.NoError(t, err)
	assert.True(t, ok, "an undefined table has no PERMISSIONS clause to deny against")
}

func TestAllowDeniesWithoutScopeGrant(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	cat := newCatalog(t)

	p := Principal{Name: "bob", Level: catalog.LevelDatabase, Namespace: "app", Database: "main"}
	ok, err := c.Allow(context.Background(), cat, p, exec.VerbCreate, "app", "main", "person", value.None())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllowScopedButTablePermissionsNone(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	cat := newCatalog(t)
	require.NoError(t, cat.PutTable(context.Background(), catalog.Table{
		Namespace: "app", Database: "main", Name: "secret",
		Permissions: catalog.Permissions{Select: catalog.Perm{}},
	}))
	require.NoError(t, c.AssignRole("alice", "reader"))
	require.NoError(t, c.GrantScope("reader", ScopeResource("app", "main", "secret"), "select"))

	p := Principal{Name: "alice", Level: catalog.LevelDatabase, Namespace: "app", Database: "main"}
	ok, err := c.Allow(context.Background(), cat, p, exec.VerbSelect, "app", "main", "secret", value.None())
	require.NoError(t, err)
	assert.False(t, ok, "an empty Perm is IsNone and must deny")
}

func TestAllowSpecificExprBindsAuth(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	cat := newCatalog(t)

	expr, err := catalog.NewExpr(`$auth.name = "owner"`)
	require.NoError(t, err)
	require.NoError(t, cat.PutTable(context.Background(), catalog.Table{
		Namespace: "app", Database: "main", Name: "diary",
		Permissions: catalog.Permissions{Select: catalog.Perm{Expr: expr}},
	}))
	require.NoError(t, c.AssignRole("alice", "reader"))
	require.NoError(t, c.GrantScope("reader", ScopeResource("app", "main", "diary"), "select"))
	require.NoError(t, c.AssignRole("owner", "reader"))

	rec := value.NewObject()
	recV := value.ObjectVal(rec)

	p := Principal{Name: "alice", Level: catalog.LevelDatabase, Namespace: "app", Database: "main"}
	ok, err := c.Allow(context.Background(), cat, p, exec.VerbSelect, "app", "main", "diary", recV)
	require.NoError(t, err)
	assert.False(t, ok, "alice is not owner")

	owner := Principal{Name: "owner", Level: catalog.LevelDatabase, Namespace: "app", Database: "main"}
	ok, err = c.Allow(context.Background(), cat, owner, exec.VerbSelect, "app", "main", "diary", recV)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAdminRoleBypassesScopeCheck(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	cat := newCatalog(t)

	require.NoError(t, c.AssignRole("root-ish", "admin"))
	p := Principal{Name: "root-ish", Level: catalog.LevelDatabase, Namespace: "app", Database: "main"}
	ok, err := c.Allow(context.Background(), cat, p, exec.VerbDelete, "app", "main", "anything", value.None())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHooksClosureDelegatesToAllow(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	cat := newCatalog(t)
	require.NoError(t, c.AssignRole("alice", "writer"))
	require.NoError(t, c.GrantScope("writer", ScopeResource("app", "main", "person"), "create"))

	hook := c.Hooks(cat, Principal{Name: "alice", Level: catalog.LevelDatabase, Namespace: "app", Database: "main"})
	ok, err := hook(context.Background(), exec.VerbCreate, "app", "main", "person", value.None())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hook(context.Background(), exec.VerbDelete, "app", "main", "person", value.None())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevokeScopeRemovesAccess(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	cat := newCatalog(t)
	require.NoError(t, c.AssignRole("alice", "writer"))
	require.NoError(t, c.GrantScope("writer", ScopeResource("app", "main", "person"), "create"))
	p := Principal{Name: "alice", Level: catalog.LevelDatabase, Namespace: "app", Database: "main"}

	ok, err := c.Allow(context.Background(), cat, p, exec.VerbCreate, "app", "main", "person", value.None())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.RevokeScope("writer", ScopeResource("app", "main", "person"), "create"))
	ok, err = c.Allow(context.Background(), cat, p, exec.VerbCreate, "app", "main", "person", value.None())
	require.NoError(t, err)
	assert.False(t, ok)
}
