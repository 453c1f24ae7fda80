package catalog

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/kv/memkv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTx(t *testing.T) *Store {
	t.Helper()
	s := memkv.New()
	tx, err := s.Begin(context.Background(), false)
	require.NoError(t, err)
	return New(tx)
}

func TestNamespaceRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTx(t)

	require.NoError(t, c.PutNamespace(ctx, Namespace{Name: "app", Comment: "prod"}))
	got, err := c.GetNamespace(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, "app", got.Name)
	assert.Equal(t, "prod", got.Comment)
}

func TestNamespaceNotFound(t *testing.T) {
	ctx := context.Background()
	c := newTx(t)

	_, err := c.GetNamespace(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, kerr.ErrNsNotFound))
}

func TestNamespaceRemove(t *testing.T) {
	ctx := context.Background()
	c := newTx(t)

	require.NoError(t, c.PutNamespace(ctx, Namespace{Name: "app"}))
	ok, err := c.HasNamespace(ctx, "app")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.RemoveNamespace(ctx, "app"))
	ok, err = c.HasNamespace(ctx, "app")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDatabaseScopedByNamespace(t *testing.T) {
	ctx := context.Background()
	c := newTx(t)

	require.NoError(t, c.PutDatabase(ctx, Database{Namespace: "app", Name: "main"}))
	_, err := c.GetDatabase(ctx, "other", "main")
	require.Error(t, err)
	assert.True(t, errors.Is(err, kerr.ErrDbNotFound))

	got, err := c.GetDatabase(ctx, "app", "main")
	require.NoError(t, err)
	assert.Equal(t, "main", got.Name)
}

func TestTableListScopedToDatabase(t *testing.T) {
	ctx := context.Background()
	c := newTx(t)

	require.NoError(t, c.PutTable(ctx, Table{Namespace: "app", Database: "main", Name: "person"}))
	require.NoError(t, c.PutTable(ctx, Table{Namespace: "app", Database: "main", Name: "pet"}))
	require.NoError(t, c.PutTable(ctx, Table{Namespace: "app", Database: "other", Name: "widget"}))

	tbls, err := c.ListTables(ctx, "app", "main")
	require.NoError(t, err)
	require.Len(t, tbls, 2)
	names := []string{tbls[0].Name, tbls[1].Name}
	assert.ElementsMatch(t, []string{"person", "pet"}, names)
}

func TestTableRelationKindPersists(t *testing.T) {
	ctx := context.Background()
	c := newTx(t)

	require.NoError(t, c.PutTable(ctx, Table{
		Namespace: "app", Database: "main", Name: "likes",
		Kind: TableRelation, EnforcedIn: "person", EnforcedOut: "post",
	}))
	got, err := c.GetTable(ctx, "app", "main", "likes")
	require.NoError(t, err)
	assert.Equal(t, TableRelation, got.Kind)
	assert.Equal(t, "person", got.EnforcedIn)
	assert.Equal(t, "post", got.EnforcedOut)
}

func TestFieldWithExprsRoundTrips(t *testing.T) {
	ctx := context.Background()
	c := newTx(t)

	assertExpr, err := NewExpr("$value > 0")
	require.NoError(t, err)
	defaultExpr, err := NewExpr("0")
	require.NoError(t, err)

	require.NoError(t, c.PutField(ctx, Field{
		Namespace: "app", Database: "main", Table: "person", Name: "age",
		TypeName: "int", Default: defaultExpr, Assert: assertExpr,
	}))

	got, err := c.GetField(ctx, "app", "main", "person", "age")
	require.NoError(t, err)
	assert.Equal(t, "int", got.TypeName)
	require.False(t, got.Assert.IsZero())
	assert.Equal(t, "$value > 0", got.Assert.Source)
	require.NotNil(t, got.Assert.Arena())
}

func TestFieldAbsentExprStaysZero(t *testing.T) {
	ctx := context.Background()
	c := newTx(t)

	require.NoError(t, c.PutField(ctx, Field{Namespace: "app", Database: "main", Table: "person", Name: "name"}))
	got, err := c.GetField(ctx, "app", "main", "person", "name")
	require.NoError(t, err)
	assert.True(t, got.Default.IsZero())
	assert.True(t, got.Value.IsZero())
	assert.True(t, got.Assert.IsZero())
}

func TestIndexListByTable(t *testing.T) {
	ctx := context.Background()
	c := newTx(t)

	require.NoError(t, c.PutIndex(ctx, Index{
		Namespace: "app", Database: "main", Table: "person", Name: "idx_email",
		Columns: []string{"email"}, Kind: IndexUnique,
	}))
	require.NoError(t, c.PutIndex(ctx, Index{
		Namespace: "app", Database: "main", Table: "person", Name: "idx_vec",
		Columns: []string{"embedding"}, Kind: IndexHNSW, Dimension: 384, M: 16, EfConstruction: 200,
	}))

	ixs, err := c.ListIndexes(ctx, "app", "main", "person")
	require.NoError(t, err)
	require.Len(t, ixs, 2)
}

func TestIndexNotFound(t *testing.T) {
	ctx := context.Background()
	c := newTx(t)

	_, err := c.GetIndex(ctx, "app", "main", "person", "idx_missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, kerr.ErrIxNotFound))
}

func TestUserScopedByLevel(t *testing.T) {
	ctx := context.Background()
	c := newTx(t)

	require.NoError(t, c.PutUser(ctx, User{Name: "root", Level: LevelRoot, PassHash: "h"}))
	require.NoError(t, c.PutUser(ctx, User{Namespace: "app", Name: "nsadmin", Level: LevelNamespace, PassHash: "h"}))
	require.NoError(t, c.PutUser(ctx, User{Namespace: "app", Database: "main", Name: "dbuser", Level: LevelDatabase, PassHash: "h"}))

	root, err := c.GetUser(ctx, "", "", "root")
	require.NoError(t, err)
	assert.Equal(t, LevelRoot, root.Level)

	dbu, err := c.GetUser(ctx, "app", "main", "dbuser")
	require.NoError(t, err)
	assert.Equal(t, LevelDatabase, dbu.Level)

	nsUsers, err := c.ListUsers(ctx, "app", "")
	require.NoError(t, err)
	require.Len(t, nsUsers, 1)
	assert.Equal(t, "nsadmin", nsUsers[0].Name)
}

func TestAccessRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTx(t)

	signup, err := NewExpr("CREATE user SET email = $email")
	require.NoError(t, err)

	require.NoError(t, c.PutAccess(ctx, Access{
		Namespace: "app", Database: "main", Name: "user_access", Level: LevelDatabase,
		Signup: signup, JWTSecret: "secret", Duration: "24h0m0s",
	}))

	got, err := c.GetAccess(ctx, "app", "main", "user_access")
	require.NoError(t, err)
	assert.Equal(t, "secret", got.JWTSecret)
	assert.False(t, got.Signup.IsZero())
}

func TestAccessNotFound(t *testing.T) {
	ctx := context.Background()
	c := newTx(t)

	_, err := c.GetAccess(ctx, "app", "main", "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, kerr.ErrAccessNotFound))
}

func TestEventRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTx(t)

	when, err := NewExpr("$event = \"CREATE\"")
	require.NoError(t, err)

	require.NoError(t, c.PutEvent(ctx, Event{
		Namespace: "app", Database: "main", Table: "person", Name: "on_create",
		When: when, Then: "CREATE audit CONTENT $after",
	}))

	got, err := c.GetEvent(ctx, "app", "main", "person", "on_create")
	require.NoError(t, err)
	assert.Equal(t, "CREATE audit CONTENT $after", got.Then)
	assert.False(t, got.When.IsZero())
}

func TestEventRemoveAndList(t *testing.T) {
	ctx := context.Background()
	c := newTx(t)

	require.NoError(t, c.PutEvent(ctx, Event{Namespace: "app", Database: "main", Table: "person", Name: "e1", Then: "THROW \"x\""}))
	require.NoError(t, c.PutEvent(ctx, Event{Namespace: "app", Database: "main", Table: "person", Name: "e2", Then: "THROW \"y\""}))

	evs, err := c.ListEvents(ctx, "app", "main", "person")
	require.NoError(t, err)
	require.Len(t, evs, 2)

	require.NoError(t, c.RemoveEvent(ctx, "app", "main", "person", "e1"))
	evs, err = c.ListEvents(ctx, "app", "main", "person")
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "e2", evs[0].Name)
}

func TestPermFullVsSpecificVsNone(t *testing.T) {
	full := Perm{Full: true}
	assert.False(t, full.IsNone())
	assert.False(t, full.IsSpecific())

	expr, err := NewExpr("$auth.id = id")
	require.NoError(t, err)
	specific := Perm{Expr: expr}
	assert.False(t, specific.IsNone())
	assert.True(t, specific.IsSpecific())

	var none Perm
	assert.True(t, none.IsNone())
	assert.False(t, none.IsSpecific())
}

func TestExprMarshalUnmarshalJSON(t *testing.T) {
	e, err := NewExpr("1 + 1")
	require.NoError(t, err)

	raw, err := e.MarshalJSON()
	require.NoError(t, err)

	var got Expr
	require.NoError(t, got.UnmarshalJSON(raw))
	assert.Equal(t, "1 + 1", got.Source)
	require.NotNil(t, got.Arena())
}

func TestExprZeroValueMarshalsEmpty(t *testing.T) {
	var e Expr
	raw, err := e.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `""`, string(raw))

	var got Expr
	require.NoError(t, got.UnmarshalJSON(raw))
	assert.True(t, got.IsZero())
}
