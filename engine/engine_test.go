package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/iam"
	"github.com/forbearing/stratadb/kv/memkv"
	"github.com/forbearing/stratadb/script"
	"github.com/forbearing/stratadb/session"
	"github.com/forbearing/stratadb/value"
)

func TestEngineExecuteCreateAndSelect(t *testing.T) {
	e := New(memkv.New(), nil, nil, nil)
	defer e.Close()

	sess := &session.Context{}
	results, err := e.Execute(context.Background(), sess, "app", "main", `CREATE person SET name = "Tobie", age = 30`)
	require.NoError(t, err)
	require.Len(t, results, 1)
	name, ok := results[0].ObjectRef().Get("name")
	require.True(t, ok)
	assert.Equal(t, "Tobie", name.Str())

	results, err = e.Execute(context.Background(), sess, "app", "main", `SELECT * FROM person`)
	require.NoError(t, err)
	rows := results[0].ArrayVal()
	assert.Len(t, rows, 1)
}

func TestEngineExecuteCommitsAcrossCalls(t *testing.T) {
	e := New(memkv.New(), nil, nil, nil)
	defer e.Close()
	sess := &session.Context{}

	_, err := e.Execute(context.Background(), sess, "app", "main", `CREATE person:1 SET name = "Tobie"`)
	require.NoError(t, err)

	results, err := e.Execute(context.Background(), sess, "app", "main", `SELECT * FROM person:1`)
	require.NoError(t, err)
	rows := results[0].ArrayVal()
	require.Len(t, rows, 1)
	name, _ := rows[0].ObjectRef().Get("name")
	assert.Equal(t, "Tobie", name.Str())
}

func TestEngineExecuteCancelDiscardsWrites(t *testing.T) {
	e := New(memkv.New(), nil, nil, nil)
	defer e.Close()
	sess := &session.Context{}

	_, err := e.Execute(context.Background(), sess, "app", "main",
		`BEGIN TRANSACTION; CREATE person:1 SET name = "Tobie"; CANCEL TRANSACTION`)
	require.NoError(t, err)

	results, err := e.Execute(context.Background(), sess, "app", "main", `SELECT * FROM person`)
	require.NoError(t, err)
	assert.Len(t, results[0].ArrayVal(), 0)
}

func TestEngineExecuteParseErrorNeverOpensTransaction(t *testing.T) {
	e := New(memkv.New(), nil, nil, nil)
	defer e.Close()
	sess := &session.Context{}

	_, err := e.Execute(context.Background(), sess, "app", "main", `CREATE (((`)
	assert.Error(t, err)
}

func TestEngineSignInUserRoundTrip(t *testing.T) {
	e := New(memkv.New(), nil, nil, nil)
	defer e.Close()
	sess := &session.Context{}

	_, err := e.Execute(context.Background(), sess, "app", "main",
		`DEFINE USER tobie ON DATABASE PASSWORD "hunter2" ROLES owner`)
	require.NoError(t, err)

	signedIn, err := e.SignInUser(context.Background(), "app", "main", "tobie", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tobie", signedIn.Principal.Name)

	_, err = e.SignInUser(context.Background(), "app", "main", "tobie", "wrong")
	assert.Error(t, err)
}

func TestEngineIAMBlocksUnauthorizedWrites(t *testing.T) {
	e := New(memkv.New(), nil, nil, nil)
	defer e.Close()

	require.NoError(t, e.IAM().AssignRole("alice", "writer"))
	require.NoError(t, e.IAM().GrantScope("writer", iam.ScopeResource("app", "main", "person"), "select"))

	sess := &session.Context{Principal: iam.Principal{
		Name: "alice", Level: catalog.LevelDatabase, Namespace: "app", Database: "main",
	}}
	_, err := e.Execute(context.Background(), sess, "app", "main", `CREATE person SET name = "Blocked"`)
	assert.Error(t, err)
}

func TestEngineScriptHostWiredIntoHooks(t *testing.T) {
	called := false
	host := script.HostFunc(func(ctx context.Context, name string, args []value.Value) (value.Value, error) {
		called = true
		return value.Int64(42), nil
	})
	e := New(memkv.New(), nil, nil, host)
	defer e.Close()
	sess := &session.Context{}

	results, err := e.Execute(context.Background(), sess, "app", "main", `RETURN fn::double(21)`)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, called)
	assert.EqualValues(t, 42, results[0].Int())
}
