package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/index/hnsw"
	"github.com/forbearing/stratadb/index/mtree"
	"github.com/forbearing/stratadb/kv"
	"github.com/forbearing/stratadb/kv/memkv"
	"github.com/forbearing/stratadb/syn/parser"
	"github.com/forbearing/stratadb/value"
)

// newExecutor builds an Executor against a fresh in-memory transaction,
// returning the Executor and the transaction so a test can Commit/Cancel
// or inspect ex.Tx directly.
func newExecutor(t *testing.T, hooks *Hooks) (*Executor, kv.Transaction) {
	t.Helper()
	store := memkv.New()
	tx, err := store.Begin(context.Background(), false)
	require.NoError(t, err)
	cat := catalog.New(tx)
	ex := New(cat, tx, "app", "main", hnsw.NewRegistry(), mtree.NewRegistry(), hooks)
	return ex, tx
}

func run(t *testing.T, ex *Executor, src string) []value.Value {
	t.Helper()
	stmts, arena, err := parser.Parse(src, parser.DefaultOptions())
	require.NoError(t, err)
	ex.Source = src
	results, _, err := ex.Run(context.Background(), arena, stmts)
	require.NoError(t, err)
	return results
}

func TestExecCreateAndSelect(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	results := run(t, ex, `CREATE person SET name = "Tobie", age = 30`)
	require.Len(t, results, 1)
	created := results[0]
	require.Equal(t, value.KindObject, created.Kind)
	name, ok := created.ObjectRef().Get("name")
	require.True(t, ok)
	assert.Equal(t, "Tobie", name.Str())

	results = run(t, ex, `SELECT name, age FROM person WHERE age > 18`)
	require.Len(t, results, 1)
	rows := results[0].ArrayVal()
	require.Len(t, rows, 1)
	n, _ := rows[0].ObjectRef().Get("name")
	assert.Equal(t, "Tobie", n.Str())
}

func TestExecUpdateMerge(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	run(t, ex, `CREATE person:1 SET name = "Tobie", age = 30`)
	results := run(t, ex, `UPDATE person:1 MERGE { age: 31 }`)
	require.Len(t, results, 1)
	age, ok := results[0].ObjectRef().Get("age")
	require.True(t, ok)
	assert.EqualValues(t, 31, age.Int())
	name, _ := results[0].ObjectRef().Get("name")
	assert.Equal(t, "Tobie", name.Str())
}

func TestExecDelete(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	run(t, ex, `CREATE person:1 SET name = "Tobie"`)
	run(t, ex, `DELETE person:1`)
	results := run(t, ex, `SELECT * FROM person`)
	assert.Len(t, results[0].ArrayVal(), 0)
}

func TestExecUpsertCreatesWhenAbsent(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	results := run(t, ex, `UPSERT person:"new" SET name = "New"`)
	require.Len(t, results, 1)
	name, ok := results[0].ObjectRef().Get("name")
	require.True(t, ok)
	assert.Equal(t, "New", name.Str())
}

func TestExecInsertColumns(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	results := run(t, ex, `INSERT INTO person (name, age) VALUES ("amy", 30), ("bob", 40)`)
	require.Len(t, results, 1)
	rows := results[0].ArrayVal()
	require.Len(t, rows, 2)
	name0, _ := rows[0].ObjectRef().Get("name")
	assert.Equal(t, "amy", name0.Str())
}

func TestExecCreateDuplicateErrors(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	run(t, ex, `CREATE person:1 SET name = "Tobie"`)
	_, _, err := func() (value.Value, Outcome, error) {
		stmts, arena, perr := parser.Parse(`CREATE person:1 SET name = "Other"`, parser.DefaultOptions())
		require.NoError(t, perr)
		results, outcome, rerr := ex.Run(context.Background(), arena, stmts)
		if len(results) > 0 {
			return results[0], outcome, rerr
		}
		return value.Value{}, outcome, rerr
	}()
	require.Error(t, err)
}

func TestExecPermissionDenied(t *testing.T) {
	hooks := &Hooks{
		CheckPermission: func(ctx context.Context, verb Verb, ns, db, table string, rec value.Value) (bool, error) {
			return verb != VerbCreate, nil
		},
	}
	ex, _ := newExecutor(t, hooks)
	defer ex.Close()

	stmts, arena, err := parser.Parse(`CREATE person SET name = "Blocked"`, parser.DefaultOptions())
	require.NoError(t, err)
	ex.Source = `CREATE person SET name = "Blocked"`
	_, _, err = ex.Run(context.Background(), arena, stmts)
	require.Error(t, err)
}

func TestExecNotifyHookFires(t *testing.T) {
	var fired []MutationKind
	hooks := &Hooks{
		Notify: func(ctx context.Context, ns, db, table string, kind MutationKind, id, before, after value.Value) {
			fired = append(fired, kind)
		},
	}
	ex, _ := newExecutor(t, hooks)
	defer ex.Close()

	run(t, ex, `CREATE person:1 SET name = "Tobie"`)
	run(t, ex, `UPDATE person:1 SET name = "Tobie2"`)
	run(t, ex, `DELETE person:1`)
	require.Equal(t, []MutationKind{MutationCreate, MutationUpdate, MutationDelete}, fired)
}

func TestExecLetAndReturn(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	results := run(t, ex, `LET $x = 5; RETURN $x + 1`)
	require.Len(t, results, 2)
	assert.EqualValues(t, 6, results[1].Int())
}

func TestExecIfElse(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	results := run(t, ex, `LET $x = 10; IF $x > 5 THEN { LET $y = "big" } ELSE { LET $y = "small" }`)
	require.Len(t, results, 2)
	assert.Equal(t, "big", ex.Vars["y"].Str())
}

func TestExecForLoopAccumulates(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	run(t, ex, `FOR $n IN [1, 2, 3] { CREATE counter SET n = $n }`)
	results := run(t, ex, `SELECT * FROM counter`)
	assert.Len(t, results[0].ArrayVal(), 3)
}

func TestExecBeginCancelOutcome(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	stmts, arena, err := parser.Parse(`BEGIN TRANSACTION; CREATE person:1 SET name = "Tobie"; CANCEL TRANSACTION`, parser.DefaultOptions())
	require.NoError(t, err)
	ex.Source = "BEGIN TRANSACTION; CREATE person:1 SET name = \"Tobie\"; CANCEL TRANSACTION"
	_, outcome, err := ex.Run(context.Background(), arena, stmts)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancel, outcome)
}

func TestExecThrow(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	stmts, arena, err := parser.Parse(`THROW "boom"`, parser.DefaultOptions())
	require.NoError(t, err)
	ex.Source = `THROW "boom"`
	_, _, err = ex.Run(context.Background(), arena, stmts)
	require.Error(t, err)
}
