package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forbearing/stratadb/value"
)

func seedPeople(t *testing.T, ex *Executor) {
	t.Helper()
	run(t, ex, `CREATE person:1 SET name = "Tobie", age = 30, team = "core"`)
	run(t, ex, `CREATE person:2 SET name = "Jaime", age = 25, team = "core"`)
	run(t, ex, `CREATE person:3 SET name = "Amy", age = 40, team = "infra"`)
}

func TestExecSelectOrderByDesc(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()
	seedPeople(t, ex)

	results := run(t, ex, `SELECT name, age FROM person ORDER BY age DESC`)
	rows := results[0].ArrayVal()
	require.Len(t, rows, 3)
	first, _ := rows[0].ObjectRef().Get("name")
	last, _ := rows[2].ObjectRef().Get("name")
	assert.Equal(t, "Amy", first.Str())
	assert.Equal(t, "Jaime", last.Str())
}

func TestExecSelectStartLimit(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()
	seedPeople(t, ex)

	results := run(t, ex, `SELECT name FROM person ORDER BY age LIMIT 1 START 1`)
	rows := results[0].ArrayVal()
	require.Len(t, rows, 1)
	name, _ := rows[0].ObjectRef().Get("name")
	assert.Equal(t, "Tobie", name.Str())
}

func TestExecSelectGroupAll(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()
	seedPeople(t, ex)

	results := run(t, ex, `SELECT age FROM person GROUP ALL`)
	rows := results[0].ArrayVal()
	require.Len(t, rows, 1)
	ages, ok := rows[0].ObjectRef().Get("age")
	require.True(t, ok)
	assert.Len(t, ages.ArrayVal(), 3)
}

func TestExecSelectGroupByTeam(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()
	seedPeople(t, ex)

	results := run(t, ex, `SELECT team, age FROM person GROUP BY team`)
	rows := results[0].ArrayVal()
	require.Len(t, rows, 2)
	for _, row := range rows {
		team, _ := row.ObjectRef().Get("team")
		ages, _ := row.ObjectRef().Get("age")
		if team.Str() == "core" {
			assert.Len(t, ages.ArrayVal(), 2)
		} else {
			assert.Len(t, ages.ArrayVal(), 1)
		}
	}
}

func TestExecSelectParallelMultipleTargets(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()
	seedPeople(t, ex)

	results := run(t, ex, `SELECT name FROM person:1, person:3 PARALLEL`)
	rows := results[0].ArrayVal()
	assert.Len(t, rows, 2)
}

func TestExecSelectFetchResolvesRecordID(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	run(t, ex, `CREATE person:1 SET name = "Tobie"`)
	run(t, ex, `CREATE post:1 SET title = "Hello", author = person:1`)

	results := run(t, ex, `SELECT title, author FROM post:1 FETCH author`)
	rows := results[0].ArrayVal()
	require.Len(t, rows, 1)
	author, ok := rows[0].ObjectRef().Get("author")
	require.True(t, ok)
	require.Equal(t, value.KindObject, author.Kind)
	name, _ := author.ObjectRef().Get("name")
	assert.Equal(t, "Tobie", name.Str())
}
