package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forbearing/stratadb/value"
)

func TestExecShowChangesWithoutHooksIsNone(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	results := run(t, ex, `SHOW CHANGES FOR TABLE person`)
	require.Len(t, results, 1)
	assert.Equal(t, value.KindNone, results[0].Kind)
}

func TestExecShowChangesDelegatesToHook(t *testing.T) {
	var gotSince uint64
	var gotLimit int
	hooks := &Hooks{
		ShowChanges: func(ctx context.Context, ns, db, table string, since uint64, limit int) ([]value.Value, error) {
			gotSince = since
			gotLimit = limit
			return []value.Value{value.String("change-1")}, nil
		},
	}
	ex, _ := newExecutor(t, hooks)
	defer ex.Close()

	results := run(t, ex, `SHOW CHANGES FOR TABLE person SINCE 42 LIMIT 5`)
	require.Len(t, results, 1)
	rows := results[0].ArrayVal()
	require.Len(t, rows, 1)
	assert.Equal(t, "change-1", rows[0].Str())
	assert.EqualValues(t, 42, gotSince)
	assert.Equal(t, 5, gotLimit)
}

func TestExecShowChangesDefaultLimit(t *testing.T) {
	var gotLimit int
	hooks := &Hooks{
		ShowChanges: func(ctx context.Context, ns, db, table string, since uint64, limit int) ([]value.Value, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	ex, _ := newExecutor(t, hooks)
	defer ex.Close()

	run(t, ex, `SHOW CHANGES FOR TABLE person`)
	assert.Equal(t, showChangesDefaultLimit, gotLimit)
}
