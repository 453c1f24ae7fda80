package exec

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forbearing/stratadb/value"
)

func TestTargetsFromValueRecordID(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	key := value.Int64(1)
	ts, err := ex.targetsFromValue(value.RecordIDVal("person", key))
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, "person", ts[0].table)
	assert.False(t, ts[0].wholeTable)
}

func TestTargetsFromValueTableName(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	ts, err := ex.targetsFromValue(value.String("person"))
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.True(t, ts[0].wholeTable)
}

func TestTargetsFromValueArrayFansOut(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	arr := value.Array(
		value.RecordIDVal("person", value.Int64(1)),
		value.RecordIDVal("person", value.Int64(2)),
	)
	ts, err := ex.targetsFromValue(arr)
	require.NoError(t, err)
	assert.Len(t, ts, 2)
}

func TestTargetsFromValueObjectWithID(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	obj := value.NewObject()
	obj.Set("id", value.RecordIDVal("person", value.Int64(3)))
	ts, err := ex.targetsFromValue(value.ObjectVal(obj))
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, "person", ts[0].table)
}

func TestTargetsFromValueObjectWithoutIDErrors(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	obj := value.NewObject()
	obj.Set("name", value.String("no id here"))
	_, err := ex.targetsFromValue(value.ObjectVal(obj))
	require.Error(t, err)
}

func TestTargetsFromValueUnsupportedKindErrors(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	_, err := ex.targetsFromValue(value.Bool(true))
	require.Error(t, err)
}

func TestTargetsFromValueUuidIsNotARecordTarget(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	_, err := ex.targetsFromValue(value.Uuid(uuid.New()))
	require.Error(t, err)
}
