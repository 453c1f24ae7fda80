package unique

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/kv/memkv"
	"github.com/forbearing/stratadb/value"
)

func newMaintainer() *Maintainer {
	return New("n", "d", "person", catalog.Index{Name: "idx_email", Columns: []string{"email"}, Kind: catalog.IndexUnique})
}

func TestInsertThenLookupFindsRecord(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	m := newMaintainer()
	require.NoError(t, m.Insert(ctx, tx, value.Int64(1), []value.Value{value.String("a@x.com")}))

	id, ok, err := m.Lookup(ctx, tx, []value.Value{value.String("a@x.com")})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), id.Int())
}

func TestInsertConflictingValueFails(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	m := newMaintainer()
	require.NoError(t, m.Insert(ctx, tx, value.Int64(1), []value.Value{value.String("a@x.com")}))

	err = m.Insert(ctx, tx, value.Int64(2), []value.Value{value.String("a@x.com")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, kerr.ErrIndexExists))
}

func TestInsertSameRecordDifferentColumnSucceeds(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	m := newMaintainer()
	require.NoError(t, m.Insert(ctx, tx, value.Int64(1), []value.Value{value.String("a@x.com")}))
	require.NoError(t, m.Insert(ctx, tx, value.Int64(1), []value.Value{value.String("a@x.com")}))
}

func TestUpdateRejectsConflictLeavesOldEntry(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	m := newMaintainer()
	require.NoError(t, m.Insert(ctx, tx, value.Int64(1), []value.Value{value.String("a@x.com")}))
	require.NoError(t, m.Insert(ctx, tx, value.Int64(2), []value.Value{value.String("b@x.com")}))

	err = m.Update(ctx, tx, value.Int64(2), []value.Value{value.String("b@x.com")}, []value.Value{value.String("a@x.com")})
	require.Error(t, err)

	id, ok, err := m.Lookup(ctx, tx, []value.Value{value.String("b@x.com")})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), id.Int())
}

func TestRemoveThenLookupMisses(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	m := newMaintainer()
	require.NoError(t, m.Insert(ctx, tx, value.Int64(1), []value.Value{value.String("a@x.com")}))
	require.NoError(t, m.Remove(ctx, tx, value.Int64(1), []value.Value{value.String("a@x.com")}))

	_, ok, err := m.Lookup(ctx, tx, []value.Value{value.String("a@x.com")})
	require.NoError(t, err)
	assert.False(t, ok)
}
