package changefeed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forbearing/stratadb/exec"
	"github.com/forbearing/stratadb/keys"
	"github.com/forbearing/stratadb/kv/memkv"
	"github.com/forbearing/stratadb/value"
)

func TestNotifyThenShowChangesRoundTrip(t *testing.T) {
	store := memkv.New()
	r := New(store)
	defer r.Close()

	rec := value.NewObject()
	rec.Set("name", value.String("Tobie"))
	r.Notify(context.Background(), "app", "main", "person", exec.MutationCreate, value.String("person:1"), value.None(), value.ObjectVal(rec))

	rows, err := r.ShowChanges(context.Background(), "app", "main", "person", 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	kind, ok := rows[0].ObjectRef().Get("kind")
	require.True(t, ok)
	assert.EqualValues(t, exec.MutationCreate, kind.Int())
}

func TestShowChangesRespectsSince(t *testing.T) {
	store := memkv.New()
	r := New(store)
	defer r.Close()

	r.Notify(context.Background(), "app", "main", "person", exec.MutationCreate, value.None(), value.None(), value.None())
	first, err := r.ShowChanges(context.Background(), "app", "main", "person", 0, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)
	vs, _ := first[0].ObjectRef().Get("versionstamp")

	r.Notify(context.Background(), "app", "main", "person", exec.MutationUpdate, value.None(), value.None(), value.None())

	rows, err := r.ShowChanges(context.Background(), "app", "main", "person", uint64(vs.Int())+1, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	kind, _ := rows[0].ObjectRef().Get("kind")
	assert.EqualValues(t, exec.MutationUpdate, kind.Int())
}

func TestShowChangesRespectsLimit(t *testing.T) {
	store := memkv.New()
	r := New(store)
	defer r.Close()

	for i := 0; i < 5; i++ {
		r.Notify(context.Background(), "app", "main", "person", exec.MutationCreate, value.None(), value.None(), value.None())
	}

	rows, err := r.ShowChanges(context.Background(), "app", "main", "person", 0, 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestShowChangesIsolatedPerTable(t *testing.T) {
	store := memkv.New()
	r := New(store)
	defer r.Close()

	r.Notify(context.Background(), "app", "main", "person", exec.MutationCreate, value.None(), value.None(), value.None())
	r.Notify(context.Background(), "app", "main", "post", exec.MutationCreate, value.None(), value.None(), value.None())

	rows, err := r.ShowChanges(context.Background(), "app", "main", "person", 0, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRetentionForDefaultsWhenUnset(t *testing.T) {
	store := memkv.New()
	r := New(store)
	defer r.Close()

	assert.Equal(t, defaultRetention, r.retentionFor("app", "main", "person"))

	r.SetRetention("app", "main", "person", time.Hour)
	assert.Equal(t, time.Hour, r.retentionFor("app", "main", "person"))
}

func TestSweepScopeDeletesStaleEntriesOnly(t *testing.T) {
	store := memkv.New()
	r := New(store)
	defer r.Close()
	r.SetRetention("app", "main", "person", time.Hour)

	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	staleVS := uint64(time.Now().Add(-2 * time.Hour).UnixNano())
	freshVS := uint64(time.Now().UnixNano())
	entry := value.NewObject()
	raw, err := exec.EncodeRecord(value.ObjectVal(entry))
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, keys.Change("app", "main", "person", staleVS), raw))
	require.NoError(t, tx.Put(ctx, keys.Change("app", "main", "person", freshVS), raw))
	require.NoError(t, tx.Commit(ctx))

	r.sweepScope("app:main:person")

	rows, err := r.ShowChanges(ctx, "app", "main", "person", 0, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSplitScopeRoundTrip(t *testing.T) {
	ns, db, tb := splitScope("app:main:person")
	assert.Equal(t, "app", ns)
	assert.Equal(t, "main", db)
	assert.Equal(t, "person", tb)

	ns, db, tb = splitScope("malformed")
	assert.Empty(t, ns)
	assert.Empty(t, db)
	assert.Empty(t, tb)
}
