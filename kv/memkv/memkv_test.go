package memkv

import (
	"context"
	"testing"

	"github.com/forbearing/stratadb/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetCommit(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx, err := s.Begin(ctx, false)
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, []byte("a"), []byte("1")))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := s.Begin(ctx, true)
	require.NoError(t, err)
	v, ok, err := tx2.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)
}

func TestCancelDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx, err := s.Begin(ctx, false)
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, []byte("a"), []byte("1")))
	require.NoError(t, tx.Cancel(ctx))

	tx2, _ := s.Begin(ctx, true)
	_, ok, _ := tx2.Get(ctx, []byte("a"))
	assert.False(t, ok)
}

func TestReadOnlyRejectsWrite(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx, true)
	err := tx.Put(ctx, []byte("a"), []byte("1"))
	require.Error(t, err)
}

func TestScanOrdersKeys(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx, false)
	for _, k := range []string{"b", "a", "c"} {
		require.NoError(t, tx.Put(ctx, []byte(k), []byte(k)))
	}
	require.NoError(t, tx.Commit(ctx))

	tx2, _ := s.Begin(ctx, true)
	var got []string
	require.NoError(t, tx2.Scan(ctx, []byte("a"), nil, func(kv kv.KeyValue) (bool, error) {
		got = append(got, string(kv.Key))
		return true, nil
	}))
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestScanPrefix(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx, false)
	require.NoError(t, tx.Put(ctx, []byte("tbl/1"), []byte("x")))
	require.NoError(t, tx.Put(ctx, []byte("tbl/2"), []byte("y")))
	require.NoError(t, tx.Put(ctx, []byte("other/1"), []byte("z")))
	require.NoError(t, tx.Commit(ctx))

	tx2, _ := s.Begin(ctx, true)
	count := 0
	require.NoError(t, tx2.ScanPrefix(ctx, []byte("tbl/"), func(kv.KeyValue) (bool, error) {
		count++
		return true, nil
	}))
	assert.Equal(t, 2, count)
}

func TestLiveNotificationFiresOnCommit(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx, false)

	var got []kv.Mutation
	tx.RegisterLiveNotification([]byte("tbl/"), func(m kv.Mutation) {
		got = append(got, m)
	})
	require.NoError(t, tx.Put(ctx, []byte("tbl/1"), []byte("x")))
	require.NoError(t, tx.Commit(ctx))

	require.Len(t, got, 1)
	assert.Equal(t, kv.MutationPut, got[0].Kind)
}

func TestDeleteThenScanOmitsKey(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx, false)
	require.NoError(t, tx.Put(ctx, []byte("a"), []byte("1")))
	require.NoError(t, tx.Commit(ctx))

	tx2, _ := s.Begin(ctx, false)
	require.NoError(t, tx2.Delete(ctx, []byte("a")))
	require.NoError(t, tx2.Commit(ctx))

	tx3, _ := s.Begin(ctx, true)
	_, ok, _ := tx3.Get(ctx, []byte("a"))
	assert.False(t, ok)
}
