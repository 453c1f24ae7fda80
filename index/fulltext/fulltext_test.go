package fulltext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/kv/memkv"
	"github.com/forbearing/stratadb/value"
)

func TestAnalyzeLowercasesAndSplitsPunctuation(t *testing.T) {
	toks := Analyze("Hello, World! Go-lang.")
	assert.Equal(t, []string{"hello", "world", "go", "lang"}, toks)
}

func newMaintainer() *Maintainer {
	return New("n", "d", "post", catalog.Index{Name: "idx_body", Columns: []string{"body"}, Kind: catalog.IndexFullText, BM25K1: 1.2, BM25B: 0.75})
}

func TestSearchRanksMoreRelevantDocHigher(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	m := newMaintainer()
	require.NoError(t, m.Index(ctx, tx, value.Int64(1), "the quick brown fox jumps over the lazy dog"))
	require.NoError(t, m.Index(ctx, tx, value.Int64(2), "fox fox fox everywhere, foxes love foxes"))
	require.NoError(t, m.Index(ctx, tx, value.Int64(3), "completely unrelated text about databases"))

	hits, err := m.Search(ctx, tx, "fox", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(2), hits[0].RecordID.Int())
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearchNoMatchesReturnsEmpty(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	m := newMaintainer()
	require.NoError(t, m.Index(ctx, tx, value.Int64(1), "hello world"))

	hits, err := m.Search(ctx, tx, "nonexistent", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRemoveDropsDocumentFromResults(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	m := newMaintainer()
	require.NoError(t, m.Index(ctx, tx, value.Int64(1), "hello world"))
	require.NoError(t, m.Remove(ctx, tx, value.Int64(1), "hello world"))

	hits, err := m.Search(ctx, tx, "hello", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestUpdateReplacesIndexedText(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	m := newMaintainer()
	require.NoError(t, m.Index(ctx, tx, value.Int64(1), "hello world"))
	require.NoError(t, m.Update(ctx, tx, value.Int64(1), "hello world", "goodbye moon"))

	hits, err := m.Search(ctx, tx, "hello", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = m.Search(ctx, tx, "goodbye", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestSearchLimitCapsResults(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	m := newMaintainer()
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, m.Index(ctx, tx, value.Int64(i), "common term"))
	}

	hits, err := m.Search(ctx, tx, "common", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}
