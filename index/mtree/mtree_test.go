package mtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/value"
)

func newTree() *Tree {
	return New(catalog.Index{Name: "idx_vec", Dimension: 2, DistanceMetric: "euclidean", M: 4})
}

func TestSearchFindsExactNearest(t *testing.T) {
	tr := newTree()
	pts := map[int64][]float64{
		1: {0, 0}, 2: {10, 10}, 3: {0.1, 0.1}, 4: {20, 20}, 5: {9.9, 9.9},
		6: {30, 30}, 7: {-5, -5}, 8: {15, 15}, 9: {1, 1}, 10: {-1, -1},
	}
	for id, v := range pts {
		require.NoError(t, tr.Insert(value.Int64(id), v))
	}

	hits := tr.Search([]float64{0, 0}, 1)
	require.Len(t, hits, 1)
	assert.Contains(t, []int64{1, 3}, hits[0].RecordID.Int())
}

func TestSearchReturnsKNearestSortedByDistance(t *testing.T) {
	tr := newTree()
	for i := int64(0); i < 20; i++ {
		require.NoError(t, tr.Insert(value.Int64(i), []float64{float64(i), 0}))
	}
	hits := tr.Search([]float64{10, 0}, 3)
	require.Len(t, hits, 3)
	assert.Equal(t, int64(10), hits[0].RecordID.Int())
	assert.LessOrEqual(t, hits[0].Distance, hits[1].Distance)
	assert.LessOrEqual(t, hits[1].Distance, hits[2].Distance)
}

func TestInsertWrongDimensionErrors(t *testing.T) {
	tr := newTree()
	err := tr.Insert(value.Int64(1), []float64{1, 2, 3})
	require.Error(t, err)
}

func TestLenTracksInsertCount(t *testing.T) {
	tr := newTree()
	for i := int64(0); i < 15; i++ {
		require.NoError(t, tr.Insert(value.Int64(i), []float64{float64(i), float64(i)}))
	}
	assert.Equal(t, 15, tr.Len())
}

func TestRegistryGetOrCreateReturnsSameTree(t *testing.T) {
	reg := NewRegistry()
	ix := catalog.Index{Name: "idx_vec", Dimension: 2}
	t1 := reg.GetOrCreate("n", "d", "doc", ix)
	t2 := reg.GetOrCreate("n", "d", "doc", ix)
	assert.Same(t, t1, t2)
}
