package hnsw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/value"
)

func newGraph() *Graph {
	return New(catalog.Index{Name: "idx_vec", Dimension: 2, DistanceMetric: "euclidean", M: 8, EfConstruction: 32})
}

func TestSearchFindsNearestInsertedVector(t *testing.T) {
	g := newGraph()
	pts := map[int64][]float64{
		1: {0, 0},
		2: {10, 10},
		3: {0.1, 0.1},
		4: {20, 20},
		5: {9.9, 9.9},
	}
	for id, v := range pts {
		require.NoError(t, g.Insert(value.Int64(id), v))
	}

	hits := g.Search([]float64{0, 0}, 1, 16)
	require.Len(t, hits, 1)
	assert.Contains(t, []int64{1, 3}, hits[0].RecordID.Int())
}

func TestSearchReturnsKResults(t *testing.T) {
	g := newGraph()
	for i := int64(0); i < 20; i++ {
		require.NoError(t, g.Insert(value.Int64(i), []float64{float64(i), float64(i)}))
	}
	hits := g.Search([]float64{10, 10}, 5, 32)
	assert.Len(t, hits, 5)
}

func TestRemoveExcludesFromFutureSearches(t *testing.T) {
	g := newGraph()
	require.NoError(t, g.Insert(value.Int64(1), []float64{0, 0}))
	require.NoError(t, g.Insert(value.Int64(2), []float64{5, 5}))
	g.Remove(value.Int64(1))
	assert.Equal(t, 1, g.Len())

	hits := g.Search([]float64{0, 0}, 2, 16)
	for _, h := range hits {
		assert.NotEqual(t, int64(1), h.RecordID.Int())
	}
}

func TestInsertWrongDimensionErrors(t *testing.T) {
	g := newGraph()
	err := g.Insert(value.Int64(1), []float64{1, 2, 3})
	require.Error(t, err)
}

func TestCosineDistanceOfIdenticalDirectionIsZero(t *testing.T) {
	d := Cosine([]float64{1, 2, 3}, []float64{2, 4, 6})
	assert.InDelta(t, 0, d, 1e-9)
}

func TestEvictOnOverflowReplacesOldest(t *testing.T) {
	g := newGraph()
	g.maxElements = 2
	g.evictOverflow = true
	require.NoError(t, g.Insert(value.Int64(1), []float64{0, 0}))
	require.NoError(t, g.Insert(value.Int64(2), []float64{1, 1}))
	require.NoError(t, g.Insert(value.Int64(3), []float64{2, 2}))
	assert.Equal(t, 2, g.Len())
}

func TestRegistryGetOrCreateReturnsSameGraph(t *testing.T) {
	reg := NewRegistry()
	ix := catalog.Index{Name: "idx_vec", Dimension: 2}
	g1 := reg.GetOrCreate("n", "d", "doc", ix)
	g2 := reg.GetOrCreate("n", "d", "doc", ix)
	assert.Same(t, g1, g2)
}
