// Package mtree implements a metric-tree vector index (spec.md §4.6's
// MTREE index kind), sharing index/hnsw's lifecycle contract (a live,
// in-process structure keyed per (namespace, database, table, index) by a
// Registry rather than persisted through a kv.Transaction) but organizing
// vectors by covering-radius routing objects instead of a navigable
// small-world graph, so range/nearest-neighbor queries can prune whole
// subtrees via the triangle inequality instead of an approximate greedy
// walk — the classic M-tree trade of exact recall for worse high-
// dimensional scaling than HNSW. Hand-rolled per spec.md: this is the
// spec's own indexing algorithm, not a library concern.
package mtree

import (
	"sort"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/index/hnsw"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/value"
)

// Distance is shared with index/hnsw so both vector indexes score with the
// same distance functions for a given catalog.Index.DistanceMetric.
type Distance = hnsw.Distance

type entry struct {
	id     value.Value
	vec    []float64
	radius float64 // covering radius, 0 for leaf entries
	child  *node
}

type node struct {
	leaf    bool
	entries []entry
}

// Tree is one MTREE index's live structure.
type Tree struct {
	mu       sync.RWMutex
	root     *node
	dim      int
	dist     Distance
	capacity int
	size     int
}

// New builds a Tree sized from ix; capacity defaults to M when set, else a
// fixed node fan-out of 8.
func New(ix catalog.Index) *Tree {
	cap := ix.M
	if cap == 0 {
		cap = 8
	}
	return &Tree{
		root:     &node{leaf: true},
		dim:      ix.Dimension,
		dist:     hnsw.DistanceFor(ix.DistanceMetric),
		capacity: cap,
	}
}

// Insert adds id/vec to the tree.
func (t *Tree) Insert(id value.Value, vec []float64) error {
	if t.dim != 0 && len(vec) != t.dim {
		return kerr.TypeMismatch("vector of dimension", "mismatched length")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.size++
	newChild := t.insert(t.root, entry{id: id, vec: vec})
	if newChild != nil {
		left := entry{id: t.root.entries[0].id, vec: t.root.entries[0].vec, child: t.root, radius: t.coveringRadius(t.root, t.root.entries[0].vec)}
		right := entry{id: newChild.entries[0].id, vec: newChild.entries[0].vec, child: newChild, radius: t.coveringRadius(newChild, newChild.entries[0].vec)}
		t.root = &node{leaf: false, entries: []entry{left, right}}
	}
	return nil
}

// insert recursively inserts e into n, returning a sibling node if n
// overflowed and had to split, or nil if e fit without splitting.
func (t *Tree) insert(n *node, e entry) *node {
	if n.leaf {
		n.entries = append(n.entries, e)
		if len(n.entries) <= t.capacity {
			return nil
		}
		return t.splitLeaf(n)
	}

	best := 0
	bestDist := t.dist(e.vec, n.entries[0].vec)
	for i := 1; i < len(n.entries); i++ {
		d := t.dist(e.vec, n.entries[i].vec)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	child := n.entries[best].child
	newChild := t.insert(child, e)
	n.entries[best].radius = t.coveringRadius(child, n.entries[best].vec)
	if newChild == nil {
		return nil
	}
	n.entries = append(n.entries, entry{id: newChild.entries[0].id, vec: newChild.entries[0].vec, child: newChild, radius: t.coveringRadius(newChild, newChild.entries[0].vec)})
	if len(n.entries) <= t.capacity {
		return nil
	}
	return t.splitInternal(n)
}

// splitLeaf partitions an overflowing leaf's entries around the two
// mutually farthest points (the standard M-tree "promote" heuristic,
// simplified to a single farthest-pair pick rather than full mM-RAD*).
func (t *Tree) splitLeaf(n *node) *node {
	p1, p2 := t.farthestPair(n.entries)
	var left, right []entry
	for i, e := range n.entries {
		if i == p1 {
			left = append(left, e)
			continue
		}
		if i == p2 {
			right = append(right, e)
			continue
		}
		if t.dist(e.vec, n.entries[p1].vec) <= t.dist(e.vec, n.entries[p2].vec) {
			left = append(left, e)
		} else {
			right = append(right, e)
		}
	}
	n.entries = left
	return &node{leaf: true, entries: right}
}

func (t *Tree) splitInternal(n *node) *node {
	p1, p2 := t.farthestPair(n.entries)
	var left, right []entry
	for i, e := range n.entries {
		if i == p1 {
			left = append(left, e)
			continue
		}
		if i == p2 {
			right = append(right, e)
			continue
		}
		if t.dist(e.vec, n.entries[p1].vec) <= t.dist(e.vec, n.entries[p2].vec) {
			left = append(left, e)
		} else {
			right = append(right, e)
		}
	}
	n.entries = left
	return &node{leaf: false, entries: right}
}

func (t *Tree) farthestPair(entries []entry) (int, int) {
	bi, bj, bd := 0, 1, -1.0
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			d := t.dist(entries[i].vec, entries[j].vec)
			if d > bd {
				bd, bi, bj = d, i, j
			}
		}
	}
	return bi, bj
}

// coveringRadius returns the max distance from center to any point in n's
// subtree, used to keep a routing entry's pruning radius correct after
// insertion.
func (t *Tree) coveringRadius(n *node, center []float64) float64 {
	max := 0.0
	if n.leaf {
		for _, e := range n.entries {
			if d := t.dist(center, e.vec); d > max {
				max = d
			}
		}
		return max
	}
	for _, e := range n.entries {
		if d := t.dist(center, e.vec) + e.radius; d > max {
			max = d
		}
	}
	return max
}

// Hit is one k-NN search result.
type Hit struct {
	RecordID value.Value
	Distance float64
}

// Search returns the k nearest neighbors of query, pruning subtrees whose
// covering radius cannot contain anything closer than the current k-th
// best (the triangle-inequality bound that gives M-tree exact results).
func (t *Tree) Search(query []float64, k int) []Hit {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var found []Hit
	t.search(t.root, query, k, &found)
	sort.Slice(found, func(i, j int) bool { return found[i].Distance < found[j].Distance })
	if len(found) > k {
		found = found[:k]
	}
	return found
}

func (t *Tree) search(n *node, query []float64, k int, found *[]Hit) {
	if n.leaf {
		for _, e := range n.entries {
			*found = append(*found, Hit{RecordID: e.id, Distance: t.dist(query, e.vec)})
		}
		return
	}
	worst := kthBest(*found, k)
	for _, e := range n.entries {
		d := t.dist(query, e.vec)
		if worst >= 0 && d-e.radius > worst {
			continue
		}
		t.search(e.child, query, k, found)
	}
}

func kthBest(hits []Hit, k int) float64 {
	if len(hits) < k {
		return -1
	}
	sorted := append([]Hit(nil), hits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Distance < sorted[j].Distance })
	return sorted[k-1].Distance
}

// Len reports the number of indexed vectors.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Registry keys live Trees by (ns, db, table, index name), mirroring
// index/hnsw.Registry.
type Registry struct {
	trees cmap.ConcurrentMap[string, *Tree]
}

func NewRegistry() *Registry {
	return &Registry{trees: cmap.New[*Tree]()}
}

func (r *Registry) key(ns, db, table, index string) string {
	return ns + "\x00" + db + "\x00" + table + "\x00" + index
}

func (r *Registry) GetOrCreate(ns, db, table string, ix catalog.Index) *Tree {
	k := r.key(ns, db, table, ix.Name)
	if tr, ok := r.trees.Get(k); ok {
		return tr
	}
	r.trees.SetIfAbsent(k, New(ix))
	existing, _ := r.trees.Get(k)
	return existing
}

func (r *Registry) Drop(ns, db, table, index string) {
	r.trees.Remove(r.key(ns, db, table, index))
}
