// Package hnsw implements an approximate nearest-neighbor vector index
// (spec.md §4.6's HNSW index kind): a hierarchical navigable small-world
// graph, hand-rolled per spec.md (this is the spec's own algorithm, not
// infrastructure a library would supply). Per-layer adjacency lives in
// `github.com/orcaman/concurrent-map/v2` maps, grounded on the teacher's
// high-fanout concurrent-map pattern elsewhere in the pack's storage-engine
// examples. The graph as a whole is still guarded by one RWMutex: Insert
// and Remove hold it exclusively and Search holds it shared, so searches
// wait while a writer inserts.
//
// Unlike index/btree and index/fulltext, a graph does not live inside a
// kv.Transaction: its adjacency structure only makes sense as a resident,
// mutable object, so a Graph is built once per (namespace, database,
// table, index) and reused across statements via Registry, the way the
// teacher's own in-process caches outlive any single request.
package hnsw

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/config"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/value"
)

// Distance computes the dissimilarity between two equal-length vectors;
// smaller is closer.
type Distance func(a, b []float64) float64

// Euclidean is the L2 distance.
func Euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Cosine is 1 minus cosine similarity, so 0 means identical direction.
func Cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// DistanceFor resolves a catalog.Index.DistanceMetric name, defaulting to
// Euclidean when unset or unrecognized.
func DistanceFor(name string) Distance {
	switch name {
	case "cosine", "COSINE":
		return Cosine
	default:
		return Euclidean
	}
}

type node struct {
	id        value.Value
	vec       []float64
	topLayer  int
	neighbors []cmap.ConcurrentMap[string, struct{}] // one per layer, 0..topLayer
}

// Graph is one HNSW vector index's live structure.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*node

	dim            int
	dist           Distance
	m              int
	efConstruction int
	maxElements    int
	evictOverflow  bool
	mlNorm         float64

	entry    string
	topLayer int
	rnd      *rand.Rand
}

// New builds a Graph sized and tuned from ix (falling back to
// config.Get().HNSW where ix leaves a field zero).
func New(ix catalog.Index) *Graph {
	cfg := config.Get().HNSW
	m := ix.M
	if m == 0 {
		m = cfg.M
	}
	ef := ix.EfConstruction
	if ef == 0 {
		ef = cfg.EfConstruction
	}
	return &Graph{
		nodes:          make(map[string]*node),
		dim:            ix.Dimension,
		dist:           DistanceFor(ix.DistanceMetric),
		m:              m,
		efConstruction: ef,
		maxElements:    cfg.MaxElements,
		evictOverflow:  cfg.EvictOnOverflow,
		mlNorm:         cfg.MLNormalization,
		topLayer:       -1,
		rnd:            rand.New(rand.NewSource(1)),
	}
}

func (g *Graph) randomLevel() int {
	ml := g.mlNorm
	if ml <= 0 {
		ml = 1.0 / math.Log(2)
	}
	return int(math.Floor(-math.Log(g.rnd.Float64()+1e-12) * ml))
}

// Insert adds id/vec to the graph. If the graph is at capacity and
// EvictOnOverflow is set, one existing node is evicted first: whichever
// node map iteration yields first, not necessarily the oldest or the least
// recently used. At capacity without EvictOnOverflow, Insert fails with
// kerr.ErrFeatureDisabled (spec.md §4.6's bounded graph size).
func (g *Graph) Insert(id value.Value, vec []float64) error {
	if len(vec) != g.dim && g.dim != 0 {
		return kerr.TypeMismatch("vector of dimension", "mismatched length")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	key := id.String()
	if _, exists := g.nodes[key]; exists {
		g.removeLocked(key)
	}
	if g.maxElements > 0 && len(g.nodes) >= g.maxElements {
		if !g.evictOverflow {
			return kerr.NotFound(kerr.ErrFeatureDisabled, "hnsw graph at capacity")
		}
		g.evictOldestLocked()
	}

	level := g.randomLevel()
	n := &node{id: id, vec: vec, topLayer: level, neighbors: make([]cmap.ConcurrentMap[string, struct{}], level+1)}
	for l := range n.neighbors {
		n.neighbors[l] = cmap.New[struct{}]()
	}
	g.nodes[key] = n

	if g.entry == "" {
		g.entry = key
		g.topLayer = level
		return nil
	}

	ep := g.entry
	for lc := g.topLayer; lc > level; lc-- {
		ep = g.greedyClosest(vec, ep, lc)
	}
	for lc := min(g.topLayer, level); lc >= 0; lc-- {
		cands := g.searchLayer(vec, []string{ep}, g.efConstruction, lc)
		mm := g.m
		if lc == 0 {
			mm = g.m * 2
		}
		chosen := selectNeighbors(cands, mm)
		for _, c := range chosen {
			n.neighbors[lc].Set(c.key, struct{}{})
			if other := g.nodes[c.key]; other != nil && lc < len(other.neighbors) {
				other.neighbors[lc].Set(key, struct{}{})
				g.pruneLocked(other, lc, mm)
			}
		}
		if len(cands) > 0 {
			ep = cands[0].key
		}
	}

	if level > g.topLayer {
		g.topLayer = level
		g.entry = key
	}
	return nil
}

func (g *Graph) pruneLocked(n *node, layer, mm int) {
	keys := n.neighbors[layer].Keys()
	if len(keys) <= mm {
		return
	}
	cands := make([]candidate, 0, len(keys))
	for _, k := range keys {
		if other := g.nodes[k]; other != nil {
			cands = append(cands, candidate{key: k, dist: g.dist(n.vec, other.vec)})
		}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	keep := selectNeighbors(cands, mm)
	kept := make(map[string]bool, len(keep))
	for _, c := range keep {
		kept[c.key] = true
	}
	for _, k := range keys {
		if !kept[k] {
			n.neighbors[layer].Remove(k)
		}
	}
}

// Remove deletes id from the graph.
func (g *Graph) Remove(id value.Value) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(id.String())
}

func (g *Graph) removeLocked(key string) {
	n, ok := g.nodes[key]
	if !ok {
		return
	}
	for lc, adj := range n.neighbors {
		for _, peerKey := range adj.Keys() {
			if peer := g.nodes[peerKey]; peer != nil && lc < len(peer.neighbors) {
				peer.neighbors[lc].Remove(key)
			}
		}
	}
	delete(g.nodes, key)
	if g.entry == key {
		g.entry = ""
		g.topLayer = -1
		for k, other := range g.nodes {
			g.entry = k
			g.topLayer = other.topLayer
			break
		}
	}
}

func (g *Graph) evictOldestLocked() {
	for k := range g.nodes {
		g.removeLocked(k)
		return
	}
}

type candidate struct {
	key  string
	dist float64
}

func (g *Graph) greedyClosest(q []float64, from string, layer int) string {
	best := from
	bestDist := g.dist(q, g.nodes[from].vec)
	changed := true
	for changed {
		changed = false
		n := g.nodes[best]
		if layer >= len(n.neighbors) {
			break
		}
		for _, k := range n.neighbors[layer].Keys() {
			other := g.nodes[k]
			if other == nil {
				continue
			}
			d := g.dist(q, other.vec)
			if d < bestDist {
				bestDist = d
				best = k
				changed = true
			}
		}
	}
	return best
}

// searchLayer runs a greedy best-first search within one layer starting
// from entryPoints, returning up to ef candidates sorted nearest-first.
func (g *Graph) searchLayer(q []float64, entryPoints []string, ef, layer int) []candidate {
	visited := make(map[string]bool)
	var candidates, result []candidate
	for _, ep := range entryPoints {
		n := g.nodes[ep]
		if n == nil || visited[ep] {
			continue
		}
		visited[ep] = true
		c := candidate{key: ep, dist: g.dist(q, n.vec)}
		candidates = append(candidates, c)
		result = append(result, c)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	for len(candidates) > 0 {
		cur := candidates[0]
		candidates = candidates[1:]
		if len(result) >= ef {
			worst := maxDist(result)
			if cur.dist > worst {
				break
			}
		}
		n := g.nodes[cur.key]
		if n == nil || layer >= len(n.neighbors) {
			continue
		}
		for _, k := range n.neighbors[layer].Keys() {
			if visited[k] {
				continue
			}
			visited[k] = true
			other := g.nodes[k]
			if other == nil {
				continue
			}
			d := g.dist(q, other.vec)
			result = append(result, candidate{key: k, dist: d})
			candidates = append(candidates, candidate{key: k, dist: d})
			sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].dist < result[j].dist })
	if len(result) > ef {
		result = result[:ef]
	}
	return result
}

func maxDist(cands []candidate) float64 {
	m := 0.0
	for _, c := range cands {
		if c.dist > m {
			m = c.dist
		}
	}
	return m
}

func selectNeighbors(cands []candidate, m int) []candidate {
	if len(cands) <= m {
		return cands
	}
	return cands[:m]
}

// Hit is one k-NN search result.
type Hit struct {
	RecordID value.Value
	Distance float64
}

// Search returns the k nearest neighbors of query, searching with the
// given ef (search-time candidate list size; spec.md §4.6's recall/speed
// knob, distinct from EfConstruction).
func (g *Graph) Search(query []float64, k, ef int) []Hit {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.entry == "" {
		return nil
	}
	if ef < k {
		ef = k
	}
	ep := g.entry
	for lc := g.topLayer; lc > 0; lc-- {
		ep = g.greedyClosest(query, ep, lc)
	}
	cands := g.searchLayer(query, []string{ep}, ef, 0)
	if len(cands) > k {
		cands = cands[:k]
	}
	hits := make([]Hit, len(cands))
	for i, c := range cands {
		hits[i] = Hit{RecordID: g.nodes[c.key].id, Distance: c.dist}
	}
	return hits
}

// Len reports the number of indexed vectors.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Registry keys live Graphs by (ns, db, table, index name) so planner/exec
// look up the same structure across statements instead of rebuilding it.
type Registry struct {
	graphs cmap.ConcurrentMap[string, *Graph]
}

func NewRegistry() *Registry {
	return &Registry{graphs: cmap.New[*Graph]()}
}

func (r *Registry) key(ns, db, table, index string) string {
	return ns + "\x00" + db + "\x00" + table + "\x00" + index
}

// GetOrCreate returns the Graph for (ns, db, table, ix.Name), building it
// from ix on first use.
func (r *Registry) GetOrCreate(ns, db, table string, ix catalog.Index) *Graph {
	k := r.key(ns, db, table, ix.Name)
	if g, ok := r.graphs.Get(k); ok {
		return g
	}
	g := New(ix)
	r.graphs.SetIfAbsent(k, g)
	existing, _ := r.graphs.Get(k)
	return existing
}

// Drop removes a graph, e.g. on REMOVE INDEX.
func (r *Registry) Drop(ns, db, table, index string) {
	r.graphs.Remove(r.key(ns, db, table, index))
}
