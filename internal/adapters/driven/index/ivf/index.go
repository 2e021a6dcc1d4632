// Package ivf provides a clustered inverted-file ANN index.
//
// The embedding space is partitioned into K centroids; each stored vector
// is assigned to its nearest centroid's posting list. A query probes only
// the few nearest lists instead of every vector, trading a small recall
// loss for sub-linear latency. Retrieval here is advisory ranking, not
// authoritative lookup, so approximate recall is acceptable.
package ivf

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.AnnIndex = (*Index)(nil)

// Default tuning values. TargetClusterSize mirrors the original ivfflat
// deployment, which sized its lists for roughly one hundred vectors each.
const (
	// DefaultTargetClusterSize is the average posting-list size the
	// builder aims for when choosing K.
	DefaultTargetClusterSize = 100

	// DefaultProbes is the number of nearest centroids a query scans.
	DefaultProbes = 4

	// kmeansIterations bounds the Lloyd's refinement passes. Centroid
	// quality converges quickly on embedding data; more passes buy
	// little.
	kmeansIterations = 8
)

// Config tunes index construction and probing.
type Config struct {
	// TargetClusterSize sets the average vectors-per-cluster the builder
	// aims for. Values <= 0 use DefaultTargetClusterSize.
	TargetClusterSize int

	// Probes is the number of clusters scanned per query. Values <= 0
	// use DefaultProbes.
	Probes int
}

// entry is one indexed vector. Vectors are stored normalised so cosine
// similarity reduces to a dot product at probe time.
type entry struct {
	id  string
	vec domain.Vector
}

// Index is an inverted-file index over normalised embeddings.
// Safe for concurrent use: probes take a read lock, entry refreshes a
// write lock. Centroids are fixed after Build; refreshed entries are
// assigned to the nearest existing centroid.
type Index struct {
	mu        sync.RWMutex
	probes    int
	centroids []domain.Vector
	lists     [][]entry
	location  map[string]int // segment ID -> list index
}

// Build clusters a snapshot of embedded segments into an inverted-file
// index. The snapshot may be stale relative to the live store; the query
// planner re-validates hits against the store, so staleness only costs
// recall. Build honours ctx between clustering passes and abandons work
// on cancellation without side effects.
func Build(ctx context.Context, items []driven.EmbeddedSegment, cfg Config) (*Index, error) {
	target := cfg.TargetClusterSize
	if target <= 0 {
		target = DefaultTargetClusterSize
	}
	probes := cfg.Probes
	if probes <= 0 {
		probes = DefaultProbes
	}

	normalized := make([]entry, 0, len(items))
	dim := 0
	for _, it := range items {
		if dim == 0 {
			dim = len(it.Embedding)
		}
		if len(it.Embedding) != dim {
			continue // Corrupted row; maintenance cleanup will remove it.
		}
		normalized = append(normalized, entry{id: it.ID, vec: it.Embedding.Normalized()})
	}

	k := len(normalized) / target
	if k < 1 {
		k = 1
	}

	centroids, assignments, err := cluster(ctx, normalized, k)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		probes:    probes,
		centroids: centroids,
		lists:     make([][]entry, len(centroids)),
		location:  make(map[string]int, len(normalized)),
	}
	for i, e := range normalized {
		list := assignments[i]
		idx.lists[list] = append(idx.lists[list], e)
		idx.location[e.id] = list
	}
	return idx, nil
}

// cluster runs a bounded Lloyd's k-means over normalised vectors.
// Initial centroids are picked by even striding through the input, which
// is deterministic and good enough as a seeding strategy for ranking
// workloads.
func cluster(ctx context.Context, entries []entry, k int) ([]domain.Vector, []int, error) {
	if k > len(entries) {
		k = len(entries)
	}
	if k == 0 {
		return nil, nil, nil
	}

	centroids := make([]domain.Vector, k)
	stride := len(entries) / k
	for i := range centroids {
		src := entries[i*stride].vec
		c := make(domain.Vector, len(src))
		copy(c, src)
		centroids[i] = c
	}

	assignments := make([]int, len(entries))
	for iter := 0; iter < kmeansIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		changed := false
		for i, e := range entries {
			best := nearestCentroid(centroids, e.vec)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		// Recompute centroids as the mean of their members, renormalised.
		sums := make([]domain.Vector, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make(domain.Vector, len(entries[0].vec))
		}
		for i, e := range entries {
			c := assignments[i]
			counts[c]++
			for j, x := range e.vec {
				sums[c][j] += x
			}
		}
		for i := range centroids {
			if counts[i] == 0 {
				continue // Empty cluster keeps its previous centroid.
			}
			for j := range sums[i] {
				sums[i][j] /= float32(counts[i])
			}
			centroids[i] = sums[i].Normalized()
		}
	}

	return centroids, assignments, nil
}

// nearestCentroid returns the index of the centroid with the highest dot
// product against a normalised vector.
func nearestCentroid(centroids []domain.Vector, vec domain.Vector) int {
	best, bestDot := 0, -2.0
	for i, c := range centroids {
		if d := c.Dot(vec); d > bestDot {
			best, bestDot = i, d
		}
	}
	return best
}

// Search probes the nearest clusters and returns up to k hits, most
// similar first. Scores are exact cosine similarities.
func (idx *Index) Search(ctx context.Context, query domain.Vector, k int, _ domain.SearchFilters) ([]driven.VectorHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.centroids) == 0 {
		return nil, nil
	}

	q := query.Normalized()

	// Rank centroids by similarity to the query.
	order := make([]int, len(idx.centroids))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return idx.centroids[order[a]].Dot(q) > idx.centroids[order[b]].Dot(q)
	})

	probes := idx.probes
	if probes > len(order) {
		probes = len(order)
	}

	var hits []driven.VectorHit
	for _, list := range order[:probes] {
		for _, e := range idx.lists[list] {
			hits = append(hits, driven.VectorHit{
				SegmentID:  e.id,
				Similarity: domain.ClampScore(q.Dot(e.vec)),
			})
		}
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Similarity != hits[b].Similarity {
			return hits[a].Similarity > hits[b].Similarity
		}
		return hits[a].SegmentID < hits[b].SegmentID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Filtered reports that scope filters are NOT applied during the probe;
// the planner over-fetches and post-filters instead.
func (idx *Index) Filtered() bool {
	return false
}

// Upsert adds or refreshes a vector, assigning it to the nearest existing
// centroid. Keeps a Ready index current as embeddings arrive without a
// full rebuild.
func (idx *Index) Upsert(id string, vec domain.Vector) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(idx.centroids) == 0 {
		return
	}

	idx.removeLocked(id)

	normalized := vec.Normalized()
	list := nearestCentroid(idx.centroids, normalized)
	idx.lists[list] = append(idx.lists[list], entry{id: id, vec: normalized})
	idx.location[id] = list
}

// Remove drops a vector from the index. Removing an unknown ID is a no-op.
func (idx *Index) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
}

func (idx *Index) removeLocked(id string) {
	list, ok := idx.location[id]
	if !ok {
		return
	}
	entries := idx.lists[list]
	for i := range entries {
		if entries[i].id == id {
			idx.lists[list] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	delete(idx.location, id)
}

// Len returns the number of indexed vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.location)
}
