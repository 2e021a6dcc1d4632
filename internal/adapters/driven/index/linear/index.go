// Package linear provides an exact-scan ANN index backed directly by the
// segment store. It is always correct and always available: the query
// planner falls back to it whenever the clustered index is absent or
// still building, with identical results and only latency differing.
package linear

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.AnnIndex = (*Index)(nil)

// Index scans every stored embedding that survives the scope filters and
// ranks by exact cosine similarity. It holds no state of its own; each
// probe reads the latest committed store snapshot.
type Index struct {
	store driven.SegmentStore
}

// New creates a store-backed exact scan index.
func New(store driven.SegmentStore) *Index {
	return &Index{store: store}
}

// Search scans the filtered embedding set and returns up to k hits, most
// similar first.
func (idx *Index) Search(ctx context.Context, query domain.Vector, k int, filters domain.SearchFilters) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	items, err := idx.store.ListEmbeddings(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("listing embeddings: %w", err)
	}

	hits := make([]driven.VectorHit, 0, len(items))
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(it.Embedding) != len(query) {
			continue // Corrupted row; maintenance cleanup will remove it.
		}
		hits = append(hits, driven.VectorHit{
			SegmentID:  it.ID,
			Similarity: domain.CosineSimilarity(query, it.Embedding),
		})
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

// Filtered reports that scope filters are pushed down into the store
// query, so the planner does not need to over-fetch.
func (idx *Index) Filtered() bool {
	return true
}
