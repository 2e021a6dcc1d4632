package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// AnnIndex answers nearest-neighbour probes over stored embeddings.
// Two implementations exist: an exact linear scan (always correct, always
// available) and a clustered inverted-file index (sub-linear, approximate).
// The query planner selects between them by index state; the choice is
// never visible to callers.
type AnnIndex interface {
	// Search returns up to k hits for the query vector, most similar
	// first. Similarity scores are exact cosine similarities computed
	// against stored vectors, clamped to [0, 1]; approximation affects
	// recall only, never scores.
	Search(ctx context.Context, query domain.Vector, k int, filters domain.SearchFilters) ([]VectorHit, error)

	// Filtered reports whether Search applies the scope filters during
	// the probe. When false the planner over-fetches and post-filters.
	Filtered() bool
}

// VectorHit is a similarity probe result.
type VectorHit struct {
	// SegmentID is the matched segment.
	SegmentID string

	// Similarity is the cosine similarity score (0-1).
	Similarity float64
}
