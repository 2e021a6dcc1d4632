// Package driving provides interfaces for application entry points (primary/inbound ports).
package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// RetrievalService is the in-process contract consumed by ingestion,
// query, and maintenance collaborators. Recall is a library, not a network
// service; this interface is its entire boundary.
type RetrievalService interface {
	// CreateSegment deduplicates and stores a segment, returning its ID.
	// Calling it twice with identical (parentID, text) returns the same
	// ID and stores exactly one segment.
	CreateSegment(ctx context.Context, seg domain.NewSegment) (string, error)

	// GetByIDs returns found segments in reading order.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Segment, error)

	// ListByParent returns one page of a parent's segments plus the
	// parent's total count.
	ListByParent(ctx context.Context, parentID string, offset, limit int) ([]domain.Segment, int, error)

	// DeleteByParent cascades deletion of a parent document's segments
	// and orphans their index entries.
	DeleteByParent(ctx context.Context, parentID string) error

	// ApplyEmbeddings validates and applies a batch of embedding updates
	// as one atomic unit. If any vector has the wrong dimension the whole
	// batch fails with a *domain.BatchError and nothing is persisted.
	ApplyEmbeddings(ctx context.Context, updates []domain.EmbeddingUpdate) error

	// Search ranks stored segments by cosine similarity to the query
	// vector, scoped by filters. Read-only; safe to abandon via ctx.
	Search(ctx context.Context, query domain.Vector, opts domain.SearchOptions) ([]domain.SimilarityResult, error)

	// RebuildIndex rebuilds the ANN index off a snapshot of the store.
	// Queries keep working (via the previous index or a linear scan)
	// while the rebuild runs.
	RebuildIndex(ctx context.Context) error

	// Stats reports store health.
	Stats(ctx context.Context) (domain.StoreStats, error)

	// CleanupInvalidVectors removes segments with structurally invalid
	// embeddings and returns how many were removed.
	CleanupInvalidVectors(ctx context.Context) (int, error)
}
