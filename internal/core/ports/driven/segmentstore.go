package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// SegmentStore persists segments and their embeddings.
// Backed by SQLite for durable storage; an in-memory adapter exists for
// tests. Implementations must be safe for concurrent use, and reads must
// operate on the latest committed snapshot without blocking writers.
type SegmentStore interface {
	// CreateSegment stores a new segment and returns its ID. The content
	// hash is computed from the normalised text; when a segment with the
	// same (parentID, contentHash) already exists the existing ID is
	// returned and nothing is written. The check-and-insert is atomic so
	// concurrent ingestion of overlapping content cannot create
	// duplicates. The boolean reports whether a new row was stored
	// (false when the call deduplicated).
	CreateSegment(ctx context.Context, seg domain.NewSegment) (string, bool, error)

	// GetByIDs returns the found segments in reading order: page, then
	// slide, then char-start, ties broken by insertion order. Missing IDs
	// are silently omitted; absence is not an error.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Segment, error)

	// ListByParent returns one page of a parent's segments in reading
	// order plus the parent's total segment count.
	ListByParent(ctx context.Context, parentID string, offset, limit int) ([]domain.Segment, int, error)

	// DeleteByParent removes all segments of a parent document and
	// returns the IDs that were removed, so index entries can be
	// orphaned.
	DeleteByParent(ctx context.Context, parentID string) ([]string, error)

	// ApplyEmbeddings attaches vectors to segments in a single
	// transaction. Entries targeting unknown segments are silent no-ops;
	// dimension validation happens before this is called. The store never
	// observes a partially applied batch.
	ApplyEmbeddings(ctx context.Context, updates []domain.EmbeddingUpdate) error

	// ListEmbeddings streams a snapshot of (id, embedding) pairs for all
	// segments with a non-nil embedding, optionally narrowed by filters.
	// Used for index builds and exact scans.
	ListEmbeddings(ctx context.Context, filters domain.SearchFilters) ([]EmbeddedSegment, error)

	// Stats reports store health for the maintenance collaborator.
	Stats(ctx context.Context) (domain.StoreStats, error)

	// CleanupInvalidVectors removes segments whose stored embedding blob
	// does not decode to exactly dim components, returning how many were
	// removed. This is a defensive repair for corrupted writes.
	CleanupInvalidVectors(ctx context.Context, dim int) (int, error)

	// Close releases resources.
	Close() error
}

// EmbeddedSegment pairs a segment ID with its stored embedding. It is the
// unit fed to index builds and exact scans.
type EmbeddedSegment struct {
	// ID is the segment ID.
	ID string

	// Embedding is the stored vector.
	Embedding domain.Vector
}
