// Package services implements Recall's application services: the
// retrieval engine (query planning, batch embedding updates, maintenance)
// and the ANN index lifecycle manager.
package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-labs/recall/internal/adapters/driven/index/linear"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/metrics"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// overFetchFactor multiplies the requested limit when probing an index
// that cannot pre-filter, so post-filtering does not starve the result
// set.
const overFetchFactor = 4

// RetrievalService is the segment store and semantic retrieval engine.
// It owns dedup-on-insert, filtered similarity search, transactional
// batch embedding updates, and store maintenance. All dependencies are
// explicitly constructed and injected; the service holds no global state.
type RetrievalService struct {
	store    driven.SegmentStore
	indexMgr *IndexManager
	scan     *linear.Index
	dim      int
	log      *zap.Logger
	met      *metrics.Metrics
}

// NewRetrievalService creates the engine. dim is the embedding dimension
// every vector must match; values <= 0 use domain.DefaultDimension.
func NewRetrievalService(
	store driven.SegmentStore,
	indexMgr *IndexManager,
	dim int,
	log *zap.Logger,
	met *metrics.Metrics,
) *RetrievalService {
	if dim <= 0 {
		dim = domain.DefaultDimension
	}
	return &RetrievalService{
		store:    store,
		indexMgr: indexMgr,
		scan:     linear.New(store),
		dim:      dim,
		log:      log,
		met:      met,
	}
}

// Dimension returns the configured embedding dimension.
func (s *RetrievalService) Dimension() int {
	return s.dim
}

// CreateSegment deduplicates and stores a segment. The store performs the
// atomic check-and-insert; a second call with identical (parentID, text)
// returns the first call's ID.
func (s *RetrievalService) CreateSegment(ctx context.Context, seg domain.NewSegment) (string, error) {
	if err := seg.Validate(); err != nil {
		return "", err
	}

	id, created, err := s.store.CreateSegment(ctx, seg)
	if err != nil {
		return "", fmt.Errorf("creating segment: %w", err)
	}

	outcome := "created"
	if !created {
		outcome = "deduplicated"
	}
	s.met.SegmentsCreated.WithLabelValues(outcome).Inc()
	s.log.Debug("segment created",
		zap.String("id", id),
		zap.String("parent_id", seg.ParentID),
		zap.Bool("deduplicated", !created))
	return id, nil
}

// GetByIDs returns found segments in reading order; unknown IDs are
// omitted, not errors.
func (s *RetrievalService) GetByIDs(ctx context.Context, ids []string) ([]domain.Segment, error) {
	if len(ids) == 0 {
		return []domain.Segment{}, nil
	}
	segs, err := s.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("getting segments: %w", err)
	}
	return segs, nil
}

// ListByParent returns one page of a parent's segments in reading order
// plus the parent's total count. An unknown parent yields an empty page.
func (s *RetrievalService) ListByParent(ctx context.Context, parentID string, offset, limit int) ([]domain.Segment, int, error) {
	if limit <= 0 {
		limit = domain.DefaultSearchLimit
	}
	if offset < 0 {
		offset = 0
	}
	segs, total, err := s.store.ListByParent(ctx, parentID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("listing segments: %w", err)
	}
	return segs, total, nil
}

// DeleteByParent cascades deletion of a parent's segments and orphans
// their index entries.
func (s *RetrievalService) DeleteByParent(ctx context.Context, parentID string) error {
	ids, err := s.store.DeleteByParent(ctx, parentID)
	if err != nil {
		return fmt.Errorf("deleting segments: %w", err)
	}
	s.indexMgr.Remove(ids)
	s.log.Debug("parent deleted",
		zap.String("parent_id", parentID),
		zap.Int("segments", len(ids)))
	return nil
}

// ApplyEmbeddings validates every vector's dimension before applying any.
// A single invalid entry rejects the whole batch with a *domain.BatchError
// listing each failure; nothing is persisted. Valid batches commit in one
// store transaction and then refresh the live index, so the index and the
// store never disagree about which segments are embedded.
func (s *RetrievalService) ApplyEmbeddings(ctx context.Context, updates []domain.EmbeddingUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	var invalid []domain.BatchEntryError
	for _, u := range updates {
		if err := u.Embedding.Validate(s.dim); err != nil {
			invalid = append(invalid, domain.BatchEntryError{SegmentID: u.SegmentID, Err: err})
		}
	}
	if len(invalid) > 0 {
		s.log.Warn("embedding batch rejected",
			zap.Int("batch_size", len(updates)),
			zap.Int("invalid", len(invalid)))
		return &domain.BatchError{Entries: invalid}
	}

	if err := s.store.ApplyEmbeddings(ctx, updates); err != nil {
		return fmt.Errorf("applying embeddings: %w", err)
	}
	for _, u := range updates {
		s.indexMgr.Upsert(u.SegmentID, u.Embedding)
	}

	s.met.EmbeddingsApplied.Add(float64(len(updates)))
	s.log.Debug("embedding batch applied", zap.Int("batch_size", len(updates)))
	return nil
}

// Search compiles and executes a similarity query:
//
//  1. Validate the query vector's dimension.
//  2. Pick the serving index: the Ready clustered index, else the exact
//     linear scan (index unavailability is absorbed here, never
//     surfaced).
//  3. Probe. Indexes that cannot pre-filter are over-fetched so that
//     post-filtering does not starve the result set.
//  4. Hydrate hits from the store; hits whose segment no longer exists
//     are dropped (self-healing against stale index entries).
//  5. Post-filter, drop scores below the similarity floor, rank by score
//     descending, tie-break by CreatedAt ascending then ID, truncate.
//
// Search is read-only and safe to abandon at any point via ctx.
func (s *RetrievalService) Search(ctx context.Context, query domain.Vector, opts domain.SearchOptions) ([]domain.SimilarityResult, error) {
	if err := query.Validate(s.dim); err != nil {
		return nil, err
	}

	limit := opts.EffectiveLimit()
	minSim := opts.EffectiveMinSimilarity()
	filters := opts.Filters

	idx, mode := s.pickIndex()
	start := time.Now()
	defer func() {
		s.met.SearchDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
		s.met.SearchesTotal.WithLabelValues(mode).Inc()
	}()

	k := limit
	if !idx.Filtered() {
		k = limit*overFetchFactor + len(filters.ExcludeSegmentIDs)
	}

	hits, err := idx.Search(ctx, query, k, filters)
	if err != nil {
		return nil, fmt.Errorf("probing index: %w", err)
	}
	if len(hits) == 0 {
		return []domain.SimilarityResult{}, nil
	}

	scores := make(map[string]float64, len(hits))
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Similarity < minSim || filters.Excludes(h.SegmentID) {
			continue
		}
		scores[h.SegmentID] = h.Similarity
		ids = append(ids, h.SegmentID)
	}
	if len(ids) == 0 {
		return []domain.SimilarityResult{}, nil
	}

	// Hydration re-validates existence: deleted segments simply do not
	// come back from the store.
	segs, err := s.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrating results: %w", err)
	}

	results := make([]domain.SimilarityResult, 0, len(segs))
	for _, seg := range segs {
		if !filters.Allows(seg) {
			continue
		}
		seg.Embedding = nil // Results never carry the stored vector.
		results = append(results, domain.SimilarityResult{
			Segment: seg,
			Score:   scores[seg.ID],
		})
	}

	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		if !results[a].Segment.CreatedAt.Equal(results[b].Segment.CreatedAt) {
			return results[a].Segment.CreatedAt.Before(results[b].Segment.CreatedAt)
		}
		return results[a].Segment.ID < results[b].Segment.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}

	s.log.Debug("search complete",
		zap.String("mode", mode),
		zap.Int("hits", len(hits)),
		zap.Int("results", len(results)))
	return results, nil
}

// pickIndex selects the serving index by current index state. Queries
// never block on a rebuild: while Building, the previous Ready index or
// the linear scan serves.
func (s *RetrievalService) pickIndex() (driven.AnnIndex, string) {
	if idx, ok := s.indexMgr.Current(); ok {
		return idx, metrics.ModeIndex
	}
	return s.scan, metrics.ModeScan
}

// RebuildIndex triggers a clustered index rebuild. Runs inline; callers
// wanting a background rebuild run it in their own goroutine.
func (s *RetrievalService) RebuildIndex(ctx context.Context) error {
	return s.indexMgr.Rebuild(ctx)
}

// Stats reports store health for the maintenance collaborator.
func (s *RetrievalService) Stats(ctx context.Context) (domain.StoreStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return domain.StoreStats{}, fmt.Errorf("reading stats: %w", err)
	}
	return stats, nil
}

// CleanupInvalidVectors removes segments whose stored embedding does not
// decode to the configured dimension. Index entries left behind are
// dropped at query time by hydration.
func (s *RetrievalService) CleanupInvalidVectors(ctx context.Context) (int, error) {
	removed, err := s.store.CleanupInvalidVectors(ctx, s.dim)
	if err != nil {
		return 0, fmt.Errorf("cleaning invalid vectors: %w", err)
	}
	if removed > 0 {
		s.log.Info("invalid vectors removed", zap.Int("count", removed))
	}
	return removed, nil
}
