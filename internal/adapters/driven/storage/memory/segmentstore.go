// Package memory provides an in-memory SegmentStore used by service tests
// and ephemeral deployments. Semantics match the SQLite adapter, including
// atomic check-and-insert dedup and reading-order retrieval.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure SegmentStore implements the interface.
var _ driven.SegmentStore = (*SegmentStore)(nil)

// record pairs a segment with its insertion sequence for stable
// tie-breaking.
type record struct {
	seg domain.Segment
	seq int
}

// SegmentStore is an in-memory implementation of driven.SegmentStore.
// The mutex makes every operation atomic, which covers the dedup
// check-and-insert contract.
type SegmentStore struct {
	mu      sync.RWMutex
	records map[string]*record           // segment ID -> record
	dedup   map[string]map[string]string // parent ID -> content hash -> segment ID
	nextSeq int
}

// NewSegmentStore creates a new in-memory segment store.
func NewSegmentStore() *SegmentStore {
	return &SegmentStore{
		records: make(map[string]*record),
		dedup:   make(map[string]map[string]string),
	}
}

// CreateSegment stores a new segment, or returns the existing ID when the
// same content already exists under the parent.
func (s *SegmentStore) CreateSegment(_ context.Context, seg domain.NewSegment) (string, bool, error) {
	hash := domain.ContentHash(seg.Text)

	s.mu.Lock()
	defer s.mu.Unlock()

	hashes, ok := s.dedup[seg.ParentID]
	if !ok {
		hashes = make(map[string]string)
		s.dedup[seg.ParentID] = hashes
	}
	if existing, ok := hashes[hash]; ok {
		return existing, false, nil
	}

	id := uuid.New().String()
	s.records[id] = &record{
		seg: domain.Segment{
			ID:           id,
			ParentID:     seg.ParentID,
			CollectionID: seg.CollectionID,
			Text:         seg.Text,
			TokenCount:   seg.TokenCount,
			Position:     seg.Position,
			ContentHash:  hash,
			CreatedAt:    time.Now().UTC(),
		},
		seq: s.nextSeq,
	}
	s.nextSeq++
	hashes[hash] = id
	return id, true, nil
}

// GetByIDs returns found segments in reading order; missing IDs are
// silently omitted.
func (s *SegmentStore) GetByIDs(_ context.Context, ids []string) ([]domain.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*record, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.records[id]; ok {
			recs = append(recs, r)
		}
	}
	return segmentsInReadingOrder(recs), nil
}

// ListByParent returns one page of a parent's segments in reading order
// plus the parent's total count.
func (s *SegmentStore) ListByParent(_ context.Context, parentID string, offset, limit int) ([]domain.Segment, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []*record
	for _, r := range s.records {
		if r.seg.ParentID == parentID {
			recs = append(recs, r)
		}
	}
	segs := segmentsInReadingOrder(recs)
	total := len(segs)

	if offset >= total {
		return []domain.Segment{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return segs[offset:end], total, nil
}

// DeleteByParent removes all segments of a parent and returns their IDs.
func (s *SegmentStore) DeleteByParent(_ context.Context, parentID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, r := range s.records {
		if r.seg.ParentID == parentID {
			ids = append(ids, id)
			delete(s.records, id)
		}
	}
	delete(s.dedup, parentID)
	return ids, nil
}

// ApplyEmbeddings attaches vectors to segments atomically. Unknown IDs
// are silent no-ops.
func (s *SegmentStore) ApplyEmbeddings(_ context.Context, updates []domain.EmbeddingUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range updates {
		if r, ok := s.records[u.SegmentID]; ok {
			vec := make(domain.Vector, len(u.Embedding))
			copy(vec, u.Embedding)
			r.seg.Embedding = vec
		}
	}
	return nil
}

// ListEmbeddings returns a snapshot of embedded segments passing the
// scope filters.
func (s *SegmentStore) ListEmbeddings(_ context.Context, filters domain.SearchFilters) ([]driven.EmbeddedSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []driven.EmbeddedSegment
	for id, r := range s.records {
		if r.seg.Embedding == nil {
			continue
		}
		if !filters.Allows(r.seg) || filters.Excludes(id) {
			continue
		}
		items = append(items, driven.EmbeddedSegment{
			ID:        id,
			Embedding: r.seg.Embedding,
		})
	}
	return items, nil
}

// Stats reports store health.
func (s *SegmentStore) Stats(_ context.Context) (domain.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.StoreStats{TotalSegments: len(s.records)}
	var textLen int
	for _, r := range s.records {
		if r.seg.Embedding == nil {
			stats.SegmentsMissingEmbedding++
		}
		textLen += len(r.seg.Text)
	}
	if len(s.records) > 0 {
		stats.AverageTextLength = (textLen + len(s.records)/2) / len(s.records)
	}
	return stats, nil
}

// CleanupInvalidVectors removes segments whose embedding does not have
// exactly dim components. Nil embeddings are legal and untouched.
func (s *SegmentStore) CleanupInvalidVectors(_ context.Context, dim int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, r := range s.records {
		if r.seg.Embedding == nil || len(r.seg.Embedding) == dim {
			continue
		}
		if hashes, ok := s.dedup[r.seg.ParentID]; ok {
			delete(hashes, r.seg.ContentHash)
		}
		delete(s.records, id)
		removed++
	}
	return removed, nil
}

// Close releases resources. A no-op for the in-memory store.
func (s *SegmentStore) Close() error {
	return nil
}

// segmentsInReadingOrder sorts by page, slide, char-start, then insertion
// order, matching the SQLite adapter's readingOrder clause.
func segmentsInReadingOrder(recs []*record) []domain.Segment {
	sort.Slice(recs, func(a, b int) bool {
		pa, pb := posKey(recs[a].seg.Position), posKey(recs[b].seg.Position)
		for i := range pa {
			if pa[i] != pb[i] {
				return pa[i] < pb[i]
			}
		}
		return recs[a].seq < recs[b].seq
	})

	segs := make([]domain.Segment, len(recs))
	for i, r := range recs {
		segs[i] = r.seg
	}
	return segs
}

// posKey flattens a Position for ordering; absent fields sort as 0 like
// the SQL COALESCE.
func posKey(p domain.Position) [3]int {
	var key [3]int
	if p.Page != nil {
		key[0] = *p.Page
	}
	if p.Slide != nil {
		key[1] = *p.Slide
	}
	if p.CharStart != nil {
		key[2] = *p.CharStart
	}
	return key
}
