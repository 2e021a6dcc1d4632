package linear

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/recall/internal/core/domain"
)

// seedStore fills a memory store with embedded segments and returns the
// IDs keyed by a short label.
func seedStore(t *testing.T, store *memory.SegmentStore, vectors map[string]domain.Vector) map[string]string {
	t.Helper()
	ctx := context.Background()

	ids := make(map[string]string, len(vectors))
	for label, vec := range vectors {
		id, _, err := store.CreateSegment(ctx, domain.NewSegment{
			ParentID: "doc-" + label,
			Text:     "segment " + label,
		})
		require.NoError(t, err)
		require.NoError(t, store.ApplyEmbeddings(ctx, []domain.EmbeddingUpdate{
			{SegmentID: id, Embedding: vec},
		}))
		ids[label] = id
	}
	return ids
}

func TestIndex_Search_Ranking(t *testing.T) {
	store := memory.NewSegmentStore()
	ids := seedStore(t, store, map[string]domain.Vector{
		"exact": {1, 0, 0, 0},
		"close": {0.9, 0.1, 0, 0},
		"far":   {0.1, 0.9, 0, 0},
		"oppo":  {-1, 0, 0, 0},
	})

	idx := New(store)
	query := domain.Vector{1, 0, 0, 0}

	hits, err := idx.Search(context.Background(), query, 10, domain.SearchFilters{})
	require.NoError(t, err)
	require.Len(t, hits, 4)

	assert.Equal(t, ids["exact"], hits[0].SegmentID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Equal(t, ids["close"], hits[1].SegmentID)
	assert.Equal(t, ids["far"], hits[2].SegmentID)

	// Negative cosine clamps to zero rather than going below bounds.
	assert.Equal(t, ids["oppo"], hits[3].SegmentID)
	assert.Equal(t, 0.0, hits[3].Similarity)
}

func TestIndex_Search_FilterPushdown(t *testing.T) {
	store := memory.NewSegmentStore()
	ids := seedStore(t, store, map[string]domain.Vector{
		"a": {1, 0, 0, 0},
		"b": {0.9, 0.1, 0, 0},
	})

	idx := New(store)
	assert.True(t, idx.Filtered())

	hits, err := idx.Search(context.Background(), domain.Vector{1, 0, 0, 0}, 10, domain.SearchFilters{
		ParentIDs: []string{"doc-b"},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, ids["b"], hits[0].SegmentID)
}

func TestIndex_Search_SkipsCorruptedRows(t *testing.T) {
	store := memory.NewSegmentStore()
	ids := seedStore(t, store, map[string]domain.Vector{
		"good": {1, 0, 0, 0},
		"bad":  {1, 0}, // wrong dimension
	})

	idx := New(store)
	hits, err := idx.Search(context.Background(), domain.Vector{1, 0, 0, 0}, 10, domain.SearchFilters{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, ids["good"], hits[0].SegmentID)
}

func TestIndex_Search_Truncation(t *testing.T) {
	store := memory.NewSegmentStore()
	seedStore(t, store, map[string]domain.Vector{
		"a": {1, 0, 0, 0},
		"b": {0.8, 0.2, 0, 0},
		"c": {0.6, 0.4, 0, 0},
	})

	idx := New(store)
	hits, err := idx.Search(context.Background(), domain.Vector{1, 0, 0, 0}, 2, domain.SearchFilters{})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = idx.Search(context.Background(), domain.Vector{1, 0, 0, 0}, 0, domain.SearchFilters{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_Search_EmptyStore(t *testing.T) {
	idx := New(memory.NewSegmentStore())
	hits, err := idx.Search(context.Background(), domain.Vector{1, 0, 0, 0}, 10, domain.SearchFilters{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}
