package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func newSegment(parentID, text string) domain.NewSegment {
	return domain.NewSegment{
		ParentID:   parentID,
		Text:       text,
		TokenCount: len(text) / 4,
	}
}

func TestSegmentStore_CreateSegment_Dedup(t *testing.T) {
	store := NewSegmentStore()
	ctx := context.Background()

	id1, created, err := store.CreateSegment(ctx, newSegment("doc-1", "hello world"))
	require.NoError(t, err)
	assert.True(t, created)

	// Identical content under the same parent collapses to one row.
	id2, created, err := store.CreateSegment(ctx, newSegment("doc-1", "Hello   WORLD"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)

	// Same content under a different parent is a distinct segment.
	id3, created, err := store.CreateSegment(ctx, newSegment("doc-2", "hello world"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, id1, id3)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSegments)
}

func TestSegmentStore_GetByIDs(t *testing.T) {
	store := NewSegmentStore()
	ctx := context.Background()

	id1, _, err := store.CreateSegment(ctx, newSegment("doc-1", "first"))
	require.NoError(t, err)
	id2, _, err := store.CreateSegment(ctx, newSegment("doc-1", "second"))
	require.NoError(t, err)

	segs, err := store.GetByIDs(ctx, []string{id2, id1, "missing"})
	require.NoError(t, err)
	require.Len(t, segs, 2)

	// Missing IDs are omitted and order follows insertion, not request.
	assert.Equal(t, id1, segs[0].ID)
	assert.Equal(t, id2, segs[1].ID)
}

func TestSegmentStore_ReadingOrder(t *testing.T) {
	store := NewSegmentStore()
	ctx := context.Background()

	page := func(n int) *int { return &n }

	idLate, _, err := store.CreateSegment(ctx, domain.NewSegment{
		ParentID: "doc-1", Text: "page two", Position: domain.Position{Page: page(2)},
	})
	require.NoError(t, err)
	idEarly, _, err := store.CreateSegment(ctx, domain.NewSegment{
		ParentID: "doc-1", Text: "page one", Position: domain.Position{Page: page(1)},
	})
	require.NoError(t, err)

	segs, _, err := store.ListByParent(ctx, "doc-1", 0, 10)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, idEarly, segs[0].ID)
	assert.Equal(t, idLate, segs[1].ID)
}

func TestSegmentStore_ListByParent_Pagination(t *testing.T) {
	store := NewSegmentStore()
	ctx := context.Background()

	texts := []string{"a", "b", "c", "d", "e"}
	for _, txt := range texts {
		_, _, err := store.CreateSegment(ctx, newSegment("doc-1", txt))
		require.NoError(t, err)
	}

	segs, total, err := store.ListByParent(ctx, "doc-1", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, segs, 2)

	segs, total, err = store.ListByParent(ctx, "doc-1", 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, segs, 1)

	segs, total, err = store.ListByParent(ctx, "doc-1", 10, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, segs)
}

func TestSegmentStore_DeleteByParent(t *testing.T) {
	store := NewSegmentStore()
	ctx := context.Background()

	id1, _, err := store.CreateSegment(ctx, newSegment("doc-1", "one"))
	require.NoError(t, err)
	id2, _, err := store.CreateSegment(ctx, newSegment("doc-1", "two"))
	require.NoError(t, err)
	keep, _, err := store.CreateSegment(ctx, newSegment("doc-2", "keep"))
	require.NoError(t, err)

	removed, err := store.DeleteByParent(ctx, "doc-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{id1, id2}, removed)

	segs, err := store.GetByIDs(ctx, []string{id1, id2, keep})
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, keep, segs[0].ID)

	// Dedup namespace is gone with the parent: re-inserting creates anew.
	reID, created, err := store.CreateSegment(ctx, newSegment("doc-1", "one"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, id1, reID)
}

func TestSegmentStore_ApplyEmbeddings(t *testing.T) {
	store := NewSegmentStore()
	ctx := context.Background()

	id, _, err := store.CreateSegment(ctx, newSegment("doc-1", "embed me"))
	require.NoError(t, err)

	vec := domain.Vector{0.1, 0.2, 0.3, 0.4}
	err = store.ApplyEmbeddings(ctx, []domain.EmbeddingUpdate{
		{SegmentID: id, Embedding: vec},
		{SegmentID: "unknown", Embedding: vec}, // silent no-op
	})
	require.NoError(t, err)

	segs, err := store.GetByIDs(ctx, []string{id})
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, vec, segs[0].Embedding)
}

func TestSegmentStore_ListEmbeddings_Filters(t *testing.T) {
	store := NewSegmentStore()
	ctx := context.Background()

	vec := domain.Vector{1, 0}
	mk := func(parent, collection, text string) string {
		id, _, err := store.CreateSegment(ctx, domain.NewSegment{
			ParentID: parent, CollectionID: collection, Text: text,
		})
		require.NoError(t, err)
		require.NoError(t, store.ApplyEmbeddings(ctx, []domain.EmbeddingUpdate{{SegmentID: id, Embedding: vec}}))
		return id
	}

	idA := mk("doc-a", "course-1", "alpha")
	idB := mk("doc-b", "course-1", "beta")
	idC := mk("doc-c", "course-2", "gamma")

	// Unembedded segments never appear.
	_, _, err := store.CreateSegment(ctx, newSegment("doc-a", "no vector"))
	require.NoError(t, err)

	all, err := store.ListEmbeddings(ctx, domain.SearchFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byParent, err := store.ListEmbeddings(ctx, domain.SearchFilters{ParentIDs: []string{"doc-a"}})
	require.NoError(t, err)
	require.Len(t, byParent, 1)
	assert.Equal(t, idA, byParent[0].ID)

	byCollection, err := store.ListEmbeddings(ctx, domain.SearchFilters{CollectionID: "course-1"})
	require.NoError(t, err)
	ids := []string{byCollection[0].ID, byCollection[1].ID}
	assert.ElementsMatch(t, []string{idA, idB}, ids)

	excluded, err := store.ListEmbeddings(ctx, domain.SearchFilters{ExcludeSegmentIDs: []string{idA, idB}})
	require.NoError(t, err)
	require.Len(t, excluded, 1)
	assert.Equal(t, idC, excluded[0].ID)
}

func TestSegmentStore_Stats(t *testing.T) {
	store := NewSegmentStore()
	ctx := context.Background()

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StoreStats{}, stats)

	id, _, err := store.CreateSegment(ctx, newSegment("doc-1", "1234"))
	require.NoError(t, err)
	_, _, err = store.CreateSegment(ctx, newSegment("doc-1", "12345678"))
	require.NoError(t, err)

	require.NoError(t, store.ApplyEmbeddings(ctx, []domain.EmbeddingUpdate{
		{SegmentID: id, Embedding: domain.Vector{1, 0}},
	}))

	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSegments)
	assert.Equal(t, 1, stats.SegmentsMissingEmbedding)
	assert.Equal(t, 6, stats.AverageTextLength)
}

func TestSegmentStore_CleanupInvalidVectors(t *testing.T) {
	store := NewSegmentStore()
	ctx := context.Background()

	goodID, _, err := store.CreateSegment(ctx, newSegment("doc-1", "good"))
	require.NoError(t, err)
	badID, _, err := store.CreateSegment(ctx, newSegment("doc-1", "bad"))
	require.NoError(t, err)
	nilID, _, err := store.CreateSegment(ctx, newSegment("doc-1", "unembedded"))
	require.NoError(t, err)

	require.NoError(t, store.ApplyEmbeddings(ctx, []domain.EmbeddingUpdate{
		{SegmentID: goodID, Embedding: domain.Vector{1, 0, 0, 0}},
		{SegmentID: badID, Embedding: domain.Vector{1, 0}}, // wrong dimension
	}))

	removed, err := store.CleanupInvalidVectors(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	segs, err := store.GetByIDs(ctx, []string{goodID, badID, nilID})
	require.NoError(t, err)
	ids := make([]string, len(segs))
	for i, s := range segs {
		ids[i] = s.ID
	}
	assert.ElementsMatch(t, []string{goodID, nilID}, ids)
}
