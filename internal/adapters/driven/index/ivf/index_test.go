package ivf

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// ringItems generates unit vectors spread around the unit circle in 2D,
// padded to four dimensions. Angularly close vectors are cosine-close,
// which gives clustering something real to separate.
func ringItems(n int) []driven.EmbeddedSegment {
	items := make([]driven.EmbeddedSegment, n)
	for i := range items {
		angle := 2 * math.Pi * float64(i) / float64(n)
		items[i] = driven.EmbeddedSegment{
			ID: fmt.Sprintf("seg-%03d", i),
			Embedding: domain.Vector{
				float32(math.Cos(angle)), float32(math.Sin(angle)), 0, 0,
			},
		}
	}
	return items
}

func TestBuild(t *testing.T) {
	t.Run("indexes every valid vector", func(t *testing.T) {
		items := ringItems(40)
		idx, err := Build(context.Background(), items, Config{TargetClusterSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 40, idx.Len())
	})

	t.Run("skips wrong dimension rows", func(t *testing.T) {
		items := ringItems(10)
		items = append(items, driven.EmbeddedSegment{ID: "corrupt", Embedding: domain.Vector{1, 0}})

		idx, err := Build(context.Background(), items, Config{})
		require.NoError(t, err)
		assert.Equal(t, 10, idx.Len())
	})

	t.Run("empty input", func(t *testing.T) {
		idx, err := Build(context.Background(), nil, Config{})
		require.NoError(t, err)
		assert.Zero(t, idx.Len())

		hits, err := idx.Search(context.Background(), domain.Vector{1, 0, 0, 0}, 5, domain.SearchFilters{})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("cancellation aborts clustering", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Build(ctx, ringItems(50), Config{TargetClusterSize: 10})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIndex_Search(t *testing.T) {
	items := ringItems(100)
	idx, err := Build(context.Background(), items, Config{TargetClusterSize: 10, Probes: 3})
	require.NoError(t, err)

	t.Run("finds the exact vector first", func(t *testing.T) {
		query := items[7].Embedding
		hits, err := idx.Search(context.Background(), query, 5, domain.SearchFilters{})
		require.NoError(t, err)
		require.NotEmpty(t, hits)

		assert.Equal(t, items[7].ID, hits[0].SegmentID)
		assert.InDelta(t, 1.0, hits[0].Similarity, 1e-5)
	})

	t.Run("scores descend and stay within bounds", func(t *testing.T) {
		hits, err := idx.Search(context.Background(), items[0].Embedding, 20, domain.SearchFilters{})
		require.NoError(t, err)
		require.NotEmpty(t, hits)

		for i := range hits {
			assert.GreaterOrEqual(t, hits[i].Similarity, 0.0)
			assert.LessOrEqual(t, hits[i].Similarity, 1.0)
			if i > 0 {
				assert.GreaterOrEqual(t, hits[i-1].Similarity, hits[i].Similarity)
			}
		}
	})

	t.Run("respects k", func(t *testing.T) {
		hits, err := idx.Search(context.Background(), items[0].Embedding, 3, domain.SearchFilters{})
		require.NoError(t, err)
		assert.Len(t, hits, 3)
	})

	t.Run("non-positive k yields nothing", func(t *testing.T) {
		hits, err := idx.Search(context.Background(), items[0].Embedding, 0, domain.SearchFilters{})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := idx.Search(ctx, items[0].Embedding, 5, domain.SearchFilters{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIndex_Upsert(t *testing.T) {
	items := ringItems(40)
	idx, err := Build(context.Background(), items, Config{TargetClusterSize: 10})
	require.NoError(t, err)

	t.Run("new vector becomes findable", func(t *testing.T) {
		vec := domain.Vector{0.7, 0.7, 0, 0}
		idx.Upsert("fresh", vec)
		assert.Equal(t, 41, idx.Len())

		hits, err := idx.Search(context.Background(), vec, 1, domain.SearchFilters{})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "fresh", hits[0].SegmentID)
	})

	t.Run("replacing keeps one entry per ID", func(t *testing.T) {
		before := idx.Len()
		idx.Upsert("fresh", domain.Vector{-0.7, -0.7, 0, 0})
		assert.Equal(t, before, idx.Len())
	})
}

func TestIndex_Remove(t *testing.T) {
	items := ringItems(40)
	idx, err := Build(context.Background(), items, Config{TargetClusterSize: 10})
	require.NoError(t, err)

	idx.Remove(items[5].ID)
	assert.Equal(t, 39, idx.Len())

	hits, err := idx.Search(context.Background(), items[5].Embedding, 40, domain.SearchFilters{})
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, items[5].ID, h.SegmentID)
	}

	// Removing an unknown ID is a no-op.
	idx.Remove("never-indexed")
	assert.Equal(t, 39, idx.Len())
}

func TestIndex_Filtered(t *testing.T) {
	idx, err := Build(context.Background(), ringItems(10), Config{})
	require.NoError(t, err)
	assert.False(t, idx.Filtered())
}
