package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/adapters/driven/index/ivf"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/services"
)

func TestNewConfigStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
}

func TestConfigStore_Load_Defaults(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	settings, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultDimension, settings.Dimension)
	assert.Equal(t, ivf.DefaultTargetClusterSize, settings.IndexTargetClusterSize)
	assert.Equal(t, ivf.DefaultProbes, settings.IndexProbes)
	assert.Equal(t, services.DefaultMinIndexVectors, settings.IndexMinVectors)
	assert.Equal(t, domain.DefaultSearchLimit, settings.SearchLimit)
	assert.Equal(t, domain.DefaultMinSimilarity, settings.SearchMinSimilarity)
	assert.False(t, settings.Debug)
}

func TestConfigStore_SaveLoad_RoundTrip(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	want := Defaults()
	want.DataDir = "/tmp/recall-test"
	want.Dimension = 768
	want.IndexProbes = 8
	want.SearchMinSimilarity = 0.85
	want.Debug = true

	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestConfigStore_Load_PartialFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	// A partial file only overrides what it mentions.
	partial := "[embedding]\ndimension = 256\n\n[search]\nlimit = 25\n"
	require.NoError(t, os.WriteFile(store.Path(), []byte(partial), 0600))

	settings, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, 256, settings.Dimension)
	assert.Equal(t, 25, settings.SearchLimit)
	assert.Equal(t, domain.DefaultMinSimilarity, settings.SearchMinSimilarity)
	assert.Equal(t, services.DefaultMinIndexVectors, settings.IndexMinVectors)
}

func TestConfigStore_Load_MalformedFile(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(store.Path(), []byte("not = = toml"), 0600))

	_, err = store.Load()
	assert.Error(t, err)
}
