package file

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/recall/internal/adapters/driven/index/ivf"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/services"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// fileSettings is the on-disk TOML shape. Pointers distinguish "absent"
// from an explicit zero so partial config files only override what they
// mention.
type fileSettings struct {
	DataDir *string `toml:"data_dir,omitempty"`
	Debug   *bool   `toml:"debug,omitempty"`

	Embedding struct {
		Dimension *int `toml:"dimension,omitempty"`
	} `toml:"embedding"`

	Index struct {
		TargetClusterSize *int `toml:"target_cluster_size,omitempty"`
		Probes            *int `toml:"probes,omitempty"`
		MinVectors        *int `toml:"min_vectors,omitempty"`
	} `toml:"index"`

	Search struct {
		Limit         *int     `toml:"limit,omitempty"`
		MinSimilarity *float64 `toml:"min_similarity,omitempty"`
	} `toml:"search"`
}

// ConfigStore is a file-based implementation of driven.ConfigStore using
// TOML. Configuration lives in a single file inside the recall config
// directory.
type ConfigStore struct {
	mu       sync.Mutex
	filePath string
}

// NewConfigStore creates a new TOML-based config store.
// If configDir is empty, defaults to ~/.recall/config.toml.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".recall")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	return &ConfigStore{
		filePath: filepath.Join(configDir, "config.toml"),
	}, nil
}

// Defaults returns the settings used when no config file exists.
func Defaults() driven.Settings {
	return driven.Settings{
		Dimension:              domain.DefaultDimension,
		IndexTargetClusterSize: ivf.DefaultTargetClusterSize,
		IndexProbes:            ivf.DefaultProbes,
		IndexMinVectors:        services.DefaultMinIndexVectors,
		SearchLimit:            domain.DefaultSearchLimit,
		SearchMinSimilarity:    domain.DefaultMinSimilarity,
	}
}

// Load reads settings from the TOML file, filling unset fields with
// defaults. A missing file yields the defaults.
func (s *ConfigStore) Load() (driven.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Defaults()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return driven.Settings{}, err
	}

	var fs fileSettings
	if err := toml.Unmarshal(data, &fs); err != nil {
		return driven.Settings{}, err
	}

	if fs.DataDir != nil {
		out.DataDir = *fs.DataDir
	}
	if fs.Debug != nil {
		out.Debug = *fs.Debug
	}
	if fs.Embedding.Dimension != nil {
		out.Dimension = *fs.Embedding.Dimension
	}
	if fs.Index.TargetClusterSize != nil {
		out.IndexTargetClusterSize = *fs.Index.TargetClusterSize
	}
	if fs.Index.Probes != nil {
		out.IndexProbes = *fs.Index.Probes
	}
	if fs.Index.MinVectors != nil {
		out.IndexMinVectors = *fs.Index.MinVectors
	}
	if fs.Search.Limit != nil {
		out.SearchLimit = *fs.Search.Limit
	}
	if fs.Search.MinSimilarity != nil {
		out.SearchMinSimilarity = *fs.Search.MinSimilarity
	}
	return out, nil
}

// Save persists settings to the TOML file.
func (s *ConfigStore) Save(settings driven.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fs fileSettings
	fs.DataDir = &settings.DataDir
	fs.Debug = &settings.Debug
	fs.Embedding.Dimension = &settings.Dimension
	fs.Index.TargetClusterSize = &settings.IndexTargetClusterSize
	fs.Index.Probes = &settings.IndexProbes
	fs.Index.MinVectors = &settings.IndexMinVectors
	fs.Search.Limit = &settings.SearchLimit
	fs.Search.MinSimilarity = &settings.SearchMinSimilarity

	data, err := toml.Marshal(fs)
	if err != nil {
		return err
	}

	// Write with restricted permissions
	return os.WriteFile(s.filePath, data, 0600)
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}
