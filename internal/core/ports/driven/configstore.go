package driven

// Settings holds runtime configuration for the engine. Zero values mean
// "use the built-in default"; callers resolve them through Normalize on
// the adapter side.
type Settings struct {
	// DataDir is the directory holding the segment database.
	// Empty means the per-user default.
	DataDir string

	// Dimension is the embedding dimension every vector must match.
	Dimension int

	// Index tuning.
	IndexTargetClusterSize int
	IndexProbes            int
	IndexMinVectors        int

	// Search defaults applied when a request leaves them unset.
	SearchLimit         int
	SearchMinSimilarity float64

	// Debug enables verbose logging.
	Debug bool
}

// ConfigStore provides access to persisted application configuration.
// Implementations handle storage (e.g., TOML files) and defaulting.
type ConfigStore interface {
	// Load reads settings from storage. A missing config file yields
	// the defaults, not an error.
	Load() (Settings, error)

	// Save persists settings to storage.
	Save(Settings) error

	// Path returns the backing file path.
	Path() string
}
