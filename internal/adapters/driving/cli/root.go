// Package cli wires the engine behind a cobra command tree. Commands talk
// to the core through the driving port only; construction of adapters and
// services happens once in the root pre-run.
package cli

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	configfile "github.com/custodia-labs/recall/internal/adapters/driven/config/file"
	"github.com/custodia-labs/recall/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/core/services"
	"github.com/custodia-labs/recall/internal/logger"
	"github.com/custodia-labs/recall/internal/metrics"
)

// version is set via ldflags at build time.
var version = "dev"

var (
	configDir string
	verbose   bool
)

// Wired dependencies, built once in rootCmd's PersistentPreRunE.
var (
	log          *zap.Logger
	settings     driven.Settings
	segmentStore driven.SegmentStore
	indexManager *services.IndexManager
	retrievalSvc driving.RetrievalService
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Segment store and semantic retrieval engine",
	Long: `Recall stores deduplicated document segments with their embeddings
and answers filtered cosine-similarity queries over them.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(*cobra.Command, []string) error {
		return teardown()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "config directory (default ~/.recall)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// setup builds the adapter stack and the retrieval service. Runs before
// every command so each invocation sees current config.
func setup(_ *cobra.Command, _ []string) error {
	cfgStore, err := configfile.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("failed to open config: %w", err)
	}

	settings, err = cfgStore.Load()
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", cfgStore.Path(), err)
	}
	if verbose {
		settings.Debug = true
	}

	log, err = logger.New(settings.Debug)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	segmentStore, err = sqlite.NewStore(settings.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open segment store: %w", err)
	}

	met := metrics.New(prometheus.NewRegistry())
	indexManager = services.NewIndexManager(segmentStore, services.IndexConfig{
		TargetClusterSize: settings.IndexTargetClusterSize,
		Probes:            settings.IndexProbes,
		MinVectors:        settings.IndexMinVectors,
	}, log, met)
	retrievalSvc = services.NewRetrievalService(segmentStore, indexManager, settings.Dimension, log, met)
	return nil
}

// teardown releases resources acquired in setup.
func teardown() error {
	var errs []error
	if segmentStore != nil {
		if err := segmentStore.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if log != nil {
		// Sync can fail on stderr; not worth surfacing.
		_ = log.Sync()
	}
	return errors.Join(errs...)
}
