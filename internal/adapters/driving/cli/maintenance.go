package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store and index health",
	RunE:  runStats,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the vector index from stored embeddings",
	Long: `Rebuilds the clustered vector index off a snapshot of the store.
Small corpora stay on the exact linear scan and the rebuild is skipped.`,
	RunE: runReindex,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove segments with invalid embedding vectors",
	Long: `Deletes segments whose stored embedding does not match the
configured dimension. Segments without an embedding are kept.`,
	RunE: runCleanup,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(cleanupCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if retrievalSvc == nil {
		return errors.New("retrieval service not configured")
	}

	stats, err := retrievalSvc.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	if statsJSON {
		return printJSON(cmd, map[string]any{
			"total_segments":             stats.TotalSegments,
			"segments_missing_embedding": stats.SegmentsMissingEmbedding,
			"average_text_length":        stats.AverageTextLength,
			"index_state":                indexManager.State().String(),
		})
	}

	cmd.Println("Store:")
	cmd.Printf("  Segments:           %d\n", stats.TotalSegments)
	cmd.Printf("  Missing embeddings: %d\n", stats.SegmentsMissingEmbedding)
	cmd.Printf("  Avg text length:    %d bytes\n", stats.AverageTextLength)
	cmd.Println()
	cmd.Printf("Index: %s\n", indexManager.State())
	return nil
}

func runReindex(cmd *cobra.Command, _ []string) error {
	if retrievalSvc == nil {
		return errors.New("retrieval service not configured")
	}

	cmd.Println("Rebuilding index...")
	if err := retrievalSvc.RebuildIndex(cmd.Context()); err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}

	cmd.Printf("Index is now %s.\n", indexManager.State())
	return nil
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	if retrievalSvc == nil {
		return errors.New("retrieval service not configured")
	}

	removed, err := retrievalSvc.CleanupInvalidVectors(cmd.Context())
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	cmd.Printf("Removed %d segments with invalid vectors.\n", removed)
	return nil
}
