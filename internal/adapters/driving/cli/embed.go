package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// embedEntry is the JSON shape of one update in an embeddings file.
type embedEntry struct {
	SegmentID string        `json:"segment_id"`
	Embedding domain.Vector `json:"embedding"`
}

var embedCmd = &cobra.Command{
	Use:   "embed [file]",
	Short: "Apply embedding vectors to segments",
	Long: `Reads a JSON array of {segment_id, embedding} updates and applies
them as one atomic batch. If any vector has the wrong dimension the
whole batch is rejected and nothing is written.`,
	Args: cobra.ExactArgs(1),
	RunE: runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, args []string) error {
	if retrievalSvc == nil {
		return errors.New("retrieval service not configured")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read embeddings file: %w", err)
	}

	var entries []embedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse embeddings file %s: %w", args[0], err)
	}

	updates := make([]domain.EmbeddingUpdate, len(entries))
	for i, e := range entries {
		updates[i] = domain.EmbeddingUpdate{
			SegmentID: e.SegmentID,
			Embedding: e.Embedding,
		}
	}

	if err := retrievalSvc.ApplyEmbeddings(cmd.Context(), updates); err != nil {
		var batchErr *domain.BatchError
		if errors.As(err, &batchErr) {
			cmd.PrintErrln("Batch rejected; no embeddings were written:")
			for _, entry := range batchErr.Entries {
				cmd.PrintErrf("  %s: %v\n", entry.SegmentID, entry.Err)
			}
		}
		return fmt.Errorf("failed to apply embeddings: %w", err)
	}

	cmd.Printf("Applied %d embeddings.\n", len(updates))
	return nil
}
