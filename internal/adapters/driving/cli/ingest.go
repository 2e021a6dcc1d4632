package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// ingestSegment is the JSON shape of one segment in an ingest file.
type ingestSegment struct {
	ParentID     string `json:"parent_id"`
	CollectionID string `json:"collection_id"`
	Text         string `json:"text"`
	TokenCount   int    `json:"token_count"`
	Page         *int   `json:"page"`
	Slide        *int   `json:"slide"`
	CharStart    *int   `json:"char_start"`
	CharEnd      *int   `json:"char_end"`
	BBox         string `json:"bbox"`
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Create segments from a JSON file",
	Long: `Reads a JSON array of segments and stores each one. Segments whose
normalized text already exists under the same parent are deduplicated
against the existing row instead of creating a duplicate.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if retrievalSvc == nil {
		return errors.New("retrieval service not configured")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read ingest file: %w", err)
	}

	var entries []ingestSegment
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse ingest file %s: %w", args[0], err)
	}

	created := 0
	for i, e := range entries {
		id, err := retrievalSvc.CreateSegment(cmd.Context(), domain.NewSegment{
			ParentID:     e.ParentID,
			CollectionID: e.CollectionID,
			Text:         e.Text,
			TokenCount:   e.TokenCount,
			Position: domain.Position{
				Page:      e.Page,
				Slide:     e.Slide,
				CharStart: e.CharStart,
				CharEnd:   e.CharEnd,
				BBox:      e.BBox,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to store segment %d: %w", i, err)
		}
		created++
		cmd.Printf("  %s\n", id)
	}

	cmd.Printf("Stored %d segments.\n", created)
	return nil
}
