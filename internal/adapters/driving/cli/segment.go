package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	segmentListOffset int
	segmentListLimit  int
	segmentListJSON   bool
)

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Inspect and manage stored segments",
	Long:  `List, view, or delete stored segments.`,
}

var segmentListCmd = &cobra.Command{
	Use:   "list [parent-id]",
	Short: "List a parent document's segments in reading order",
	Args:  cobra.ExactArgs(1),
	RunE:  runSegmentList,
}

var segmentGetCmd = &cobra.Command{
	Use:   "get [segment-id...]",
	Short: "Show segments by ID",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSegmentGet,
}

var segmentDeleteCmd = &cobra.Command{
	Use:   "delete [parent-id]",
	Short: "Delete all segments of a parent document",
	Args:  cobra.ExactArgs(1),
	RunE:  runSegmentDelete,
}

func init() {
	segmentListCmd.Flags().IntVar(&segmentListOffset, "offset", 0, "number of segments to skip")
	segmentListCmd.Flags().IntVarP(&segmentListLimit, "limit", "n", 20, "maximum number of segments")
	segmentListCmd.Flags().BoolVar(&segmentListJSON, "json", false, "output as JSON")

	segmentCmd.AddCommand(segmentListCmd)
	segmentCmd.AddCommand(segmentGetCmd)
	segmentCmd.AddCommand(segmentDeleteCmd)
	rootCmd.AddCommand(segmentCmd)
}

func runSegmentList(cmd *cobra.Command, args []string) error {
	if retrievalSvc == nil {
		return errors.New("retrieval service not configured")
	}

	parentID := args[0]
	segs, total, err := retrievalSvc.ListByParent(cmd.Context(), parentID, segmentListOffset, segmentListLimit)
	if err != nil {
		return fmt.Errorf("failed to list segments: %w", err)
	}

	if segmentListJSON {
		return printJSON(cmd, segs)
	}

	if total == 0 {
		cmd.Printf("No segments found for parent: %s\n", parentID)
		return nil
	}

	cmd.Printf("Segments for parent %s:\n\n", parentID)
	for i := range segs {
		cmd.Printf("  %s\n", segs[i].ID)
		if segs[i].Position.Page != nil {
			cmd.Printf("    Page: %d\n", *segs[i].Position.Page)
		}
		cmd.Printf("    Tokens: %d\n", segs[i].TokenCount)
		cmd.Printf("    %s\n", snippet(segs[i].Text, 80))
		cmd.Println()
	}

	cmd.Printf("Showing %d of %d segments.\n", len(segs), total)
	return nil
}

func runSegmentGet(cmd *cobra.Command, args []string) error {
	if retrievalSvc == nil {
		return errors.New("retrieval service not configured")
	}

	segs, err := retrievalSvc.GetByIDs(cmd.Context(), args)
	if err != nil {
		return fmt.Errorf("failed to get segments: %w", err)
	}

	if len(segs) == 0 {
		cmd.Println("No segments found.")
		return nil
	}

	for i := range segs {
		seg := segs[i]
		cmd.Printf("Segment: %s\n\n", seg.ID)
		cmd.Printf("  Parent:     %s\n", seg.ParentID)
		if seg.CollectionID != "" {
			cmd.Printf("  Collection: %s\n", seg.CollectionID)
		}
		cmd.Printf("  Tokens:     %d\n", seg.TokenCount)
		cmd.Printf("  Embedded:   %t\n", seg.Embedding != nil)
		cmd.Printf("  Created:    %s\n", seg.CreatedAt.Format("2006-01-02 15:04:05"))
		cmd.Printf("\n%s\n\n", seg.Text)
	}
	return nil
}

func runSegmentDelete(cmd *cobra.Command, args []string) error {
	if retrievalSvc == nil {
		return errors.New("retrieval service not configured")
	}

	parentID := args[0]
	if err := retrievalSvc.DeleteByParent(cmd.Context(), parentID); err != nil {
		return fmt.Errorf("failed to delete segments: %w", err)
	}

	cmd.Printf("Deleted all segments of parent %s.\n", parentID)
	return nil
}
