package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var (
	searchLimit         int
	searchMinSimilarity float64
	searchParents       []string
	searchCollection    string
	searchExclude       []string
	searchJSON          bool
)

var searchCmd = &cobra.Command{
	Use:   "search [vector-file]",
	Short: "Search segments by embedding similarity",
	Long: `Ranks stored segments by cosine similarity to a query vector.
The vector is read from a JSON file containing a flat array of numbers
with exactly the configured dimension.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default 10, capped at 50)")
	searchCmd.Flags().Float64Var(&searchMinSimilarity, "min-similarity", 0, "minimum similarity score (default 0.7)")
	searchCmd.Flags().StringSliceVar(&searchParents, "parent", nil, "restrict to these parent document IDs")
	searchCmd.Flags().StringVar(&searchCollection, "collection", "", "restrict to one collection")
	searchCmd.Flags().StringSliceVar(&searchExclude, "exclude", nil, "segment IDs to exclude from results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if retrievalSvc == nil {
		return errors.New("retrieval service not configured")
	}

	query, err := readVectorFile(args[0])
	if err != nil {
		return err
	}

	opts := domain.SearchOptions{
		Limit:         searchLimit,
		MinSimilarity: searchMinSimilarity,
		Filters: domain.SearchFilters{
			ParentIDs:         searchParents,
			CollectionID:      searchCollection,
			ExcludeSegmentIDs: searchExclude,
		},
	}

	results, err := retrievalSvc.Search(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printJSON(cmd, results)
	}

	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		seg := results[i].Segment
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, seg.ID, results[i].Score)
		cmd.Printf("      Parent: %s\n", seg.ParentID)
		cmd.Printf("      %s\n", snippet(seg.Text, 120))
		cmd.Println()
	}
	return nil
}

// readVectorFile loads a query vector from a JSON array file.
func readVectorFile(path string) (domain.Vector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vector file: %w", err)
	}

	var vec domain.Vector
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, fmt.Errorf("failed to parse vector file %s: %w", path, err)
	}
	return vec, nil
}

// snippet truncates text to at most n bytes on a rune boundary.
func snippet(text string, n int) string {
	if len(text) <= n {
		return text
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

// printJSON writes v to the command output as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
