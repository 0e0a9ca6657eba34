package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/app"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one pass: fetch, normalize and export",
	Example: `  fern sync --input 'exports/**/*.json' --batch inspections --targets csv,json --out ./out
  fern sync --source http --input https://example.com/records.json --targets sql`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			outcome, err := a.Sync(ctx)
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), outcome)
			return outcome.Err()
		})
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func printOutcome(w io.Writer, outcome *app.Outcome) {
	result := outcome.Result

	fmt.Fprintf(w, "Run: %s\n", result.RunID)
	fmt.Fprint(w, result.Summary.Report(result.BatchLabel))
	if result.Unchanged > 0 {
		fmt.Fprintf(w, "Unchanged (skipped): %d\n", result.Unchanged)
	}
	fmt.Fprintf(w, "Pages: %d\n", result.PageCount())

	if len(result.Warnings) > 0 {
		counts := make(map[string]int)
		for _, warning := range result.Warnings {
			counts[string(warning.Code)]++
		}
		codes := make([]string, 0, len(counts))
		for code := range counts {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		fmt.Fprintf(w, "\nWarnings: %d\n", len(result.Warnings))
		for _, code := range codes {
			fmt.Fprintf(w, "  %s: %d\n", code, counts[code])
		}
	}

	fmt.Fprintln(w, "\nExports:")
	for _, target := range outcome.Report.Results {
		if target.Error != "" {
			fmt.Fprintf(w, "  %s: %s (%s)\n", target.Target, target.Status, target.Error)
			continue
		}
		fmt.Fprintf(w, "  %s: %s, %d records in %s\n", target.Target, target.Status, target.Records, target.Duration)
	}
}
