package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/internal/trigger"
	"github.com/Ramsey-B/fern/pkg/sources"
)

var skipInitial bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sync once, then again whenever matching input files change",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.SourceType != sources.TypeJSONFile {
			return fmt.Errorf("watch needs the jsonfile source, not %q", cfg.SourceType)
		}

		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			run := runAndReport(cmd, a)
			watcher, err := trigger.NewWatcher(cfg.SourceInput, cfg.WatchDebounce, run, logger)
			if err != nil {
				return err
			}

			if !skipInitial {
				if err := run(ctx); err != nil {
					logger.WithError(err).Error("Initial sync failed")
				}
			}
			return watcher.Run(ctx)
		})
	},
}

func init() {
	watchCmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "wait for the first change instead of syncing at start")
	rootCmd.AddCommand(watchCmd)
}

// runAndReport is the trigger callback shared by watch and schedule.
func runAndReport(cmd *cobra.Command, a *app.App) trigger.RunFunc {
	return func(ctx context.Context) error {
		outcome, err := a.Sync(ctx)
		if err != nil {
			return err
		}
		printOutcome(cmd.OutOrStdout(), outcome)
		return outcome.Err()
	}
}
