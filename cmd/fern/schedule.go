package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/internal/trigger"
)

var cronExpression string

var scheduleCmd = &cobra.Command{
	Use:     "schedule",
	Short:   "Sync on a cron schedule",
	Example: `  fern schedule --cron '*/15 * * * *' --targets sql,hashstore`,
	RunE: func(cmd *cobra.Command, args []string) error {
		expression := cfg.Schedule
		if cmd.Flags().Changed("cron") {
			expression = cronExpression
		}

		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			scheduler, err := trigger.NewScheduler(expression, runAndReport(cmd, a), logger)
			if err != nil {
				return err
			}
			return scheduler.Run(ctx)
		})
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&cronExpression, "cron", "", "cron expression (SCHEDULE, default */15 * * * *)")
	rootCmd.AddCommand(scheduleCmd)
}
