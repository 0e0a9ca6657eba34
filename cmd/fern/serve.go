package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/internal/routes"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API: health, metrics, /v1/sync and /v1/hash",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			containerID := "fern-" + uuid.New().String()
			if err := routes.NewContainer(containerID, a, logger); err != nil {
				return err
			}
			return routes.Serve(ctx, cfg, routes.New(cfg, a, logger, containerID), logger)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
