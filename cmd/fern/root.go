package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

var (
	envFile    string
	sourceType string
	input      string
	batchLabel string
	targets    []string
	outDir     string
	recordPath string

	cfg       *config.Config
	logger    ectologger.Logger
	zapLogger *zap.Logger
	shutdown  func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "fern",
	Short: "Normalize field survey exports and sync them to files, databases and streams",
	Long: `fern reads raw survey records from JSON files, an HTTP endpoint or Kafka, merges
duplicates, flattens them into tabular records and exports the result to CSV, JSON, YAML,
Kafka, a SQL table, MongoDB and a Redis hash store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}

		loaded, err := config.Load(envFiles()...)
		if err != nil {
			return err
		}
		applyFlags(cmd, loaded)
		cfg = loaded

		logger, zapLogger, err = logging.New(logging.Config{
			Level:   cfg.LogLevel,
			Pretty:  cfg.PrettyLogs,
			AppName: cfg.AppName,
		})
		if err != nil {
			return err
		}

		if cfg.OtelEndpoint != "" || cfg.LogLevel == "debug" {
			shutdown, err = tracing.Setup(cmd.Context(), cfg.AppName, exporters.OTLPConfig{
				Endpoint: cfg.OtelEndpoint,
				Protocol: cfg.OtelProtocol,
				Insecure: cfg.OtelInsecure,
			}, logger)
			if err != nil {
				return err
			}
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if shutdown != nil {
			if err := shutdown(context.Background()); err != nil {
				logger.WithError(err).Warn("Failed to flush traces")
			}
		}
		if zapLogger != nil {
			_ = zapLogger.Sync()
		}
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envFile, "env-file", "", "env file to load before reading the environment (default .env)")
	flags.StringVar(&sourceType, "source", "", "source type: jsonfile, http or kafka (SOURCE_TYPE)")
	flags.StringVarP(&input, "input", "i", "", "glob of JSON files or URL to read records from (SOURCE_INPUT)")
	flags.StringVarP(&batchLabel, "batch", "b", "", "batch label (BATCH_LABEL)")
	flags.StringSliceVarP(&targets, "targets", "t", nil, "export targets: csv,json,yaml,kafka,sql,mongo,hashstore (EXPORT_TARGETS)")
	flags.StringVarP(&outDir, "out", "o", "", "directory for file exports (EXPORT_DIR)")
	flags.StringVar(&recordPath, "records-path", "", "JMESPath locating the record array in each document (RECORDS_PATH)")
}

func envFiles() []string {
	if envFile == "" {
		return nil
	}
	return []string{envFile}
}

// applyFlags lets explicitly set flags win over the environment.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("source") {
		c.SourceType = sourceType
	}
	if flags.Changed("input") {
		c.SourceInput = input
	}
	if flags.Changed("batch") {
		c.BatchLabel = batchLabel
	}
	if flags.Changed("targets") {
		c.ExportTargets = normalizeTargets(targets)
	}
	if flags.Changed("out") {
		c.ExportDir = outDir
	}
	if flags.Changed("records-path") {
		c.RecordsPath = recordPath
	}
}

func normalizeTargets(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// withApp starts the configured connections, runs fn and always stops them again.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	a, err := app.New(cfg, logger, version)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background())
		return fmt.Errorf("startup failed: %w", err)
	}
	defer func() {
		if err := a.Stop(context.Background()); err != nil {
			logger.WithError(err).Error("Shutdown failed")
		}
	}()

	return fn(ctx, a)
}
