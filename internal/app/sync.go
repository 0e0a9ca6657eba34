package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/sinks"
	"github.com/Ramsey-B/fern/pkg/sources"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Outcome is one sync: the pipeline result and how each export target fared.
type Outcome struct {
	Result *pipeline.Result `json:"result"`
	Report sinks.Report     `json:"report"`
}

// Err is non-nil only when every export target failed.
func (o *Outcome) Err() error {
	if o == nil || !o.Report.AllFailed() {
		return nil
	}
	messages := make([]string, 0, len(o.Report.Results))
	for _, result := range o.Report.Results {
		messages = append(messages, result.Target+": "+result.Error)
	}
	return fmt.Errorf("every export target failed (%s)", strings.Join(messages, "; "))
}

// Sync fetches from the configured source and runs the batch.
func (a *App) Sync(ctx context.Context) (*Outcome, error) {
	source, err := a.Source()
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "app.App.Sync")
	defer span.End()

	batch, err := source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from %s source: %w", source.Name(), err)
	}
	return a.SyncBatch(ctx, batch)
}

// SyncBatch runs an already fetched batch through the pipeline and every export target.
func (a *App) SyncBatch(ctx context.Context, batch *sources.Batch) (*Outcome, error) {
	if a.pipeline == nil {
		return nil, fmt.Errorf("sync called before Start")
	}

	a.runMu.Lock()
	defer a.runMu.Unlock()

	result, err := a.pipeline.Run(ctx, batch)
	if err != nil {
		return nil, err
	}

	report := a.exporter.ExportAll(ctx, result.Export(), a.sinks...)
	a.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id":    result.RunID,
		"succeeded": report.Succeeded(),
		"failed":    report.Failed(),
	}).Info("Sync finished")

	return &Outcome{Result: result, Report: report}, nil
}

// Process runs the pipeline without exporting.
func (a *App) Process(ctx context.Context, batch *sources.Batch) (*pipeline.Result, error) {
	if a.pipeline == nil {
		return nil, fmt.Errorf("sync called before Start")
	}

	a.runMu.Lock()
	defer a.runMu.Unlock()

	return a.pipeline.Run(ctx, batch)
}
