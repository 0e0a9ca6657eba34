package sinks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

type TargetResult struct {
	Target   string        `json:"target"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Records  int           `json:"records"`
	Duration time.Duration `json:"duration_ns"`
	err      error
}

func (r TargetResult) Err() error {
	return r.err
}

type Report struct {
	Results []TargetResult `json:"results"`
}

func (r Report) Succeeded() []string {
	return r.targets(StatusSuccess)
}

func (r Report) Failed() []string {
	return r.targets(StatusFailed)
}

// AllFailed is true when there was at least one target and none succeeded.
func (r Report) AllFailed() bool {
	return len(r.Results) > 0 && len(r.Succeeded()) == 0
}

func (r Report) targets(status string) []string {
	var out []string
	for _, result := range r.Results {
		if result.Status == status {
			out = append(out, result.Target)
		}
	}
	return out
}

// Exporter fans an export out to independent sinks.
type Exporter struct {
	logger ectologger.Logger
}

func NewExporter(logger ectologger.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// ExportAll runs every sink in its own goroutine and waits for all of them. A failing sink
// is reported and never stops the others. Results follow the order of sinks.
func (e *Exporter) ExportAll(ctx context.Context, export Export, sinks ...Sink) Report {
	ctx, span := tracing.StartSpan(ctx, "sinks.Exporter.ExportAll")
	defer span.End()

	results := make([]TargetResult, len(sinks))
	records := export.Metadata.RecordCount

	var wg sync.WaitGroup
	for i, sink := range sinks {
		wg.Add(1)
		go func(i int, sink Sink) {
			defer wg.Done()
			results[i] = e.run(ctx, export, sink, records)
		}(i, sink)
	}
	wg.Wait()

	return Report{Results: results}
}

func (e *Exporter) run(ctx context.Context, export Export, sink Sink, records int) (result TargetResult) {
	start := time.Now()
	result = TargetResult{Target: sink.Name(), Records: records}
	logger := e.logger.WithContext(ctx).WithField("target", sink.Name())

	ctx, span := tracing.StartSpan(ctx, "sinks.Exporter.run", attribute.String("fern.target", sink.Name()))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Export to %s panicked: %v", sink.Name(), r)
			result.Status = StatusFailed
			result.Error = "export panicked"
			result.err = fmt.Errorf("export panicked: %v", r)
		}
		result.Duration = time.Since(start)
		metrics.RecordExport(result.Target, result.Status, result.Duration.Seconds())
	}()

	if err := sink.Export(ctx, export); err != nil {
		tracing.Fail(span, err)
		logger.WithError(err).Errorf("Export to %s failed", sink.Name())
		result.Status = StatusFailed
		result.Error = err.Error()
		result.err = err
		return result
	}

	logger.Infof("Exported %d records to %s", records, sink.Name())
	result.Status = StatusSuccess
	return result
}
