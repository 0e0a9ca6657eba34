package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/Ramsey-B/fern/pkg/diagnostics"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// JSONFileSource reads every JSON document matched by a doublestar glob such as
// "exports/**/*.json".
type JSONFileSource struct {
	pattern   string
	options   Options
	extractor *Extractor
	logger    ectologger.Logger
}

func NewJSONFileSource(pattern string, options Options, logger ectologger.Logger) (*JSONFileSource, error) {
	if pattern == "" {
		return nil, fmt.Errorf("an input pattern is required for the %s source", TypeJSONFile)
	}
	if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
		return nil, fmt.Errorf("invalid input pattern %q", pattern)
	}

	extractor := NewExtractor()
	if err := extractor.Validate(options.RecordsPath); err != nil {
		return nil, fmt.Errorf("invalid records path %q: %w", options.RecordsPath, err)
	}

	return &JSONFileSource{
		pattern:   pattern,
		options:   options,
		extractor: extractor,
		logger:    logger,
	}, nil
}

func (s *JSONFileSource) Name() string {
	return TypeJSONFile
}

func (s *JSONFileSource) Pattern() string {
	return s.pattern
}

// Files lists the matched files in lexical order.
func (s *JSONFileSource) Files() ([]string, error) {
	matches, err := doublestar.FilepathGlob(s.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to match %q: %w", s.pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func (s *JSONFileSource) Fetch(ctx context.Context) (*Batch, error) {
	ctx, span := tracing.StartSpan(ctx, "sources.JSONFileSource.Fetch")
	defer span.End()

	start := time.Now()
	defer func() { metrics.RecordSourceFetch(s.Name(), time.Since(start).Seconds()) }()

	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files match %q", s.pattern)
	}

	collector := diagnostics.New(nil)
	batch := &Batch{Label: s.options.label(s.Name())}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		records, err := s.readFile(file, collector)
		if err != nil {
			return nil, err
		}
		batch.Records = append(batch.Records, records...)
	}

	batch.Warnings = collector.Warnings()

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"files":    len(files),
		"records":  len(batch.Records),
		"warnings": len(batch.Warnings),
	}).Infof("Read %d records from %s", len(batch.Records), s.pattern)

	return batch, nil
}

func (s *JSONFileSource) readFile(path string, collector diagnostics.Collector) ([]models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	document, err := models.ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	values, err := s.extractor.Extract(document, s.options.RecordsPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return collect(values, filepath.Base(path), s.options, collector), nil
}
