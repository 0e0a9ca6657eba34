// Package pipeline runs one batch through merge, hashing, normalization, mapping and
// pagination, collecting every warning raised along the way.
package pipeline

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	fernctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/diagnostics"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/fields"
	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/flatten"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/paging"
	"github.com/Ramsey-B/fern/pkg/sinks"
	"github.com/Ramsey-B/fern/pkg/sources"
	"github.com/Ramsey-B/fern/pkg/summary"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type Config struct {
	Separator          string
	MaxDepth           int
	IdentityField      string
	PageSize           int
	FieldNameOverrides map[string]string
	FieldNormalizers   map[string][]string
	// ChangedOnly drops records whose content hash matches the stored one. Needs a HashStore.
	ChangedOnly bool
	Now         func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Separator:     flatten.DefaultSeparator,
		MaxDepth:      flatten.DefaultMaxDepth,
		IdentityField: merging.DefaultIdentityField,
		PageSize:      paging.DefaultPageSize,
	}
}

// HashStore returns the content hashes stored by a previous run, by typed identity key.
// sinks.HashStore implements it.
type HashStore interface {
	Load(ctx context.Context, batchLabel string, keys []string) (map[string]fingerprint.ContentHash, error)
}

type Option func(*Pipeline)

func WithHashStore(store HashStore) Option {
	return func(p *Pipeline) {
		p.hashStore = store
	}
}

type Pipeline struct {
	config       Config
	flattener    *flatten.Flattener
	deduplicator *merging.Deduplicator
	overrides    map[string]string
	hashStore    HashStore
	logger       ectologger.Logger
}

func New(config Config, logger ectologger.Logger, opts ...Option) (*Pipeline, error) {
	if config.Now == nil {
		config.Now = time.Now
	}

	flattener, err := flatten.NewFlattener(config.Separator, config.MaxDepth)
	if err != nil {
		return nil, err
	}
	deduplicator, err := merging.NewDeduplicator(config.IdentityField)
	if err != nil {
		return nil, err
	}
	if config.PageSize < 1 {
		return nil, errors.InvalidConfiguration("page size must be at least 1, got %d", config.PageSize).AddStage("paginate")
	}
	for field, names := range config.FieldNormalizers {
		for _, name := range names {
			if _, ok := normalizers.Get(name); !ok {
				return nil, errors.InvalidConfiguration("unknown normalizer '%s'", name).AddField(field)
			}
		}
	}

	p := &Pipeline{
		config:       config,
		flattener:    flattener,
		deduplicator: deduplicator,
		overrides:    columnOverrides(config.FieldNameOverrides),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(p)
	}

	if config.ChangedOnly && p.hashStore == nil {
		return nil, errors.InvalidConfiguration("changed-only sync needs a hash store")
	}
	return p, nil
}

func (p *Pipeline) Config() Config {
	return p.config
}

// Result is the outcome of one run. Records are the merged raw records that were exported;
// Flat holds the same records normalized and Entries their identities and content hashes,
// all in the same order.
type Result struct {
	RunID       string                `json:"run_id"`
	BatchLabel  string                `json:"batch_label"`
	InputCount  int                   `json:"input_count"`
	Records     []models.Record       `json:"-"`
	Flat        []models.FlatRecord   `json:"records"`
	Entries     []sinks.Entry         `json:"entries"`
	Pages       [][]models.FlatRecord `json:"-"`
	Columns     []string              `json:"columns"`
	Mapping     fields.FieldMapping   `json:"mapping"`
	Summary     summary.Summary       `json:"summary"`
	Warnings    []diagnostics.Warning `json:"warnings"`
	Unchanged   int                   `json:"unchanged"`
	GeneratedAt time.Time             `json:"generated_at"`
}

func (r *Result) PageCount() int {
	return len(r.Pages)
}

// Export packages the result for the sinks.
func (r *Result) Export() sinks.Export {
	return sinks.Export{
		Metadata: sinks.Metadata{
			RunID:       r.RunID,
			BatchLabel:  r.BatchLabel,
			RecordCount: len(r.Flat),
			GeneratedAt: r.GeneratedAt,
		},
		Columns: r.Columns,
		Mapping: r.Mapping,
		Pages:   r.Pages,
		Entries: r.entryPages(),
	}
}

// entryPages splits Entries along the page boundaries of Pages.
func (r *Result) entryPages() [][]sinks.Entry {
	pages := make([][]sinks.Entry, len(r.Pages))
	start := 0
	for i, page := range r.Pages {
		end := min(start+len(page), len(r.Entries))
		pages[i] = r.Entries[start:end]
		start = end
	}
	return pages
}

// Run processes one batch. Per-record problems become warnings; only configuration and
// hash store failures return an error.
func (p *Pipeline) Run(ctx context.Context, batch *sources.Batch) (*Result, error) {
	start := time.Now()
	runID := uuid.New().String()

	label := ""
	if batch != nil {
		label = batch.Label
	}

	ctx = fernctx.SetRunID(ctx, runID)
	ctx = fernctx.SetBatchLabel(ctx, label)
	ctx, span := tracing.StartSpan(ctx, "pipeline.Pipeline.Run")
	defer span.End()

	logger := p.logger.WithContext(ctx)
	collector := diagnostics.New(logger)

	var raw []models.Record
	if batch != nil {
		raw = batch.Records
		for _, w := range batch.Warnings {
			collector.Warn(w)
		}
	}

	merged := p.deduplicator.Merge(raw, collector)

	entries := make([]sinks.Entry, len(merged))
	for i, record := range merged {
		key, id, _ := p.deduplicator.Key(record)
		entries[i] = sinks.Entry{ID: id, Key: key, Hash: fingerprint.Digest(record)}
	}

	kept, entries, unchanged, err := p.dropUnchanged(ctx, label, merged, entries)
	if err != nil {
		tracing.Fail(span, err)
		return nil, err
	}

	normalizer := normalizers.NewRecordNormalizer(p.flattener, normalizers.Config{
		BatchLabel:       label,
		FieldNormalizers: p.config.FieldNormalizers,
		Now:              p.config.Now,
	})
	flat, exported, entries := p.normalize(normalizer, kept, entries, collector)

	columns := models.Columns(flat)
	pages, err := paging.Paginate(flat, p.config.PageSize)
	if err != nil {
		tracing.Fail(span, err)
		return nil, err
	}

	result := &Result{
		RunID:       runID,
		BatchLabel:  label,
		InputCount:  len(raw),
		Records:     exported,
		Flat:        flat,
		Entries:     entries,
		Pages:       pages,
		Columns:     columns,
		Mapping:     fields.BuildMapping(columns, p.overrides),
		Summary:     summary.Summarize(flat, columns),
		Warnings:    collector.Warnings(),
		Unchanged:   unchanged,
		GeneratedAt: p.config.Now().UTC(),
	}

	counts := make(map[string]int)
	for code, n := range collector.CountByCode() {
		counts[string(code)] = n
	}
	metrics.RecordWarnings(counts)
	metrics.RecordRun(label, len(raw), len(flat), unchanged, time.Since(start).Seconds())

	logger.WithFields(map[string]any{
		"input":     len(raw),
		"merged":    len(merged),
		"unchanged": unchanged,
		"output":    len(flat),
		"pages":     len(pages),
		"warnings":  len(result.Warnings),
	}).Infof("Processed batch '%s': %d records in, %d out", label, len(raw), len(flat))

	return result, nil
}

// columnOverrides keys display name overrides by the column the field ends up in, so an
// override for a raw system field such as _status applies to status. An override naming the
// column itself wins over one naming its raw form.
func columnOverrides(overrides map[string]string) map[string]string {
	out := make(map[string]string, len(overrides))
	for raw, display := range overrides {
		if column := normalizers.RenameField(raw); column != raw {
			out[column] = display
		}
	}
	for raw, display := range overrides {
		if normalizers.RenameField(raw) == raw {
			out[raw] = display
		}
	}
	return out
}

// normalize flattens each record, keeping the raw records and entries that survived alongside.
func (p *Pipeline) normalize(normalizer *normalizers.RecordNormalizer, records []models.Record, entries []sinks.Entry, collector diagnostics.Collector) ([]models.FlatRecord, []models.Record, []sinks.Entry) {
	flat := make([]models.FlatRecord, 0, len(records))
	kept := make([]models.Record, 0, len(records))
	keptEntries := make([]sinks.Entry, 0, len(records))
	for i, record := range records {
		out := normalizer.NormalizeAll([]models.Record{record}, collector)
		if len(out) == 0 {
			continue
		}
		flat = append(flat, out[0])
		kept = append(kept, record)
		keptEntries = append(keptEntries, entries[i])
	}
	return flat, kept, keptEntries
}

func (p *Pipeline) dropUnchanged(ctx context.Context, label string, records []models.Record, entries []sinks.Entry) ([]models.Record, []sinks.Entry, int, error) {
	if !p.config.ChangedOnly || p.hashStore == nil || len(records) == 0 {
		return records, entries, 0, nil
	}

	keys := make([]string, len(entries))
	for i, entry := range entries {
		keys[i] = entry.Key
	}
	previous, err := p.hashStore.Load(ctx, label, keys)
	if err != nil {
		return nil, nil, 0, err
	}

	kept := make([]models.Record, 0, len(records))
	keptEntries := make([]sinks.Entry, 0, len(entries))
	for i, record := range records {
		if stored, ok := previous[entries[i].Key]; ok && !fingerprint.HasChanged(stored, entries[i].Hash) {
			continue
		}
		kept = append(kept, record)
		keptEntries = append(keptEntries, entries[i])
	}
	return kept, keptEntries, len(records) - len(kept), nil
}
