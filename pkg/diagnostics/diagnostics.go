// Package diagnostics collects the non-fatal warnings raised while a batch moves through
// the pipeline. A Diagnostics value is scoped to one run and is passed explicitly to each
// stage; nothing here is global.
package diagnostics

import (
	"fmt"
	"sync"

	"github.com/Gobusters/ectologger"
)

type Code string

const (
	CodeInvalidTimestamp       Code = "invalid_timestamp"
	CodeMissingIdentity        Code = "missing_identity"
	CodeInvalidRecordStructure Code = "invalid_record_structure"
	CodeRecordRejected         Code = "record_rejected"
)

// Warning is a single soft failure. The batch continues after every warning.
type Warning struct {
	Code     Code   `json:"code"`
	Stage    string `json:"stage"`
	RecordID string `json:"record_id,omitempty"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

func (w Warning) String() string {
	prefix := fmt.Sprintf("[%s] %s", w.Code, w.Stage)
	if w.RecordID != "" {
		prefix += fmt.Sprintf(" record '%s'", w.RecordID)
	}
	if w.Field != "" {
		prefix += fmt.Sprintf(" field '%s'", w.Field)
	}
	return prefix + ": " + w.Message
}

// Collector receives warnings from pipeline stages.
type Collector interface {
	Warn(w Warning)
}

type Diagnostics struct {
	mu       sync.Mutex
	warnings []Warning
	logger   ectologger.Logger
}

// New returns an empty collector. Warnings are also logged at warn level when logger is set.
func New(logger ectologger.Logger) *Diagnostics {
	return &Diagnostics{logger: logger}
}

func (d *Diagnostics) Warn(w Warning) {
	d.mu.Lock()
	d.warnings = append(d.warnings, w)
	d.mu.Unlock()

	if d.logger != nil {
		d.logger.WithFields(map[string]any{
			"code":      string(w.Code),
			"stage":     w.Stage,
			"record_id": w.RecordID,
			"field":     w.Field,
		}).Warn(w.Message)
	}
}

// Warnings returns a copy of everything collected so far, in emission order.
func (d *Diagnostics) Warnings() []Warning {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Warning, len(d.warnings))
	copy(out, d.warnings)
	return out
}

func (d *Diagnostics) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.warnings)
}

func (d *Diagnostics) CountByCode() map[Code]int {
	d.mu.Lock()
	defer d.mu.Unlock()

	counts := make(map[Code]int)
	for _, w := range d.warnings {
		counts[w.Code]++
	}
	return counts
}

type discard struct{}

func (discard) Warn(Warning) {}

// Discard drops every warning.
var Discard Collector = discard{}
