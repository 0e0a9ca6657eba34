package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// Kind categorizes errors that abort a single pipeline operation.
type Kind string

const (
	KindInvalidConfiguration Kind = "invalid_configuration"
	KindDepthExceeded        Kind = "depth_exceeded"
	KindInvalidRecord        Kind = "invalid_record"
)

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrDepthExceeded        = errors.New("depth exceeded")
	ErrInvalidRecord        = errors.New("invalid record")
)

type PipelineError struct {
	Kind    Kind
	Stage   string
	Field   string
	Record  string
	Message string
	cause   error
}

func NewPipelineError(kind Kind, msg string) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Message: msg,
	}
}

func NewPipelineErrorf(kind Kind, format string, args ...any) *PipelineError {
	err := fmt.Errorf(format, args...)
	return &PipelineError{
		Kind:    kind,
		Message: err.Error(),
		cause:   errors.Unwrap(err),
	}
}

func InvalidConfiguration(format string, args ...any) *PipelineError {
	return NewPipelineErrorf(KindInvalidConfiguration, format, args...)
}

func DepthExceeded(maxDepth int) *PipelineError {
	return NewPipelineErrorf(KindDepthExceeded, "nesting exceeds max depth %d", maxDepth)
}

func (e *PipelineError) Error() string {
	path := []string{}
	if e.Stage != "" {
		path = append(path, fmt.Sprintf("stage '%s'", e.Stage))
	}
	if e.Record != "" {
		path = append(path, fmt.Sprintf("record '%s'", e.Record))
	}
	if e.Field != "" {
		path = append(path, fmt.Sprintf("field '%s'", e.Field))
	}

	if len(path) == 0 {
		return e.Message
	}

	return strings.Join(path, " -> ") + ": " + e.Message
}

// Is lets errors.Is match on the sentinel for the error's kind.
func (e *PipelineError) Is(target error) bool {
	switch e.Kind {
	case KindInvalidConfiguration:
		return target == ErrInvalidConfiguration
	case KindDepthExceeded:
		return target == ErrDepthExceeded
	case KindInvalidRecord:
		return target == ErrInvalidRecord
	}
	return false
}

func (e *PipelineError) Unwrap() error {
	return e.cause
}

func (e *PipelineError) AddStage(stage string) *PipelineError {
	e.Stage = stage
	return e
}

func (e *PipelineError) AddField(field string) *PipelineError {
	e.Field = field
	return e
}

func (e *PipelineError) AddRecord(recordID string) *PipelineError {
	e.Record = recordID
	return e
}

func (e *PipelineError) ToHTTPError() *httperror.HTTPError {
	status := http.StatusUnprocessableEntity
	if e.Kind == KindInvalidConfiguration {
		status = http.StatusBadRequest
	}

	return httperror.NewHTTPError(status, e.Error()).
		AddMetaValue("kind", string(e.Kind)).
		AddMetaValue("stage", e.Stage).
		AddMetaValue("field", e.Field).
		AddMetaValue("record_id", e.Record)
}

func IsPipelineError(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe)
}

// AsPipelineError unwraps err to a *PipelineError, if it carries one.
func AsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
