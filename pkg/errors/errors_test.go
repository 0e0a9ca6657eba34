package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineError(t *testing.T) {
	t.Run("message carries the path", func(t *testing.T) {
		err := DepthExceeded(32).AddStage("flatten").AddRecord("abc").AddField("a_b")
		assert.Equal(t, "stage 'flatten' -> record 'abc' -> field 'a_b': nesting exceeds max depth 32", err.Error())
	})

	t.Run("bare message", func(t *testing.T) {
		assert.Equal(t, "oops", NewPipelineError(KindInvalidRecord, "oops").Error())
	})

	t.Run("matches its sentinel through wrapping", func(t *testing.T) {
		err := fmt.Errorf("sync: %w", InvalidConfiguration("page size must be at least 1"))
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
		assert.NotErrorIs(t, err, ErrDepthExceeded)

		pe, ok := AsPipelineError(err)
		require.True(t, ok)
		assert.Equal(t, KindInvalidConfiguration, pe.Kind)
		assert.True(t, IsPipelineError(err))
	})

	t.Run("keeps the wrapped cause", func(t *testing.T) {
		cause := errors.New("disk full")
		err := NewPipelineErrorf(KindInvalidRecord, "write failed: %w", cause)
		assert.ErrorIs(t, err, cause)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("plain errors are not pipeline errors", func(t *testing.T) {
		_, ok := AsPipelineError(errors.New("x"))
		assert.False(t, ok)
	})
}

func TestToHTTPError(t *testing.T) {
	t.Run("configuration is a bad request", func(t *testing.T) {
		httpErr := InvalidConfiguration("bad").AddStage("paginate").ToHTTPError()
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(httpErr))
	})

	t.Run("data errors are unprocessable", func(t *testing.T) {
		httpErr := DepthExceeded(2).AddStage("flatten").ToHTTPError()
		assert.Equal(t, http.StatusUnprocessableEntity, httperror.GetStatusCode(httpErr))
	})
}
