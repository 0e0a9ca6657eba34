package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/context"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
)

var silentLogger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = Error(silentLogger)
	e.Use(Context())
	e.Use(Logger(silentLogger))
	return e
}

func serve(e *echo.Echo, req *http.Request) (*httptest.ResponseRecorder, ErrorResponse) {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestContextSetsRequestID(t *testing.T) {
	e := newEcho()
	var seen string
	e.GET("/", func(c echo.Context) error {
		seen = context.GetRequestID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	t.Run("generated", func(t *testing.T) {
		rec, _ := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("from header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderXRequestID, "req-42")
		serve(e, req)
		assert.Equal(t, "req-42", seen)
	})
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedMsg  string
	}{
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "Internal Server Error"},
		{"echo error", echo.NewHTTPError(http.StatusNotFound, "nope"), http.StatusNotFound, "nope"},
		{"http error", httperror.NewHTTPError(http.StatusConflict, "taken"), http.StatusConflict, "taken"},
		{"pipeline configuration error", fernerrors.InvalidConfiguration("page size must be at least 1"), http.StatusBadRequest, "page size must be at least 1"},
		{"pipeline depth error", fernerrors.DepthExceeded(2), http.StatusUnprocessableEntity, "nesting exceeds max depth 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho()
			e.GET("/", func(c echo.Context) error { return tt.err })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(echo.HeaderXRequestID, "req-1")
			rec, body := serve(e, req)

			require.Equal(t, tt.expectedCode, rec.Code)
			assert.Contains(t, body.Message, tt.expectedMsg)
			assert.Equal(t, "req-1", body.RequestID)
		})
	}
}
