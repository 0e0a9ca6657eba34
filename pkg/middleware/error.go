package middleware

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Error renders every handler error as an ErrorResponse. Server errors hide their message.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		httpErr := classify(err)

		entry := logger.WithContext(ctx).WithError(err).WithField("status", httpErr.Code)
		if httpErr.Code >= http.StatusInternalServerError {
			entry.Error("Request failed")
		} else {
			entry.Debug("Request rejected")
		}

		if c.Response().Committed {
			return
		}

		message := httpErr.Message
		if httpErr.Code >= http.StatusInternalServerError && !httperror.IsHTTPError(err) {
			message = http.StatusText(httpErr.Code)
		}
		_ = c.JSON(httpErr.Code, ErrorResponse{
			Message:   message,
			RequestID: context.GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
			Meta:      httpErr.Meta,
		})
	}
}

// classify maps echo, pipeline and plain errors onto an HTTPError.
func classify(err error) *httperror.HTTPError {
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		message, ok := echoErr.Message.(string)
		if !ok {
			message = http.StatusText(echoErr.Code)
		}
		return httperror.NewHTTPError(echoErr.Code, message)
	}
	if pipelineErr, ok := fernerrors.AsPipelineError(err); ok {
		return pipelineErr.ToHTTPError()
	}
	var httpErr *httperror.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return httperror.NewHTTPError(http.StatusInternalServerError, err.Error())
}
