package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/metrics"
)

// Logger logs one line per API request and records its latency. Health and metrics probes
// are timed but not logged.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)

			req := c.Request()
			status := c.Response().Status
			route := c.Path()
			metrics.RecordHTTPRequest(req.Method, route, status, elapsed.Seconds())

			if isProbe(route) {
				return nil
			}

			entry := logger.WithContext(req.Context()).WithFields(context.Fields(req.Context())).WithFields(map[string]any{
				"status":      status,
				"duration_ms": elapsed.Milliseconds(),
				"bytes_in":    req.ContentLength,
				"bytes_out":   c.Response().Size,
			})

			switch {
			case status >= http.StatusInternalServerError:
				entry.Errorf("%s %s -> %d", req.Method, route, status)
			case status >= http.StatusBadRequest:
				entry.Warnf("%s %s -> %d", req.Method, route, status)
			default:
				entry.Infof("%s %s -> %d", req.Method, route, status)
			}
			return nil
		}
	}
}

func isProbe(route string) bool {
	return route == "/metrics" || strings.HasPrefix(route, "/health")
}
