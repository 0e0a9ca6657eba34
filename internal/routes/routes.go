// Package routes builds the HTTP server: health probes, prometheus metrics and the v1 API.
package routes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectoinject/loglevel"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/internal/routes/batch"
	"github.com/Ramsey-B/fern/internal/routes/hash"
	"github.com/Ramsey-B/fern/pkg/middleware"
)

// NewContainer registers the app and logger in a DI container the handlers resolve from.
func NewContainer(containerID string, a *app.App, logger ectologger.Logger) error {
	container, err := ectoinject.NewDIContainer(ectocontainer.DIContainerConfig{
		ID:                       containerID,
		AllowCaptiveDependencies: true,
		AllowMissingDependencies: true,
		LoggerConfig: &ectocontainer.DIContainerLoggerConfig{
			Prefix:   "ectoinject",
			LogLevel: loglevel.INFO,
			Enabled:  true,
			LogFunc: func(ctx context.Context, _ string, msg string) {
				logger.WithContext(ctx).Debug(msg)
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	if err := ectoinject.RegisterInstance[*app.App](container, a); err != nil {
		return err
	}
	return ectoinject.RegisterInstance[ectologger.Logger](container, logger)
}

// New builds the echo server. The container must already be registered with NewContainer.
func New(cfg *config.Config, a *app.App, logger ectologger.Logger, containerID string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomiddleware.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.BodyLimit(cfg.HttpBodyLimit))

	checker := a.Health()
	e.GET("/health", checker.HealthHandler)
	e.GET("/health/live", checker.LivenessHandler)
	e.GET("/health/ready", checker.ReadinessHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1", middleware.Container(containerID))
	batch.Register(v1)
	hash.Register(v1)

	return e
}

// Serve runs the server until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, cfg *config.Config, e *echo.Echo, logger ectologger.Logger) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HttpPort),
		Handler:      e,
		ReadTimeout:  time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("Shutting down HTTP server")
	return server.Shutdown(shutdownCtx)
}
