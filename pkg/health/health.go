// Package health serves liveness and readiness for fern serve.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const checkTimeout = 5 * time.Second

type CheckResult struct {
	Status   Status `json:"status"`
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
}

type Response struct {
	Status     Status                 `json:"status"`
	Version    string                 `json:"version,omitempty"`
	Uptime     string                 `json:"uptime,omitempty"`
	Checks     map[string]CheckResult `json:"checks,omitempty"`
	ReportedAt time.Time              `json:"reported_at"`
}

// Pinger is anything that can report connectivity: the redis client, the SQL database, the
// mongo collection.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

type registration struct {
	pinger   Pinger
	optional bool
}

type Checker struct {
	mu      sync.RWMutex
	checks  map[string]registration
	started time.Time
	version string
	ready   bool
}

func NewChecker(version string) *Checker {
	return &Checker{
		checks:  make(map[string]registration),
		started: time.Now(),
		version: version,
	}
}

// AddCheck registers a dependency fern cannot sync without.
func (c *Checker) AddCheck(name string, pinger Pinger) {
	c.register(name, registration{pinger: pinger})
}

// AddOptionalCheck registers a dependency that only some export targets need. Its failure
// degrades the service instead of failing it, since the other targets keep exporting.
func (c *Checker) AddOptionalCheck(name string, pinger Pinger) {
	c.register(name, registration{pinger: pinger, optional: true})
}

func (c *Checker) register(name string, r registration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = r
}

func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

func (c *Checker) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

func (c *Checker) response(status Status, checks map[string]CheckResult) Response {
	return Response{
		Status:     status,
		Version:    c.version,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Checks:     checks,
		ReportedAt: time.Now().UTC(),
	}
}

// LivenessHandler only reports that the process is serving.
func (c *Checker) LivenessHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.response(StatusHealthy, nil))
}

// ReadinessHandler fails until SetReady(true) and whenever a required dependency is down.
func (c *Checker) ReadinessHandler(ctx echo.Context) error {
	if !c.IsReady() {
		return ctx.JSON(http.StatusServiceUnavailable, c.response(StatusUnhealthy, map[string]CheckResult{
			"startup": {Status: StatusUnhealthy, Message: "dependencies are still starting"},
		}))
	}
	return c.HealthHandler(ctx)
}

func (c *Checker) HealthHandler(ctx echo.Context) error {
	checks := c.RunChecks(ctx.Request().Context())
	status := Overall(checks)

	code := http.StatusOK
	if status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, c.response(status, checks))
}

// RunChecks pings every dependency concurrently, each under its own timeout.
func (c *Checker) RunChecks(ctx context.Context) map[string]CheckResult {
	c.mu.RLock()
	checks := make(map[string]registration, len(c.checks))
	for name, r := range c.checks {
		checks[name] = r
	}
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checks))
	)
	for name, r := range checks {
		wg.Add(1)
		go func(name string, r registration) {
			defer wg.Done()
			result := ping(ctx, r)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, r)
	}
	wg.Wait()
	return results
}

func ping(ctx context.Context, r registration) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := r.pinger.Ping(ctx)
	result := CheckResult{Status: StatusHealthy, Optional: r.optional, Latency: time.Since(start).String()}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	return result
}

// Overall is unhealthy when a required check fails and degraded when only optional ones do.
func Overall(checks map[string]CheckResult) Status {
	status := StatusHealthy
	for _, result := range checks {
		if result.Status != StatusUnhealthy {
			continue
		}
		if !result.Optional {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}
