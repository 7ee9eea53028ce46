// Package health runs periodic liveness checks against the cache's
// components and serves the results over HTTP. The checker only reports: a
// distributed tier that was downgraded stays downgraded even when its check
// starts passing again.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tiercache/tiercache/internal/config"
	"github.com/tiercache/tiercache/pkg/types"
)

// Component is anything the checker can probe.
type Component interface {
	HealthCheck(ctx context.Context) error
	GetComponentName() string
}

// Result is the outcome of one component check.
type Result struct {
	Component string             `json:"component"`
	Status    types.HealthStatus `json:"status"`
	Duration  time.Duration      `json:"duration"`
	Timestamp time.Time          `json:"timestamp"`
	Error     string             `json:"error,omitempty"`
}

// Checker polls registered components on a fixed interval.
type Checker struct {
	mu         sync.RWMutex
	cfg        config.HealthChecksConfig
	port       int
	components []Component
	results    map[string]*Result
	logger     *slog.Logger
	stopCh     chan struct{}
	started    bool
	server     *http.Server
}

// NewChecker creates a checker; components are added with Register before
// Start.
func NewChecker(cfg config.HealthChecksConfig, port int, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		cfg:     cfg,
		port:    port,
		results: make(map[string]*Result),
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Register adds a component to the polling set. Not safe to call after Start.
func (c *Checker) Register(component Component) {
	c.components = append(c.components, component)
}

// Start launches the polling loop and the HTTP endpoint. Disabled config
// makes it a no-op.
func (c *Checker) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cfg.Enabled {
		return nil
	}
	if c.started {
		return fmt.Errorf("health checker already started")
	}
	c.started = true

	go c.checkLoop(ctx)

	if c.port > 0 {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", c.healthHandler)
		c.server = &http.Server{
			Addr:              fmt.Sprintf(":%d", c.port),
			Handler:           mux,
			ReadHeaderTimeout: 30 * time.Second,
		}
		go func() {
			if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				c.logger.Error("health server failed", "error", err)
			}
		}()
	}
	return nil
}

// Stop halts the polling loop and the HTTP endpoint.
func (c *Checker) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	close(c.stopCh)
	c.started = false
	server := c.server
	c.mu.Unlock()

	if server != nil {
		return server.Shutdown(ctx)
	}
	return nil
}

// RunChecks probes every component once and records the results.
func (c *Checker) RunChecks(ctx context.Context) map[string]*Result {
	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	results := make(map[string]*Result, len(c.components))
	for _, component := range c.components {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		err := component.HealthCheck(checkCtx)
		cancel()

		result := &Result{
			Component: component.GetComponentName(),
			Status:    types.HealthStatusHealthy,
			Duration:  time.Since(start),
			Timestamp: start,
		}
		if err != nil {
			result.Status = types.HealthStatusUnhealthy
			result.Error = err.Error()
		}
		results[result.Component] = result
	}

	c.mu.Lock()
	for name, result := range results {
		c.results[name] = result
	}
	c.mu.Unlock()
	return results
}

// Status returns the latest result per component.
func (c *Checker) Status() map[string]Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Result, len(c.results))
	for name, result := range c.results {
		out[name] = *result
	}
	return out
}

// Overall condenses the per-component results: unhealthy if any component
// is, degraded if none have been checked yet.
func (c *Checker) Overall() types.HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.results) == 0 {
		return types.HealthStatusDegraded
	}
	for _, result := range c.results {
		if result.Status != types.HealthStatusHealthy {
			return types.HealthStatusUnhealthy
		}
	}
	return types.HealthStatusHealthy
}

func (c *Checker) checkLoop(ctx context.Context) {
	interval := c.cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunChecks(ctx)
		}
	}
}

func (c *Checker) healthHandler(w http.ResponseWriter, r *http.Request) {
	overall := c.Overall()

	w.Header().Set("Content-Type", "application/json")
	if overall == types.HealthStatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": overall,
		"checks": c.Status(),
	})
}
