// Package health runs liveness and readiness checks and serves them over
// HTTP next to the metrics endpoint.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lewisedginton/contextmemory/pkg/logger"
)

// Check is a single probe. A nil error means healthy.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to Check.
type CheckFunc struct {
	name string
	fn   func(context.Context) error
}

// NewCheckFunc creates a new CheckFunc with the given name and function.
func NewCheckFunc(name string, fn func(context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

// Name returns the name of this check.
func (c *CheckFunc) Name() string { return c.name }

// Check executes the check function.
func (c *CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name    string
	Healthy bool
	Error   string
	Latency time.Duration
}

// HealthStatus is the outcome of a probe. Checks are sorted by name.
type HealthStatus struct {
	Healthy bool
	Checks  []CheckResult
}

// HealthChecker runs liveness and readiness checks. A failing check only
// reports unhealthy after failureThreshold consecutive failures.
type HealthChecker struct {
	mu               sync.RWMutex
	liveness         []Check
	readiness        []Check
	failures         map[string]int
	timeout          time.Duration
	failureThreshold int
	logger           logger.Logger
}

// Option is a functional option for configuring HealthChecker.
type Option func(*HealthChecker)

// WithTimeout bounds each check. Default is 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(h *HealthChecker) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithLogger sets the logger for health check operations.
func WithLogger(l logger.Logger) Option {
	return func(h *HealthChecker) { h.logger = l }
}

// WithFailureThreshold sets how many consecutive failures make a check
// unhealthy. Default is 3.
func WithFailureThreshold(threshold int) Option {
	return func(h *HealthChecker) {
		if threshold > 0 {
			h.failureThreshold = threshold
		}
	}
}

// New creates a new HealthChecker with the given options.
func New(opts ...Option) *HealthChecker {
	h := &HealthChecker{
		failures:         make(map[string]int),
		timeout:          5 * time.Second,
		failureThreshold: 3,
		logger:           logger.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddLivenessCheck adds a check that decides whether the process is alive.
func (h *HealthChecker) AddLivenessCheck(check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, check)
}

// AddReadinessCheck adds a check that decides whether the process can serve.
func (h *HealthChecker) AddReadinessCheck(check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, check)
}

// CheckLiveness runs every liveness check.
func (h *HealthChecker) CheckLiveness(ctx context.Context) (*HealthStatus, error) {
	h.mu.RLock()
	checks := append([]Check(nil), h.liveness...)
	h.mu.RUnlock()
	return h.run(ctx, checks)
}

// CheckReadiness runs every readiness check.
func (h *HealthChecker) CheckReadiness(ctx context.Context) (*HealthStatus, error) {
	h.mu.RLock()
	checks := append([]Check(nil), h.readiness...)
	h.mu.RUnlock()
	return h.run(ctx, checks)
}

func (h *HealthChecker) run(ctx context.Context, checks []Check) (*HealthStatus, error) {
	status := &HealthStatus{Healthy: true, Checks: make([]CheckResult, len(checks))}

	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			status.Checks[i] = h.runOne(ctx, check)
		}(i, check)
	}
	wg.Wait()

	sort.Slice(status.Checks, func(i, j int) bool {
		return status.Checks[i].Name < status.Checks[j].Name
	})

	var failed []string
	for _, r := range status.Checks {
		if !r.Healthy {
			failed = append(failed, r.Name)
		}
	}
	if len(failed) > 0 {
		status.Healthy = false
		return status, fmt.Errorf("health checks failed: %v", failed)
	}
	return status, nil
}

func (h *HealthChecker) runOne(parent context.Context, check Check) CheckResult {
	ctx, cancel := context.WithTimeout(parent, h.timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(ctx)
	result := CheckResult{Name: check.Name(), Latency: time.Since(start), Healthy: true}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err == nil {
		h.failures[result.Name] = 0
		return result
	}

	h.failures[result.Name]++
	count := h.failures[result.Name]
	fields := []logger.LogField{
		logger.StringField("check", result.Name),
		logger.ErrorField(err),
		logger.IntField("failures", count),
		logger.DurationField("latency", result.Latency),
	}

	if count < h.failureThreshold {
		h.logger.Debug("Health check failed below threshold", fields...)
		return result
	}

	h.logger.Warn("Health check failed", fields...)
	result.Healthy = false
	result.Error = err.Error()
	return result
}
