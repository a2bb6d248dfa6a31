package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultTimeout bounds a readiness probe.
const DefaultTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool, sqlite.Pinger and the package registry.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckResult represents the health of a single dependency.
type CheckResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// HealthResult is the top-level health response.
type HealthResult struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Checker verifies that all dependencies are reachable.
type Checker struct {
	deps    map[string]Pinger
	timeout time.Duration
	logger  *slog.Logger
	gauge   *prometheus.GaugeVec
}

// NewChecker creates a health checker over the named dependencies and
// registers its Prometheus gauge.
func NewChecker(deps map[string]Pinger, logger *slog.Logger, reg prometheus.Registerer) *Checker {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "launcher",
		Name:      "health_check_up",
		Help:      "Whether a dependency is reachable. 1 = up, 0 = down.",
	}, []string{"dependency"})
	reg.MustRegister(gauge)

	return &Checker{
		deps:    deps,
		timeout: DefaultTimeout,
		logger:  logger.With("component", "health"),
		gauge:   gauge,
	}
}

// WithTimeout overrides DefaultTimeout.
func (c *Checker) WithTimeout(d time.Duration) *Checker {
	c.timeout = d
	return c
}

// Liveness returns a simple "up" response if the process is running.
func (c *Checker) Liveness(_ context.Context) HealthResult {
	return HealthResult{Status: "up"}
}

// Readiness pings every dependency concurrently and reports per-check status.
// A dependency that does not answer within the timeout counts as down.
func (c *Checker) Readiness(ctx context.Context) HealthResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	result := HealthResult{
		Status: "up",
		Checks: make(map[string]CheckResult, len(c.deps)),
	}

	for name, dep := range c.deps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := dep.Ping(checkCtx)
			check := CheckResult{Status: "up", LatencyMS: time.Since(start).Milliseconds()}

			if err != nil {
				c.logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				check.Status = "down"
				check.Error = err.Error()
				c.gauge.WithLabelValues(name).Set(0)
			} else {
				c.gauge.WithLabelValues(name).Set(1)
			}

			mu.Lock()
			result.Checks[name] = check
			if err != nil {
				result.Status = "down"
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	return result
}
