// Package health runs dependency checks for the HTTP probes and the gRPC
// health service.
package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/prometheus"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Checker probes one dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

type funcChecker struct {
	name string
	fn   func(ctx context.Context) error
}

func (c funcChecker) Name() string                    { return c.name }
func (c funcChecker) Check(ctx context.Context) error { return c.fn(ctx) }

// NewChecker adapts a HealthCheck method, e.g. postgres.Connection.HealthCheck.
func NewChecker(name string, fn func(ctx context.Context) error) Checker {
	return funcChecker{name: name, fn: fn}
}

// ComponentCheck is the outcome of one Checker.
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report aggregates the checks of one probe run.
type Report struct {
	Healthy    bool
	Components map[string]ComponentCheck
}

// Prober runs all checkers concurrently, each bounded by timeout.
type Prober struct {
	checkers []Checker
	timeout  time.Duration
	metrics  *prometheus.AppMetrics
	logger   logging.Logger
}

// NewProber creates a prober. metrics and logger may be nil.
func NewProber(timeout time.Duration, metrics *prometheus.AppMetrics, logger logging.Logger, checkers ...Checker) *Prober {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if metrics == nil {
		metrics = prometheus.NewNoopAppMetrics()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Prober{checkers: checkers, timeout: timeout, metrics: metrics, logger: logger.Named("health")}
}

// Len returns the number of registered checkers.
func (p *Prober) Len() int { return len(p.checkers) }

// CheckAll runs every checker and updates health_check_status.
func (p *Prober) CheckAll(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	report := Report{Healthy: true, Components: make(map[string]ComponentCheck, len(p.checkers))}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range p.checkers {
		c := c
		g.Go(func() error {
			start := time.Now()
			err := c.Check(gctx)
			cc := ComponentCheck{Status: StatusHealthy, Latency: time.Since(start).Truncate(time.Microsecond).String()}
			if err != nil {
				cc.Status = StatusUnhealthy
				cc.Error = err.Error()
				p.logger.Warn("Health check failed", logging.String("component", c.Name()), logging.Err(err))
			}
			p.metrics.SetHealth(c.Name(), err == nil)

			mu.Lock()
			report.Components[c.Name()] = cc
			if err != nil {
				report.Healthy = false
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return report
}
