package health

import (
	"context"
	"fmt"
	"sync"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Checker is a dependency the server can probe
type Checker interface {
	Name() string
	IsCritical() bool
	HealthCheck(ctx context.Context) error
}

// Manager runs every registered checker
type Manager struct {
	checkers []Checker
	logger   *zap.Logger
	mu       sync.RWMutex
}

// NewManager creates a new health manager
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		checkers: make([]Checker, 0),
		logger:   logger,
	}
}

// AddChecker adds a health checker to the manager
func (h *Manager) AddChecker(checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers = append(h.checkers, checker)
}

// StartupHealthCheck fails when any critical checker fails. Non-critical
// failures are logged and ignored.
func (h *Manager) StartupHealthCheck(ctx context.Context) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var criticalFailures []error

	for _, checker := range h.checkers {
		err := checker.HealthCheck(ctx)
		if err == nil {
			h.logger.Info("Service health check passed",
				zap.String("service", checker.Name()),
				zap.Bool("critical", checker.IsCritical()))
			continue
		}

		if checker.IsCritical() {
			criticalFailures = append(criticalFailures, fmt.Errorf("%s: %w", checker.Name(), err))
			h.logger.Error("Critical service health check failed",
				zap.String("service", checker.Name()),
				zap.Error(err))
		} else {
			h.logger.Warn("Non-critical service health check failed",
				zap.String("service", checker.Name()),
				zap.Error(err))
		}
	}

	if len(criticalFailures) > 0 {
		return fmt.Errorf("critical services failed health check: %v", criticalFailures)
	}

	h.logger.Info("All critical services healthy", zap.Int("total_checks", len(h.checkers)))
	return nil
}

// Report is the result of a runtime health check
type Report struct {
	Healthy  bool              `json:"healthy"`
	Services map[string]string `json:"services"`
}

// RuntimeHealthCheck probes every checker. The report is unhealthy only when
// a critical checker fails.
func (h *Manager) RuntimeHealthCheck(ctx context.Context) Report {
	h.mu.RLock()
	defer h.mu.RUnlock()

	report := Report{
		Healthy:  true,
		Services: make(map[string]string, len(h.checkers)),
	}
	for _, checker := range h.checkers {
		if err := checker.HealthCheck(ctx); err != nil {
			report.Services[checker.Name()] = err.Error()
			if checker.IsCritical() {
				report.Healthy = false
			}
			continue
		}
		report.Services[checker.Name()] = "ok"
	}

	return report
}

// DatabaseChecker checks database connectivity
type DatabaseChecker struct {
	db *bun.DB
}

// NewDatabaseChecker creates a database health checker
func NewDatabaseChecker(db *bun.DB) *DatabaseChecker {
	return &DatabaseChecker{db: db}
}

func (d *DatabaseChecker) HealthCheck(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DatabaseChecker) IsCritical() bool {
	return true
}

func (d *DatabaseChecker) Name() string {
	return "database"
}

// Pinger is anything with a connectivity probe, such as the topic graph
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// GraphChecker checks the optional topic graph
type GraphChecker struct {
	graph Pinger
}

// NewGraphChecker creates a topic graph health checker
func NewGraphChecker(graph Pinger) *GraphChecker {
	return &GraphChecker{graph: graph}
}

func (g *GraphChecker) HealthCheck(ctx context.Context) error {
	if g.graph == nil {
		return fmt.Errorf("topic graph is nil")
	}
	return g.graph.HealthCheck(ctx)
}

func (g *GraphChecker) IsCritical() bool {
	return false // sessions are served without the projection
}

func (g *GraphChecker) Name() string {
	return "topic_graph"
}

// ConfigChecker rejects settings the server cannot run with
type ConfigChecker struct {
	jwtSecret   string
	storeDriver string
}

// NewConfigChecker creates a config health checker
func NewConfigChecker(jwtSecret, storeDriver string) *ConfigChecker {
	return &ConfigChecker{jwtSecret: jwtSecret, storeDriver: storeDriver}
}

func (c *ConfigChecker) HealthCheck(ctx context.Context) error {
	if c.jwtSecret == "" {
		return fmt.Errorf("jwt secret is not configured")
	}
	switch c.storeDriver {
	case "postgres", "memory":
		return nil
	default:
		return fmt.Errorf("unsupported store driver: %q", c.storeDriver)
	}
}

func (c *ConfigChecker) IsCritical() bool {
	return true
}

func (c *ConfigChecker) Name() string {
	return "configuration"
}
