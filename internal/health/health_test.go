package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubChecker struct {
	name     string
	critical bool
	err      error
}

func (s *stubChecker) Name() string                          { return s.name }
func (s *stubChecker) IsCritical() bool                      { return s.critical }
func (s *stubChecker) HealthCheck(ctx context.Context) error { return s.err }

func TestStartupHealthCheckIgnoresNonCriticalFailures(t *testing.T) {
	m := NewManager(zap.NewNop())
	m.AddChecker(&stubChecker{name: "database", critical: true})
	m.AddChecker(&stubChecker{name: "topic_graph", err: errors.New("connection refused")})

	assert.NoError(t, m.StartupHealthCheck(context.Background()))
}

func TestStartupHealthCheckFailsOnCritical(t *testing.T) {
	m := NewManager(nil)
	m.AddChecker(&stubChecker{name: "database", critical: true, err: errors.New("timeout")})

	err := m.StartupHealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database: timeout")
}

func TestRuntimeHealthCheckReport(t *testing.T) {
	m := NewManager(zap.NewNop())
	m.AddChecker(&stubChecker{name: "database", critical: true})
	m.AddChecker(&stubChecker{name: "topic_graph", err: errors.New("down")})

	report := m.RuntimeHealthCheck(context.Background())
	assert.True(t, report.Healthy)
	assert.Equal(t, "ok", report.Services["database"])
	assert.Equal(t, "down", report.Services["topic_graph"])

	m.AddChecker(&stubChecker{name: "configuration", critical: true, err: errors.New("bad")})
	assert.False(t, m.RuntimeHealthCheck(context.Background()).Healthy)
}

func TestConfigChecker(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, NewConfigChecker("secret", "memory").HealthCheck(ctx))
	assert.NoError(t, NewConfigChecker("secret", "postgres").HealthCheck(ctx))
	assert.Error(t, NewConfigChecker("", "memory").HealthCheck(ctx))
	assert.Error(t, NewConfigChecker("secret", "mongo").HealthCheck(ctx))
}

func TestGraphCheckerNil(t *testing.T) {
	c := NewGraphChecker(nil)
	assert.False(t, c.IsCritical())
	assert.Error(t, c.HealthCheck(context.Background()))
}
