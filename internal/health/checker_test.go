package health

import (
	"context"
	stderr "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiercache/tiercache/internal/config"
	"github.com/tiercache/tiercache/pkg/types"
)

type fakeComponent struct {
	name  string
	err   error
	calls atomic.Int64
	block bool
}

func (f *fakeComponent) HealthCheck(ctx context.Context) error {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func (f *fakeComponent) GetComponentName() string { return f.name }

func newTestChecker(components ...Component) *Checker {
	checker := NewChecker(config.HealthChecksConfig{
		Enabled:  true,
		Interval: 10 * time.Millisecond,
		Timeout:  50 * time.Millisecond,
	}, 0, nil)
	for _, component := range components {
		checker.Register(component)
	}
	return checker
}

func TestRunChecks(t *testing.T) {
	healthy := &fakeComponent{name: "redis"}
	broken := &fakeComponent{name: "source", err: stderr.New("connection refused")}

	checker := newTestChecker(healthy, broken)
	results := checker.RunChecks(context.Background())

	require.Len(t, results, 2)
	assert.Equal(t, types.HealthStatusHealthy, results["redis"].Status)
	assert.Empty(t, results["redis"].Error)
	assert.Equal(t, types.HealthStatusUnhealthy, results["source"].Status)
	assert.Equal(t, "connection refused", results["source"].Error)
}

func TestOverall(t *testing.T) {
	checker := newTestChecker(&fakeComponent{name: "redis"})

	// Nothing checked yet.
	assert.Equal(t, types.HealthStatusDegraded, checker.Overall())

	checker.RunChecks(context.Background())
	assert.Equal(t, types.HealthStatusHealthy, checker.Overall())
}

func TestOverall_UnhealthyComponent(t *testing.T) {
	checker := newTestChecker(
		&fakeComponent{name: "redis"},
		&fakeComponent{name: "source", err: stderr.New("down")},
	)
	checker.RunChecks(context.Background())
	assert.Equal(t, types.HealthStatusUnhealthy, checker.Overall())
}

func TestCheckTimeout(t *testing.T) {
	checker := newTestChecker(&fakeComponent{name: "slow", block: true})

	start := time.Now()
	results := checker.RunChecks(context.Background())
	elapsed := time.Since(start)

	assert.Equal(t, types.HealthStatusUnhealthy, results["slow"].Status)
	assert.Less(t, elapsed, time.Second, "timeout should bound the check")
}

func TestStartStop(t *testing.T) {
	component := &fakeComponent{name: "redis"}
	checker := newTestChecker(component)

	ctx := context.Background()
	require.NoError(t, checker.Start(ctx))
	assert.Error(t, checker.Start(ctx), "double start should fail")

	// The polling loop runs checks on its own.
	assert.Eventually(t, func() bool {
		return component.calls.Load() > 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, checker.Stop(ctx))
	require.NoError(t, checker.Stop(ctx), "stopping twice is a no-op")
}

func TestDisabledChecker(t *testing.T) {
	checker := NewChecker(config.HealthChecksConfig{Enabled: false}, 0, nil)
	checker.Register(&fakeComponent{name: "redis"})

	ctx := context.Background()
	require.NoError(t, checker.Start(ctx))
	require.NoError(t, checker.Stop(ctx))
}
