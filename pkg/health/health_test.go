package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCheck struct {
	name      string
	err       error
	sleepTime time.Duration
}

func (m *mockCheck) Name() string {
	return m.name
}

func (m *mockCheck) Check(ctx context.Context) error {
	if m.sleepTime > 0 {
		select {
		case <-time.After(m.sleepTime):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

func TestNew(t *testing.T) {
	t.Run("default configuration", func(t *testing.T) {
		h := New()
		assert.Equal(t, 5*time.Second, h.timeout)
		assert.Equal(t, 3, h.failureThreshold)
		assert.NotNil(t, h.failures)
		assert.NotNil(t, h.logger)
	})

	t.Run("options", func(t *testing.T) {
		h := New(WithTimeout(time.Second), WithFailureThreshold(5))
		assert.Equal(t, time.Second, h.timeout)
		assert.Equal(t, 5, h.failureThreshold)
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		h := New(WithTimeout(0), WithFailureThreshold(0))
		assert.Equal(t, 5*time.Second, h.timeout)
		assert.Equal(t, 3, h.failureThreshold)
	})
}

func TestCheckFunc(t *testing.T) {
	expectedErr := errors.New("boom")
	check := NewCheckFunc("storage", func(context.Context) error { return expectedErr })

	assert.Equal(t, "storage", check.Name())
	assert.Equal(t, expectedErr, check.Check(context.Background()))
}

func TestHealthChecker_NoChecks(t *testing.T) {
	h := New()

	for _, probe := range []func(context.Context) (*HealthStatus, error){h.CheckLiveness, h.CheckReadiness} {
		status, err := probe(context.Background())
		require.NoError(t, err)
		assert.True(t, status.Healthy)
		assert.Empty(t, status.Checks)
	}
}

func TestHealthChecker_MixedResults(t *testing.T) {
	h := New(WithFailureThreshold(1))
	h.AddReadinessCheck(&mockCheck{name: "snapshot", err: errors.New("unreadable")})
	h.AddReadinessCheck(&mockCheck{name: "backend"})

	status, err := h.CheckReadiness(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot")
	assert.False(t, status.Healthy)
	require.Len(t, status.Checks, 2)
	assert.Equal(t, "backend", status.Checks[0].Name)
	assert.True(t, status.Checks[0].Healthy)
	assert.Equal(t, "snapshot", status.Checks[1].Name)
	assert.False(t, status.Checks[1].Healthy)
	assert.Equal(t, "unreadable", status.Checks[1].Error)
}

func TestHealthChecker_FailureThreshold(t *testing.T) {
	check := &mockCheck{name: "backend", err: errors.New("down")}
	h := New(WithFailureThreshold(3))
	h.AddLivenessCheck(check)

	for i := 0; i < 2; i++ {
		status, err := h.CheckLiveness(context.Background())
		require.NoError(t, err, "attempt %d", i+1)
		assert.True(t, status.Healthy)
	}

	status, err := h.CheckLiveness(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)

	check.err = nil
	status, err = h.CheckLiveness(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Equal(t, 0, h.failures["backend"])
}

func TestHealthChecker_Timeout(t *testing.T) {
	h := New(WithTimeout(20*time.Millisecond), WithFailureThreshold(1))
	h.AddReadinessCheck(&mockCheck{name: "slow", sleepTime: time.Second})

	status, err := h.CheckReadiness(context.Background())

	require.Error(t, err)
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Checks[0].Error, context.DeadlineExceeded.Error())
}
