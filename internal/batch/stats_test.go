package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsEmpty(t *testing.T) {
	stats := NewExecutor(nil).Stats()
	assert.Equal(t, Stats{}, stats)
}

func TestStatsCompletedAndFailed(t *testing.T) {
	clock := testEpoch
	tick := func() time.Time {
		now := clock
		clock = clock.Add(time.Second)
		return now
	}
	tools := map[string]Tool{
		"ok": Func(func(context.Context, map[string]any) (any, error) {
			clock = clock.Add(time.Second)
			return "ok", nil
		}),
		"fail": Func(func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("nope")
		}),
	}

	exec := NewExecutor(tools, WithClock(tick))
	require.NoError(t, exec.AddToolExecution("a", "ok", nil))
	require.NoError(t, exec.AddToolExecution("b", "fail", nil, "a"))

	exec.ExecuteParallel(context.Background(), 1)

	stats := exec.Stats()
	assert.Equal(t, 2, stats.TotalTools)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2*time.Second, stats.TotalDuration)
	assert.Equal(t, 2*time.Second, stats.AverageDuration)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
}

func TestStatsCountsPendingTools(t *testing.T) {
	exec := NewExecutor(nil)
	require.NoError(t, exec.AddToolExecution("a", "missing", nil))
	require.NoError(t, exec.AddToolExecution("b", "missing", nil, "ghost"))

	exec.Execute(context.Background())

	stats := exec.Stats()
	assert.Equal(t, 2, stats.TotalTools)
	assert.Equal(t, 0, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Zero(t, stats.AverageDuration)
	assert.Zero(t, stats.SuccessRate)
}
