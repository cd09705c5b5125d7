package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

type countingObserver struct{ attempts []int }

func (o *countingObserver) RecordRetry(_ context.Context, _ string, attempt int) {
	o.attempts = append(o.attempts, attempt)
}

func newTestExecutor(maxAttempts int, slept *[]time.Duration) *Executor {
	policy := NewDefaultRetryPolicyFactory().Create(maxAttempts, 60*time.Second, nil)
	return NewExecutor(policy).WithSleeper(func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	})
}

func TestDoRetriesTransientUntilSuccess(t *testing.T) {
	var slept []time.Duration
	obs := &countingObserver{}
	exec := newTestExecutor(3, &slept).WithObserver(obs)

	calls := 0
	err := exec.Do(context.Background(), "insert_job_log", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return driver.ErrBadConn
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{60 * time.Second, 60 * time.Second}, slept)
	assert.Equal(t, []int{1, 2}, obs.attempts)
}

func TestDoGivesUpAfterBudget(t *testing.T) {
	var slept []time.Duration
	exec := newTestExecutor(3, &slept)

	calls := 0
	err := exec.Do(context.Background(), "update_job_log", func(ctx context.Context) error {
		calls++
		return driver.ErrBadConn
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, exception.IsKind(err, exception.KindMaxRetriesExceeded))
	assert.Contains(t, err.Error(), "Max retries reached for update_job_log. Giving up.")
	assert.ErrorIs(t, err, driver.ErrBadConn)
}

func TestDoDoesNotRetryLogicalFailures(t *testing.T) {
	var slept []time.Duration
	exec := newTestExecutor(3, &slept)

	calls := 0
	logical := errors.New("column 'amount' does not exist")
	err := exec.Do(context.Background(), "read_table", func(ctx context.Context) error {
		calls++
		return logical
	})

	assert.Same(t, logical, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, slept)
}

func TestDoUnboundedStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := NewDefaultRetryPolicyFactory().Create(0, time.Second, nil)
	calls := 0
	exec := NewExecutor(policy).WithSleeper(func(ctx context.Context, _ time.Duration) error {
		if calls == 5 {
			cancel()
		}
		return ctx.Err()
	})

	err := exec.Do(ctx, "ping", func(ctx context.Context) error {
		calls++
		return driver.ErrBadConn
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, calls)
}

func TestDoValueAndConfiguredNames(t *testing.T) {
	policy := NewDefaultRetryPolicyFactory().Create(2, 0, []string{"Lock wait timeout"})
	exec := NewExecutor(policy)

	calls := 0
	v, err := DoValue(context.Background(), exec, "next_batch_seq", func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("Error 1205: Lock wait timeout exceeded")
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	assert.False(t, policy.ShouldRetry(exception.NewConfigurationError("configmodel", "lock wait timeout", nil)))
}
