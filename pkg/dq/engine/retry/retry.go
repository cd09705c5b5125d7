// Package retry wraps operations against the process database, the source databases
// and the notification channels so that connectivity failures are retried and
// logical failures are surfaced immediately.
package retry

import (
	"context"
	"time"

	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

const moduleName = "retry"

// Observer is notified before every retry. Metric recorders implement it.
type Observer interface {
	RecordRetry(ctx context.Context, operation string, attempt int)
}

// Executor runs operations under a RetryPolicy.
type Executor struct {
	policy   RetryPolicy
	sleep    func(ctx context.Context, d time.Duration) error
	observer Observer
}

// NewExecutor creates an Executor that waits with a context-aware timer.
func NewExecutor(policy RetryPolicy) *Executor {
	return &Executor{policy: policy, sleep: sleepContext}
}

// WithObserver returns a copy of the executor reporting retries to observer.
func (e *Executor) WithObserver(observer Observer) *Executor {
	clone := *e
	clone.observer = observer
	return &clone
}

// WithSleeper returns a copy of the executor using sleep instead of a real timer.
func (e *Executor) WithSleeper(sleep func(ctx context.Context, d time.Duration) error) *Executor {
	clone := *e
	clone.sleep = sleep
	return &clone
}

// Policy returns the policy of this executor.
func (e *Executor) Policy() RetryPolicy {
	return e.policy
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the attempt budget is spent.
// Exceeding the budget returns a KindMaxRetriesExceeded error wrapping the last failure.
func (e *Executor) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !e.policy.ShouldRetry(err) {
			return err
		}

		max := e.policy.GetMaxAttempts()
		if max > 0 && attempt >= max {
			msg := "Max retries reached for " + operation + ". Giving up."
			logger.Errorf("%s", msg)
			return exception.NewDQError(moduleName, exception.KindMaxRetriesExceeded, msg, err)
		}

		delay := e.policy.GetBackoffInterval(attempt)
		logger.Warnf("[Retry %d] Failed to execute %s due to a connectivity error. Retrying in %s. Error: %v",
			attempt, operation, delay, err)
		if e.observer != nil {
			e.observer.RecordRetry(ctx, operation, attempt)
		}
		if serr := e.sleep(ctx, delay); serr != nil {
			return serr
		}
	}
}

// DoValue is Do for operations returning a value.
func DoValue[T any](ctx context.Context, e *Executor, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, operation, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
