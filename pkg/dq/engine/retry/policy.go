package retry

import (
	"time"

	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

// RetryPolicy decides whether a failed operation is attempted again and how long to wait first.
type RetryPolicy interface {
	// ShouldRetry determines if a given error is retryable.
	ShouldRetry(err error) bool
	// GetBackoffInterval returns the wait before the next attempt.
	// attempt: The attempt that just failed (starting from 1).
	GetBackoffInterval(attempt int) time.Duration
	// GetMaxAttempts returns the total attempt budget. Zero means unbounded.
	GetMaxAttempts() int
}

// DefaultRetryPolicyFactory is a factory for creating RetryPolicy.
type DefaultRetryPolicyFactory struct{}

// NewDefaultRetryPolicyFactory creates a new DefaultRetryPolicyFactory.
func NewDefaultRetryPolicyFactory() *DefaultRetryPolicyFactory {
	return &DefaultRetryPolicyFactory{}
}

// Create creates a new RetryPolicy.
//
// maxAttempts: Total attempts allowed, 0 for unbounded.
// delay: Fixed wait between attempts.
// retryableErrors: Extra registered error names treated as retryable on top of exception.IsTransient.
func (f *DefaultRetryPolicyFactory) Create(maxAttempts int, delay time.Duration, retryableErrors []string) RetryPolicy {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &defaultRetryPolicy{
		maxAttempts:     maxAttempts,
		delay:           delay,
		retryableErrors: retryableErrors,
	}
}

// defaultRetryPolicy retries connectivity failures only, at a fixed interval.
type defaultRetryPolicy struct {
	maxAttempts     int
	delay           time.Duration
	retryableErrors []string
}

// GetMaxAttempts returns the maximum number of attempts.
func (p *defaultRetryPolicy) GetMaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry returns true for transient connectivity errors and configured error names.
// Configuration, concurrency and termination errors are never retried.
func (p *defaultRetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if exception.IsTransient(err) {
		return true
	}
	switch exception.KindOf(err) {
	case exception.KindConfiguration, exception.KindConcurrencyTimeout,
		exception.KindMaxRetriesExceeded, exception.KindTermination:
		return false
	}
	for _, typeName := range p.retryableErrors {
		if exception.IsErrorOfType(err, typeName) {
			return true
		}
	}
	return false
}

// GetBackoffInterval returns the fixed delay regardless of attempt.
func (p *defaultRetryPolicy) GetBackoffInterval(attempt int) time.Duration {
	return p.delay
}

// Verify interfaces
var _ RetryPolicy = (*defaultRetryPolicy)(nil)
