package retry

import (
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
)

// ExecutorParams defines the dependencies for NewExecutorProvider.
type ExecutorParams struct {
	fx.In
	Config   *config.RetryConfig
	Observer Observer `optional:"true"`
}

// NewExecutorProvider builds the process-wide executor from the retry configuration.
func NewExecutorProvider(p ExecutorParams) *Executor {
	policy := NewDefaultRetryPolicyFactory().Create(
		p.Config.MaxAttempts,
		time.Duration(p.Config.DelaySeconds)*time.Second,
		p.Config.RetryableErrors,
	)
	e := NewExecutor(policy)
	if p.Observer != nil {
		e = e.WithObserver(p.Observer)
	}
	return e
}

// Module provides *Executor.
var Module = fx.Options(
	fx.Provide(NewExecutorProvider),
)
