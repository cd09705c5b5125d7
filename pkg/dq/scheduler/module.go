package scheduler

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
	"github.com/tigerroll/surfin-dq/pkg/dq/job/runner"
)

// NewSchedulerProvider builds the Scheduler from the schedules section.
func NewSchedulerProvider(cfg *config.Config, orchestrator *runner.Orchestrator) (*Scheduler, error) {
	return New(orchestrator, cfg.DQ.Schedules, cfg.Location())
}

// Module provides the Scheduler.
var Module = fx.Options(
	fx.Provide(NewSchedulerProvider),
)

// RegisterLifecycle starts the scheduler with the application and stops it on shutdown.
// Runs are started with runCtx.
func RegisterLifecycle(lc fx.Lifecycle, s *Scheduler, runCtx context.Context) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start(runCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})
}
