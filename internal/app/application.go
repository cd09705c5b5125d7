package app

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
	"github.com/tigerroll/surfin-dq/pkg/dq/job/runner"
	"github.com/tigerroll/surfin-dq/pkg/dq/scheduler"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// lifecycleTimeout bounds Fx start and stop hooks.
const lifecycleTimeout = 2 * time.Minute

// Options are the process inputs shared by every command.
type Options struct {
	EnvFilePath    string
	EmbeddedConfig config.EmbeddedConfig
	// Debug forces the DEBUG log level over the configured one.
	Debug bool
}

func (o Options) supply() fx.Option {
	return fx.Options(
		fx.Supply(
			o.EmbeddedConfig,
			fx.Annotate(o.EnvFilePath, fx.ResultTags(`name:"envFilePath"`)),
		),
		fx.Invoke(func(*config.Config) {
			if o.Debug {
				logger.SetLogLevel(string(config.LogLevelDebug))
				logger.Debugf("Debug logging enabled from the command line.")
			}
		}),
	)
}

// RunJob executes one batch of req.JobID.
//
// Parameters:
//
//	ctx: The run context. Cancel it with a *runner.TerminationSignal cause to stop the batch.
//	opts: Configuration sources and verbosity.
//	req: The job to run.
//
// Returns:
//
//	*runner.Result: The terminal state of the batch, nil when no batch was opened.
//	error: Startup failures and failures before the batch was opened.
func RunJob(ctx context.Context, opts Options, req runner.Request) (*runner.Result, error) {
	var orchestrator *runner.Orchestrator
	app := fx.New(
		opts.supply(),
		Module,
		fx.Populate(&orchestrator),
	)
	if err := start(app); err != nil {
		return nil, err
	}
	defer stop(app)

	return orchestrator.Run(ctx, req)
}

// RunScheduler runs the configured schedules until ctx is done.
// In-flight batches observe the cancellation of ctx and are marked STOPPED.
func RunScheduler(ctx context.Context, opts Options) error {
	app := fx.New(
		opts.supply(),
		Module,
		scheduler.Module,
		fx.Invoke(func(lc fx.Lifecycle, s *scheduler.Scheduler) {
			scheduler.RegisterLifecycle(lc, s, ctx)
		}),
	)
	if err := start(app); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Warnf("Scheduler shutting down: %v", context.Cause(ctx))
	return stop(app)
}

func start(app *fx.App) error {
	if err := app.Err(); err != nil {
		return err
	}
	startCtx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer cancel()
	return app.Start(startCtx)
}

func stop(app *fx.App) error {
	stopCtx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		logger.Errorf("Application shutdown failed: %v", err)
		return err
	}
	logger.Infof("Application is shutting down.")
	return nil
}
