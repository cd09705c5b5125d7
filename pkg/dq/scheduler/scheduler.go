// Package scheduler runs configured jobs on cron schedules as AUTO batches.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
	"github.com/tigerroll/surfin-dq/pkg/dq/job/runner"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

const moduleName = "scheduler"

// cronParser accepts five-field expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// JobRunner executes one batch of a job.
type JobRunner interface {
	Run(ctx context.Context, req runner.Request) (*runner.Result, error)
}

// Scheduler triggers jobs from cron entries. A trigger that fires while the previous run
// of the same entry is still going is skipped, and runs of different jobs never overlap.
type Scheduler struct {
	cron   *cron.Cron
	runner JobRunner

	mu      sync.Mutex
	ctx     context.Context
	running sync.Mutex
}

// ValidateCron checks a five-field cron expression.
func ValidateCron(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return exception.NewConfigurationError(moduleName, fmt.Sprintf("Invalid cron expression %q", expr), err)
	}
	return nil
}

// New registers every schedule.
//
// Parameters:
//
//	r: The runner executing triggered jobs.
//	schedules: The cron entries. An entry with an invalid expression or job id fails the whole set.
//	loc: The timezone cron expressions are evaluated in.
//
// Returns:
//
//	*Scheduler: The scheduler, not started.
//	error: A ConfigurationError for the first invalid entry.
func New(r JobRunner, schedules []config.ScheduleConfig, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithParser(cronParser),
		cron.WithLogger(cronLogger{}),
	)
	s := &Scheduler{cron: c, runner: r, ctx: context.Background()}

	for _, sc := range schedules {
		if sc.JobID <= 0 {
			return nil, exception.NewConfigurationError(moduleName, fmt.Sprintf("Invalid job_id %d in schedules", sc.JobID), nil)
		}
		if err := ValidateCron(sc.Cron); err != nil {
			return nil, err
		}
		jobID := sc.JobID
		job := cron.NewChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})).
			Then(cron.FuncJob(func() { s.trigger(jobID) }))
		if _, err := c.AddJob(sc.Cron, job); err != nil {
			return nil, exception.NewConfigurationError(moduleName, fmt.Sprintf("Failed to schedule job %d", jobID), err)
		}
		logger.Infof("Scheduled job %d with cron '%s' (%s).", jobID, sc.Cron, loc)
	}
	return s, nil
}

// Len returns the number of registered entries.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Start begins firing entries. Runs use ctx, so cancelling it stops in-flight batches.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	logger.Infof("Scheduler started with %d entr(ies).", s.Len())
}

// Stop stops firing and waits for running batches until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		logger.Infof("Scheduler stopped.")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// trigger runs one AUTO batch of jobID. Errors are logged; the next tick proceeds regardless.
func (s *Scheduler) trigger(jobID int) {
	ctx := s.runContext()
	if ctx.Err() != nil {
		logger.Warnf("Scheduler is shutting down, job %d not started.", jobID)
		return
	}

	s.running.Lock()
	defer s.running.Unlock()

	result, err := s.runner.Run(ctx, runner.Request{JobID: jobID, Scheduled: true})
	if err != nil {
		logger.Errorf("Scheduled run of job %d failed before a batch was opened: %v", jobID, err)
		return
	}
	logger.Infof("Scheduled run of job %d finished: batch_id=%s job_status=%s", jobID, result.BatchID, result.Status)
}

// cronLogger routes cron's own logging through the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debugf("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Errorf("cron: %s %v: %v", msg, keysAndValues, err)
}
