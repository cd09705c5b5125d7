package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// guard waits once for other active batches of the job to finish.
// The check is advisory: two processes may pass it concurrently.
func (o *Orchestrator) guard(ctx context.Context, rc *RunContext) error {
	active, err := o.deps.Audit.CountActiveRuns(ctx, rc.Job.JobID, rc.Batch.BatchID)
	if err != nil {
		return err
	}
	if active == 0 {
		return nil
	}

	wait := rc.Job.JobWaitMinute
	logger.Warnf("Job %d has %d active batch(es). Waiting %d minute(s) before re-checking.", rc.Job.JobID, active, wait)
	if err := o.setStatus(ctx, rc, model.JobStatusWaiting); err != nil {
		return err
	}
	if err := o.sleep(ctx, time.Duration(wait)*time.Minute); err != nil {
		return err
	}

	active, err = o.deps.Audit.CountActiveRuns(ctx, rc.Job.JobID, rc.Batch.BatchID)
	if err != nil {
		return err
	}
	if active == 0 {
		return nil
	}
	plural := ""
	if wait > 1 {
		plural = "s"
	}
	return exception.NewConcurrencyTimeoutError(moduleName, fmt.Sprintf(
		"An active or unexpected job run is still detected for Job ID '%d' after waiting for '%d minute%s'.\n"+
			"Please ensure previous job execution is completed before proceeding.\n"+
			"Query used for validation: %s",
		rc.Job.JobID, wait, plural, o.deps.Audit.DescribeActiveRunsQuery(rc.Job.JobID, rc.Batch.BatchID)))
}

// startingTaskID decides where the run begins and records is_restart on the batch.
// Only a manual run of a restartable job resumes, and only after a completed batch whose validation failed.
func (o *Orchestrator) startingTaskID(ctx context.Context, rc *RunContext) (int, error) {
	start, restart, err := o.resumptionPoint(ctx, rc)
	if err != nil {
		return 0, err
	}
	if err := o.deps.Audit.UpdateJobLog(ctx, rc.Batch.BatchID, model.JobLogUpdate{IsRestart: model.Ptr(restart)}); err != nil {
		return 0, err
	}
	return start, nil
}

func (o *Orchestrator) resumptionPoint(ctx context.Context, rc *RunContext) (int, bool, error) {
	if rc.Scheduled || !rc.Job.IsRestart {
		return firstTaskID, false, nil
	}
	previous, err := o.deps.Audit.FindPreviousJobLog(ctx, rc.Job.JobID, rc.Batch.BatchID)
	if err != nil {
		return 0, false, err
	}
	if previous == nil || previous.JobStatus != model.JobStatusCompleted ||
		previous.ValidationStatus == nil || *previous.ValidationStatus != model.TaskStatusFailure {
		return firstTaskID, false, nil
	}

	taskID, found, err := o.deps.Audit.FindFirstFailedTaskID(ctx, previous.BatchID)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, exception.NewDQErrorf(moduleName, exception.KindUnhandled,
			"Previous batch %s failed validation but has no failed task to resume from.", previous.BatchID)
	}
	logger.Infof("Restarting job %d from task %d of failed batch %s.", rc.Job.JobID, taskID, previous.BatchID)
	return taskID, true, nil
}
