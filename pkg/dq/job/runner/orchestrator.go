package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/surfin-dq/pkg/dq/component/diagnose"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/repository"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/metrics"
	"github.com/tigerroll/surfin-dq/pkg/dq/listener/notification"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// JobLoader loads the validated configuration of a job.
type JobLoader interface {
	LoadJob(ctx context.Context, jobID int) (*model.JobConfig, error)
	LoadTasks(ctx context.Context, jobID int) ([]*model.TaskConfig, error)
}

// AlgorithmResolver maps a task's (config_type, task_rule) to a fresh algorithm.
type AlgorithmResolver interface {
	Resolve(configType model.ConfigType, rule model.TaskRule) (diagnose.Algorithm, error)
}

// BatchArchiver exports a finalized batch.
type BatchArchiver interface {
	ArchiveBatch(ctx context.Context, batchID string) (string, error)
}

// Dependencies are the collaborators of an Orchestrator. Notifier and Archiver may be nil.
type Dependencies struct {
	Loader     JobLoader
	Audit      repository.AuditLog
	Algorithms AlgorithmResolver
	Notifier   notification.Notifier
	Archiver   BatchArchiver
	Recorder   metrics.Recorder
	Tracer     metrics.Tracer
	// Location is the timezone of batch dates and timestamps.
	Location *time.Location
	// Production labels notifications LIVE instead of TEST.
	Production bool
}

// Orchestrator runs jobs. It holds no per-run state, so one instance serves every run of the process.
type Orchestrator struct {
	deps  Dependencies
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates an Orchestrator. Nil recorder and tracer fall back to no-ops.
func NewOrchestrator(deps Dependencies) *Orchestrator {
	if deps.Recorder == nil {
		deps.Recorder = metrics.NewNoOpRecorder()
	}
	if deps.Tracer == nil {
		deps.Tracer = metrics.NewNoOpTracer()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Orchestrator{deps: deps, now: time.Now, sleep: sleepContext}
}

// WithClock returns a copy of the orchestrator reading time from now.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	clone := *o
	clone.now = now
	return &clone
}

// WithSleeper returns a copy of the orchestrator waiting with sleep in the concurrency guard.
func (o *Orchestrator) WithSleeper(sleep func(ctx context.Context, d time.Duration) error) *Orchestrator {
	clone := *o
	clone.sleep = sleep
	return &clone
}

func (o *Orchestrator) clock() time.Time {
	return o.now().In(o.deps.Location)
}

// Run executes one batch of req.JobID.
//
// Parameters:
//
//	ctx: Cancel it with a *TerminationSignal cause to stop the run. The batch is then marked STOPPED.
//	req: The job and whether the run was scheduled.
//
// Returns:
//
//	*Result: The terminal status of the batch. Failures after the batch was opened are
//	  reported in Result.Err and do not make Run return an error.
//	error: Only failures that happen before a batch exists, such as an invalid configuration.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.New().String()
	logger.Infof("Run %s: job_id=%d scheduled=%t", runID, req.JobID, req.Scheduled)

	job, err := o.deps.Loader.LoadJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	tasks, err := o.deps.Loader.LoadTasks(ctx, job.JobID)
	if err != nil {
		return nil, err
	}

	ctx, endSpan := o.deps.Tracer.StartJobSpan(ctx, runID, *job)
	defer endSpan()

	rc, err := o.openBatch(ctx, runID, job, tasks, req.Scheduled)
	if err != nil {
		o.deps.Tracer.RecordError(ctx, moduleName, err)
		return nil, err
	}

	runErr := o.execute(ctx, rc)
	if runErr != nil {
		runErr = o.terminate(ctx, rc, runErr)
	}

	result := &Result{RunID: runID, BatchID: rc.Batch.BatchID, Status: rc.status, Err: runErr}
	o.afterRun(ctx, rc, result)
	return result, nil
}

// openBatch computes the batch identity and inserts the TRIGGERED row.
func (o *Orchestrator) openBatch(ctx context.Context, runID string, job *model.JobConfig, tasks []*model.TaskConfig, scheduled bool) (*RunContext, error) {
	now := o.clock()
	seq, err := o.deps.Audit.NextBatchSeq(ctx, job.JobID, model.BatchDay(now))
	if err != nil {
		return nil, err
	}
	batchType := model.BatchTypeManual
	if scheduled {
		batchType = model.BatchTypeAuto
	}
	batch := model.NewBatchIdentity(job.JobID, now, seq, batchType)

	entry := &model.JobLogEntry{
		BatchID:      batch.BatchID,
		JobID:        job.JobID,
		BatchDate:    batch.BatchDate,
		BatchSeq:     batch.Seq,
		BatchType:    batchType,
		JobName:      job.JobName,
		JobStatus:    model.JobStatusTriggered,
		ConfigPassed: jobDocument(job),
		DWCreatedTS:  now,
	}
	if err := o.deps.Audit.InsertJobLog(ctx, entry); err != nil {
		return nil, err
	}
	logger.Infof("Batch Setup: batch_id=%s batch_type=%s", batch.BatchID, batchType)
	o.deps.Recorder.RecordJobStart(ctx, entry)

	return &RunContext{
		RunID:     runID,
		Job:       job,
		Tasks:     tasks,
		Batch:     batch,
		Scheduled: scheduled,
		StartedAt: now,
		status:    model.JobStatusTriggered,
	}, nil
}

func (o *Orchestrator) setStatus(ctx context.Context, rc *RunContext, status model.JobStatus) error {
	if err := o.deps.Audit.UpdateJobLog(ctx, rc.Batch.BatchID, model.StatusUpdate(status)); err != nil {
		return err
	}
	rc.status = status
	logger.Infof("Batch %s: job_status=%s", rc.Batch.BatchID, status)
	return nil
}

// execute drives the batch from TRIGGERED to COMPLETED or IN_ACTIVE.
func (o *Orchestrator) execute(ctx context.Context, rc *RunContext) error {
	if !rc.Job.IsActive {
		return o.setStatus(ctx, rc, model.JobStatusInActive)
	}

	algorithms, err := o.resolveAlgorithms(rc.Tasks)
	if err != nil {
		return err
	}
	if err := o.guard(ctx, rc); err != nil {
		return err
	}
	start, err := o.startingTaskID(ctx, rc)
	if err != nil {
		return err
	}
	logger.Infof("Job starting task id: %d", start)

	if err := o.setStatus(ctx, rc, model.JobStatusInProgress); err != nil {
		return err
	}

	logger.Infof("Data Quality Checks:")
	for _, task := range rc.Tasks {
		if task.TaskID < start {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		status, err := o.runTask(ctx, rc, task, algorithms[task.TaskID])
		if err != nil {
			return err
		}
		if task.FailFast && status == model.TaskStatusFailure {
			logger.Errorf("Validation failed for task id: '%d' with `fail_fast = True`.", task.TaskID)
			if err := o.deps.Audit.UpdateJobLog(ctx, rc.Batch.BatchID, model.JobLogUpdate{FailFast: model.Ptr(true)}); err != nil {
				return err
			}
			break
		}
	}

	counts, err := o.deps.Audit.CountTaskStatuses(ctx, rc.Batch.BatchID)
	if err != nil {
		return err
	}
	validation := counts.ValidationStatus()
	if err := o.deps.Audit.UpdateJobLog(ctx, rc.Batch.BatchID, model.JobLogUpdate{ValidationStatus: &validation}); err != nil {
		return err
	}
	logger.Infof("Batch %s: validation_status=%s", rc.Batch.BatchID, validation)
	return o.setStatus(ctx, rc, model.JobStatusCompleted)
}

// resolveAlgorithms resolves every active task up front so dispatch errors surface before any data access.
func (o *Orchestrator) resolveAlgorithms(tasks []*model.TaskConfig) (map[int]diagnose.Algorithm, error) {
	resolved := make(map[int]diagnose.Algorithm, len(tasks))
	for _, task := range tasks {
		if !task.IsActive {
			continue
		}
		algorithm, err := o.deps.Algorithms.Resolve(task.ConfigType, task.TaskRule)
		if err != nil {
			return nil, err
		}
		resolved[task.TaskID] = algorithm
	}
	return resolved, nil
}

// runTask evaluates one task and inserts its task log row.
func (o *Orchestrator) runTask(ctx context.Context, rc *RunContext, task *model.TaskConfig, algorithm diagnose.Algorithm) (model.TaskStatus, error) {
	ctx, endSpan := o.deps.Tracer.StartTaskSpan(ctx, rc.Batch.BatchID, task)
	defer endSpan()

	entry := &model.TaskLogEntry{
		BatchID:      rc.Batch.TaskBatchID(task.TaskID),
		TaskID:       task.TaskID,
		TaskName:     task.TaskName,
		TaskRule:     task.TaskRule,
		TaskResults:  []model.AssertionResult{},
		ConfigPassed: task.Record(),
	}

	if !task.IsActive {
		entry.TaskStatus = model.TaskStatusSkipped
		entry.StartTime = o.clock()
		entry.EndTime = entry.StartTime
		logger.Infof("[%s] %s is inactive, skipped.", entry.BatchID, task)
	} else {
		logger.Infof("Task picked function for ('%s', '%s'): %T", task.ConfigType, task.TaskRule, algorithm)
		entry.StartTime = o.clock()
		result, err := algorithm.Evaluate(ctx, diagnose.InputFromTask(task))
		entry.EndTime = o.clock()
		if err != nil {
			o.deps.Tracer.RecordError(ctx, moduleName, err)
			return "", err
		}
		entry.TaskStatus = model.TaskStatusFailure
		if result.Success {
			entry.TaskStatus = model.TaskStatusSuccess
		}
		if result.Results != nil {
			entry.TaskResults = result.Results
		}
		logger.Infof("[%s] %s: %s", entry.BatchID, task, entry.TaskStatus)
	}

	if err := o.deps.Audit.InsertTaskLog(ctx, entry); err != nil {
		return "", err
	}
	o.deps.Recorder.RecordTaskEnd(ctx, rc.Job.JobName, entry)
	o.deps.Tracer.RecordEvent(ctx, "task.logged", map[string]interface{}{
		"task_status": string(entry.TaskStatus),
		"assertions":  len(entry.TaskResults),
	})
	return entry.TaskStatus, nil
}

// terminate classifies err, makes the single best-effort write of the terminal status and
// returns the error recorded for the batch.
func (o *Orchestrator) terminate(ctx context.Context, rc *RunContext, err error) error {
	status := model.JobStatusError
	switch {
	case ctx.Err() != nil:
		status = model.JobStatusStopped
		err = terminationError(ctx, rc.Batch.BatchID)
	case exception.IsKind(err, exception.KindConcurrencyTimeout):
		status = model.JobStatusTimeout
	}
	logger.Errorf("Batch %s ended with %s: %v", rc.Batch.BatchID, status, err)
	o.deps.Tracer.RecordError(ctx, moduleName, err)

	update := model.StatusUpdate(status)
	update.JobExceptionType = model.Ptr(exception.TypeName(err))
	update.JobExceptionMessage = model.Ptr(exception.ExtractErrorMessage(err))
	if writeErr := o.deps.Audit.UpdateJobLog(context.WithoutCancel(ctx), rc.Batch.BatchID, update); writeErr != nil {
		logger.Errorf("Failed to record %s for batch %s: %v", status, rc.Batch.BatchID, writeErr)
	}
	rc.status = status
	return err
}

// afterRun notifies, archives and exports metrics. None of it changes the batch status.
func (o *Orchestrator) afterRun(ctx context.Context, rc *RunContext, result *Result) {
	ctx = context.WithoutCancel(ctx)

	entry, err := o.deps.Audit.FindJobLog(ctx, rc.Batch.BatchID)
	if err != nil {
		logger.Errorf("Failed to read back batch %s: %v", rc.Batch.BatchID, err)
	} else {
		result.Log = entry
		result.ValidationStatus = entry.ValidationStatus
		duration := entry.TimeTaken()
		if duration <= 0 {
			duration = o.clock().Sub(rc.StartedAt)
		}
		o.deps.Recorder.RecordJobEnd(ctx, entry, duration)
	}

	if o.deps.Notifier != nil && entry != nil {
		tasks, err := o.deps.Audit.FindTaskLogs(ctx, rc.Batch.BatchID)
		if err != nil {
			logger.Errorf("Failed to read task logs of batch %s: %v", rc.Batch.BatchID, err)
		}
		summary := &notification.Summary{
			RunID:      rc.RunID,
			Production: o.deps.Production,
			Job:        *rc.Job,
			Log:        *entry,
			Tasks:      tasks,
		}
		if err := o.deps.Notifier.Notify(ctx, summary); err != nil {
			logger.Errorf("Notification of batch %s failed: %v", rc.Batch.BatchID, err)
		}
	}

	if o.deps.Archiver != nil {
		if _, err := o.deps.Archiver.ArchiveBatch(ctx, rc.Batch.BatchID); err != nil {
			logger.Errorf("Failed to archive batch %s: %v", rc.Batch.BatchID, err)
		}
	}

	if err := o.deps.Recorder.Flush(ctx); err != nil {
		logger.Warnf("Failed to export metrics of batch %s: %v", rc.Batch.BatchID, err)
	}
}

// jobDocument renders the job configuration stored in config_passed.
func jobDocument(job *model.JobConfig) map[string]interface{} {
	raw, err := json.Marshal(job)
	if err != nil {
		return map[string]interface{}{"job_id": job.JobID, "error": fmt.Sprint(err)}
	}
	doc := map[string]interface{}{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return map[string]interface{}{"job_id": job.JobID, "error": fmt.Sprint(err)}
	}
	return doc
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
