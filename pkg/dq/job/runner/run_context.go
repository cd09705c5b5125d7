// Package runner drives one data quality batch from trigger to final status.
//
// A run loads and validates the job, opens a batch in the audit log, waits out
// concurrent batches of the same job, resumes after the first failed task of a
// failed manual batch, evaluates tasks in task_id order and records a final status.
// Every fatal path makes one best-effort write of the terminal status before returning.
package runner

import (
	"time"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
)

const moduleName = "runner"

// firstTaskID is the resumption point of a run that starts from the beginning.
const firstTaskID = 1

// Request identifies the job to run.
type Request struct {
	JobID int
	// Scheduled marks runs started by a scheduler. They are logged as AUTO and never resume.
	Scheduled bool
}

// RunContext is the state of one run. It is created per invocation and passed explicitly.
type RunContext struct {
	RunID     string
	Job       *model.JobConfig
	Tasks     []*model.TaskConfig
	Batch     model.BatchIdentity
	Scheduled bool
	StartedAt time.Time

	status model.JobStatus
}

// Result is the outcome of a run whose batch was opened.
type Result struct {
	RunID            string
	BatchID          string
	Status           model.JobStatus
	ValidationStatus *model.TaskStatus
	// Err is the failure that ended the run, nil for COMPLETED and IN_ACTIVE.
	Err error
	// Log is the final job log row, nil when it could not be read back.
	Log *model.JobLogEntry
}

// ExitCode is the process exit code of the run. Only a terminated run is non-zero;
// validation failures and other terminal statuses exit cleanly.
func (r *Result) ExitCode() int {
	if r.Status == model.JobStatusStopped {
		return 1
	}
	return 0
}
