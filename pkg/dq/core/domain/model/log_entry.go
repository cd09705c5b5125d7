package model

import (
	"fmt"
	"time"
)

// BatchIdentity identifies one execution of a job.
type BatchIdentity struct {
	JobID     int
	BatchDate time.Time
	Seq       int
	Type      BatchType
	BatchID   string
}

// BatchDay returns the calendar day of t as midnight UTC. This is the value stored in batch_date.
func BatchDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewBatchIdentity formats the batch id as YYYYMMDD_<job_id>_<seq>.
func NewBatchIdentity(jobID int, batchDate time.Time, seq int, batchType BatchType) BatchIdentity {
	day := BatchDay(batchDate)
	return BatchIdentity{
		JobID:     jobID,
		BatchDate: day,
		Seq:       seq,
		Type:      batchType,
		BatchID:   fmt.Sprintf("%s_%d_%d", day.Format("20060102"), jobID, seq),
	}
}

// TaskBatchID extends the batch id with a task id.
func (b BatchIdentity) TaskBatchID(taskID int) string {
	return fmt.Sprintf("%s_%d", b.BatchID, taskID)
}

// JobLogEntry is one row of the job log.
type JobLogEntry struct {
	BatchID             string
	JobID               int
	BatchDate           time.Time
	BatchSeq            int
	BatchType           BatchType
	JobName             string
	JobStatus           JobStatus
	ValidationStatus    *TaskStatus
	FailFast            *bool
	IsRestart           *bool
	JobExceptionType    *string
	JobExceptionMessage *string
	ConfigPassed        map[string]interface{}
	DWCreatedTS         time.Time
	DWUpdatedTS         *time.Time
}

// TimeTaken is the wall time between creation and the last update.
func (e JobLogEntry) TimeTaken() time.Duration {
	if e.DWUpdatedTS == nil {
		return 0
	}
	return e.DWUpdatedTS.Sub(e.DWCreatedTS)
}

// NotificationStatus is the validation status of a completed batch, or its job status otherwise.
func (e JobLogEntry) NotificationStatus() string {
	if e.JobStatus == JobStatusCompleted && e.ValidationStatus != nil {
		return string(*e.ValidationStatus)
	}
	return string(e.JobStatus)
}

// JobLogUpdate carries the columns of a job log row to change. Nil fields are left untouched.
type JobLogUpdate struct {
	JobStatus           *JobStatus
	ValidationStatus    *TaskStatus
	FailFast            *bool
	IsRestart           *bool
	JobExceptionType    *string
	JobExceptionMessage *string
}

// StatusUpdate returns an update of the job status only.
func StatusUpdate(status JobStatus) JobLogUpdate {
	return JobLogUpdate{JobStatus: &status}
}

// TaskLogEntry is one row of the task log. Rows are insert-only.
type TaskLogEntry struct {
	BatchID      string
	TaskID       int
	TaskName     string
	TaskRule     TaskRule
	TaskStatus   TaskStatus
	TaskResults  []AssertionResult
	ConfigPassed map[string]interface{}
	StartTime    time.Time
	EndTime      time.Time
}

// TimeTaken is the task's wall time.
func (e TaskLogEntry) TimeTaken() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// TaskStatusCounts counts task log rows by status.
type TaskStatusCounts map[TaskStatus]int

// ValidationStatus aggregates task outcomes: any failure wins, then any warning,
// then any success. A batch where nothing ran is SKIPPED.
func (c TaskStatusCounts) ValidationStatus() TaskStatus {
	switch {
	case c[TaskStatusFailure] > 0:
		return TaskStatusFailure
	case c[TaskStatusWarning] > 0:
		return TaskStatusWarning
	case c[TaskStatusSuccess] > 0:
		return TaskStatusSuccess
	default:
		return TaskStatusSkipped
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
