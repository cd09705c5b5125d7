package repository

import (
	"context"
	"errors"
	"time"

	model "github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

// ErrJobLogNotFound is returned when no job log row exists for a batch id.
var ErrJobLogNotFound = errors.New("job log not found")

func init() {
	exception.RegisterErrorType("ErrJobLogNotFound", ErrJobLogNotFound)
}

// AuditLog persists job and task run history.
// It is the only shared state between runner processes.
type AuditLog interface {
	// NextBatchSeq returns MAX(batch_seq)+1 for (jobID, batchDate), or 1 for the first batch of the day.
	NextBatchSeq(ctx context.Context, jobID int, batchDate time.Time) (int, error)

	// InsertJobLog inserts the initial row of a batch.
	InsertJobLog(ctx context.Context, entry *model.JobLogEntry) error

	// UpdateJobLog changes the given columns of a batch and stamps dw_updated_ts.
	UpdateJobLog(ctx context.Context, batchID string, update model.JobLogUpdate) error

	// FindJobLog returns the row of a batch or ErrJobLogNotFound.
	FindJobLog(ctx context.Context, batchID string) (*model.JobLogEntry, error)

	// CountActiveRuns counts other batches of jobID whose status is not terminal.
	CountActiveRuns(ctx context.Context, jobID int, excludeBatchID string) (int64, error)

	// DescribeActiveRunsQuery renders the query CountActiveRuns executes, for error reporting.
	DescribeActiveRunsQuery(jobID int, excludeBatchID string) string

	// FindPreviousJobLog returns the latest other batch of jobID by batch_date then batch_seq,
	// or nil when there is none.
	FindPreviousJobLog(ctx context.Context, jobID int, excludeBatchID string) (*model.JobLogEntry, error)

	// FindFirstFailedTaskID returns the lowest task_id logged as FAILURE for a batch.
	// The boolean is false when the batch has no failed task.
	FindFirstFailedTaskID(ctx context.Context, batchID string) (int, bool, error)

	// InsertTaskLog inserts a task log row keyed by its task batch id.
	InsertTaskLog(ctx context.Context, entry *model.TaskLogEntry) error

	// CountTaskStatuses counts task log rows of a batch by task_status.
	CountTaskStatuses(ctx context.Context, batchID string) (model.TaskStatusCounts, error)

	// FindTaskLogs returns the task log rows of a batch ordered by task_id.
	FindTaskLogs(ctx context.Context, batchID string) ([]model.TaskLogEntry, error)
}
