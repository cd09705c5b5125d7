// Package metrics defines the observability ports of a run: metric recording and tracing.
package metrics

import (
	"context"
	"time"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
)

// Recorder is an abstract interface for recording metrics of a job run.
//
// Implementations must be safe for concurrent use. A Recorder also satisfies
// retry.Observer so the process-wide retry executor reports its retries here.
type Recorder interface {
	// RecordJobStart records that a batch was created for a job.
	//
	// ctx: The context for the operation.
	// entry: The job log row as first inserted.
	RecordJobStart(ctx context.Context, entry *model.JobLogEntry)

	// RecordJobEnd records the final status of a batch.
	//
	// ctx: The context for the operation.
	// entry: The job log row after finalization.
	// duration: Wall time of the run.
	RecordJobEnd(ctx context.Context, entry *model.JobLogEntry, duration time.Duration)

	// RecordTaskEnd records the outcome of one task.
	//
	// ctx: The context for the operation.
	// jobName: Name of the owning job.
	// entry: The task log row.
	RecordTaskEnd(ctx context.Context, jobName string, entry *model.TaskLogEntry)

	// RecordRetry records a retry of an operation.
	RecordRetry(ctx context.Context, operation string, attempt int)

	// Flush exports what was recorded. Runs are short lived, so this is called once before exit.
	Flush(ctx context.Context) error
}
