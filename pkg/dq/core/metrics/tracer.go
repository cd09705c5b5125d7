package metrics

import (
	"context"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
)

// Tracer is an abstract interface for distributed tracing of a run.
type Tracer interface {
	// StartJobSpan starts the root span of a run. The returned function ends it.
	StartJobSpan(ctx context.Context, runID string, job model.JobConfig) (context.Context, func())

	// StartTaskSpan starts a child span for a task of the batch.
	StartTaskSpan(ctx context.Context, batchID string, task *model.TaskConfig) (context.Context, func())

	// RecordError records an error in the current span.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event in the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
