package metrics

import (
	"context"
	"time"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
)

// NoOpRecorder is a Recorder that does nothing. It is used when metrics are disabled or during testing.
type NoOpRecorder struct{}

// NewNoOpRecorder creates a new instance of NoOpRecorder.
func NewNoOpRecorder() Recorder {
	return &NoOpRecorder{}
}

func (r *NoOpRecorder) RecordJobStart(ctx context.Context, entry *model.JobLogEntry) {}
func (r *NoOpRecorder) RecordJobEnd(ctx context.Context, entry *model.JobLogEntry, duration time.Duration) {
}
func (r *NoOpRecorder) RecordTaskEnd(ctx context.Context, jobName string, entry *model.TaskLogEntry) {}
func (r *NoOpRecorder) RecordRetry(ctx context.Context, operation string, attempt int)              {}
func (r *NoOpRecorder) Flush(ctx context.Context) error                                             { return nil }

var _ Recorder = (*NoOpRecorder)(nil)

// NoOpTracer is a Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartJobSpan(ctx context.Context, runID string, job model.JobConfig) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartTaskSpan(ctx context.Context, batchID string, task *model.TaskConfig) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {}

var _ Tracer = (*NoOpTracer)(nil)
