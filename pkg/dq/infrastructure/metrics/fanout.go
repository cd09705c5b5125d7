package metrics

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	coremetrics "github.com/tigerroll/surfin-dq/pkg/dq/core/metrics"
)

// FanoutRecorder forwards every call to each recorder in order.
type FanoutRecorder []coremetrics.Recorder

func (f FanoutRecorder) RecordJobStart(ctx context.Context, entry *model.JobLogEntry) {
	for _, r := range f {
		r.RecordJobStart(ctx, entry)
	}
}

func (f FanoutRecorder) RecordJobEnd(ctx context.Context, entry *model.JobLogEntry, duration time.Duration) {
	for _, r := range f {
		r.RecordJobEnd(ctx, entry, duration)
	}
}

func (f FanoutRecorder) RecordTaskEnd(ctx context.Context, jobName string, entry *model.TaskLogEntry) {
	for _, r := range f {
		r.RecordTaskEnd(ctx, jobName, entry)
	}
}

func (f FanoutRecorder) RecordRetry(ctx context.Context, operation string, attempt int) {
	for _, r := range f {
		r.RecordRetry(ctx, operation, attempt)
	}
}

// Flush flushes every recorder and aggregates the failures.
func (f FanoutRecorder) Flush(ctx context.Context) error {
	var result *multierror.Error
	for _, r := range f {
		if err := r.Flush(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

var _ coremetrics.Recorder = FanoutRecorder(nil)
