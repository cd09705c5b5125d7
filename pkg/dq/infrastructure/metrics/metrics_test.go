package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	coremetrics "github.com/tigerroll/surfin-dq/pkg/dq/core/metrics"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

func completedEntry() *model.JobLogEntry {
	return &model.JobLogEntry{
		BatchID:          "20250304_7_1",
		JobID:            7,
		JobName:          "sales_reconciliation",
		BatchType:        model.BatchTypeManual,
		JobStatus:        model.JobStatusCompleted,
		ValidationStatus: model.Ptr(model.TaskStatusFailure),
	}
}

func taskEntry(status model.TaskStatus) *model.TaskLogEntry {
	start := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	return &model.TaskLogEntry{
		BatchID:    "20250304_7_1_1",
		TaskID:     1,
		TaskName:   "row counts",
		TaskRule:   model.TaskRuleMatchCount,
		TaskStatus: status,
		StartTime:  start,
		EndTime:    start.Add(2 * time.Second),
	}
}

// counterValue sums the samples of a counter family matching every given label.
func counterValue(t *testing.T, r *PrometheusRecorder, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := r.Registry().Gather()
	require.NoError(t, err)
	total := 0.0
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metrics:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestPrometheusRecorder_RecordsRunOutcomes(t *testing.T) {
	r := NewPrometheusRecorder("", "dq_runner", nil)
	ctx := context.Background()
	entry := completedEntry()

	r.RecordJobStart(ctx, entry)
	r.RecordTaskEnd(ctx, entry.JobName, taskEntry(model.TaskStatusSuccess))
	r.RecordTaskEnd(ctx, entry.JobName, taskEntry(model.TaskStatusFailure))
	r.RecordTaskEnd(ctx, entry.JobName, taskEntry(model.TaskStatusFailure))
	r.RecordRetry(ctx, "fetch api source", 1)
	r.RecordJobEnd(ctx, entry, 3*time.Second)

	assert.Equal(t, 1.0, counterValue(t, r, "dq_job_runs_total", map[string]string{"batch_type": "MANUAL"}))
	assert.Equal(t, 2.0, counterValue(t, r, "dq_task_outcomes_total", map[string]string{"task_status": "FAILURE"}))
	assert.Equal(t, 1.0, counterValue(t, r, "dq_task_outcomes_total", map[string]string{"task_status": "SUCCESS"}))
	assert.Equal(t, 1.0, counterValue(t, r, "dq_retry_attempts_total", map[string]string{"operation": "fetch api source"}))
	assert.Equal(t, 1.0, counterValue(t, r, "dq_job_status_total", map[string]string{"status": "FAILURE"}))
}

func TestPrometheusRecorder_FlushPushesToGateway(t *testing.T) {
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		method, path = req.Method, req.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := NewPrometheusRecorder(server.URL, "dq_runner", server.Client())
	r.RecordJobStart(context.Background(), completedEntry())

	require.NoError(t, r.Flush(context.Background()))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/dq_runner", path)
}

func TestPrometheusRecorder_FlushFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r := NewPrometheusRecorder(server.URL, "dq_runner", server.Client())
	err := r.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to push metrics")
}

func TestPrometheusRecorder_FlushWithoutGatewayIsNoop(t *testing.T) {
	r := NewPrometheusRecorder("", "dq_runner", nil)
	assert.NoError(t, r.Flush(context.Background()))
}

func TestOTelRecorder_RecordsThroughReader(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	r, err := NewOTelRecorder("dq-runner", reader)
	require.NoError(t, err)
	defer r.Shutdown(context.Background())

	ctx := context.Background()
	r.RecordTaskEnd(ctx, "sales_reconciliation", taskEntry(model.TaskStatusFailure))
	r.RecordTaskEnd(ctx, "sales_reconciliation", taskEntry(model.TaskStatusFailure))
	r.RecordJobEnd(ctx, completedEntry(), time.Second)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
			if m.Name == "dq.task.outcomes" {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				require.Len(t, sum.DataPoints, 1)
				assert.Equal(t, int64(2), sum.DataPoints[0].Value)
			}
		}
	}
	assert.True(t, found["dq.task.outcomes"])
	assert.True(t, found["dq.job.duration"])
	assert.True(t, found["dq.job.status"])
}

type failingRecorder struct {
	coremetrics.NoOpRecorder
	err error
}

func (f *failingRecorder) Flush(ctx context.Context) error { return f.err }

func TestFanoutRecorder_FlushAggregatesFailures(t *testing.T) {
	f := FanoutRecorder{
		&failingRecorder{err: errors.New("gateway down")},
		coremetrics.NewNoOpRecorder(),
		&failingRecorder{err: errors.New("collector down")},
	}
	err := f.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway down")
	assert.Contains(t, err.Error(), "collector down")
}

func TestOpenTelemetryTracer_JobAndTaskSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := NewOpenTelemetryTracer(provider)

	job := model.JobConfig{JobID: 7, JobName: "sales_reconciliation"}
	task := &model.TaskConfig{TaskID: 2, TaskName: "null check", TaskRule: model.TaskRuleCheckNulls}

	ctx, endJob := tracer.StartJobSpan(context.Background(), "run-1", job)
	taskCtx, endTask := tracer.StartTaskSpan(ctx, "20250304_7_1", task)
	tracer.RecordEvent(taskCtx, "task.finished", map[string]interface{}{"status": "FAILURE", "rows": 3})
	tracer.RecordError(taskCtx, "diagnose", exception.NewDQError("diagnose", exception.KindDataFetch, "boom", nil))
	endTask()
	endJob()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	taskSpan, jobSpan := spans[0], spans[1]

	assert.Equal(t, "dq.job sales_reconciliation", jobSpan.Name())
	assert.Equal(t, "dq.task null check", taskSpan.Name())
	assert.Equal(t, jobSpan.SpanContext().SpanID(), taskSpan.Parent().SpanID())
	assert.Equal(t, codes.Error, taskSpan.Status().Code)
	assert.Equal(t, codes.Unset, jobSpan.Status().Code)

	var names []string
	for _, e := range taskSpan.Events() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"task.finished", "exception"}, names)
}

func TestNewOTLPMetricExporter_UnsupportedProtocol(t *testing.T) {
	_, err := NewOTLPMetricExporter(context.Background(), "udp", "http://localhost:4318")
	require.Error(t, err)
	assert.True(t, exception.IsKind(err, exception.KindConfiguration))
}
