package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	coremetrics "github.com/tigerroll/surfin-dq/pkg/dq/core/metrics"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

const instrumentationName = "github.com/tigerroll/surfin-dq"

// OTelRecorder records the same run metrics as PrometheusRecorder through an OpenTelemetry MeterProvider.
type OTelRecorder struct {
	provider *sdkmetric.MeterProvider

	jobDuration  metric.Float64Histogram
	jobStatus    metric.Int64Counter
	taskOutcomes metric.Int64Counter
	retries      metric.Int64Counter
}

// NewOTLPMetricExporter creates an OTLP metric exporter for an endpoint URL
// such as http://collector:4318 or http://collector:4317.
func NewOTLPMetricExporter(ctx context.Context, protocol, endpointURL string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(protocol) {
	case "", "http":
		return otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(endpointURL))
	case "grpc":
		return otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpointURL(endpointURL))
	default:
		return nil, exception.NewConfigurationError(moduleName, fmt.Sprintf("Unsupported OTLP protocol: %s", protocol), nil)
	}
}

// NewOTelRecorder creates an OTelRecorder reading through reader.
// The recorder owns the MeterProvider; Shutdown releases it.
func NewOTelRecorder(serviceName string, reader sdkmetric.Reader) (*OTelRecorder, error) {
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	meter := provider.Meter(instrumentationName)

	r := &OTelRecorder{provider: provider}
	var err error
	if r.jobDuration, err = meter.Float64Histogram("dq.job.duration",
		metric.WithUnit("s"), metric.WithDescription("Duration of data quality job runs.")); err != nil {
		return nil, err
	}
	if r.jobStatus, err = meter.Int64Counter("dq.job.status",
		metric.WithDescription("Finalized batches by notification status.")); err != nil {
		return nil, err
	}
	if r.taskOutcomes, err = meter.Int64Counter("dq.task.outcomes",
		metric.WithDescription("Task outcomes by rule and status.")); err != nil {
		return nil, err
	}
	if r.retries, err = meter.Int64Counter("dq.retry.attempts",
		metric.WithDescription("Retries by operation.")); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *OTelRecorder) RecordJobStart(ctx context.Context, entry *model.JobLogEntry) {}

func (r *OTelRecorder) RecordJobEnd(ctx context.Context, entry *model.JobLogEntry, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("job_name", entry.JobName),
		attribute.String("job_status", string(entry.JobStatus)),
		attribute.String("status", entry.NotificationStatus()),
	)
	r.jobDuration.Record(ctx, duration.Seconds(), attrs)
	r.jobStatus.Add(ctx, 1, attrs)
}

func (r *OTelRecorder) RecordTaskEnd(ctx context.Context, jobName string, entry *model.TaskLogEntry) {
	r.taskOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job_name", jobName),
		attribute.String("task_rule", string(entry.TaskRule)),
		attribute.String("task_status", string(entry.TaskStatus)),
	))
}

func (r *OTelRecorder) RecordRetry(ctx context.Context, operation string, attempt int) {
	r.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// Flush forces the periodic reader to export now.
func (r *OTelRecorder) Flush(ctx context.Context) error {
	return r.provider.ForceFlush(ctx)
}

// Shutdown flushes and stops the MeterProvider.
func (r *OTelRecorder) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}

var _ coremetrics.Recorder = (*OTelRecorder)(nil)
