package metrics

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	coremetrics "github.com/tigerroll/surfin-dq/pkg/dq/core/metrics"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// OpenTelemetryTracer is an implementation of coremetrics.Tracer using OpenTelemetry.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer from provider.
func NewOpenTelemetryTracer(provider trace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: provider.Tracer(instrumentationName)}
}

// NewTracerProvider builds an SDK TracerProvider exporting over OTLP and installs it globally.
//
// Parameters:
//
//	ctx: Context for exporter creation.
//	cfg: Tracing settings. Protocol selects otlptracehttp or otlptracegrpc.
//
// Returns:
//
//	The provider, which the caller must shut down, or a configuration error.
func NewTracerProvider(ctx context.Context, cfg config.TracingConfig) (*sdktrace.TracerProvider, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch strings.ToLower(cfg.Protocol) {
	case "", "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	case "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	default:
		return nil, exception.NewConfigurationError(moduleName, fmt.Sprintf("Unsupported OTLP protocol: %s", cfg.Protocol), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	logger.Infof("Tracing initialized: service=%s endpoint=%s protocol=%s", cfg.ServiceName, cfg.Endpoint, cfg.Protocol)
	return tp, nil
}

// StartJobSpan starts the root span of a run.
func (t *OpenTelemetryTracer) StartJobSpan(ctx context.Context, runID string, job model.JobConfig) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "dq.job "+job.JobName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("dq.run_id", runID),
			attribute.Int("dq.job_id", job.JobID),
			attribute.String("dq.job_name", job.JobName),
		),
	)
	return ctx, func() { span.End() }
}

// StartTaskSpan starts a span for a task.
func (t *OpenTelemetryTracer) StartTaskSpan(ctx context.Context, batchID string, task *model.TaskConfig) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "dq.task "+task.TaskName,
		trace.WithAttributes(
			attribute.String("dq.batch_id", batchID),
			attribute.Int("dq.task_id", task.TaskID),
			attribute.String("dq.task_rule", string(task.TaskRule)),
			attribute.String("dq.config_type", string(task.ConfigType)),
		),
	)
	return ctx, func() { span.End() }
}

// RecordError records err on the current span and marks it failed.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(
		attribute.String("dq.module", module),
		attribute.String("dq.error_kind", string(exception.KindOf(err))),
	))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent adds an event to the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
}

func toAttributes(values map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(values))
	for k, v := range values {
		switch x := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, x))
		case int:
			attrs = append(attrs, attribute.Int(k, x))
		case int64:
			attrs = append(attrs, attribute.Int64(k, x))
		case float64:
			attrs = append(attrs, attribute.Float64(k, x))
		case bool:
			attrs = append(attrs, attribute.Bool(k, x))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprint(x)))
		}
	}
	return attrs
}

var _ coremetrics.Tracer = (*OpenTelemetryTracer)(nil)
