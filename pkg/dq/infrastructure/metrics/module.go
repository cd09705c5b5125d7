package metrics

import (
	"context"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
	coremetrics "github.com/tigerroll/surfin-dq/pkg/dq/core/metrics"
	"github.com/tigerroll/surfin-dq/pkg/dq/engine/retry"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// ObservabilityParams defines the dependencies of the metric and tracing providers.
type ObservabilityParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.Config
}

// NewRecorderProvider builds the Prometheus recorder, fanned out to OTLP when an endpoint is configured.
func NewRecorderProvider(p ObservabilityParams) (coremetrics.Recorder, error) {
	cfg := p.Config.DQ.Metrics
	prom := NewPrometheusRecorder(cfg.PushgatewayURL, cfg.PushJobName, nil)
	if cfg.OTLPEndpoint == "" {
		return prom, nil
	}

	exporter, err := NewOTLPMetricExporter(context.Background(), cfg.OTLPProtocol, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}
	otelRecorder, err := NewOTelRecorder(p.Config.DQ.Tracing.ServiceName, sdkmetric.NewPeriodicReader(exporter))
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return otelRecorder.Shutdown(ctx)
		},
	})
	logger.Debugf("Metrics: exporting over OTLP to %s.", cfg.OTLPEndpoint)
	return FanoutRecorder{prom, otelRecorder}, nil
}

// NewRetryObserverProvider exposes the recorder to the retry executor.
func NewRetryObserverProvider(r coremetrics.Recorder) retry.Observer {
	return r
}

// NewTracerProviderFromConfig returns an OTLP-backed tracer, or a no-op one when tracing is disabled.
func NewTracerProviderFromConfig(p ObservabilityParams) (coremetrics.Tracer, error) {
	cfg := p.Config.DQ.Tracing
	if !cfg.Enabled {
		return NewOpenTelemetryTracer(noop.NewTracerProvider()), nil
	}
	tp, err := NewTracerProvider(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return NewOpenTelemetryTracer(tp), nil
}

// Module provides the Recorder, the retry.Observer backed by it, and the Tracer.
var Module = fx.Options(
	fx.Provide(NewRecorderProvider),
	fx.Provide(NewRetryObserverProvider),
	fx.Provide(NewTracerProviderFromConfig),
)
