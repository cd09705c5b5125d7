// Package metrics implements the observability ports with Prometheus and OpenTelemetry.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	coremetrics "github.com/tigerroll/surfin-dq/pkg/dq/core/metrics"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

const moduleName = "metrics"

// PrometheusRecorder is a Prometheus implementation of coremetrics.Recorder.
// A run is a short-lived process, so metrics are pushed to a Pushgateway by Flush instead of scraped.
type PrometheusRecorder struct {
	registry *prometheus.Registry
	pusher   *push.Pusher

	jobDurationSeconds  *prometheus.HistogramVec
	jobRunsCounter      *prometheus.CounterVec
	jobStatusCounter    *prometheus.CounterVec
	taskDurationSeconds *prometheus.HistogramVec
	taskOutcomeCounter  *prometheus.CounterVec
	retryCounter        *prometheus.CounterVec
}

// NewPrometheusRecorder creates a new PrometheusRecorder with its own registry.
//
// Parameters:
//
//	pushgatewayURL: Base URL of the Pushgateway. Empty disables Flush.
//	jobName: The Pushgateway job label.
//	client: HTTP client used for pushing. Nil uses http.DefaultClient.
//
// Returns:
//
//	A ready recorder.
func NewPrometheusRecorder(pushgatewayURL, jobName string, client *http.Client) *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dq_job_duration_seconds",
			Help:    "Duration of data quality job runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"job_name", "job_status", "status"}),
		jobRunsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dq_job_runs_total",
			Help: "Total number of batches created by job and batch type.",
		}, []string{"job_name", "batch_type"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dq_job_status_total",
			Help: "Total number of finalized batches by notification status.",
		}, []string{"job_name", "status"}),
		taskDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dq_task_duration_seconds",
			Help:    "Duration of data quality tasks.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "task_rule"}),
		taskOutcomeCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dq_task_outcomes_total",
			Help: "Total number of task outcomes by rule and status.",
		}, []string{"job_name", "task_rule", "task_status"}),
		retryCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dq_retry_attempts_total",
			Help: "Total number of retries by operation.",
		}, []string{"operation"}),
	}

	registry.MustRegister(r.jobDurationSeconds)
	registry.MustRegister(r.jobRunsCounter)
	registry.MustRegister(r.jobStatusCounter)
	registry.MustRegister(r.taskDurationSeconds)
	registry.MustRegister(r.taskOutcomeCounter)
	registry.MustRegister(r.retryCounter)

	if pushgatewayURL != "" {
		if client == nil {
			client = http.DefaultClient
		}
		r.pusher = push.New(pushgatewayURL, jobName).Gatherer(registry).Client(client)
	}
	return r
}

// Registry returns the Prometheus registry.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordJobStart counts a created batch.
func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, entry *model.JobLogEntry) {
	r.jobRunsCounter.WithLabelValues(entry.JobName, string(entry.BatchType)).Inc()
	logger.Debugf("Metrics: Batch '%s' started.", entry.BatchID)
}

// RecordJobEnd observes the run duration and counts the final status.
func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, entry *model.JobLogEntry, duration time.Duration) {
	status := entry.NotificationStatus()
	r.jobDurationSeconds.WithLabelValues(entry.JobName, string(entry.JobStatus), status).Observe(duration.Seconds())
	r.jobStatusCounter.WithLabelValues(entry.JobName, status).Inc()
	logger.Debugf("Metrics: Batch '%s' ended with %s. Duration: %.3fs", entry.BatchID, status, duration.Seconds())
}

// RecordTaskEnd counts a task outcome.
func (r *PrometheusRecorder) RecordTaskEnd(ctx context.Context, jobName string, entry *model.TaskLogEntry) {
	r.taskDurationSeconds.WithLabelValues(jobName, string(entry.TaskRule)).Observe(entry.TimeTaken().Seconds())
	r.taskOutcomeCounter.WithLabelValues(jobName, string(entry.TaskRule), string(entry.TaskStatus)).Inc()
}

// RecordRetry counts a retry. It makes the recorder a retry.Observer.
func (r *PrometheusRecorder) RecordRetry(ctx context.Context, operation string, attempt int) {
	r.retryCounter.WithLabelValues(operation).Inc()
}

// Flush pushes the registry to the Pushgateway, replacing the metrics of the previous push.
func (r *PrometheusRecorder) Flush(ctx context.Context) error {
	if r.pusher == nil {
		return nil
	}
	if err := r.pusher.PushContext(ctx); err != nil {
		return exception.NewDQError(moduleName, exception.KindUnhandled, fmt.Sprintf("Failed to push metrics: %v", err), err)
	}
	logger.Debugf("Metrics: pushed to the Pushgateway.")
	return nil
}

var _ coremetrics.Recorder = (*PrometheusRecorder)(nil)
