// Package config provides the configuration structures of the data-quality runner.
package config

import (
	"strings"
	"time"
	_ "time/tzdata"
)

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelTrace  LogLevel = "TRACE"
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// Environment selects the credential suffix and the process schema.
type Environment string

const (
	EnvironmentDev  Environment = "DEV"
	EnvironmentProd Environment = "PROD"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // Level is the logging level (e.g., "INFO", "DEBUG").
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	Timezone    string        `yaml:"timezone"`    // Timezone used to derive batch_date (e.g., "Asia/Kolkata").
	Environment string        `yaml:"environment"` // Environment is DEV or PROD.
	Logging     LoggingConfig `yaml:"logging"`
}

// PoolConfig holds connection pool settings shared by every database connection.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// ProcessDBConfig locates the config store and audit store.
type ProcessDBConfig struct {
	Type            string     `yaml:"type"`              // Type is the credential key of the process database (POSTGRE, MYSQL, SQLITE).
	Database        string     `yaml:"database"`          // Database is the process database name.
	SchemaDev       string     `yaml:"schema_dev"`        // SchemaDev is the schema used when Environment is DEV.
	SchemaProd      string     `yaml:"schema_prod"`       // SchemaProd is the schema used when Environment is PROD.
	JobConfigTable  string     `yaml:"job_config_table"`  // JobConfigTable is the job configuration table.
	TaskConfigTable string     `yaml:"task_config_table"` // TaskConfigTable is the task configuration view.
	JobLogTable     string     `yaml:"job_log_table"`     // JobLogTable is the job log table.
	TaskLogTable    string     `yaml:"task_log_table"`    // TaskLogTable is the task log table.
	Pool            PoolConfig `yaml:"pool"`
}

// RetryConfig holds the retry policy applied to connectivity failures.
type RetryConfig struct {
	DelaySeconds    int      `yaml:"delay_seconds"`    // DelaySeconds is the fixed wait between attempts.
	MaxAttempts     int      `yaml:"max_attempts"`     // MaxAttempts is the total attempt budget, 0 for unbounded.
	RetryableErrors []string `yaml:"retryable_errors"` // RetryableErrors are extra registered error names to retry.
}

// ValidationConfig holds configuration-model validation settings.
type ValidationConfig struct {
	EmailDomain string `yaml:"email_domain"` // EmailDomain is the organizational domain recipients must belong to.
}

// HTTPSourceConfig holds settings for API-kind sources.
type HTTPSourceConfig struct {
	TimeoutSeconds     int     `yaml:"timeout_seconds"`      // TimeoutSeconds bounds a single request.
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"` // RateLimitPerSecond caps outbound requests, 0 disables the limiter.
	RateBurst          int     `yaml:"rate_burst"`
	BreakerMaxFailures int     `yaml:"breaker_max_failures"` // BreakerMaxFailures opens the circuit after this many consecutive failures.
	BreakerOpenSeconds int     `yaml:"breaker_open_seconds"` // BreakerOpenSeconds is how long the circuit stays open.
}

// EmailConfig controls the email notification.
type EmailConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TeamsConfig controls the Teams webhook notification.
type TeamsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AMQPConfig controls publishing of job completion events.
type AMQPConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

// NotificationConfig groups the notification channels.
type NotificationConfig struct {
	Email EmailConfig `yaml:"email"`
	Teams TeamsConfig `yaml:"teams"`
	AMQP  AMQPConfig  `yaml:"amqp"`
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"` // PushgatewayURL receives the run's metrics at exit, empty disables pushing.
	PushJobName    string `yaml:"push_job_name"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"` // OTLPEndpoint additionally exports metrics over OTLP, empty disables it.
	OTLPProtocol   string `yaml:"otlp_protocol"` // OTLPProtocol is "http" or "grpc".
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Protocol    string `yaml:"protocol"` // Protocol is "http" or "grpc".
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// StorageConfig holds settings for the archive storage backend.
type StorageConfig struct {
	Type            string `yaml:"type"`             // Type is "local" or "gcs".
	BucketName      string `yaml:"bucket_name"`      // BucketName is the GCS bucket, or a sub directory for local storage.
	CredentialsFile string `yaml:"credentials_file"` // CredentialsFile is the GCS service account key, empty for default credentials.
	BaseDir         string `yaml:"base_dir"`         // BaseDir is the root directory for local storage.
}

// ArchiveConfig controls the parquet export of task logs.
type ArchiveConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Prefix      string        `yaml:"prefix"`
	Compression string        `yaml:"compression"` // Compression is SNAPPY, GZIP or UNCOMPRESSED.
	Storage     StorageConfig `yaml:"storage"`
}

// ScheduleConfig is a cron entry for the schedule command.
type ScheduleConfig struct {
	JobID int    `yaml:"job_id"`
	Cron  string `yaml:"cron"`
}

// DQConfig holds all configuration under the "dq" top-level key.
type DQConfig struct {
	System       SystemConfig       `yaml:"system"`
	ProcessDB    ProcessDBConfig    `yaml:"process_db"`
	Retry        RetryConfig        `yaml:"retry"`
	Validation   ValidationConfig   `yaml:"validation"`
	HTTPSource   HTTPSourceConfig   `yaml:"http_source"`
	Notification NotificationConfig `yaml:"notification"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Tracing      TracingConfig      `yaml:"tracing"`
	Archive      ArchiveConfig      `yaml:"archive"`
	Schedules    []ScheduleConfig   `yaml:"schedules"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	DQ             DQConfig       `yaml:"dq"`
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// GlobalConfig is the configuration instance shared across the application.
// It is set by NewConfigProvider.
var GlobalConfig *Config

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	return &Config{
		DQ: DQConfig{
			System: SystemConfig{
				Timezone:    "Asia/Kolkata",
				Environment: string(EnvironmentDev),
				Logging:     LoggingConfig{Level: string(LogLevelInfo)},
			},
			ProcessDB: ProcessDBConfig{
				Type:            "POSTGRE",
				Database:        "mgdb",
				SchemaDev:       "public",
				SchemaProd:      "dq",
				JobConfigTable:  "data_quality_job_config",
				TaskConfigTable: "v_data_quality_task_config",
				JobLogTable:     "data_quality_job_log",
				TaskLogTable:    "data_quality_task_log",
				Pool: PoolConfig{
					MaxOpenConns:           5,
					MaxIdleConns:           2,
					ConnMaxLifetimeMinutes: 30,
				},
			},
			Retry: RetryConfig{
				DelaySeconds: 60,
				MaxAttempts:  3,
			},
			Validation: ValidationConfig{
				EmailDomain: "altimetrik.com",
			},
			HTTPSource: HTTPSourceConfig{
				TimeoutSeconds:     60,
				RateLimitPerSecond: 5,
				RateBurst:          1,
				BreakerMaxFailures: 5,
				BreakerOpenSeconds: 30,
			},
			Notification: NotificationConfig{
				Email: EmailConfig{Enabled: true},
				AMQP:  AMQPConfig{Exchange: "dq.events", RoutingKey: "dq.job.completed"},
			},
			Metrics: MetricsConfig{
				PushJobName:  "dq_runner",
				OTLPProtocol: "http",
			},
			Tracing: TracingConfig{
				Protocol:    "http",
				ServiceName: "dq-runner",
			},
			Archive: ArchiveConfig{
				Prefix:      "task_log",
				Compression: "SNAPPY",
				Storage:     StorageConfig{Type: "local", BaseDir: "./archive"},
			},
		},
	}
}

// IsProduction reports whether the runner operates against PROD resources.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.DQ.System.Environment, string(EnvironmentProd))
}

// EnvironmentSuffix returns DEV or PROD, the suffix of credential environment variables.
func (c *Config) EnvironmentSuffix() string {
	if c.IsProduction() {
		return string(EnvironmentProd)
	}
	return string(EnvironmentDev)
}

// ProcessSchema returns the schema holding the config and log tables.
func (c *Config) ProcessSchema() string {
	if c.IsProduction() {
		return c.DQ.ProcessDB.SchemaProd
	}
	return c.DQ.ProcessDB.SchemaDev
}

// Location returns the timezone used for batch dates, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DQ.System.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RetryDelay returns the configured delay between retry attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.DQ.Retry.DelaySeconds) * time.Second
}
