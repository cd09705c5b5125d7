package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

const testYAML = `
dq:
  system:
    timezone: UTC
    logging:
      level: DEBUG
  process_db:
    type: ${TEST_DQ_PROCESS_DB_TYPE}
  retry:
    delay_seconds: 5
    retryable_errors:
      - driver.ErrBadConn
  schedules:
    - job_id: 101
      cron: "0 6 * * *"
`

func TestLoadConfigMergesYAMLOntoDefaults(t *testing.T) {
	t.Setenv("TEST_DQ_PROCESS_DB_TYPE", "SQLITE")

	cfg, err := LoadConfig("", EmbeddedConfig(testYAML))
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.DQ.System.Timezone)
	assert.Equal(t, "DEBUG", cfg.DQ.System.Logging.Level)
	assert.Equal(t, "SQLITE", cfg.DQ.ProcessDB.Type)
	assert.Equal(t, "mgdb", cfg.DQ.ProcessDB.Database, "default kept")
	assert.Equal(t, 5, cfg.DQ.Retry.DelaySeconds)
	assert.Equal(t, 3, cfg.DQ.Retry.MaxAttempts, "default kept")
	assert.Equal(t, []ScheduleConfig{{JobID: 101, Cron: "0 6 * * *"}}, cfg.DQ.Schedules)
	assert.Equal(t, "altimetrik.com", cfg.DQ.Validation.EmailDomain)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("DQ_SYSTEM_ENVIRONMENT", "prod")
	t.Setenv("DQ_RETRY_MAX_ATTEMPTS", "0")
	t.Setenv("DQ_NOTIFICATION_TEAMS_ENABLED", "true")
	t.Setenv("DQ_RETRY_RETRYABLE_ERRORS", "driver.ErrBadConn, io.ErrUnexpectedEOF")

	cfg, err := LoadConfig("", EmbeddedConfig(""))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "PROD", cfg.EnvironmentSuffix())
	assert.Equal(t, "dq", cfg.ProcessSchema())
	assert.Equal(t, 0, cfg.DQ.Retry.MaxAttempts)
	assert.True(t, cfg.DQ.Notification.Teams.Enabled)
	assert.Equal(t, []string{"driver.ErrBadConn", "io.ErrUnexpectedEOF"}, cfg.DQ.Retry.RetryableErrors)
}

func TestLoadConfigRejectsInvalidSettings(t *testing.T) {
	tests := map[string]string{
		"environment":   "dq:\n  system:\n    environment: QA\n",
		"retry budget":  "dq:\n  retry:\n    max_attempts: -1\n",
		"unknown error": "dq:\n  retry:\n    retryable_errors: [NoSuchError]\n",
		"schedule":      "dq:\n  schedules:\n    - job_id: 1\n",
		"yaml":          "dq: [",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig("", EmbeddedConfig(raw))
			require.Error(t, err)
			assert.True(t, exception.IsKind(err, exception.KindConfiguration))
		})
	}
}

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "public", cfg.ProcessSchema())
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())
	assert.Equal(t, 60.0, cfg.RetryDelay().Seconds())
}
