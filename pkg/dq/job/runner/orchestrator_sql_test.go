package runner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/tigerroll/surfin-dq/pkg/dq/component/diagnose"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/engine/retry"
	sqlrepo "github.com/tigerroll/surfin-dq/pkg/dq/infrastructure/repository/sql"
	"github.com/tigerroll/surfin-dq/pkg/dq/job/runner"
)

func newSQLAudit(t *testing.T, now func() time.Time) *sqlrepo.SQLAuditLog {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gorm_logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	tables := sqlrepo.QualifiedTables("", "data_quality_job_config", "v_data_quality_task_config", "data_quality_job_log", "data_quality_task_log")
	require.NoError(t, db.Table(tables.JobLog).AutoMigrate(&sqlrepo.JobLogEntity{}))
	require.NoError(t, db.Table(tables.TaskLog).AutoMigrate(&sqlrepo.TaskLogEntity{}))

	executor := retry.NewExecutor(retry.NewDefaultRetryPolicyFactory().Create(1, 0, nil))
	return sqlrepo.NewSQLAuditLog(db, tables, executor, now)
}

func TestRunTwiceOnSameDayWithSQLAudit(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	now := time.Date(2025, 3, 4, 9, 15, 0, 0, ist)
	clock := func() time.Time { return now }

	out := &outcomes{success: map[string]bool{"t1": true}, errs: map[string]error{}}
	registry := diagnose.NewRegistry(diagnose.Dependencies{})
	registry.Register(diagnose.Key{ConfigType: model.ConfigTypeTBL, TaskRule: model.TaskRuleCheckNulls}, out.algorithm)

	orch := runner.NewOrchestrator(runner.Dependencies{
		Loader:     &fakeLoader{job: newJob(), tasks: []*model.TaskConfig{newTask(1, "t1", true, false)}},
		Audit:      newSQLAudit(t, clock),
		Algorithms: registry,
		Location:   ist,
	}).WithClock(clock)

	first, err := orch.Run(context.Background(), runner.Request{JobID: testJobID, Scheduled: true})
	require.NoError(t, err)
	require.NoError(t, first.Err)
	assert.Equal(t, "20250304_7_1", first.BatchID)
	assert.Equal(t, model.JobStatusCompleted, first.Status)

	now = time.Date(2025, 3, 4, 11, 40, 0, 0, ist)
	second, err := orch.Run(context.Background(), runner.Request{JobID: testJobID, Scheduled: true})
	require.NoError(t, err)
	require.NoError(t, second.Err)
	assert.Equal(t, "20250304_7_2", second.BatchID)
	assert.Equal(t, model.JobStatusCompleted, second.Status)
}
