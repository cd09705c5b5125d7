package sql

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	model "github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/repository"
	"github.com/tigerroll/surfin-dq/pkg/dq/engine/retry"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

var testTables = QualifiedTables("", "data_quality_job_config", "v_data_quality_task_config", "data_quality_job_log", "data_quality_task_log")

func testExecutor() *retry.Executor {
	return retry.NewExecutor(retry.NewDefaultRetryPolicyFactory().Create(2, 0, nil)).
		WithSleeper(func(context.Context, time.Duration) error { return nil })
}

// setupSQLite opens an in-memory process database with the log tables created.
func setupSQLite(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gorm_logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Table(testTables.JobLog).AutoMigrate(&JobLogEntity{}))
	require.NoError(t, db.Table(testTables.TaskLog).AutoMigrate(&TaskLogEntity{}))
	return db
}

func newAuditLog(db *gorm.DB) *SQLAuditLog {
	fixed := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	return NewSQLAuditLog(db, testTables, testExecutor(), func() time.Time { return fixed })
}

func jobLog(batchDay time.Time, jobID, seq int, status model.JobStatus) *model.JobLogEntry {
	id := model.NewBatchIdentity(jobID, batchDay, seq, model.BatchTypeManual)
	return &model.JobLogEntry{
		BatchID:      id.BatchID,
		JobID:        jobID,
		BatchDate:    id.BatchDate,
		BatchSeq:     seq,
		BatchType:    model.BatchTypeManual,
		JobName:      "orders",
		JobStatus:    status,
		FailFast:     model.Ptr(false),
		ConfigPassed: map[string]interface{}{"job_id": float64(jobID)},
		DWCreatedTS:  batchDay.Add(time.Hour),
	}
}

func TestSQLAuditLogBatchSequence(t *testing.T) {
	ctx := context.Background()
	log := newAuditLog(setupSQLite(t))
	day := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

	seq, err := log.NextBatchSeq(ctx, 7, day)
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	require.NoError(t, log.InsertJobLog(ctx, jobLog(day, 7, 1, model.JobStatusCompleted)))
	require.NoError(t, log.InsertJobLog(ctx, jobLog(day, 7, 2, model.JobStatusCompleted)))
	require.NoError(t, log.InsertJobLog(ctx, jobLog(day, 8, 5, model.JobStatusCompleted)))

	seq, err = log.NextBatchSeq(ctx, 7, day)
	require.NoError(t, err)
	assert.Equal(t, 3, seq)

	seq, err = log.NextBatchSeq(ctx, 7, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, seq)
}

func TestSQLAuditLogBatchSequenceIgnoresTimeOfDay(t *testing.T) {
	ctx := context.Background()
	log := newAuditLog(setupSQLite(t))
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	var ids []string
	for _, at := range []time.Time{
		time.Date(2025, 3, 4, 9, 15, 0, 0, ist),
		time.Date(2025, 3, 4, 11, 40, 0, 0, ist),
	} {
		seq, err := log.NextBatchSeq(ctx, 7, at)
		require.NoError(t, err)
		entry := jobLog(at, 7, seq, model.JobStatusTriggered)
		require.NoError(t, log.InsertJobLog(ctx, entry))
		ids = append(ids, entry.BatchID)
	}
	assert.Equal(t, []string{"20250304_7_1", "20250304_7_2"}, ids)

	seq, err := log.NextBatchSeq(ctx, 7, time.Date(2025, 3, 4, 23, 59, 0, 0, ist))
	require.NoError(t, err)
	assert.Equal(t, 3, seq)
}

func TestSQLAuditLogUpdateAndFind(t *testing.T) {
	ctx := context.Background()
	log := newAuditLog(setupSQLite(t))
	day := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	entry := jobLog(day, 7, 1, model.JobStatusTriggered)
	require.NoError(t, log.InsertJobLog(ctx, entry))

	require.NoError(t, log.UpdateJobLog(ctx, entry.BatchID, model.JobLogUpdate{
		JobStatus:        model.Ptr(model.JobStatusCompleted),
		ValidationStatus: model.Ptr(model.TaskStatusWarning),
		IsRestart:        model.Ptr(true),
	}))

	found, err := log.FindJobLog(ctx, entry.BatchID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, found.JobStatus)
	require.NotNil(t, found.ValidationStatus)
	assert.Equal(t, model.TaskStatusWarning, *found.ValidationStatus)
	assert.Equal(t, true, *found.IsRestart)
	assert.Equal(t, false, *found.FailFast)
	assert.Nil(t, found.JobExceptionType)
	assert.Equal(t, map[string]interface{}{"job_id": float64(7)}, found.ConfigPassed)
	require.NotNil(t, found.DWUpdatedTS)
	assert.True(t, found.DWUpdatedTS.Equal(time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)))

	_, err = log.FindJobLog(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrJobLogNotFound)
	err = log.UpdateJobLog(ctx, "missing", model.StatusUpdate(model.JobStatusError))
	assert.ErrorIs(t, err, repository.ErrJobLogNotFound)
}

func TestSQLAuditLogActiveRunsAndPrevious(t *testing.T) {
	ctx := context.Background()
	log := newAuditLog(setupSQLite(t))
	day := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

	older := jobLog(day.AddDate(0, 0, -1), 7, 4, model.JobStatusCompleted)
	waiting := jobLog(day, 7, 1, model.JobStatusWaiting)
	current := jobLog(day, 7, 2, model.JobStatusTriggered)
	for _, e := range []*model.JobLogEntry{older, waiting, current} {
		require.NoError(t, log.InsertJobLog(ctx, e))
	}

	n, err := log.CountActiveRuns(ctx, 7, current.BatchID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, log.UpdateJobLog(ctx, waiting.BatchID, model.StatusUpdate(model.JobStatusStopped)))
	n, err = log.CountActiveRuns(ctx, 7, current.BatchID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	prev, err := log.FindPreviousJobLog(ctx, 7, current.BatchID)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, waiting.BatchID, prev.BatchID)
	assert.Equal(t, model.JobStatusStopped, prev.JobStatus)

	prev, err = log.FindPreviousJobLog(ctx, 99, "")
	require.NoError(t, err)
	assert.Nil(t, prev)

	query := log.DescribeActiveRunsQuery(7, current.BatchID)
	assert.Contains(t, query, "data_quality_job_log")
	assert.Contains(t, query, "'"+current.BatchID+"'")
	assert.Contains(t, query, "'COMPLETED'")
}

func TestSQLAuditLogTaskLogs(t *testing.T) {
	ctx := context.Background()
	log := newAuditLog(setupSQLite(t))
	day := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	id := model.NewBatchIdentity(7, day, 1, model.BatchTypeManual)
	other := model.NewBatchIdentity(7, day, 11, model.BatchTypeManual)
	start := day.Add(2 * time.Hour)

	tasks := []*model.TaskLogEntry{
		{BatchID: id.TaskBatchID(3), TaskID: 3, TaskName: "t3", TaskRule: model.TaskRuleMatchRow, TaskStatus: model.TaskStatusFailure,
			TaskResults: []model.AssertionResult{{Success: false, Result: map[string]interface{}{"mismatch_count": float64(2)}}}},
		{BatchID: id.TaskBatchID(1), TaskID: 1, TaskName: "t1", TaskRule: model.TaskRuleCheckNulls, TaskStatus: model.TaskStatusSuccess,
			TaskResults: []model.AssertionResult{{Success: true, Result: map[string]interface{}{"null_count": float64(0)}}}},
		{BatchID: id.TaskBatchID(2), TaskID: 2, TaskName: "t2", TaskRule: model.TaskRuleCheckNulls, TaskStatus: model.TaskStatusSkipped},
		{BatchID: id.TaskBatchID(4), TaskID: 4, TaskName: "t4", TaskRule: model.TaskRuleMatchCount, TaskStatus: model.TaskStatusFailure},
		// 20250304_7_11_1 must not be mistaken for a task of batch 20250304_7_1.
		{BatchID: other.TaskBatchID(1), TaskID: 1, TaskName: "t1", TaskRule: model.TaskRuleCheckNulls, TaskStatus: model.TaskStatusFailure},
	}
	for _, task := range tasks {
		task.StartTime = start
		task.EndTime = start.Add(time.Second)
		require.NoError(t, log.InsertTaskLog(ctx, task))
	}

	first, ok, err := log.FindFirstFailedTaskID(ctx, id.BatchID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, first)

	counts, err := log.CountTaskStatuses(ctx, id.BatchID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCounts{model.TaskStatusFailure: 2, model.TaskStatusSuccess: 1, model.TaskStatusSkipped: 1}, counts)
	assert.Equal(t, model.TaskStatusFailure, counts.ValidationStatus())

	logs, err := log.FindTaskLogs(ctx, id.BatchID)
	require.NoError(t, err)
	require.Len(t, logs, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, []int{logs[0].TaskID, logs[1].TaskID, logs[2].TaskID, logs[3].TaskID})
	assert.Nil(t, logs[1].TaskResults)
	assert.Equal(t, float64(2), logs[2].TaskResults[0].Result["mismatch_count"])
	assert.Equal(t, time.Second, logs[0].TimeTaken())

	_, ok, err = log.FindFirstFailedTaskID(ctx, "20250101_7_1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLAuditLogCountActiveRunsQuery(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: gorm_logger.Discard})
	require.NoError(t, err)

	tables := QualifiedTables("dq", "data_quality_job_config", "v_data_quality_task_config", "data_quality_job_log", "data_quality_task_log")
	log := NewSQLAuditLog(db, tables, testExecutor(), nil)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "dq"."data_quality_job_log" WHERE job_id = \$1 AND batch_id <> \$2 AND UPPER\(TRIM\(job_status\)\) NOT IN \(\$3,\$4,\$5,\$6,\$7\)`).
		WithArgs(7, "20250304_7_2", "ERROR", "STOPPED", "TIMEOUT", "IN_ACTIVE", "COMPLETED").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := log.CountActiveRuns(context.Background(), 7, "20250304_7_2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLAuditLogNextBatchSeqQueriesLocalDay(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: gorm_logger.Discard})
	require.NoError(t, err)
	log := NewSQLAuditLog(db, testTables, testExecutor(), nil)

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(batch_seq\), 0\) \+ 1 FROM .*data_quality_job_log.* WHERE job_id = \$1 AND batch_date >= \$2 AND batch_date < \$3`).
		WithArgs(7, "2025-03-05", "2025-03-06").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(4))

	ist := time.FixedZone("IST", 19800)
	seq, err := log.NextBatchSeq(context.Background(), 7, time.Date(2025, 3, 5, 2, 0, 0, 0, ist))
	require.NoError(t, err)
	assert.Equal(t, 4, seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLAuditLogWrapsQueryFailures(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: gorm_logger.Discard})
	require.NoError(t, err)
	log := NewSQLAuditLog(db, testTables, testExecutor(), nil)

	mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

	_, _, err = log.FindFirstFailedTaskID(context.Background(), "20250304_7_1")
	require.Error(t, err)
	assert.Equal(t, exception.KindUnhandled, exception.KindOf(err))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSQLConfigStore(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gorm_logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	require.NoError(t, db.Exec(`CREATE TABLE data_quality_job_config (job_id INTEGER, job_name TEXT, email_to TEXT, is_active BOOLEAN)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE v_data_quality_task_config (job_id INTEGER, task_id INTEGER, task_name TEXT, task_rule TEXT,
		config_type TEXT, src_reference TEXT, tgt_reference TEXT, src_config TEXT, tgt_config TEXT, task_parameter TEXT,
		fail_fast BOOLEAN, is_active BOOLEAN, dw_created_ts DATETIME, dw_updated_ts DATETIME, extra TEXT)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO data_quality_job_config VALUES (7, 'orders', 'a@altimetrik.com', 1)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO v_data_quality_task_config VALUES
		(7, 2, 'b', 'CHECK_NULLS', 'TBL', 'src', NULL, '{}', NULL, NULL, 0, 1, NULL, NULL, 'x'),
		(7, 1, 'a', 'CHECK_COLUMNS', 'TBL', 'src', NULL, '{}', NULL, '{"columns":["id"]}', 0, 1, NULL, NULL, 'x'),
		(8, 1, 'z', 'CHECK_NULLS', 'TBL', 'src', NULL, '{}', NULL, NULL, 0, 1, NULL, NULL, 'x')`).Error)

	store := NewSQLConfigStore(db, testTables)
	ctx := context.Background()

	jobs, err := store.FindJobConfigRecords(ctx, 7)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "orders", jobs[0]["job_name"])

	tasks, err := store.FindTaskConfigRecords(ctx, 7)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.EqualValues(t, 1, tasks[0]["task_id"])
	assert.Equal(t, `{"columns":["id"]}`, tasks[0]["task_parameter"])
	assert.Equal(t, map[string]interface{}{}, tasks[1]["task_parameter"])
	assert.NotContains(t, tasks[0], "extra")

	none, err := store.FindJobConfigRecords(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestJSONColumns(t *testing.T) {
	var doc JSONDocument
	require.NoError(t, doc.Scan([]byte(`{"a":1}`)))
	assert.Equal(t, JSONDocument{"a": float64(1)}, doc)

	var results JSONResults
	require.NoError(t, results.Scan(nil))
	assert.Nil(t, results)
	assert.Error(t, results.Scan(42))

	v, err := JSONResults{{Success: true, Result: map[string]interface{}{"n": 1}}}.Value()
	require.NoError(t, err)
	assert.Equal(t, `[{"success":true,"result":{"n":1}}]`, v)

	v, err = JSONDocument(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
