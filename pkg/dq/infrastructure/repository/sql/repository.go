// Package sql implements the audit log and the config store on the process database through gorm.
package sql

import (
	"context"
	dbsql "database/sql"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	model "github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/repository"
	"github.com/tigerroll/surfin-dq/pkg/dq/engine/retry"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

const moduleName = "sqlrepository"

// SQLAuditLog implements repository.AuditLog.
type SQLAuditLog struct {
	db       *gorm.DB
	tables   Tables
	executor *retry.Executor
	now      func() time.Time
}

// NewSQLAuditLog creates a new instance of SQLAuditLog.
//
// Parameters:
//
//	db: The process database connection.
//	tables: The qualified job log and task log table names.
//	executor: Retries every statement on connectivity failures.
//	now: The clock stamping dw_updated_ts, usually time.Now in the batch timezone.
//
// Returns:
//
//	*SQLAuditLog: The audit log.
func NewSQLAuditLog(db *gorm.DB, tables Tables, executor *retry.Executor, now func() time.Time) *SQLAuditLog {
	if now == nil {
		now = time.Now
	}
	return &SQLAuditLog{db: db, tables: tables, executor: executor, now: now}
}

func (r *SQLAuditLog) jobLog(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(r.tables.JobLog)
}

func (r *SQLAuditLog) taskLog(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(r.tables.TaskLog)
}

func (r *SQLAuditLog) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := r.executor.Do(ctx, op, fn); err != nil {
		if exception.KindOf(err) != exception.KindUnhandled || errors.Is(err, repository.ErrJobLogNotFound) {
			return err
		}
		return exception.NewDQErrorf(moduleName, exception.KindUnhandled, "%s failed", op, err)
	}
	return nil
}

// normalizeStatus mirrors the UPPER(TRIM(...)) applied to status columns in queries.
func normalizeStatus(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NextBatchSeq implements repository.AuditLog. Only the calendar day of batchDate is used.
// The bounds are plain dates so the comparison does not depend on the session timezone.
func (r *SQLAuditLog) NextBatchSeq(ctx context.Context, jobID int, batchDate time.Time) (int, error) {
	day := model.BatchDay(batchDate)
	from, until := day.Format(time.DateOnly), day.AddDate(0, 0, 1).Format(time.DateOnly)
	var seq int
	err := r.do(ctx, "next_batch_seq", func(ctx context.Context) error {
		return r.jobLog(ctx).
			Select("COALESCE(MAX(batch_seq), 0) + 1").
			Where("job_id = ? AND batch_date >= ? AND batch_date < ?", jobID, from, until).
			Row().Scan(&seq)
	})
	return seq, err
}

// InsertJobLog implements repository.AuditLog.
func (r *SQLAuditLog) InsertJobLog(ctx context.Context, entry *model.JobLogEntry) error {
	entity := fromDomainJobLog(entry)
	err := r.do(ctx, "insert_job_log", func(ctx context.Context) error {
		return r.jobLog(ctx).Create(entity).Error
	})
	if err != nil {
		return err
	}
	logger.Infof("Job log inserted with the values {'job_status': %s} along with initial parameters.", entry.JobStatus)
	return nil
}

// UpdateJobLog implements repository.AuditLog.
func (r *SQLAuditLog) UpdateJobLog(ctx context.Context, batchID string, update model.JobLogUpdate) error {
	cols := updateColumns(update)
	cols["dw_updated_ts"] = r.now()

	err := r.do(ctx, "update_job_log", func(ctx context.Context) error {
		res := r.jobLog(ctx).Where("batch_id = ?", batchID).Updates(cols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrJobLogNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	delete(cols, "dw_updated_ts")
	logger.Infof("Job log updated with the values %v.", cols)
	return nil
}

// FindJobLog implements repository.AuditLog.
func (r *SQLAuditLog) FindJobLog(ctx context.Context, batchID string) (*model.JobLogEntry, error) {
	var entities []JobLogEntity
	err := r.do(ctx, "find_job_log", func(ctx context.Context) error {
		return r.jobLog(ctx).Where("batch_id = ?", batchID).Find(&entities).Error
	})
	if err != nil {
		return nil, err
	}
	switch len(entities) {
	case 0:
		return nil, repository.ErrJobLogNotFound
	case 1:
		return toDomainJobLog(&entities[0]), nil
	default:
		return nil, exception.NewDQErrorf(moduleName, exception.KindUnhandled,
			"Multiple entries found for Job Batch ID '%s' in the log table.", batchID)
	}
}

func (r *SQLAuditLog) activeRuns(tx *gorm.DB, jobID int, excludeBatchID string) *gorm.DB {
	terminal := make([]string, len(model.TerminalJobStatuses))
	for i, s := range model.TerminalJobStatuses {
		terminal[i] = string(s)
	}
	return tx.Table(r.tables.JobLog).
		Where("job_id = ? AND batch_id <> ? AND UPPER(TRIM(job_status)) NOT IN ?", jobID, excludeBatchID, terminal)
}

// CountActiveRuns implements repository.AuditLog.
func (r *SQLAuditLog) CountActiveRuns(ctx context.Context, jobID int, excludeBatchID string) (int64, error) {
	var n int64
	err := r.do(ctx, "count_active_runs", func(ctx context.Context) error {
		return r.activeRuns(r.db.WithContext(ctx), jobID, excludeBatchID).Count(&n).Error
	})
	return n, err
}

// DescribeActiveRunsQuery implements repository.AuditLog.
func (r *SQLAuditLog) DescribeActiveRunsQuery(jobID int, excludeBatchID string) string {
	return r.db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return r.activeRuns(tx, jobID, excludeBatchID).Select("COUNT(*)").Find(&[]JobLogEntity{})
	})
}

// FindPreviousJobLog implements repository.AuditLog.
func (r *SQLAuditLog) FindPreviousJobLog(ctx context.Context, jobID int, excludeBatchID string) (*model.JobLogEntry, error) {
	var entities []JobLogEntity
	err := r.do(ctx, "find_previous_job_log", func(ctx context.Context) error {
		return r.jobLog(ctx).
			Where("job_id = ? AND batch_id <> ?", jobID, excludeBatchID).
			Order("batch_date DESC").Order("batch_seq DESC").
			Limit(1).
			Find(&entities).Error
	})
	if err != nil || len(entities) == 0 {
		return nil, err
	}
	prev := toDomainJobLog(&entities[0])
	logger.Infof("Job details previous: batch_id=%s, job_status=%s, validation_status=%v",
		prev.BatchID, prev.JobStatus, derefStatus(prev.ValidationStatus))
	return prev, nil
}

// taskBatchPrefix matches the task batch ids of a job batch, i.e. "<batchID>_<taskID>".
func (r *SQLAuditLog) taskBatchPrefix(tx *gorm.DB, batchID string) *gorm.DB {
	prefix := batchID + "_"
	return tx.Where("SUBSTR(batch_id, 1, ?) = ?", len(prefix), prefix)
}

// FindFirstFailedTaskID implements repository.AuditLog.
func (r *SQLAuditLog) FindFirstFailedTaskID(ctx context.Context, batchID string) (int, bool, error) {
	var first dbsql.NullInt64
	err := r.do(ctx, "find_first_failed_task", func(ctx context.Context) error {
		return r.taskBatchPrefix(r.taskLog(ctx), batchID).
			Select("MIN(task_id)").
			Where("UPPER(TRIM(task_status)) = ?", string(model.TaskStatusFailure)).
			Row().Scan(&first)
	})
	if err != nil {
		return 0, false, err
	}
	if !first.Valid {
		return 0, false, nil
	}
	return int(first.Int64), true, nil
}

// InsertTaskLog implements repository.AuditLog.
func (r *SQLAuditLog) InsertTaskLog(ctx context.Context, entry *model.TaskLogEntry) error {
	entity := fromDomainTaskLog(entry)
	err := r.do(ctx, "insert_task_log", func(ctx context.Context) error {
		return r.taskLog(ctx).Create(entity).Error
	})
	if err != nil {
		return err
	}
	logger.Infof("Task log inserted with the values {'task_status': %s} along with other parameters.", entry.TaskStatus)
	return nil
}

type statusCount struct {
	TaskStatus  string
	CountStatus int
}

// CountTaskStatuses implements repository.AuditLog.
func (r *SQLAuditLog) CountTaskStatuses(ctx context.Context, batchID string) (model.TaskStatusCounts, error) {
	var rows []statusCount
	err := r.do(ctx, "count_task_statuses", func(ctx context.Context) error {
		return r.taskBatchPrefix(r.taskLog(ctx), batchID).
			Select("UPPER(TRIM(task_status)) AS task_status, COUNT(*) AS count_status").
			Group("UPPER(TRIM(task_status))").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	counts := make(model.TaskStatusCounts, len(rows))
	for _, row := range rows {
		counts[model.TaskStatus(row.TaskStatus)] = row.CountStatus
	}
	return counts, nil
}

// FindTaskLogs implements repository.AuditLog.
func (r *SQLAuditLog) FindTaskLogs(ctx context.Context, batchID string) ([]model.TaskLogEntry, error) {
	var entities []TaskLogEntity
	err := r.do(ctx, "find_task_logs", func(ctx context.Context) error {
		return r.taskBatchPrefix(r.taskLog(ctx), batchID).Order("task_id").Find(&entities).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.TaskLogEntry, len(entities))
	for i := range entities {
		out[i] = toDomainTaskLog(&entities[i])
	}
	return out, nil
}

func derefStatus(s *model.TaskStatus) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// Verify interfaces
var _ repository.AuditLog = (*SQLAuditLog)(nil)
