package sql

import (
	"context"

	"gorm.io/gorm"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/repository"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

// taskConfigColumns are the columns read from the task configuration view.
var taskConfigColumns = []string{
	"job_id", "task_id", "task_name", "task_rule", "config_type", "src_reference", "tgt_reference",
	"src_config", "tgt_config", "task_parameter", "fail_fast", "is_active", "dw_created_ts", "dw_updated_ts",
}

// SQLConfigStore implements repository.ConfigStore over the job configuration table and
// the task configuration view.
type SQLConfigStore struct {
	db     *gorm.DB
	tables Tables
}

// NewSQLConfigStore creates a new instance of SQLConfigStore.
func NewSQLConfigStore(db *gorm.DB, tables Tables) *SQLConfigStore {
	return &SQLConfigStore{db: db, tables: tables}
}

// FindJobConfigRecords implements repository.ConfigStore.
func (s *SQLConfigStore) FindJobConfigRecords(ctx context.Context, jobID int) ([]repository.ConfigRecord, error) {
	var rows []map[string]interface{}
	err := s.db.WithContext(ctx).Table(s.tables.JobConfig).Where("job_id = ?", jobID).Find(&rows).Error
	if err != nil {
		return nil, s.wrap("read job configuration", err)
	}
	return toRecords(rows), nil
}

// FindTaskConfigRecords implements repository.ConfigStore.
func (s *SQLConfigStore) FindTaskConfigRecords(ctx context.Context, jobID int) ([]repository.ConfigRecord, error) {
	var rows []map[string]interface{}
	err := s.db.WithContext(ctx).Table(s.tables.TaskConfig).
		Select(taskConfigColumns).
		Where("job_id = ?", jobID).
		Order("job_id").Order("task_id").
		Find(&rows).Error
	if err != nil {
		return nil, s.wrap("read task configuration", err)
	}
	records := toRecords(rows)
	for _, r := range records {
		if r["task_parameter"] == nil {
			r["task_parameter"] = map[string]interface{}{}
		}
	}
	return records, nil
}

// wrap keeps connectivity failures recognizable so the reader can retry them.
func (s *SQLConfigStore) wrap(op string, err error) error {
	if exception.IsTransient(err) {
		return exception.NewTransientError(moduleName, op+" failed", err)
	}
	return exception.NewDQErrorf(moduleName, exception.KindUnhandled, "%s failed", op, err)
}

func toRecords(rows []map[string]interface{}) []repository.ConfigRecord {
	out := make([]repository.ConfigRecord, len(rows))
	for i, row := range rows {
		rec := make(repository.ConfigRecord, len(row))
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec[k] = v
		}
		out[i] = rec
	}
	return out
}

var _ repository.ConfigStore = (*SQLConfigStore)(nil)
