package configmodel

import (
	"context"
	"fmt"

	model "github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/repository"
	"github.com/tigerroll/surfin-dq/pkg/dq/engine/retry"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// Reader loads and validates a job and its tasks from the config store.
type Reader struct {
	store    repository.ConfigStore
	opts     Options
	executor *retry.Executor
}

// NewReader creates a Reader. Store reads are retried by executor.
func NewReader(store repository.ConfigStore, opts Options, executor *retry.Executor) *Reader {
	return &Reader{store: store, opts: opts, executor: executor}
}

// LoadJob returns the validated configuration of jobID.
func (r *Reader) LoadJob(ctx context.Context, jobID int) (*model.JobConfig, error) {
	rows, err := retry.DoValue(ctx, r.executor, "read_job_config", func(ctx context.Context) ([]repository.ConfigRecord, error) {
		return r.store.FindJobConfigRecords(ctx, jobID)
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, exception.NewConfigurationError(moduleName,
			fmt.Sprintf("Job ID '%d' not found in the configuration table.", jobID), nil)
	}
	if len(rows) > 1 {
		return nil, exception.NewConfigurationError(moduleName,
			fmt.Sprintf("Multiple entries found for Job ID '%d' in the configuration table.", jobID), nil)
	}

	logger.Infof("Job Configuration Validation:")
	logger.Debugf("   RAW - %v", map[string]interface{}(rows[0]))
	job, err := ParseJobConfig(rows[0], r.opts)
	if err != nil {
		return nil, exception.NewConfigurationError(moduleName,
			fmt.Sprintf("Invalid configuration for Job ID '%d'", jobID), err)
	}
	logger.Infof("   MDL - %+v", *job)
	return job, nil
}

// LoadTasks returns the validated tasks of jobID ordered by task_id.
// Task ids and task names must be unique within the job.
func (r *Reader) LoadTasks(ctx context.Context, jobID int) ([]*model.TaskConfig, error) {
	rows, err := retry.DoValue(ctx, r.executor, "read_task_configs", func(ctx context.Context) ([]repository.ConfigRecord, error) {
		return r.store.FindTaskConfigRecords(ctx, jobID)
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, exception.NewConfigurationError(moduleName,
			fmt.Sprintf("No tasks associated with Job ID '%d' in the configuration table.", jobID), nil)
	}
	if hasDuplicate(rows, "task_id") {
		return nil, exception.NewConfigurationError(moduleName,
			fmt.Sprintf("Duplicate Task IDs found for Job ID '%d' in the configuration table.", jobID), nil)
	}
	if hasDuplicate(rows, "task_name") {
		return nil, exception.NewConfigurationError(moduleName,
			fmt.Sprintf("Duplicate Task names found for Job ID '%d' in the configuration table.", jobID), nil)
	}

	logger.Infof("Tasks Configuration Validation:")
	tasks := make([]*model.TaskConfig, 0, len(rows))
	for _, row := range rows {
		logger.Infof("[%v.%v]", row["job_id"], row["task_id"])
		logger.Debugf("   RAW - %v", map[string]interface{}(row))
		task, err := ParseTaskConfig(row, r.opts)
		if err != nil {
			if exception.IsKind(err, exception.KindUnsupportedCombination) {
				return nil, err
			}
			return nil, exception.NewConfigurationError(moduleName,
				fmt.Sprintf("Invalid configuration for Task ID '%v' of Job ID '%d'", row["task_id"], jobID), err)
		}
		logger.Infof("   MDL - %s", task)
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// hasDuplicate compares the normalized text of key across rows.
func hasDuplicate(rows []repository.ConfigRecord, key string) bool {
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		k := fmt.Sprint(Normalize(map[string]interface{}{key: row[key]})[key])
		if seen[k] {
			return true
		}
		seen[k] = true
	}
	return false
}
