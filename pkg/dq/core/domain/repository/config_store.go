package repository

import (
	"context"
)

// ConfigRecord is a raw row of the job configuration table or the task configuration view.
type ConfigRecord map[string]interface{}

// ConfigStore reads declarative job configuration.
type ConfigStore interface {
	// FindJobConfigRecords returns every job configuration row for jobID.
	FindJobConfigRecords(ctx context.Context, jobID int) ([]ConfigRecord, error)

	// FindTaskConfigRecords returns every task configuration row for jobID ordered by task_id.
	// A missing task_parameter is returned as an empty object.
	FindTaskConfigRecords(ctx context.Context, jobID int) ([]ConfigRecord, error)
}
