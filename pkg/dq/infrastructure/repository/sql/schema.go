package sql

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	model "github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
)

// JobLogEntity is one row of the job log table.
type JobLogEntity struct {
	BatchID             string       `gorm:"column:batch_id;primaryKey"`
	JobID               int          `gorm:"column:job_id;index"`
	BatchDate           time.Time    `gorm:"column:batch_date;type:date"`
	BatchSeq            int          `gorm:"column:batch_seq"`
	BatchType           string       `gorm:"column:batch_type"`
	JobName             string       `gorm:"column:job_name"`
	JobStatus           string       `gorm:"column:job_status"`
	ValidationStatus    *string      `gorm:"column:validation_status"`
	FailFast            *bool        `gorm:"column:fail_fast"`
	IsRestart           *bool        `gorm:"column:is_restart"`
	JobExceptionType    *string      `gorm:"column:job_exception_type"`
	JobExceptionMessage *string      `gorm:"column:job_exception_message"`
	ConfigPassed        JSONDocument `gorm:"column:config_passed"`
	DWCreatedTS         time.Time    `gorm:"column:dw_created_ts"`
	DWUpdatedTS         *time.Time   `gorm:"column:dw_updated_ts"`
}

// TaskLogEntity is one row of the task log table. BatchID is the task batch id.
type TaskLogEntity struct {
	BatchID      string       `gorm:"column:batch_id;primaryKey"`
	TaskID       int          `gorm:"column:task_id"`
	TaskName     string       `gorm:"column:task_name"`
	TaskRule     string       `gorm:"column:task_rule"`
	TaskStatus   string       `gorm:"column:task_status"`
	TaskResults  JSONResults  `gorm:"column:task_results"`
	ConfigPassed JSONDocument `gorm:"column:config_passed"`
	StartTime    time.Time    `gorm:"column:start_time"`
	EndTime      time.Time    `gorm:"column:end_time"`
}

// JSONDocument stores a JSON object in a json or text column.
type JSONDocument map[string]interface{}

// GormDataType implements schema.GormDataTypeInterface.
func (JSONDocument) GormDataType() string { return "json" }

// Value implements driver.Valuer.
func (d JSONDocument) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return marshalJSON(d)
}

// Scan implements sql.Scanner.
func (d *JSONDocument) Scan(src interface{}) error {
	var out map[string]interface{}
	if err := unmarshalJSON(src, &out); err != nil {
		return err
	}
	*d = out
	return nil
}

// JSONResults stores the assertion results of a task as a JSON array. Nil means the task was skipped.
type JSONResults []model.AssertionResult

// GormDataType implements schema.GormDataTypeInterface.
func (JSONResults) GormDataType() string { return "json" }

// Value implements driver.Valuer.
func (r JSONResults) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return marshalJSON(r)
}

// Scan implements sql.Scanner.
func (r *JSONResults) Scan(src interface{}) error {
	var out []model.AssertionResult
	if err := unmarshalJSON(src, &out); err != nil {
		return err
	}
	*r = out
	return nil
}

func marshalJSON(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalJSON(src interface{}, dst interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column value of type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// Tables names the qualified process tables.
type Tables struct {
	JobConfig  string
	TaskConfig string
	JobLog     string
	TaskLog    string
}

// QualifiedTables prefixes every table with schema. An empty schema leaves the names unqualified.
func QualifiedTables(schema, jobConfig, taskConfig, jobLog, taskLog string) Tables {
	q := func(name string) string {
		if schema == "" {
			return name
		}
		return schema + "." + name
	}
	return Tables{JobConfig: q(jobConfig), TaskConfig: q(taskConfig), JobLog: q(jobLog), TaskLog: q(taskLog)}
}
