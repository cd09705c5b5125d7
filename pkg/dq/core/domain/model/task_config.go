package model

import (
	"fmt"
	"time"
)

// JobConfig is a validated row of the job configuration table.
// It is immutable for the duration of a run.
type JobConfig struct {
	JobID         int        `json:"job_id"`
	JobName       string     `json:"job_name"`
	EmailTo       []string   `json:"email_to"`
	EmailCC       []string   `json:"email_cc"`
	AlertChannel  string     `json:"alert_channel"`
	JobWaitMinute int        `json:"job_wait_minute"`
	IsRestart     bool       `json:"is_restart"`
	IsActive      bool       `json:"is_active"`
	DWCreatedTS   time.Time  `json:"dw_created_ts"`
	DWUpdatedTS   *time.Time `json:"dw_updated_ts"`
}

// TaskConfig is a validated row of the task configuration view.
// SrcConfig, TgtConfig and Parameter hold the variant selected by (ConfigType, TaskRule).
type TaskConfig struct {
	JobID        int        `json:"job_id"`
	TaskID       int        `json:"task_id"`
	TaskName     string     `json:"task_name"`
	TaskRule     TaskRule   `json:"task_rule"`
	ConfigType   ConfigType `json:"config_type"`
	SrcReference string     `json:"src_reference"`
	TgtReference *string    `json:"tgt_reference"`
	SrcConfig    SourceConfig  `json:"-"`
	TgtConfig    TargetConfig  `json:"-"`
	Parameter    TaskParameter `json:"-"`
	FailFast     bool       `json:"fail_fast"`
	IsActive     bool       `json:"is_active"`
	DWCreatedTS  time.Time  `json:"dw_created_ts"`
	DWUpdatedTS  *time.Time `json:"dw_updated_ts"`
}

// Record returns the task in its raw record form, with sub-configurations flattened back to maps.
// Validating the returned record yields an identical TaskConfig.
func (t TaskConfig) Record() map[string]interface{} {
	rec := map[string]interface{}{
		"job_id":         t.JobID,
		"task_id":        t.TaskID,
		"task_name":      t.TaskName,
		"task_rule":      string(t.TaskRule),
		"config_type":    string(t.ConfigType),
		"src_reference":  t.SrcReference,
		"tgt_reference":  derefOrNil(t.TgtReference),
		"src_config":     map[string]interface{}{},
		"tgt_config":     map[string]interface{}{},
		"task_parameter": map[string]interface{}{},
		"fail_fast":      t.FailFast,
		"is_active":      t.IsActive,
		"dw_created_ts":  t.DWCreatedTS,
		"dw_updated_ts":  nil,
	}
	if t.DWUpdatedTS != nil {
		rec["dw_updated_ts"] = *t.DWUpdatedTS
	}
	if t.SrcConfig != nil {
		rec["src_config"] = t.SrcConfig.Fields()
	}
	if t.TgtConfig != nil {
		rec["tgt_config"] = t.TgtConfig.Fields()
	}
	if t.Parameter != nil {
		rec["task_parameter"] = t.Parameter.Fields()
	}
	return rec
}

// String identifies the task in log lines.
func (t TaskConfig) String() string {
	return fmt.Sprintf("task %d '%s' (%s/%s)", t.TaskID, t.TaskName, t.ConfigType, t.TaskRule)
}

// SourceConfig is the validated src_config of a task: *SourceTable or *SourceAPI.
type SourceConfig interface {
	isSourceConfig()
	// Fields returns the raw key/value form.
	Fields() map[string]interface{}
}

// TargetConfig is the validated tgt_config of a task: *TargetTable or TargetNone.
type TargetConfig interface {
	isTargetConfig()
	Fields() map[string]interface{}
}

// SourceTable is the src_config of a TBL task.
type SourceTable struct {
	DBType DBType  `mapstructure:"src_dbtype"`
	DBName string  `mapstructure:"src_dbname"`
	Schema *string `mapstructure:"src_schema"`
	Table  string  `mapstructure:"src_table"`
	Query  *string `mapstructure:"src_query"`
}

func (*SourceTable) isSourceConfig() {}

// Ref returns the table reference read by algorithms.
func (s *SourceTable) Ref() TableRef {
	return TableRef{DBType: s.DBType, DBName: s.DBName, Schema: s.Schema, Table: s.Table, Query: s.Query}
}

// Fields returns the raw key/value form.
func (s *SourceTable) Fields() map[string]interface{} {
	return map[string]interface{}{
		"src_dbtype": string(s.DBType),
		"src_dbname": s.DBName,
		"src_schema": derefOrNil(s.Schema),
		"src_table":  s.Table,
		"src_query":  derefOrNil(s.Query),
	}
}

// SourceAPI is the src_config of an API task.
type SourceAPI struct {
	BaseURL string  `mapstructure:"src_base_url"`
	AuthKey AuthKey `mapstructure:"src_auth_key"`
}

func (*SourceAPI) isSourceConfig() {}

// Fields returns the raw key/value form.
func (s *SourceAPI) Fields() map[string]interface{} {
	return map[string]interface{}{
		"src_base_url": s.BaseURL,
		"src_auth_key": string(s.AuthKey),
	}
}

// TargetTable is the tgt_config of a task whose rule compares against a target.
type TargetTable struct {
	DBType DBType  `mapstructure:"tgt_dbtype"`
	DBName string  `mapstructure:"tgt_dbname"`
	Schema *string `mapstructure:"tgt_schema"`
	Table  string  `mapstructure:"tgt_table"`
	Query  *string `mapstructure:"tgt_query"`
}

func (*TargetTable) isTargetConfig() {}

// Ref returns the table reference read by algorithms.
func (t *TargetTable) Ref() TableRef {
	return TableRef{DBType: t.DBType, DBName: t.DBName, Schema: t.Schema, Table: t.Table, Query: t.Query}
}

// Fields returns the raw key/value form.
func (t *TargetTable) Fields() map[string]interface{} {
	return map[string]interface{}{
		"tgt_dbtype": string(t.DBType),
		"tgt_dbname": t.DBName,
		"tgt_schema": derefOrNil(t.Schema),
		"tgt_table":  t.Table,
		"tgt_query":  derefOrNil(t.Query),
	}
}

// TargetNone is the tgt_config of a single-table check. Every tgt_* key must be null.
type TargetNone struct{}

func (TargetNone) isTargetConfig() {}

// Fields returns the raw key/value form.
func (TargetNone) Fields() map[string]interface{} {
	return map[string]interface{}{
		"tgt_dbtype": nil,
		"tgt_dbname": nil,
		"tgt_schema": nil,
		"tgt_table":  nil,
		"tgt_query":  nil,
	}
}

// TableRef addresses a relational table and, optionally, the query that reads it.
type TableRef struct {
	DBType DBType
	DBName string
	Schema *string
	Table  string
	Query  *string
}

// Identifier returns schema.table, or table when no schema applies.
func (r TableRef) Identifier() string {
	if r.Schema != nil && *r.Schema != "" {
		return *r.Schema + "." + r.Table
	}
	return r.Table
}

// ReadQuery returns the configured query, or a full table read.
// MySQL tables are read unqualified since the connection already selects the database.
func (r TableRef) ReadQuery() string {
	if r.Query != nil {
		return *r.Query
	}
	if r.DBType == DBTypePostgres {
		return fmt.Sprintf("SELECT * FROM %s;", r.Identifier())
	}
	return fmt.Sprintf("SELECT * FROM %s;", r.Table)
}

func derefOrNil[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
