package model

import (
	"fmt"
	"sort"
	"strings"
)

// TaskRule is the comparison or check a task requests.
type TaskRule string

const (
	TaskRuleMatchRow         TaskRule = "MATCH_ROW"
	TaskRuleMatchCount       TaskRule = "MATCH_COUNT"
	TaskRuleCheckNulls       TaskRule = "CHECK_NULLS"
	TaskRuleCheckValues      TaskRule = "CHECK_VALUES"
	TaskRuleCheckColumns     TaskRule = "CHECK_COLUMNS"
	TaskRuleCheckDuplicate   TaskRule = "CHECK_DUPLICATE"
	TaskRuleCheckThreshold   TaskRule = "CHECK_THRESHOLD"
	TaskRuleMatchAggregation TaskRule = "MATCH_AGGREGATION"
)

var taskRules = []TaskRule{
	TaskRuleMatchRow, TaskRuleMatchCount, TaskRuleCheckNulls, TaskRuleCheckValues,
	TaskRuleCheckColumns, TaskRuleCheckDuplicate, TaskRuleCheckThreshold, TaskRuleMatchAggregation,
}

// RequiresTarget reports whether the rule compares against a target table.
func (r TaskRule) RequiresTarget() bool {
	return strings.HasPrefix(string(r), "MATCH_")
}

// ConfigType is the kind of source a task reads.
type ConfigType string

const (
	ConfigTypeAPI ConfigType = "API"
	ConfigTypeTBL ConfigType = "TBL"
)

var configTypes = []ConfigType{ConfigTypeAPI, ConfigTypeTBL}

// AuthKey selects the authentication strategy of an API source.
type AuthKey string

const (
	AuthKeySFDC  AuthKey = "SFDC"
	AuthKeySAPSF AuthKey = "SAPSF"
	AuthKeyDEXTC AuthKey = "DEX_TC"
)

var authKeys = []AuthKey{AuthKeySFDC, AuthKeySAPSF, AuthKeyDEXTC}

// AuthType is the HTTP authorization scheme produced by a strategy.
type AuthType string

const (
	AuthTypeBasic  AuthType = "BASIC"
	AuthTypeBearer AuthType = "BEARER"
)

// DBType is the kind of relational database a table lives in.
type DBType string

const (
	DBTypeMySQL    DBType = "MYSQL"
	DBTypePostgres DBType = "POSTGRE"
)

var dbTypes = []DBType{DBTypeMySQL, DBTypePostgres}

// RequiresSchema reports whether tables of this database type must be schema qualified.
func (d DBType) RequiresSchema() bool {
	return d == DBTypePostgres
}

// JobStatus is the state of a batch in the job state machine.
type JobStatus string

const (
	JobStatusError      JobStatus = "ERROR"
	JobStatusStopped    JobStatus = "STOPPED"
	JobStatusTimeout    JobStatus = "TIMEOUT"
	JobStatusWaiting    JobStatus = "WAITING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusTriggered  JobStatus = "TRIGGERED"
	JobStatusInActive   JobStatus = "IN_ACTIVE"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
)

// TerminalJobStatuses are the states after which a batch no longer blocks other runs of its job.
var TerminalJobStatuses = []JobStatus{
	JobStatusError, JobStatusStopped, JobStatusTimeout, JobStatusInActive, JobStatusCompleted,
}

// IsTerminal reports whether the status ends the batch.
func (s JobStatus) IsTerminal() bool {
	for _, t := range TerminalJobStatuses {
		if s == t {
			return true
		}
	}
	return false
}

// TaskStatus is the outcome of a single task, also used as the job's validation_status.
type TaskStatus string

const (
	TaskStatusSuccess TaskStatus = "SUCCESS"
	TaskStatusFailure TaskStatus = "FAILURE"
	TaskStatusWarning TaskStatus = "WARNING"
	TaskStatusSkipped TaskStatus = "SKIPPED"
)

// BatchType records whether a batch was scheduled or started by hand.
type BatchType string

const (
	BatchTypeAuto   BatchType = "AUTO"
	BatchTypeManual BatchType = "MANUAL"
)

// ParseTaskRule upper-cases and resolves a task rule.
func ParseTaskRule(s string) (TaskRule, error) {
	return parseEnum(s, taskRules, "task_rule")
}

// ParseConfigType upper-cases and resolves a config type.
func ParseConfigType(s string) (ConfigType, error) {
	return parseEnum(s, configTypes, "config_type")
}

// ParseAuthKey upper-cases and resolves an API auth key.
func ParseAuthKey(s string) (AuthKey, error) {
	return parseEnum(s, authKeys, "src_auth_key")
}

// ParseDBType upper-cases and resolves a database type.
func ParseDBType(s string, field string) (DBType, error) {
	return parseEnum(s, dbTypes, field)
}

func parseEnum[T ~string](s string, allowed []T, field string) (T, error) {
	candidate := T(strings.ToUpper(strings.TrimSpace(s)))
	for _, a := range allowed {
		if a == candidate {
			return a, nil
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = "'" + string(a) + "'"
	}
	sort.Strings(names)
	return "", fmt.Errorf("%s: input should be %s, got '%s'", field, strings.Join(names, ", "), s)
}
