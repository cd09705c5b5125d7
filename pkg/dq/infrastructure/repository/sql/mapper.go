package sql

import (
	model "github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
)

// --- Mapper functions ---

func fromDomainJobLog(e *model.JobLogEntry) *JobLogEntity {
	if e == nil {
		return nil
	}
	return &JobLogEntity{
		BatchID:             e.BatchID,
		JobID:               e.JobID,
		BatchDate:           e.BatchDate,
		BatchSeq:            e.BatchSeq,
		BatchType:           string(e.BatchType),
		JobName:             e.JobName,
		JobStatus:           string(e.JobStatus),
		ValidationStatus:    stringPtr(e.ValidationStatus),
		FailFast:            e.FailFast,
		IsRestart:           e.IsRestart,
		JobExceptionType:    e.JobExceptionType,
		JobExceptionMessage: e.JobExceptionMessage,
		ConfigPassed:        JSONDocument(e.ConfigPassed),
		DWCreatedTS:         e.DWCreatedTS,
		DWUpdatedTS:         e.DWUpdatedTS,
	}
}

func toDomainJobLog(entity *JobLogEntity) *model.JobLogEntry {
	if entity == nil {
		return nil
	}
	var validation *model.TaskStatus
	if entity.ValidationStatus != nil {
		validation = model.Ptr(model.TaskStatus(normalizeStatus(*entity.ValidationStatus)))
	}
	return &model.JobLogEntry{
		BatchID:             entity.BatchID,
		JobID:               entity.JobID,
		BatchDate:           entity.BatchDate,
		BatchSeq:            entity.BatchSeq,
		BatchType:           model.BatchType(entity.BatchType),
		JobName:             entity.JobName,
		JobStatus:           model.JobStatus(normalizeStatus(entity.JobStatus)),
		ValidationStatus:    validation,
		FailFast:            entity.FailFast,
		IsRestart:           entity.IsRestart,
		JobExceptionType:    entity.JobExceptionType,
		JobExceptionMessage: entity.JobExceptionMessage,
		ConfigPassed:        map[string]interface{}(entity.ConfigPassed),
		DWCreatedTS:         entity.DWCreatedTS,
		DWUpdatedTS:         entity.DWUpdatedTS,
	}
}

func fromDomainTaskLog(e *model.TaskLogEntry) *TaskLogEntity {
	if e == nil {
		return nil
	}
	return &TaskLogEntity{
		BatchID:      e.BatchID,
		TaskID:       e.TaskID,
		TaskName:     e.TaskName,
		TaskRule:     string(e.TaskRule),
		TaskStatus:   string(e.TaskStatus),
		TaskResults:  JSONResults(e.TaskResults),
		ConfigPassed: JSONDocument(e.ConfigPassed),
		StartTime:    e.StartTime,
		EndTime:      e.EndTime,
	}
}

func toDomainTaskLog(entity *TaskLogEntity) model.TaskLogEntry {
	return model.TaskLogEntry{
		BatchID:      entity.BatchID,
		TaskID:       entity.TaskID,
		TaskName:     entity.TaskName,
		TaskRule:     model.TaskRule(entity.TaskRule),
		TaskStatus:   model.TaskStatus(normalizeStatus(entity.TaskStatus)),
		TaskResults:  []model.AssertionResult(entity.TaskResults),
		ConfigPassed: map[string]interface{}(entity.ConfigPassed),
		StartTime:    entity.StartTime,
		EndTime:      entity.EndTime,
	}
}

// updateColumns converts a JobLogUpdate into the column map of an UPDATE.
func updateColumns(u model.JobLogUpdate) map[string]interface{} {
	cols := make(map[string]interface{})
	if u.JobStatus != nil {
		cols["job_status"] = string(*u.JobStatus)
	}
	if u.ValidationStatus != nil {
		cols["validation_status"] = string(*u.ValidationStatus)
	}
	if u.FailFast != nil {
		cols["fail_fast"] = *u.FailFast
	}
	if u.IsRestart != nil {
		cols["is_restart"] = *u.IsRestart
	}
	if u.JobExceptionType != nil {
		cols["job_exception_type"] = *u.JobExceptionType
	}
	if u.JobExceptionMessage != nil {
		cols["job_exception_message"] = *u.JobExceptionMessage
	}
	return cols
}

func stringPtr[T ~string](p *T) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}
