package configmodel

import (
	"fmt"

	model "github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

const moduleName = "configmodel"

var taskConfigKeys = []string{
	"job_id", "task_id", "task_name", "task_rule", "config_type", "src_reference", "tgt_reference",
	"src_config", "tgt_config", "task_parameter", "fail_fast", "is_active", "dw_created_ts", "dw_updated_ts",
}

type rawTaskConfig struct {
	JobID         *int        `mapstructure:"job_id"`
	TaskID        *int        `mapstructure:"task_id"`
	TaskName      *string     `mapstructure:"task_name"`
	TaskRule      *string     `mapstructure:"task_rule"`
	ConfigType    *string     `mapstructure:"config_type"`
	SrcReference  *string     `mapstructure:"src_reference"`
	TgtReference  *string     `mapstructure:"tgt_reference"`
	SrcConfig     interface{} `mapstructure:"src_config"`
	TgtConfig     interface{} `mapstructure:"tgt_config"`
	TaskParameter interface{} `mapstructure:"task_parameter"`
	FailFast      *bool       `mapstructure:"fail_fast"`
	IsActive      *bool       `mapstructure:"is_active"`
	DWCreatedTS   interface{} `mapstructure:"dw_created_ts"`
	DWUpdatedTS   interface{} `mapstructure:"dw_updated_ts"`
}

// ParseTaskConfig validates a task configuration record.
// Base fields are checked first. The sub-configurations and the parameter are then validated
// against the schemas selected by (config_type, task_rule) and replace the raw objects.
func ParseTaskConfig(record map[string]interface{}, opts Options) (*model.TaskConfig, error) {
	rec := Normalize(record)
	errs := newFieldErrors("")
	errs.require(rec, taskConfigKeys...)

	var raw rawTaskConfig
	if err := decodeStrict(rec, &raw); err != nil {
		errs.add(err)
		return nil, errs.err()
	}

	task := &model.TaskConfig{
		TaskName:     errs.requiredString("task_name", raw.TaskName),
		SrcReference: errs.requiredString("src_reference", raw.SrcReference),
		TgtReference: raw.TgtReference,
	}
	switch {
	case raw.JobID == nil:
		errs.addf("job_id: input should be a valid integer")
	case *raw.JobID < 0:
		errs.addf("job_id: input should be greater than or equal to 0")
	default:
		task.JobID = *raw.JobID
	}
	switch {
	case raw.TaskID == nil:
		errs.addf("task_id: input should be a valid integer")
	case *raw.TaskID < 1:
		errs.addf("task_id: input should be greater than or equal to 1")
	default:
		task.TaskID = *raw.TaskID
	}
	task.FailFast = requiredBool(errs, "fail_fast", raw.FailFast)
	task.IsActive = requiredBool(errs, "is_active", raw.IsActive)

	rule, ruleErr := model.ParseTaskRule(errs.requiredString("task_rule", raw.TaskRule))
	if raw.TaskRule != nil {
		errs.add(ruleErr)
	}
	configType, typeErr := model.ParseConfigType(errs.requiredString("config_type", raw.ConfigType))
	if raw.ConfigType != nil {
		errs.add(typeErr)
	}
	task.TaskRule, task.ConfigType = rule, configType

	created, err := toTime("dw_created_ts", raw.DWCreatedTS, opts.location())
	errs.add(err)
	if err == nil && created == nil {
		errs.addf("dw_created_ts: input should be a valid datetime")
	} else if created != nil {
		task.DWCreatedTS = *created
	}
	updated, err := toTime("dw_updated_ts", raw.DWUpdatedTS, opts.location())
	errs.add(err)
	task.DWUpdatedTS = updated

	srcRaw, srcErr := asObject("src_config", raw.SrcConfig)
	errs.add(srcErr)
	tgtRaw, tgtErr := asObject("tgt_config", raw.TgtConfig)
	errs.add(tgtErr)
	var paramRaw map[string]interface{}
	if raw.TaskParameter != nil {
		var paramErr error
		paramRaw, paramErr = asObject("task_parameter", raw.TaskParameter)
		errs.add(paramErr)
	}

	if err := errs.err(); err != nil {
		return nil, err
	}

	if err := resolveVariants(task, srcRaw, tgtRaw, paramRaw); err != nil {
		return nil, err
	}
	return task, nil
}

// resolveVariants replaces the raw sub-configurations with their validated variants.
func resolveVariants(task *model.TaskConfig, srcRaw, tgtRaw, paramRaw map[string]interface{}) error {
	combination := Combination{ConfigType: task.ConfigType, TaskRule: task.TaskRule}
	if _, ok := parameterSchemas[combination]; !ok {
		_, err := ParseTaskParameter(combination, paramRaw)
		return err
	}

	errs := newFieldErrors("")
	switch task.ConfigType {
	case model.ConfigTypeAPI:
		src, err := ParseSourceAPI(srcRaw)
		errs.add(err)
		task.SrcConfig = src
		tgt, err := ParseTargetTable(tgtRaw)
		errs.add(err)
		task.TgtConfig = tgt
	case model.ConfigTypeTBL:
		src, err := ParseSourceTable(srcRaw)
		errs.add(err)
		task.SrcConfig = src
		if task.TaskRule.RequiresTarget() {
			tgt, err := ParseTargetTable(tgtRaw)
			errs.add(err)
			task.TgtConfig = tgt
		} else {
			tgt, err := ParseTargetNone(tgtRaw)
			errs.add(err)
			task.TgtConfig = tgt
		}
	default:
		return exception.NewDQError(moduleName, exception.KindUnsupportedCombination, fmt.Sprintf(
			"Implementation for config_type '%s' is not yet available. "+
				"Please ensure that this type is supported in the framework before using it.", task.ConfigType), nil)
	}

	param, err := ParseTaskParameter(combination, paramRaw)
	errs.add(err)
	task.Parameter = param
	return errs.err()
}
