package configmodel

import (
	"fmt"
	"sort"
	"strings"

	model "github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

// Combination is the key every task-specific schema is selected by.
type Combination struct {
	ConfigType model.ConfigType
	TaskRule   model.TaskRule
}

func (c Combination) String() string {
	return fmt.Sprintf("%s/%s", c.ConfigType, c.TaskRule)
}

// parameterParser validates a normalized task_parameter object.
type parameterParser func(errs *fieldErrors, rec map[string]interface{}) model.TaskParameter

// parameterSchemas maps every supported combination to its parameter schema.
var parameterSchemas = map[Combination]parameterParser{
	{model.ConfigTypeAPI, model.TaskRuleMatchCount}:       parseMatchCountAPI,
	{model.ConfigTypeTBL, model.TaskRuleMatchCount}:       parseNoParam,
	{model.ConfigTypeTBL, model.TaskRuleCheckColumns}:     parseCheckColumns,
	{model.ConfigTypeTBL, model.TaskRuleCheckValues}:      parseCheckValues,
	{model.ConfigTypeTBL, model.TaskRuleCheckNulls}:       parseCheckNulls,
	{model.ConfigTypeTBL, model.TaskRuleCheckDuplicate}:   parseCheckDuplicate,
	{model.ConfigTypeTBL, model.TaskRuleMatchAggregation}: parseMatchAggregation,
	{model.ConfigTypeTBL, model.TaskRuleMatchRow}:         parseMatchRow,
	{model.ConfigTypeTBL, model.TaskRuleCheckThreshold}:   parseCheckThreshold,
}

// SupportedCombinations lists every (config_type, task_rule) pair with a parameter schema.
func SupportedCombinations() []Combination {
	out := make([]Combination, 0, len(parameterSchemas))
	for c := range parameterSchemas {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// ParseTaskParameter validates task_parameter against the schema of combination.
// An unmapped combination is an UnsupportedCombinationError.
func ParseTaskParameter(combination Combination, record map[string]interface{}) (model.TaskParameter, error) {
	parse, ok := parameterSchemas[combination]
	if !ok {
		return nil, exception.NewDQError(moduleName, exception.KindUnsupportedCombination, fmt.Sprintf(
			"Implementation for config_type '%s' and task_rule '%s' is not yet available. "+
				"Please ensure that this type is supported in the framework before using it. "+
				"If this is a new requirement, update the model implementation accordingly.",
			combination.ConfigType, combination.TaskRule), nil)
	}
	if record == nil {
		record = map[string]interface{}{}
	}
	errs := newFieldErrors("task_parameter")
	param := parse(errs, Normalize(record))
	if err := errs.err(); err != nil {
		return nil, err
	}
	return param, nil
}

func decodeParam(errs *fieldErrors, rec map[string]interface{}, out interface{}, keys ...string) bool {
	if errs.forbidExtra(rec, keys...) {
		return false
	}
	if err := decodeStrict(rec, out); err != nil {
		errs.add(err)
		return false
	}
	return true
}

func parseNoParam(errs *fieldErrors, rec map[string]interface{}) model.TaskParameter {
	if len(rec) > 0 {
		errs.addf("No data is allowed for this task rule.")
	}
	return model.NoParam{}
}

func parseMatchCountAPI(errs *fieldErrors, rec map[string]interface{}) model.TaskParameter {
	p := &model.MatchCountAPIParam{}
	decodeParam(errs, rec, p, "api_response_path")
	return p
}

func parseCheckColumns(errs *fieldErrors, rec map[string]interface{}) model.TaskParameter {
	p := &model.CheckColumnsParam{}
	errs.require(rec, "columns")
	if decodeParam(errs, rec, p, "columns") {
		requireStrings(errs, "columns", rec["columns"], p.Columns)
	}
	return p
}

func parseCheckValues(errs *fieldErrors, rec map[string]interface{}) model.TaskParameter {
	var raw struct {
		Column *string       `mapstructure:"column"`
		Values []interface{} `mapstructure:"values"`
	}
	errs.require(rec, "column", "values")
	p := &model.CheckValuesParam{}
	if decodeParam(errs, rec, &raw, "column", "values") {
		p.Column = errs.requiredString("column", raw.Column)
		if raw.Values == nil && rec["values"] == nil {
			errs.addf("values: input should be a valid list")
		}
		p.Values = raw.Values
	}
	return p
}

func parseCheckNulls(errs *fieldErrors, rec map[string]interface{}) model.TaskParameter {
	p := &model.CheckNullsParam{}
	if decodeParam(errs, rec, p, "columns", "include_key_columns") && p.Columns != nil {
		requireStrings(errs, "columns", rec["columns"], p.Columns)
	}
	return p
}

func parseCheckDuplicate(errs *fieldErrors, rec map[string]interface{}) model.TaskParameter {
	p := &model.CheckDuplicateParam{}
	if decodeParam(errs, rec, p, "columns") && p.Columns != nil {
		requireStrings(errs, "columns", rec["columns"], p.Columns)
	}
	return p
}

func parseMatchAggregation(errs *fieldErrors, rec map[string]interface{}) model.TaskParameter {
	keys := []string{"src_group_columns", "src_agg_column", "src_agg_method", "tgt_group_columns", "tgt_agg_column", "tgt_agg_method"}
	var raw struct {
		SrcGroupColumns []string `mapstructure:"src_group_columns"`
		SrcAggColumn    *string  `mapstructure:"src_agg_column"`
		SrcAggMethod    *string  `mapstructure:"src_agg_method"`
		TgtGroupColumns []string `mapstructure:"tgt_group_columns"`
		TgtAggColumn    *string  `mapstructure:"tgt_agg_column"`
		TgtAggMethod    *string  `mapstructure:"tgt_agg_method"`
	}
	errs.require(rec, keys...)
	p := &model.MatchAggregationParam{}
	if !decodeParam(errs, rec, &raw, keys...) {
		return p
	}
	requireStrings(errs, "src_group_columns", rec["src_group_columns"], raw.SrcGroupColumns)
	requireStrings(errs, "tgt_group_columns", rec["tgt_group_columns"], raw.TgtGroupColumns)
	p.SrcGroupColumns = raw.SrcGroupColumns
	p.TgtGroupColumns = raw.TgtGroupColumns
	p.SrcAggColumn = errs.requiredString("src_agg_column", raw.SrcAggColumn)
	p.TgtAggColumn = errs.requiredString("tgt_agg_column", raw.TgtAggColumn)
	p.SrcAggMethod = aggregationMethod(errs, "src_agg_method", raw.SrcAggMethod)
	p.TgtAggMethod = aggregationMethod(errs, "tgt_agg_method", raw.TgtAggMethod)
	return p
}

func parseMatchRow(errs *fieldErrors, rec map[string]interface{}) model.TaskParameter {
	p := &model.MatchRowParam{}
	errs.require(rec, "join_columns")
	if decodeParam(errs, rec, p, "join_columns") {
		requireStrings(errs, "join_columns", rec["join_columns"], p.JoinColumns)
	}
	return p
}

func parseCheckThreshold(errs *fieldErrors, rec map[string]interface{}) model.TaskParameter {
	p := &model.CheckThresholdParam{}
	if !decodeParam(errs, rec, p, "min", "max", "column") {
		return p
	}
	if p.Min == nil && p.Max == nil {
		errs.addf("At least one of 'min' or 'max' must be provided.")
	}
	if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
		errs.addf("min: must not be greater than max")
	}
	return p
}

// requireStrings rejects a null list and null or non-string items, which decode silently as "".
func requireStrings(errs *fieldErrors, field string, raw interface{}, decoded []string) {
	items, ok := raw.([]interface{})
	if !ok || decoded == nil {
		errs.addf("%s: input should be a valid list", field)
		return
	}
	for i, item := range items {
		if _, isString := item.(string); !isString {
			errs.addf("%s.%d: input should be a valid string", field, i)
		}
	}
}

func aggregationMethod(errs *fieldErrors, field string, value *string) string {
	if value == nil {
		errs.addf("%s: input should be a valid string", field)
		return ""
	}
	method := strings.ToLower(*value)
	for _, m := range model.AggregationMethods {
		if m == method {
			return method
		}
	}
	errs.addf("%s: unsupported aggregation method '%s', expected one of %s", field, *value, strings.Join(model.AggregationMethods, ", "))
	return method
}
