package model

// TaskParameter is the validated task_parameter of a task.
// The concrete type is selected by (ConfigType, TaskRule).
type TaskParameter interface {
	isTaskParameter()
	Fields() map[string]interface{}
}

// AggregationMethods are the aggregate functions accepted by MATCH_AGGREGATION.
var AggregationMethods = []string{"min", "max", "sum", "mean", "count"}

// NoParam is the parameter of rules that take none. The raw parameter must be empty.
type NoParam struct{}

// MatchCountAPIParam locates the countable part of an API response.
type MatchCountAPIParam struct {
	// APIResponsePath is a dotted path into a JSON object, nil to count the response itself.
	APIResponsePath *string `mapstructure:"api_response_path"`
}

// CheckColumnsParam lists the exact column set a table must expose.
type CheckColumnsParam struct {
	Columns []string `mapstructure:"columns"`
}

// CheckValuesParam lists the values a column may hold.
type CheckValuesParam struct {
	Column string        `mapstructure:"column"`
	Values []interface{} `mapstructure:"values"`
}

// CheckNullsParam selects columns that must not contain nulls.
type CheckNullsParam struct {
	Columns           []string `mapstructure:"columns"`
	IncludeKeyColumns *bool    `mapstructure:"include_key_columns"`
}

// CheckDuplicateParam selects the subset duplicates are detected on, all columns when empty.
type CheckDuplicateParam struct {
	Columns []string `mapstructure:"columns"`
}

// MatchAggregationParam configures a grouped aggregate comparison.
type MatchAggregationParam struct {
	SrcGroupColumns []string `mapstructure:"src_group_columns"`
	SrcAggColumn    string   `mapstructure:"src_agg_column"`
	SrcAggMethod    string   `mapstructure:"src_agg_method"`
	TgtGroupColumns []string `mapstructure:"tgt_group_columns"`
	TgtAggColumn    string   `mapstructure:"tgt_agg_column"`
	TgtAggMethod    string   `mapstructure:"tgt_agg_method"`
}

// MatchRowParam names the columns rows are joined on.
type MatchRowParam struct {
	JoinColumns []string `mapstructure:"join_columns"`
}

// CheckThresholdParam bounds a column's values or the row count. A nil bound is open.
type CheckThresholdParam struct {
	Min    *float64 `mapstructure:"min"`
	Max    *float64 `mapstructure:"max"`
	Column *string  `mapstructure:"column"`
}

func (NoParam) isTaskParameter()                {}
func (*MatchCountAPIParam) isTaskParameter()    {}
func (*CheckColumnsParam) isTaskParameter()     {}
func (*CheckValuesParam) isTaskParameter()      {}
func (*CheckNullsParam) isTaskParameter()       {}
func (*CheckDuplicateParam) isTaskParameter()   {}
func (*MatchAggregationParam) isTaskParameter() {}
func (*MatchRowParam) isTaskParameter()         {}
func (*CheckThresholdParam) isTaskParameter()   {}

// Fields returns the raw key/value form.
func (NoParam) Fields() map[string]interface{} {
	return map[string]interface{}{}
}

// Fields returns the raw key/value form.
func (p *MatchCountAPIParam) Fields() map[string]interface{} {
	return map[string]interface{}{"api_response_path": derefOrNil(p.APIResponsePath)}
}

// Fields returns the raw key/value form.
func (p *CheckColumnsParam) Fields() map[string]interface{} {
	return map[string]interface{}{"columns": stringsOrNil(p.Columns)}
}

// Fields returns the raw key/value form.
func (p *CheckValuesParam) Fields() map[string]interface{} {
	return map[string]interface{}{"column": p.Column, "values": p.Values}
}

// Fields returns the raw key/value form.
func (p *CheckNullsParam) Fields() map[string]interface{} {
	return map[string]interface{}{
		"columns":             stringsOrNil(p.Columns),
		"include_key_columns": derefOrNil(p.IncludeKeyColumns),
	}
}

// Fields returns the raw key/value form.
func (p *CheckDuplicateParam) Fields() map[string]interface{} {
	return map[string]interface{}{"columns": stringsOrNil(p.Columns)}
}

// Fields returns the raw key/value form.
func (p *MatchAggregationParam) Fields() map[string]interface{} {
	return map[string]interface{}{
		"src_group_columns": stringsOrNil(p.SrcGroupColumns),
		"src_agg_column":    p.SrcAggColumn,
		"src_agg_method":    p.SrcAggMethod,
		"tgt_group_columns": stringsOrNil(p.TgtGroupColumns),
		"tgt_agg_column":    p.TgtAggColumn,
		"tgt_agg_method":    p.TgtAggMethod,
	}
}

// Fields returns the raw key/value form.
func (p *MatchRowParam) Fields() map[string]interface{} {
	return map[string]interface{}{"join_columns": stringsOrNil(p.JoinColumns)}
}

// Fields returns the raw key/value form.
func (p *CheckThresholdParam) Fields() map[string]interface{} {
	return map[string]interface{}{
		"min":    derefOrNil(p.Min),
		"max":    derefOrNil(p.Max),
		"column": derefOrNil(p.Column),
	}
}

func stringsOrNil(s []string) interface{} {
	if s == nil {
		return nil
	}
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
