package expectation

import (
	"fmt"
	"sort"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/tabular"
)

// TableColumnsToMatchSet expects the table's columns to match ColumnSet.
// Without ExactMatch extra columns are tolerated. A nil ColumnSet only observes the columns.
type TableColumnsToMatchSet struct {
	ColumnSet  []string
	ExactMatch bool
}

func (e TableColumnsToMatchSet) Name() string { return "expect_table_columns_to_match_set" }

func (e TableColumnsToMatchSet) Validate(t *tabular.Table) (Result, error) {
	observed := append([]string(nil), t.Columns...)
	res := Result{Success: true, ObservedValue: observed}
	if e.ColumnSet == nil {
		return res, nil
	}

	expected := make(map[string]bool, len(e.ColumnSet))
	for _, c := range e.ColumnSet {
		expected[c] = true
	}
	present := make(map[string]bool, len(observed))
	for _, c := range observed {
		present[c] = true
	}

	mismatched := map[string]interface{}{}
	var missing, unexpected []string
	for _, c := range e.ColumnSet {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	for _, c := range observed {
		if !expected[c] {
			unexpected = append(unexpected, c)
		}
	}
	if len(missing) > 0 {
		mismatched["missing"] = missing
	}
	if e.ExactMatch && len(unexpected) > 0 {
		mismatched["unexpected"] = unexpected
	}
	if len(mismatched) > 0 {
		res.Success = false
		res.Details = map[string]interface{}{"mismatched": mismatched}
	}
	return res, nil
}

// ColumnValuesToNotBeNull expects no null in Column.
type ColumnValuesToNotBeNull struct {
	Column string
}

func (e ColumnValuesToNotBeNull) Name() string { return "expect_column_values_to_not_be_null" }

func (e ColumnValuesToNotBeNull) Validate(t *tabular.Table) (Result, error) {
	values, err := t.Column(e.Column)
	if err != nil {
		return Result{}, err
	}
	var nulls int64
	for _, v := range values {
		if tabular.IsNull(v) {
			nulls++
		}
	}
	return Result{
		Success:         nulls == 0,
		ElementCount:    int64(len(values)),
		UnexpectedCount: nulls,
		ObservedValue:   nulls,
	}, nil
}

// ColumnDistinctValuesToBeInSet expects every distinct non-null value of Column to be in ValueSet.
// The observed value is the sorted list of distinct values.
type ColumnDistinctValuesToBeInSet struct {
	Column   string
	ValueSet []interface{}
}

func (e ColumnDistinctValuesToBeInSet) Name() string {
	return "expect_column_distinct_values_to_be_in_set"
}

func (e ColumnDistinctValuesToBeInSet) Validate(t *tabular.Table) (Result, error) {
	values, err := t.Column(e.Column)
	if err != nil {
		return Result{}, err
	}
	allowed := make(map[string]bool, len(e.ValueSet))
	for _, v := range e.ValueSet {
		allowed[tabular.Key(v)] = true
	}

	seen := make(map[string]bool)
	var distinct []interface{}
	success := true
	for _, v := range values {
		if tabular.IsNull(v) {
			continue
		}
		k := tabular.Key(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		distinct = append(distinct, v)
		if !allowed[k] {
			success = false
		}
	}
	sort.SliceStable(distinct, func(i, j int) bool { return tabular.Compare(distinct[i], distinct[j]) < 0 })
	if distinct == nil {
		distinct = []interface{}{}
	}
	return Result{Success: success, ObservedValue: distinct, ElementCount: int64(len(values))}, nil
}

// TableRowCountToEqual expects exactly Value rows.
type TableRowCountToEqual struct {
	Value int64
}

func (e TableRowCountToEqual) Name() string { return "expect_table_row_count_to_equal" }

func (e TableRowCountToEqual) Validate(t *tabular.Table) (Result, error) {
	count := int64(t.Len())
	return Result{Success: count == e.Value, ObservedValue: count}, nil
}

// TableRowCountToBeBetween expects the row count within [Min, Max]. A nil bound is open.
type TableRowCountToBeBetween struct {
	Min *float64
	Max *float64
}

func (e TableRowCountToBeBetween) Name() string { return "expect_table_row_count_to_be_between" }

func (e TableRowCountToBeBetween) Validate(t *tabular.Table) (Result, error) {
	count := int64(t.Len())
	return Result{Success: within(float64(count), e.Min, e.Max), ObservedValue: count}, nil
}

// ColumnValuesToBeBetween expects every non-null value of Column within [Min, Max], bounds inclusive.
type ColumnValuesToBeBetween struct {
	Column string
	Min    *float64
	Max    *float64
}

func (e ColumnValuesToBeBetween) Name() string { return "expect_column_values_to_be_between" }

func (e ColumnValuesToBeBetween) Validate(t *tabular.Table) (Result, error) {
	values, err := t.Column(e.Column)
	if err != nil {
		return Result{}, err
	}
	var unexpected int64
	for _, v := range values {
		if tabular.IsNull(v) {
			continue
		}
		f, ok := tabular.ToFloat(v)
		if !ok {
			return Result{}, fmt.Errorf("column '%s' holds non-numeric value '%v'", e.Column, v)
		}
		if !within(f, e.Min, e.Max) {
			unexpected++
		}
	}
	return Result{
		Success:         unexpected == 0,
		ElementCount:    int64(len(values)),
		UnexpectedCount: unexpected,
		ObservedValue:   unexpected,
	}, nil
}

func within(v float64, min, max *float64) bool {
	if min != nil && v < *min {
		return false
	}
	if max != nil && v > *max {
		return false
	}
	return true
}
