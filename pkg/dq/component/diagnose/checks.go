package diagnose

import (
	"context"
	"strings"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/expectation"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// NewCheckColumns expects the source table to expose exactly the configured columns.
func NewCheckColumns(deps Dependencies) Algorithm {
	return AlgorithmFunc(func(ctx context.Context, in Input) (*model.ReconciliationResult, error) {
		ref, err := sourceTable(in)
		if err != nil {
			return nil, err
		}
		param, err := parameter[*model.CheckColumnsParam](in)
		if err != nil {
			return nil, err
		}
		src, err := readTable(ctx, deps, ref)
		if err != nil {
			return nil, err
		}

		res, err := expectation.NewSuite(ref.Table).
			Add(expectation.TableColumnsToMatchSet{ColumnSet: param.Columns, ExactMatch: true}).
			Run(ctx, src)
		if err != nil {
			return nil, err
		}
		return envelope(res, func(_ int, r expectation.Result) map[string]interface{} {
			return map[string]interface{}{
				"observed_columns":   r.ObservedValue,
				"missing_columns":    mismatched(r, "missing"),
				"unexpected_columns": mismatched(r, "unexpected"),
			}
		}), nil
	})
}

func mismatched(r expectation.Result, key string) interface{} {
	m, ok := r.Details["mismatched"].(map[string]interface{})
	if !ok {
		return nil
	}
	return m[key]
}

// isKeyColumn reports whether column follows the surrogate key naming convention.
func isKeyColumn(column string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(column)), "_key")
}

// effectiveNullColumns picks the columns CHECK_NULLS asserts on.
//
// Without explicit columns, include_key_columns selects key columns (true), non-key columns
// (false) or every column (unset). With explicit columns, key columns are added only when
// include_key_columns is true. The result holds no duplicates.
func effectiveNullColumns(all []string, param *model.CheckNullsParam) []string {
	var keys, nonKeys []string
	for _, c := range all {
		if isKeyColumn(c) {
			keys = append(keys, c)
		} else {
			nonKeys = append(nonKeys, c)
		}
	}
	include := param.IncludeKeyColumns

	var columns []string
	switch {
	case len(param.Columns) == 0 && include == nil:
		columns = all
	case len(param.Columns) == 0 && *include:
		columns = keys
	case len(param.Columns) == 0:
		columns = nonKeys
	case include != nil && *include:
		columns = append(append([]string(nil), param.Columns...), keys...)
	default:
		columns = param.Columns
	}

	seen := make(map[string]bool, len(columns))
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// NewCheckNulls expects no nulls in the effective column set of the source table.
func NewCheckNulls(deps Dependencies) Algorithm {
	return AlgorithmFunc(func(ctx context.Context, in Input) (*model.ReconciliationResult, error) {
		ref, err := sourceTable(in)
		if err != nil {
			return nil, err
		}
		param, err := parameter[*model.CheckNullsParam](in)
		if err != nil {
			return nil, err
		}
		src, err := readTable(ctx, deps, ref)
		if err != nil {
			return nil, err
		}

		columns := effectiveNullColumns(src.Columns, param)
		logger.Debugf("Task '%s' checks nulls on columns %v", in.TaskName, columns)
		suite := expectation.NewSuite(ref.Table)
		for _, c := range columns {
			suite.Add(expectation.ColumnValuesToNotBeNull{Column: c})
		}
		res, err := suite.Run(ctx, src)
		if err != nil {
			return nil, err
		}
		return envelope(res, func(i int, r expectation.Result) map[string]interface{} {
			return map[string]interface{}{
				"column":         columns[i],
				"observed_count": r.ElementCount,
				"null_count":     r.UnexpectedCount,
			}
		}), nil
	})
}

// NewCheckValues expects every distinct value of a source column to be in the allowed set.
func NewCheckValues(deps Dependencies) Algorithm {
	return AlgorithmFunc(func(ctx context.Context, in Input) (*model.ReconciliationResult, error) {
		ref, err := sourceTable(in)
		if err != nil {
			return nil, err
		}
		param, err := parameter[*model.CheckValuesParam](in)
		if err != nil {
			return nil, err
		}
		src, err := readTable(ctx, deps, ref)
		if err != nil {
			return nil, err
		}

		res, err := expectation.NewSuite(ref.Table).
			Add(expectation.ColumnDistinctValuesToBeInSet{Column: param.Column, ValueSet: param.Values}).
			Run(ctx, src)
		if err != nil {
			return nil, err
		}
		return envelope(res, func(_ int, r expectation.Result) map[string]interface{} {
			return map[string]interface{}{"observed_columns": r.ObservedValue}
		}), nil
	})
}

// NewCheckDuplicate expects no duplicate rows on the configured subset, all columns by default.
// Each repeat of an earlier row counts once.
func NewCheckDuplicate(deps Dependencies) Algorithm {
	return AlgorithmFunc(func(ctx context.Context, in Input) (*model.ReconciliationResult, error) {
		ref, err := sourceTable(in)
		if err != nil {
			return nil, err
		}
		param, err := parameter[*model.CheckDuplicateParam](in)
		if err != nil {
			return nil, err
		}
		src, err := readTable(ctx, deps, ref)
		if err != nil {
			return nil, err
		}

		duplicates, err := src.Duplicated(param.Columns)
		if err != nil {
			return nil, dataError(ref, err)
		}
		if logger.IsDebugEnabled() {
			logger.Debugf("Duplicate rows:\n%s", duplicates.Head(5))
		}

		res, err := expectation.NewSuite(ref.Table).
			Add(expectation.TableRowCountToEqual{Value: 0}).
			Run(ctx, duplicates)
		if err != nil {
			return nil, err
		}
		return envelope(res, func(_ int, r expectation.Result) map[string]interface{} {
			return map[string]interface{}{
				"observed_count":  int64(src.Len()),
				"duplicate_count": r.ObservedValue,
			}
		}), nil
	})
}

// NewCheckThreshold bounds either the values of a column or the row count of the source table.
// Bounds are inclusive and a missing bound is open.
func NewCheckThreshold(deps Dependencies) Algorithm {
	return AlgorithmFunc(func(ctx context.Context, in Input) (*model.ReconciliationResult, error) {
		ref, err := sourceTable(in)
		if err != nil {
			return nil, err
		}
		param, err := parameter[*model.CheckThresholdParam](in)
		if err != nil {
			return nil, err
		}
		src, err := readTable(ctx, deps, ref)
		if err != nil {
			return nil, err
		}

		suite := expectation.NewSuite(ref.Table)
		if param.Column != nil {
			suite.Add(expectation.ColumnValuesToBeBetween{Column: *param.Column, Min: param.Min, Max: param.Max})
		} else {
			suite.Add(expectation.TableRowCountToBeBetween{Min: param.Min, Max: param.Max})
		}
		res, err := suite.Run(ctx, src)
		if err != nil {
			return nil, err
		}
		return envelope(res, func(_ int, r expectation.Result) map[string]interface{} {
			if param.Column != nil {
				return map[string]interface{}{
					"observed_count":   r.ElementCount,
					"unexpected_count": r.UnexpectedCount,
				}
			}
			return map[string]interface{}{"observed_count": r.ObservedValue}
		}), nil
	})
}
