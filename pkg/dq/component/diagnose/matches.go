package diagnose

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/expectation"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/tabular"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

const (
	suffixSource = "_src"
	suffixTarget = "_tgt"
)

var joinSuffixes = tabular.Suffixes{Left: suffixSource, Right: suffixTarget}

// NewMatchCountTables expects the target table to hold as many rows as the source table.
func NewMatchCountTables(deps Dependencies) Algorithm {
	return AlgorithmFunc(func(ctx context.Context, in Input) (*model.ReconciliationResult, error) {
		srcRef, err := sourceTable(in)
		if err != nil {
			return nil, err
		}
		tgtRef, err := targetTable(in)
		if err != nil {
			return nil, err
		}
		src, err := readTable(ctx, deps, srcRef)
		if err != nil {
			return nil, err
		}
		tgt, err := readTable(ctx, deps, tgtRef)
		if err != nil {
			return nil, err
		}
		return compareCount(ctx, tgtRef, tgt, int64(src.Len()))
	})
}

// NewMatchCountAPITable expects the target table to hold as many rows as the API reports.
//
// The API count is the response itself when it is an integer, or the length of the list or
// object found by following api_response_path through the response. Without a path an object
// response is counted by its keys.
func NewMatchCountAPITable(deps Dependencies) Algorithm {
	return AlgorithmFunc(func(ctx context.Context, in Input) (*model.ReconciliationResult, error) {
		src, err := sourceAPI(in)
		if err != nil {
			return nil, err
		}
		tgtRef, err := targetTable(in)
		if err != nil {
			return nil, err
		}
		param, err := parameter[*model.MatchCountAPIParam](in)
		if err != nil {
			return nil, err
		}
		if deps.API == nil {
			return nil, exception.NewDQErrorf(moduleName, exception.KindConfiguration, "no API source configured")
		}

		data, err := deps.API.Fetch(ctx, src.BaseURL, src.AuthKey)
		if err != nil {
			if exception.KindOf(err) != exception.KindUnhandled {
				return nil, err
			}
			return nil, exception.NewDQErrorf(moduleName, exception.KindDataFetch, "Failed to fetch '%s'", src.BaseURL, err)
		}
		if obj, ok := data.(map[string]interface{}); ok && param.APIResponsePath != nil {
			data, err = DrillDown(obj, strings.Split(*param.APIResponsePath, "."))
			if err != nil {
				return nil, err
			}
		}
		count, err := ExtractCount(data)
		if err != nil {
			return nil, err
		}
		logger.Debugf("Task '%s' API count: %d", in.TaskName, count)

		tgt, err := readTable(ctx, deps, tgtRef)
		if err != nil {
			return nil, err
		}
		return compareCount(ctx, tgtRef, tgt, count)
	})
}

func compareCount(ctx context.Context, tgtRef model.TableRef, tgt *tabular.Table, sourceCount int64) (*model.ReconciliationResult, error) {
	res, err := expectation.NewSuite(tgtRef.Table).
		Add(expectation.TableRowCountToEqual{Value: sourceCount}).
		Run(ctx, tgt)
	if err != nil {
		return nil, err
	}
	return envelope(res, func(_ int, r expectation.Result) map[string]interface{} {
		return map[string]interface{}{
			"observed_source_value": sourceCount,
			"observed_target_value": r.ObservedValue,
		}
	}), nil
}

// DrillDown follows keys through nested objects. A missing key is an error.
func DrillDown(obj map[string]interface{}, keys []string) (interface{}, error) {
	var current interface{} = obj
	for i, key := range keys {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, exception.NewDQErrorf(moduleName, exception.KindDataFetch,
				"Cannot resolve '%s' in API response: '%s' is not an object", key, strings.Join(keys[:i], "."))
		}
		current, ok = m[key]
		if !ok {
			return nil, exception.NewDQErrorf(moduleName, exception.KindDataFetch,
				"Key '%s' not found in API response", strings.Join(keys[:i+1], "."))
		}
	}
	return current, nil
}

// ExtractCount returns an integer response as is and the length of a list or object.
func ExtractCount(data interface{}) (int64, error) {
	switch v := data.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int64(v), nil
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
	case []interface{}:
		return int64(len(v)), nil
	case map[string]interface{}:
		return int64(len(v)), nil
	}
	return 0, exception.NewDQErrorf(moduleName, exception.KindDataFetch,
		"Unsupported response type detected: %T. Supported types: int, list, and dict.", data)
}

// NewMatchAggregation compares grouped aggregates of the source and target tables.
//
// Each side is grouped by its group columns, with null group keys dropped, and its aggregate
// column reduced by its method. Source groups are left-joined to target groups. A joined row
// mismatches when the two aggregates differ or exactly one of them is absent.
func NewMatchAggregation(deps Dependencies) Algorithm {
	return AlgorithmFunc(func(ctx context.Context, in Input) (*model.ReconciliationResult, error) {
		srcRef, err := sourceTable(in)
		if err != nil {
			return nil, err
		}
		tgtRef, err := targetTable(in)
		if err != nil {
			return nil, err
		}
		param, err := parameter[*model.MatchAggregationParam](in)
		if err != nil {
			return nil, err
		}
		src, err := readTable(ctx, deps, srcRef)
		if err != nil {
			return nil, err
		}
		tgt, err := readTable(ctx, deps, tgtRef)
		if err != nil {
			return nil, err
		}

		srcAgg, err := src.GroupAggregate(param.SrcGroupColumns, param.SrcAggColumn, param.SrcAggMethod)
		if err != nil {
			return nil, dataError(srcRef, err)
		}
		tgtAgg, err := tgt.GroupAggregate(param.TgtGroupColumns, param.TgtAggColumn, param.TgtAggMethod)
		if err != nil {
			return nil, dataError(tgtRef, err)
		}
		joined, err := tabular.Join(srcAgg, tgtAgg, param.SrcGroupColumns, param.TgtGroupColumns, tabular.LeftJoin, joinSuffixes)
		if err != nil {
			return nil, dataError(srcRef, err)
		}

		srcIdx, _ := joined.Index(tabular.AggregateColumn + suffixSource)
		tgtIdx, _ := joined.Index(tabular.AggregateColumn + suffixTarget)
		mismatches := joined.Filter(func(row []interface{}) bool {
			return aggregatesDiffer(row[srcIdx], row[tgtIdx])
		})
		if mismatches.Len() > 0 {
			logger.Infof("Aggregated join table:\n%s", joined.Head(5))
			logger.Infof("Aggregated mismatch table:\n%s", mismatches.Head(5))
		}

		res, err := expectation.NewSuite(srcRef.Table + "-" + tgtRef.Table).
			Add(expectation.TableRowCountToEqual{Value: 0}).
			Run(ctx, mismatches)
		if err != nil {
			return nil, err
		}
		return envelope(res, func(_ int, r expectation.Result) map[string]interface{} {
			return map[string]interface{}{
				"observed_source_count":   int64(src.Len()),
				"aggregated_source_count": int64(srcAgg.Len()),
				"observed_target_count":   int64(tgt.Len()),
				"aggregated_target_count": int64(tgtAgg.Len()),
				"observed_join_count":     int64(joined.Len()),
				"mismatch_count":          r.ObservedValue,
			}
		}), nil
	})
}

// aggregatesDiffer compares integers and decimals exactly. When either side is a float
// both sides are compared as float64.
func aggregatesDiffer(src, tgt interface{}) bool {
	srcNull, tgtNull := tabular.IsNull(src), tabular.IsNull(tgt)
	if srcNull || tgtNull {
		return srcNull != tgtNull
	}
	_, srcFloat := src.(float64)
	_, tgtFloat := tgt.(float64)
	if srcFloat || tgtFloat {
		fs, okS := tabular.ToFloat(src)
		ft, okT := tabular.ToFloat(tgt)
		if okS && okT {
			return fs != ft
		}
	}
	return !tabular.Equal(src, tgt)
}

// NewMatchRow compares source and target row by row on the join columns.
//
// Both sides must be unique on the join columns and expose the same column set, otherwise
// evaluation fails before any comparison. Rows are full-outer-joined and every non-join
// column is compared by its text rendering, so a row missing on one side mismatches.
func NewMatchRow(deps Dependencies) Algorithm {
	return AlgorithmFunc(func(ctx context.Context, in Input) (*model.ReconciliationResult, error) {
		srcRef, err := sourceTable(in)
		if err != nil {
			return nil, err
		}
		tgtRef, err := targetTable(in)
		if err != nil {
			return nil, err
		}
		param, err := parameter[*model.MatchRowParam](in)
		if err != nil {
			return nil, err
		}
		src, err := readUnique(ctx, deps, srcRef, param.JoinColumns)
		if err != nil {
			return nil, err
		}
		tgt, err := readUnique(ctx, deps, tgtRef, param.JoinColumns)
		if err != nil {
			return nil, err
		}
		if err := sameColumns(src, tgt); err != nil {
			return nil, err
		}

		joined, err := tabular.Join(src, tgt, param.JoinColumns, param.JoinColumns, tabular.OuterJoin, joinSuffixes)
		if err != nil {
			return nil, dataError(srcRef, err)
		}

		compared := comparedColumns(src.Columns, param.JoinColumns)
		pairs := make([][2]int, len(compared))
		for i, c := range compared {
			pairs[i][0], _ = joined.Index(c + suffixSource)
			pairs[i][1], _ = joined.Index(c + suffixTarget)
		}
		mismatches := joined.Filter(func(row []interface{}) bool {
			for _, p := range pairs {
				if tabular.Text(row[p[0]]) != tabular.Text(row[p[1]]) {
					return true
				}
			}
			return false
		})

		logger.Infof("Mismatch count: %d", mismatches.Len())
		if mismatches.Len() > 0 {
			logMismatchedColumns(mismatches, param.JoinColumns, compared, pairs)
		}

		res, err := expectation.NewSuite(srcRef.Table + "-" + tgtRef.Table).
			Add(expectation.TableRowCountToEqual{Value: 0}).
			Run(ctx, mismatches)
		if err != nil {
			return nil, err
		}
		return envelope(res, func(_ int, r expectation.Result) map[string]interface{} {
			return map[string]interface{}{
				"observed_source_count": int64(src.Len()),
				"observed_target_count": int64(tgt.Len()),
				"observed_join_count":   int64(joined.Len()),
				"mismatch_count":        r.ObservedValue,
			}
		}), nil
	})
}

// readUnique reads ref and rejects it when rows repeat on the join columns.
func readUnique(ctx context.Context, deps Dependencies, ref model.TableRef, joinColumns []string) (*tabular.Table, error) {
	t, err := readTable(ctx, deps, ref)
	if err != nil {
		return nil, err
	}
	duplicates, err := t.Duplicated(joinColumns)
	if err != nil {
		return nil, dataError(ref, err)
	}
	if duplicates.Len() > 0 {
		return nil, exception.NewDQErrorf(moduleName, exception.KindUnhandled,
			"Duplicate records detected! Found: %d records", duplicates.Len())
	}
	return t, nil
}

func sameColumns(src, tgt *tabular.Table) error {
	expected, found := src.SortedColumns(), tgt.SortedColumns()
	if strings.Join(expected, "\x00") != strings.Join(found, "\x00") {
		return exception.NewDQErrorf(moduleName, exception.KindUnhandled,
			"Column mismatch detected! Expected: %s Found: %s", quoteList(expected), quoteList(found))
	}
	return nil
}

func comparedColumns(columns, joinColumns []string) []string {
	isJoin := make(map[string]bool, len(joinColumns))
	for _, c := range joinColumns {
		isJoin[c] = true
	}
	var out []string
	for _, c := range columns {
		if !isJoin[c] {
			out = append(out, c)
		}
	}
	return out
}

// logMismatchedColumns logs which columns differ and a sample of the differing values.
func logMismatchedColumns(mismatches *tabular.Table, joinColumns, compared []string, pairs [][2]int) {
	var names []string
	for i, c := range compared {
		for _, row := range mismatches.Rows {
			if tabular.Text(row[pairs[i][0]]) != tabular.Text(row[pairs[i][1]]) {
				names = append(names, c)
				break
			}
		}
	}
	sort.Strings(names)

	selected := append([]string(nil), joinColumns...)
	for _, name := range names {
		selected = append(selected, name+suffixSource, name+suffixTarget)
	}
	logger.Infof("Mismatched columns: %s", quoteList(names))

	sample, err := mismatches.Head(5).Select(selected...)
	if err != nil {
		logger.Warnf("Could not render mismatch sample: %v", err)
		return
	}
	logger.Infof("Mismatch table:\n%s", sample)
}
