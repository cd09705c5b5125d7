package tabular

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// decimalContext carries enough digits for sums and means of wide NUMERIC columns.
var decimalContext = apd.BaseContext.WithPrecision(60)

// AggregateColumn names the value column produced by GroupAggregate.
const AggregateColumn = "agg_value"

type aggregator func(values []interface{}) (interface{}, error)

var aggregators = map[string]aggregator{
	"min":   func(values []interface{}) (interface{}, error) { return extreme(values, -1), nil },
	"max":   func(values []interface{}) (interface{}, error) { return extreme(values, 1), nil },
	"sum":   sum,
	"mean":  mean,
	"count": func(values []interface{}) (interface{}, error) { return int64(len(nonNull(values))), nil },
}

// AggregateMethods lists the supported aggregation methods.
func AggregateMethods() []string {
	out := make([]string, 0, len(aggregators))
	for m := range aggregators {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// GroupAggregate groups rows by groupColumns and aggregates aggColumn within each group.
// Rows with a null in any group column are dropped and nulls in aggColumn are ignored.
// The result has the group columns followed by AggregateColumn, ordered by group values.
func (t *Table) GroupAggregate(groupColumns []string, aggColumn string, method string) (*Table, error) {
	agg, ok := aggregators[strings.ToLower(method)]
	if !ok {
		return nil, fmt.Errorf("unsupported aggregation method '%s', expected one of %v", method, AggregateMethods())
	}
	groupIdx, err := t.indexes(groupColumns)
	if err != nil {
		return nil, err
	}
	aggIdx, err := t.indexes([]string{aggColumn})
	if err != nil {
		return nil, err
	}

	type group struct {
		keys   []interface{}
		values []interface{}
	}
	groups := make(map[string]*group)
	var order []*group
	for _, row := range t.Rows {
		keys := pick(row, groupIdx)
		if anyNull(keys) {
			continue
		}
		k := rowKey(keys)
		g, ok := groups[k]
		if !ok {
			g = &group{keys: keys}
			groups[k] = g
			order = append(order, g)
		}
		g.values = append(g.values, row[aggIdx[0]])
	}

	sort.SliceStable(order, func(i, j int) bool {
		for c := range groupColumns {
			if cmp := Compare(order[i].keys[c], order[j].keys[c]); cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})

	out := &Table{Columns: append(append([]string(nil), groupColumns...), AggregateColumn)}
	for _, g := range order {
		value, err := agg(g.values)
		if err != nil {
			return nil, fmt.Errorf("aggregating column '%s' with '%s': %w", aggColumn, method, err)
		}
		out.Rows = append(out.Rows, append(append([]interface{}(nil), g.keys...), value))
	}
	return out, nil
}

func anyNull(values []interface{}) bool {
	for _, v := range values {
		if IsNull(v) {
			return true
		}
	}
	return false
}

func nonNull(values []interface{}) []interface{} {
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		if !IsNull(v) {
			out = append(out, v)
		}
	}
	return out
}

func extreme(values []interface{}, direction int) interface{} {
	var best interface{}
	for _, v := range nonNull(values) {
		if best == nil || Compare(v, best)*direction > 0 {
			best = v
		}
	}
	return best
}

// sum keeps integer sums integral and decimal sums exact. Any float operand makes the
// sum a float. An all-null group sums to zero.
func sum(values []interface{}) (interface{}, error) {
	var (
		intSum    int64
		floatSum  float64
		decSum    = new(apd.Decimal)
		isFloat   bool
		isDecimal bool
	)
	for _, v := range nonNull(values) {
		switch x := v.(type) {
		case int64:
			intSum += x
		case float64:
			floatSum += x
			isFloat = true
		case *apd.Decimal:
			if _, err := decimalContext.Add(decSum, decSum, x); err != nil {
				return nil, err
			}
			isDecimal = true
		default:
			f, ok := ToFloat(x)
			if !ok {
				return nil, fmt.Errorf("non-numeric value %v", v)
			}
			floatSum += f
			isFloat = true
		}
	}
	switch {
	case isFloat:
		dec, _ := ToFloat(decSum)
		return floatSum + float64(intSum) + dec, nil
	case isDecimal:
		if _, err := decimalContext.Add(decSum, decSum, apd.New(intSum, 0)); err != nil {
			return nil, err
		}
		return decSum, nil
	}
	return intSum, nil
}

// mean of an all-null group is null. Groups holding only integers and decimals with at
// least one decimal average exactly; everything else averages as float.
func mean(values []interface{}) (interface{}, error) {
	present := nonNull(values)
	if len(present) == 0 {
		return nil, nil
	}
	if m, ok, err := decimalMean(present); ok || err != nil {
		return m, err
	}
	total := 0.0
	for _, v := range present {
		f, ok := ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("non-numeric value %v", v)
		}
		total += f
	}
	m := total / float64(len(present))
	if math.IsNaN(m) {
		return nil, nil
	}
	return m, nil
}

func decimalMean(present []interface{}) (interface{}, bool, error) {
	total := new(apd.Decimal)
	sawDecimal := false
	for _, v := range present {
		switch x := v.(type) {
		case *apd.Decimal:
			sawDecimal = true
			if _, err := decimalContext.Add(total, total, x); err != nil {
				return nil, false, err
			}
		case int64:
			if _, err := decimalContext.Add(total, total, apd.New(x, 0)); err != nil {
				return nil, false, err
			}
		default:
			return nil, false, nil
		}
	}
	if !sawDecimal {
		return nil, false, nil
	}
	m := new(apd.Decimal)
	if _, err := decimalContext.Quo(m, total, apd.New(int64(len(present)), 0)); err != nil {
		return nil, false, err
	}
	return m, true, nil
}
