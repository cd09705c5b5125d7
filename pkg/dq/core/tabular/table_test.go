package tabular

import (
	"math"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAndText(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	tbl := New([]string{"a", "b", "c", "d", "e"}, [][]interface{}{
		{[]byte("x"), int32(3), float32(1.5), nil, ts},
		{"y", 10.0, math.NaN(), true},
	})

	assert.Equal(t, []interface{}{"x", int64(3), 1.5, nil, ts}, tbl.Rows[0])
	assert.Nil(t, tbl.Rows[1][4], "short rows are padded with nulls")
	assert.Equal(t, "10", Text(tbl.Rows[1][1]))
	assert.Equal(t, NullText, Text(tbl.Rows[1][2]))
	assert.Equal(t, "True", Text(true))
	assert.Equal(t, "2026-03-04 05:06:07", Text(ts))
	assert.True(t, Equal(int64(10), 10.0))
	assert.False(t, Equal("10", int64(10)))
	assert.True(t, Equal(nil, math.NaN()))
}

func TestDuplicated(t *testing.T) {
	tbl := New([]string{"id", "name"}, [][]interface{}{
		{1, "a"},
		{2, "b"},
		{1, "a"},
		{1, "c"},
		{nil, "d"},
		{nil, "d"},
	})

	all, err := tbl.Duplicated(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, all.Len())

	byID, err := tbl.Duplicated([]string{"id"})
	require.NoError(t, err)
	assert.Equal(t, 3, byID.Len())

	_, err = tbl.Duplicated([]string{"missing"})
	assert.ErrorContains(t, err, "column(s) [missing] not found")
}

func TestLargeIntegerKeys(t *testing.T) {
	const big = int64(1) << 53
	tbl := New([]string{"id"}, [][]interface{}{{big}, {big + 1}})

	dups, err := tbl.Duplicated(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, dups.Len())

	assert.False(t, Equal(big, big+1))
	assert.True(t, Equal(big, float64(big)))
	assert.Equal(t, -1, Compare(big, big+1))
	assert.Equal(t, 1, Compare(int64(math.MaxInt64), int64(math.MaxInt64-1)))

	src := New([]string{"id", "v"}, [][]interface{}{{big, "a"}, {big + 1, "b"}})
	tgt := New([]string{"id", "v"}, [][]interface{}{{big + 1, "b"}})
	joined, err := Join(src, tgt, []string{"id"}, []string{"id"}, OuterJoin, Suffixes{"_src", "_tgt"})
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{
		{big, "a", nil},
		{big + 1, "b", "b"},
	}, joined.Rows)
}

func mustDecimal(t *testing.T, s string) *apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestDecimalValues(t *testing.T) {
	wide := mustDecimal(t, "12345678901234567890.01")
	wider := mustDecimal(t, "12345678901234567890.02")

	assert.True(t, Equal(mustDecimal(t, "10.50"), 10.5))
	assert.True(t, Equal(mustDecimal(t, "3.000"), int64(3)))
	assert.False(t, Equal(wide, wider))
	assert.Equal(t, -1, Compare(wide, wider))
	assert.Equal(t, "10.5", Text(mustDecimal(t, "10.50")))
	assert.Equal(t, "0", Text(mustDecimal(t, "0.00")))
	assert.True(t, IsNull((*apd.Decimal)(nil)))

	tbl := New([]string{"g", "amount"}, [][]interface{}{
		{"a", wide},
		{"a", mustDecimal(t, "0.99")},
		{"a", int64(1)},
		{"b", mustDecimal(t, "1.00")},
		{"b", mustDecimal(t, "2.00")},
	})
	sums, err := tbl.GroupAggregate([]string{"g"}, "amount", "sum")
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567892", Text(sums.Rows[0][1]))
	assert.Equal(t, "3", Text(sums.Rows[1][1]))

	means, err := tbl.GroupAggregate([]string{"g"}, "amount", "mean")
	require.NoError(t, err)
	assert.Equal(t, "1.5", Text(means.Rows[1][1]))

	maxes, err := tbl.GroupAggregate([]string{"g"}, "amount", "max")
	require.NoError(t, err)
	assert.Same(t, wide, maxes.Rows[0][1])
}

func TestGroupAggregate(t *testing.T) {
	tbl := New([]string{"region", "amount"}, [][]interface{}{
		{"west", 10},
		{"east", 2.5},
		{"west", 5},
		{nil, 100},
		{"east", nil},
		{"north", nil},
	})

	tests := []struct {
		method string
		want   [][]interface{}
	}{
		{"sum", [][]interface{}{{"east", 2.5}, {"north", int64(0)}, {"west", int64(15)}}},
		{"MEAN", [][]interface{}{{"east", 2.5}, {"north", nil}, {"west", 7.5}}},
		{"min", [][]interface{}{{"east", 2.5}, {"north", nil}, {"west", int64(5)}}},
		{"max", [][]interface{}{{"east", 2.5}, {"north", nil}, {"west", int64(10)}}},
		{"count", [][]interface{}{{"east", int64(1)}, {"north", int64(0)}, {"west", int64(2)}}},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			out, err := tbl.GroupAggregate([]string{"region"}, "amount", tt.method)
			require.NoError(t, err)
			assert.Equal(t, []string{"region", AggregateColumn}, out.Columns)
			assert.Equal(t, tt.want, out.Rows)
		})
	}

	_, err := tbl.GroupAggregate([]string{"region"}, "amount", "median")
	assert.ErrorContains(t, err, "unsupported aggregation method 'median'")
}

func TestJoinOuterOnSharedKeys(t *testing.T) {
	src := New([]string{"id", "name", "qty"}, [][]interface{}{{1, "a", 5}, {2, "b", 6}})
	tgt := New([]string{"id", "name", "qty"}, [][]interface{}{{2, "b", 7}, {3, "c", 8}})

	out, err := Join(src, tgt, []string{"id"}, []string{"id"}, OuterJoin, Suffixes{"_src", "_tgt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name_src", "qty_src", "name_tgt", "qty_tgt"}, out.Columns)
	assert.Equal(t, [][]interface{}{
		{int64(1), "a", int64(5), nil, nil},
		{int64(2), "b", int64(6), "b", int64(7)},
		{int64(3), nil, nil, "c", int64(8)},
	}, out.Rows)
}

func TestJoinLeftOnDifferentKeys(t *testing.T) {
	src := New([]string{"region", AggregateColumn}, [][]interface{}{{"east", 10}, {"west", 3}})
	tgt := New([]string{"area", AggregateColumn}, [][]interface{}{{"east", 10.0}})

	out, err := Join(src, tgt, []string{"region"}, []string{"area"}, LeftJoin, Suffixes{"_src", "_tgt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "agg_value_src", "area", "agg_value_tgt"}, out.Columns)
	assert.Equal(t, [][]interface{}{
		{"east", int64(10), "east", 10.0},
		{"west", int64(3), nil, nil},
	}, out.Rows)

	_, err = Join(src, tgt, []string{"region"}, nil, LeftJoin, Suffixes{})
	assert.Error(t, err)
}

func TestTableString(t *testing.T) {
	tbl := New([]string{"id", "name"}, [][]interface{}{{1, "a"}, {2, nil}})
	assert.Equal(t, ""+
		"+----+------+\n"+
		"| id | name |\n"+
		"+----+------+\n"+
		"| 1  | 'a'  |\n"+
		"| 2  | <NA> |\n"+
		"+----+------+\n", tbl.String())
}
