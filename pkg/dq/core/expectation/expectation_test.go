package expectation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/tabular"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

func ptr(f float64) *float64 { return &f }

func sample() *tabular.Table {
	return tabular.New([]string{"id", "status", "amount"}, [][]interface{}{
		{1, "OPEN", 10},
		{2, "CLOSED", nil},
		{3, "OPEN", 55.5},
		{4, nil, -1},
	})
}

func TestTableColumnsToMatchSet(t *testing.T) {
	res, err := TableColumnsToMatchSet{ColumnSet: []string{"id", "status", "region"}, ExactMatch: true}.Validate(sample())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"id", "status", "amount"}, res.ObservedValue)
	assert.Equal(t, map[string]interface{}{
		"mismatched": map[string]interface{}{"missing": []string{"region"}, "unexpected": []string{"amount"}},
	}, res.Details)

	res, err = TableColumnsToMatchSet{ColumnSet: []string{"amount", "id"}}.Validate(sample())
	require.NoError(t, err)
	assert.True(t, res.Success, "extra columns are tolerated without exact match")

	res, err = TableColumnsToMatchSet{}.Validate(sample())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Nil(t, res.Details)
}

func TestColumnExpectations(t *testing.T) {
	res, err := ColumnValuesToNotBeNull{Column: "amount"}.Validate(sample())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, int64(4), res.ElementCount)
	assert.Equal(t, int64(1), res.UnexpectedCount)

	res, err = ColumnDistinctValuesToBeInSet{Column: "status", ValueSet: []interface{}{"OPEN"}}.Validate(sample())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, []interface{}{"CLOSED", "OPEN"}, res.ObservedValue)

	res, err = ColumnDistinctValuesToBeInSet{Column: "id", ValueSet: []interface{}{1.0, 2, 3, 4}}.Validate(sample())
	require.NoError(t, err)
	assert.True(t, res.Success, "numbers match by value")

	res, err = ColumnValuesToBeBetween{Column: "amount", Min: ptr(0), Max: ptr(55.5)}.Validate(sample())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, int64(1), res.UnexpectedCount)

	res, err = ColumnValuesToBeBetween{Column: "amount", Min: ptr(-1)}.Validate(sample())
	require.NoError(t, err)
	assert.True(t, res.Success, "bounds are inclusive and a nil max is open")

	_, err = ColumnValuesToBeBetween{Column: "status", Max: ptr(1)}.Validate(sample())
	assert.ErrorContains(t, err, "non-numeric")
}

func TestRowCountExpectations(t *testing.T) {
	res, err := TableRowCountToEqual{Value: 4}.Validate(sample())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(4), res.ObservedValue)

	res, err = TableRowCountToBeBetween{Max: ptr(3)}.Validate(sample())
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestSuiteRun(t *testing.T) {
	suite := NewSuite("orders").
		Add(TableRowCountToEqual{Value: 4}).
		Add(ColumnValuesToNotBeNull{Column: "status"})

	out, err := suite.Run(context.Background(), sample())
	require.NoError(t, err)
	assert.False(t, out.Success)
	require.Len(t, out.Results, 2)
	assert.True(t, out.Results[0].Success)
	assert.Equal(t, "expect_column_values_to_not_be_null", out.Results[1].Expectation)

	_, err = NewSuite("orders").Add(ColumnValuesToNotBeNull{Column: "nope"}).Run(context.Background(), sample())
	require.Error(t, err)
	assert.True(t, exception.IsKind(err, exception.KindDataFetch))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = suite.Run(ctx, sample())
	assert.ErrorIs(t, err, context.Canceled)
}
