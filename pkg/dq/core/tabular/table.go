// Package tabular holds query results in memory and provides the few relational
// operations the comparison algorithms need: duplicate detection, grouped aggregation
// and joins.
package tabular

import (
	"fmt"
	"sort"
	"strings"
)

// Table is a materialized query result. Every row has one value per column.
type Table struct {
	Columns []string
	Rows    [][]interface{}
}

// New builds a table, normalizing every value.
func New(columns []string, rows [][]interface{}) *Table {
	t := &Table{Columns: append([]string(nil), columns...), Rows: make([][]interface{}, 0, len(rows))}
	for _, row := range rows {
		t.Append(row...)
	}
	return t
}

// Append adds a row. Missing trailing values are null.
func (t *Table) Append(values ...interface{}) {
	row := make([]interface{}, len(t.Columns))
	for i := range row {
		if i < len(values) {
			row[i] = Normalize(values[i])
		}
	}
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of column.
func (t *Table) Index(column string) (int, bool) {
	for i, c := range t.Columns {
		if c == column {
			return i, true
		}
	}
	return -1, false
}

// Column returns every value of column in row order.
func (t *Table) Column(column string) ([]interface{}, error) {
	idx, err := t.indexes([]string{column})
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx[0]]
	}
	return out, nil
}

// SortedColumns returns the column names in ascending order.
func (t *Table) SortedColumns() []string {
	out := append([]string(nil), t.Columns...)
	sort.Strings(out)
	return out
}

// Head returns a table with at most n rows.
func (t *Table) Head(n int) *Table {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// Select returns a table with only the given columns.
func (t *Table) Select(columns ...string) (*Table, error) {
	idx, err := t.indexes(columns)
	if err != nil {
		return nil, err
	}
	out := &Table{Columns: append([]string(nil), columns...), Rows: make([][]interface{}, len(t.Rows))}
	for r, row := range t.Rows {
		values := make([]interface{}, len(idx))
		for i, j := range idx {
			values[i] = row[j]
		}
		out.Rows[r] = values
	}
	return out, nil
}

// Filter returns the rows keep accepts.
func (t *Table) Filter(keep func(row []interface{}) bool) *Table {
	out := &Table{Columns: t.Columns}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Duplicated returns every row whose values on subset already appeared in an earlier row.
// The first occurrence is not reported. An empty subset means all columns.
func (t *Table) Duplicated(subset []string) (*Table, error) {
	if len(subset) == 0 {
		subset = t.Columns
	}
	idx, err := t.indexes(subset)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(t.Rows))
	return t.Filter(func(row []interface{}) bool {
		k := rowKey(pick(row, idx))
		if seen[k] {
			return true
		}
		seen[k] = true
		return false
	}), nil
}

// String renders the table as a bordered text grid for logs.
func (t *Table) String() string {
	widths := make([]int, len(t.Columns))
	cells := make([][]string, len(t.Rows))
	for i, c := range t.Columns {
		widths[i] = len(c)
	}
	for r, row := range t.Rows {
		cells[r] = make([]string, len(row))
		for i, v := range row {
			s := Text(v)
			if _, ok := v.(string); ok {
				s = "'" + s + "'"
			}
			cells[r][i] = s
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	var sb strings.Builder
	border := func() {
		sb.WriteString("+")
		for _, w := range widths {
			sb.WriteString(strings.Repeat("-", w+2) + "+")
		}
		sb.WriteString("\n")
	}
	line := func(values []string) {
		sb.WriteString("|")
		for i, v := range values {
			fmt.Fprintf(&sb, " %-*s |", widths[i], v)
		}
		sb.WriteString("\n")
	}
	border()
	line(t.Columns)
	border()
	for _, row := range cells {
		line(row)
	}
	border()
	return sb.String()
}

func (t *Table) indexes(columns []string) ([]int, error) {
	idx := make([]int, len(columns))
	var missing []string
	for i, c := range columns {
		j, ok := t.Index(c)
		if !ok {
			missing = append(missing, c)
			continue
		}
		idx[i] = j
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("column(s) %v not found, available columns: %v", missing, t.Columns)
	}
	return idx, nil
}

func pick(row []interface{}, idx []int) []interface{} {
	out := make([]interface{}, len(idx))
	for i, j := range idx {
		out[i] = row[j]
	}
	return out
}
