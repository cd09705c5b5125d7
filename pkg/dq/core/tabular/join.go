package tabular

import "fmt"

// JoinType selects which unmatched rows a join keeps.
type JoinType int

const (
	// LeftJoin keeps every left row.
	LeftJoin JoinType = iota
	// OuterJoin keeps every row of both sides.
	OuterJoin
)

// Suffixes disambiguate non-key columns present on both sides of a join.
type Suffixes struct {
	Left  string
	Right string
}

// Join matches rows of left and right on leftOn/rightOn.
//
// Key columns are emitted once under the left names, holding whichever side's value is present.
// A right key column with a different name than its left counterpart is kept as well.
// Non-key columns that exist on both sides get the suffixes. Null keys match each other.
func Join(left, right *Table, leftOn, rightOn []string, how JoinType, suffixes Suffixes) (*Table, error) {
	if len(leftOn) != len(rightOn) {
		return nil, fmt.Errorf("join needs the same number of key columns on both sides, got %d and %d", len(leftOn), len(rightOn))
	}
	leftKeys, err := left.indexes(leftOn)
	if err != nil {
		return nil, fmt.Errorf("left side: %w", err)
	}
	rightKeys, err := right.indexes(rightOn)
	if err != nil {
		return nil, fmt.Errorf("right side: %w", err)
	}

	isLeftKey := make(map[int]bool, len(leftKeys))
	for _, i := range leftKeys {
		isLeftKey[i] = true
	}
	keptRightKeys := make(map[int]bool)
	for k, i := range rightKeys {
		if rightOn[k] != leftOn[k] {
			keptRightKeys[i] = true
		}
	}
	isRightKey := make(map[int]bool, len(rightKeys))
	for _, i := range rightKeys {
		isRightKey[i] = true
	}

	leftNames := make(map[string]bool, len(left.Columns))
	for _, c := range left.Columns {
		leftNames[c] = true
	}
	rightNames := make(map[string]bool, len(right.Columns))
	for i, c := range right.Columns {
		if !isRightKey[i] || keptRightKeys[i] {
			rightNames[c] = true
		}
	}

	// Output layout: left columns in order, then right columns that are not merged keys.
	var columns []string
	var leftCols []int
	for i, c := range left.Columns {
		name := c
		if !isLeftKey[i] && rightNames[c] {
			name = c + suffixes.Left
		}
		columns = append(columns, name)
		leftCols = append(leftCols, i)
	}
	var rightCols []int
	for i, c := range right.Columns {
		if isRightKey[i] && !keptRightKeys[i] {
			continue
		}
		name := c
		if leftNames[c] {
			name = c + suffixes.Right
		}
		columns = append(columns, name)
		rightCols = append(rightCols, i)
	}

	// Position of each left key column in the output, filled from the right for right-only rows.
	keyPos := make(map[int]int, len(leftKeys))
	for k, i := range leftKeys {
		keyPos[rightKeys[k]] = i
	}

	index := make(map[string][]int, len(right.Rows))
	for r, row := range right.Rows {
		k := rowKey(pick(row, rightKeys))
		index[k] = append(index[k], r)
	}

	out := &Table{Columns: columns}
	matchedRight := make([]bool, len(right.Rows))
	emit := func(l, r []interface{}) {
		row := make([]interface{}, 0, len(columns))
		for _, i := range leftCols {
			if l != nil {
				row = append(row, l[i])
			} else {
				row = append(row, nil)
			}
		}
		if l == nil && r != nil {
			for ri, li := range keyPos {
				row[li] = r[ri]
			}
		}
		for _, i := range rightCols {
			if r != nil {
				row = append(row, r[i])
			} else {
				row = append(row, nil)
			}
		}
		out.Rows = append(out.Rows, row)
	}

	for _, l := range left.Rows {
		matches := index[rowKey(pick(l, leftKeys))]
		if len(matches) == 0 {
			emit(l, nil)
			continue
		}
		for _, r := range matches {
			matchedRight[r] = true
			emit(l, right.Rows[r])
		}
	}
	if how == OuterJoin {
		for r, row := range right.Rows {
			if !matchedRight[r] {
				emit(nil, row)
			}
		}
	}
	return out, nil
}
