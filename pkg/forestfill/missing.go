package forestfill

import "sort"

// MissingIndex records, per column, the row indices holding no value. Indices
// are relative to the row order at the time Locate was called and are never
// renumbered.
type MissingIndex struct {
	byColumn map[string][]int
	total    int
}

// Locate scans the frame once and builds the missing-value index. The frame is
// not modified.
func Locate(f *Frame) MissingIndex {
	ix := MissingIndex{byColumn: make(map[string][]int)}
	for _, cs := range f.Schema().Columns {
		col, _ := f.ColumnByName(cs.Name)
		var rows []int
		for i := 0; i < col.Len(); i++ {
			if col.IsNull(i) {
				rows = append(rows, i)
			}
		}
		if len(rows) > 0 {
			ix.byColumn[cs.Name] = rows
			ix.total += len(rows)
		}
	}
	return ix
}

// Rows returns the missing row indices for a column, in ascending order.
func (ix MissingIndex) Rows(column string) []int { return ix.byColumn[column] }

// Columns returns the names of columns with at least one missing value, sorted
// for deterministic iteration.
func (ix MissingIndex) Columns() []string {
	names := make([]string, 0, len(ix.byColumn))
	for name := range ix.byColumn {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Total is the number of missing cells across all columns.
func (ix MissingIndex) Total() int { return ix.total }
