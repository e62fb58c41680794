// Package table holds the string-valued, column-ordered tables both pipelines
// produce and the CSV writer that persists them.
package table

import (
	"fmt"
	"slices"
)

// Table is a rectangular set of rows keyed by an ordered column list.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New returns an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: slices.Clone(columns)}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	return slices.Index(t.Columns, name)
}

// Append adds a row. The row must have one cell per column.
func (t *Table) Append(row []string) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Column returns a copy of every cell in the named column.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out, nil
}

// AddColumn appends a column whose value for each row is derived by fn.
func (t *Table) AddColumn(name string, fn func(row []string) (string, error)) error {
	if t.Index(name) >= 0 {
		return fmt.Errorf("column %q already exists", name)
	}
	values := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		v, err := fn(r)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		values[i] = v
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], values[i])
	}
	return nil
}

// Select returns a new table holding only the named columns, in that order.
func (t *Table) Select(columns ...string) (*Table, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i] = t.Index(c)
		if idx[i] < 0 {
			return nil, fmt.Errorf("column %q not found", c)
		}
	}

	out := New(columns...)
	out.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]string, len(idx))
		for j, k := range idx {
			row[j] = r[k]
		}
		out.Rows[i] = row
	}
	return out, nil
}
