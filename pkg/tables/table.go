// Package tables provides the in-memory containers for per-period survey
// data. A Table is one period's ordered sequence of rows; a Registry holds
// the set of tables one reconciliation run works on. Both are pure
// containers: pipeline stages own all reshaping logic.
package tables

import (
	"fmt"
	"maps"
	"slices"
)

// Period identifies one period table, typically a survey year ("2019").
type Period string

// String returns the period as a string.
func (p Period) String() string {
	return string(p)
}

// Row maps column keys to cell values. A missing key and an empty string
// both mean the cell is absent.
type Row map[string]string

// Value returns the cell value for a column key, or "" when absent.
func (r Row) Value(key string) string {
	return r[key]
}

// Has reports whether the row holds a non-empty value for the key.
func (r Row) Has(key string) bool {
	return r[key] != ""
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	maps.Copy(out, r)
	return out
}

// Table is one period's tabular data: an ordered column set and an
// ordered sequence of rows. Row order is preserved through every pipeline
// stage so that reshape operations can round-trip row identity.
type Table struct {
	period  Period
	columns []string
	rows    []Row
}

// New creates an empty table for a period with the given column order.
func New(period Period, columns ...string) *Table {
	t := &Table{
		period:  period,
		columns: make([]string, 0, len(columns)),
	}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

// Period returns the table's period identifier.
func (t *Table) Period() Period {
	return t.period
}

// Columns returns the column keys in order. The returned slice is a copy.
func (t *Table) Columns() []string {
	return slices.Clone(t.columns)
}

// HasColumn reports whether the table declares the column key.
func (t *Table) HasColumn(key string) bool {
	return slices.Contains(t.columns, key)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns the table's rows in order. The slice is shared with the
// table; callers that mutate rows mutate the table.
func (t *Table) Rows() []Row {
	return t.rows
}

// Row returns the row at index i.
func (t *Table) Row(i int) (Row, error) {
	if i < 0 || i >= len(t.rows) {
		return nil, fmt.Errorf("row index %d out of range (table %s has %d rows)", i, t.period, len(t.rows))
	}
	return t.rows[i], nil
}

// Append adds a row, registering any column keys the table has not seen
// yet in first-seen order.
func (t *Table) Append(row Row) {
	for _, key := range sortedKeys(row) {
		t.addColumn(key)
	}
	t.rows = append(t.rows, row)
}

// AppendValues adds a row built from the table's current column order.
// Extra values beyond the column count are dropped.
func (t *Table) AppendValues(values ...string) {
	row := make(Row, len(t.columns))
	for i, c := range t.columns {
		if i < len(values) && values[i] != "" {
			row[c] = values[i]
		}
	}
	t.rows = append(t.rows, row)
}

// RenameColumn changes a column key in place across the column order and
// every row. Renaming onto an existing column is refused; merging
// colliding columns is the mapping applier's job, with its own policy.
func (t *Table) RenameColumn(from, to string) error {
	if from == to {
		return nil
	}
	idx := slices.Index(t.columns, from)
	if idx < 0 {
		return fmt.Errorf("column %s not found in table %s", from, t.period)
	}
	if t.HasColumn(to) {
		return fmt.Errorf("column %s already exists in table %s", to, t.period)
	}
	t.columns[idx] = to
	for _, row := range t.rows {
		if v, ok := row[from]; ok {
			row[to] = v
			delete(row, from)
		}
	}
	return nil
}

// DropColumn removes a column key and its values from every row.
func (t *Table) DropColumn(key string) {
	idx := slices.Index(t.columns, key)
	if idx < 0 {
		return
	}
	t.columns = slices.Delete(t.columns, idx, idx+1)
	for _, row := range t.rows {
		delete(row, key)
	}
}

// Clone returns a deep copy of the table. Stages that must apply
// atomically build their output on a clone and swap it into the registry
// only on success.
func (t *Table) Clone() *Table {
	out := &Table{
		period:  t.period,
		columns: slices.Clone(t.columns),
		rows:    make([]Row, len(t.rows)),
	}
	for i, row := range t.rows {
		out.rows[i] = row.Clone()
	}
	return out
}

// addColumn registers a column key if it is new.
func (t *Table) addColumn(key string) {
	if key == "" || slices.Contains(t.columns, key) {
		return
	}
	t.columns = append(t.columns, key)
}

// sortedKeys returns a row's keys in sorted order so column registration
// is deterministic regardless of map iteration.
func sortedKeys(row Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
