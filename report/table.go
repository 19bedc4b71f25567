// Package report renders query results into the delivery formats the
// program hands out: XLSX workbooks, CSV, KML, GeoJSON, and zip archives.
package report

import (
	"fmt"
	"time"
)

// Table is an ordered set of columns over loosely typed rows. Rows may omit
// columns; missing cells render empty.
type Table struct {
	Columns []string
	Rows    []map[string]any
}

// NewTable builds a table with the given column order.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Append adds a row.
func (t *Table) Append(row map[string]any) {
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Drop removes the named columns. Unknown names are ignored.
func (t *Table) Drop(columns ...string) {
	drop := make(map[string]bool, len(columns))
	for _, c := range columns {
		drop[c] = true
	}
	kept := t.Columns[:0]
	for _, c := range t.Columns {
		if !drop[c] {
			kept = append(kept, c)
		}
	}
	t.Columns = kept
	for _, row := range t.Rows {
		for c := range drop {
			delete(row, c)
		}
	}
}

// Keep removes every column not in the given list.
func (t *Table) Keep(columns ...string) {
	keep := make(map[string]bool, len(columns))
	for _, c := range columns {
		keep[c] = true
	}
	var drop []string
	for _, c := range t.Columns {
		if !keep[c] {
			drop = append(drop, c)
		}
	}
	t.Drop(drop...)
}

// Rename applies the old-to-new mapping to column names and row keys.
func (t *Table) Rename(mapping map[string]string) {
	for i, c := range t.Columns {
		if renamed, ok := mapping[c]; ok {
			t.Columns[i] = renamed
		}
	}
	for _, row := range t.Rows {
		for old, renamed := range mapping {
			if v, ok := row[old]; ok {
				row[renamed] = v
				delete(row, old)
			}
		}
	}
}

// Reorder sets the column order to the given list, keeping only the named
// columns that exist in the table.
func (t *Table) Reorder(order []string) {
	existing := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		existing[c] = true
	}
	var reordered []string
	for _, c := range order {
		if existing[c] {
			reordered = append(reordered, c)
		}
	}
	t.Columns = reordered
}

// Cell formats a single value for output. Times render as dates, epoch
// millisecond timestamps are left to the caller to convert first.
func Cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.Format("2006-01-02")
	case float64:
		// JSON numbers decode as float64; render integral values plainly
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
