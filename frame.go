package pgutils

import (
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Frame is a minimal labeled tabular result: ordered column names plus rows
// of values. It is what query methods hand back in place of a DataFrame.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// frameFromRows drains rows into a Frame. rows is closed by the caller.
func frameFromRows(rows pgx.Rows) (*Frame, error) {
	fields := rows.FieldDescriptions()
	frame := &Frame{Columns: make([]string, len(fields))}
	for i, fd := range fields {
		frame.Columns[i] = fd.Name
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row values: %w", err)
		}
		row := make([]any, len(vals))
		copy(row, vals)
		frame.Rows = append(frame.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return frame, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Rows)
}

// Records converts the frame into a slice of maps keyed by column name.
func (f *Frame) Records() []map[string]any {
	out := make([]map[string]any, len(f.Rows))
	for i, row := range f.Rows {
		rec := make(map[string]any, len(f.Columns))
		for j, col := range f.Columns {
			rec[col] = row[j]
		}
		out[i] = rec
	}
	return out
}
