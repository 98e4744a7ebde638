package models

import "fmt"

// Row is one result row, keyed by column name.
type Row map[string]any

// QueryResult is the successful outcome of a query: an ordered sequence of
// rows plus the column order. Failures are modeled as errors, never as a
// partially filled QueryResult.
type QueryResult struct {
	Columns  []string `json:"columns"`
	Rows     []Row    `json:"rows"`
	RowCount int      `json:"row_count"`
}

// Float64 reads a numeric column from the row, accepting the scan types
// pgx produces for integer, float and numeric columns.
func (r Row) Float64(column string) (float64, bool) {
	v, ok := r[column]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// Summary returns a one-line description used in scratchpad entries.
func (q *QueryResult) Summary() string {
	return fmt.Sprintf("%d rows, %d columns", q.RowCount, len(q.Columns))
}
