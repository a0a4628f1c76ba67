package model

// Column describes one result column.
type Column struct {
	// Name is the column name as reported by the engine.
	Name string
	// DatabaseType is the declared type, or empty for computed columns.
	DatabaseType string
}

// Row is one result row in column order. Values are nil, int64, float64,
// string, []byte or time.Time for DATETIME columns the driver can parse.
type Row []any

// ResultSet is a fully materialized query result.
type ResultSet struct {
	Columns []Column
	Rows    []Row
	// Truncated is true when the query produced more rows than were kept.
	Truncated bool
}

// ColumnNames returns the column names in order.
func (rs *ResultSet) ColumnNames() []string {
	names := make([]string, len(rs.Columns))
	for i, c := range rs.Columns {
		names[i] = c.Name
	}
	return names
}

// Len returns the number of materialized rows.
func (rs *ResultSet) Len() int {
	return len(rs.Rows)
}

// RowMap returns row i as a column name to value map.
// When names repeat, the last column with that name wins.
func (rs *ResultSet) RowMap(i int) map[string]any {
	row := rs.Rows[i]
	m := make(map[string]any, len(rs.Columns))
	for j, c := range rs.Columns {
		if j < len(row) {
			m[c.Name] = row[j]
		}
	}
	return m
}
