package engines

import (
	"context"
	"database/sql"
	"strings"
)

// sqlRows adapts *sql.Rows to the Rows interface, scanning each row into a
// map keyed by result column name with driver values normalized.
type sqlRows struct {
	rows      *sql.Rows
	cols      []string
	normalize func(any) any
	current   map[string]any
	err       error
}

func newSQLRows(rows *sql.Rows, normalize func(any) any) (*sqlRows, error) {
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &sqlRows{rows: rows, cols: cols, normalize: normalize}, nil
}

func (r *sqlRows) Next() bool {
	if !r.rows.Next() {
		r.err = r.rows.Err()
		return false
	}

	values := make([]any, len(r.cols))
	pointers := make([]any, len(r.cols))
	for i := range values {
		pointers[i] = &values[i]
	}
	if err := r.rows.Scan(pointers...); err != nil {
		r.err = err
		return false
	}

	row := make(map[string]any, len(r.cols))
	for i, col := range r.cols {
		row[col] = r.normalize(values[i])
	}
	r.current = row
	return true
}

func (r *sqlRows) Row() map[string]any {
	return r.current
}

func (r *sqlRows) Err() error {
	return r.err
}

func (r *sqlRows) Close() error {
	return r.rows.Close()
}

// queryRows executes a query on a database/sql connection and wraps the
// result cursor
func queryRows(ctx context.Context, db *sql.DB, normalize func(any) any, query string, args ...any) (Rows, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return newSQLRows(rows, normalize)
}

// splitStatements splits a SQL script into individual statements on
// semicolons, respecting single-quoted strings and -- line comments.
func splitStatements(script string) []string {
	var statements []string
	var b strings.Builder
	inString := false

	flush := func() {
		if stmt := strings.TrimSpace(b.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		b.Reset()
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case c == '\'':
			inString = !inString
			b.WriteByte(c)
		case !inString && c == '-' && i+1 < len(script) && script[i+1] == '-':
			for i < len(script) && script[i] != '\n' {
				i++
			}
			b.WriteByte('\n')
		case !inString && c == ';':
			flush()
		default:
			b.WriteByte(c)
		}
	}
	flush()

	return statements
}
