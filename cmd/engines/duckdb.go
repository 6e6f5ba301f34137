package engines

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"

	duckdb "github.com/duckdb/duckdb-go/v2"
	"github.com/tidewell/tablediff/cmd/dialects"
)

// DuckDBOptions configures a DuckDB engine
type DuckDBOptions struct {
	Path       string // database file; empty opens an in-memory database
	InitScript string // path to a SQL script executed before any comparison
}

// DuckDBEngine runs comparisons against a DuckDB database
type DuckDBEngine struct {
	db      *sql.DB
	dialect dialects.DuckDB
}

// OpenDuckDB opens (or creates) a DuckDB database and runs the init script,
// if configured. An empty path gives an in-memory database, which is only
// useful together with an init script.
func OpenDuckDB(ctx context.Context, opts DuckDBOptions) (*DuckDBEngine, error) {
	db, err := sql.Open("duckdb", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to duckdb database: %w", err)
	}

	e := &DuckDBEngine{db: db}
	if opts.InitScript != "" {
		if err := e.runInitScript(ctx, opts.InitScript); err != nil {
			db.Close()
			return nil, err
		}
	}
	return e, nil
}

// runInitScript executes a SQL script statement by statement: the driver
// expects one statement per Exec call.
func (e *DuckDBEngine) runInitScript(ctx context.Context, path string) error {
	script, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read init script: %w", err)
	}
	for _, stmt := range splitStatements(string(script)) {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init script statement failed: %w\nstatement:\n%s", err, stmt)
		}
	}
	return nil
}

// Dialect returns the DuckDB dialect
func (e *DuckDBEngine) Dialect() dialects.Dialect {
	return e.dialect
}

// ResolveTable accepts bare, schema-qualified, and catalog-qualified references
func (e *DuckDBEngine) ResolveTable(ref string) (string, error) {
	return validateDottedRef(ref, 3)
}

// TableColumns resolves the schema with DESCRIBE, which follows the same name
// resolution rules as queries (attached catalogs included)
func (e *DuckDBEngine) TableColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := queryRows(ctx, e.db, normalizeDuckDBValue, "DESCRIBE "+e.dialect.QuoteTable(table))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSchemaNotFound, table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		row := rows.Row()
		name, _ := row["column_name"].(string)
		typ, _ := row["column_type"].(string)
		cols = append(cols, Column{Name: name, Type: typ})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schema rows: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, table)
	}
	return cols, nil
}

// Query executes a comparison query
func (e *DuckDBEngine) Query(ctx context.Context, query string) (Rows, error) {
	return queryRows(ctx, e.db, normalizeDuckDBValue, query)
}

// Close closes the database
func (e *DuckDBEngine) Close() error {
	return e.db.Close()
}

// normalizeDuckDBValue converts driver-specific value types (DECIMAL, HUGEINT)
// into JSON-safe scalars
func normalizeDuckDBValue(v any) any {
	switch val := v.(type) {
	case duckdb.Decimal:
		return val.Float64()
	case *big.Int:
		return val.String()
	default:
		return normalizeSQLValue(v)
	}
}
