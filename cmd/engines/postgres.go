package engines

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // postgres driver
	"github.com/tidewell/tablediff/cmd/dialects"
)

// PostgresOptions configures a PostgreSQL engine connection
type PostgresOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// PostgresEngine runs comparisons against a PostgreSQL database
type PostgresEngine struct {
	db      *sql.DB
	dialect dialects.Postgres
}

// OpenPostgres connects to PostgreSQL and verifies the connection
func OpenPostgres(ctx context.Context, opts PostgresOptions) (*PostgresEngine, error) {
	sslMode := opts.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		opts.Host,
		opts.Port,
		opts.User,
		opts.Password,
		opts.Name,
		sslMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres database: %w", err)
	}

	return &PostgresEngine{db: db}, nil
}

// Dialect returns the PostgreSQL dialect
func (e *PostgresEngine) Dialect() dialects.Dialect {
	return e.dialect
}

// ResolveTable accepts bare and schema-qualified references
func (e *PostgresEngine) ResolveTable(ref string) (string, error) {
	return validateDottedRef(ref, 2)
}

// TableColumns queries information_schema for column metadata in declaration order
func (e *PostgresEngine) TableColumns(ctx context.Context, table string) ([]Column, error) {
	schema, name := splitSchemaTable(table, "public")
	query := `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := e.db.QueryContext(ctx, query, schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query table schema: %w", err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.Type); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		cols = append(cols, col)
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
func (e *PostgresEngine) Query(ctx context.Context, query string) (Rows, error) {
	return queryRows(ctx, e.db, normalizeSQLValue, query)
}

// Close closes the database
func (e *PostgresEngine) Close() error {
	return e.db.Close()
}
