package engines

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidewell/tablediff/cmd/dialects"
)

// Static errors shared by all engines
var (
	ErrSchemaNotFound  = errors.New("table not found")
	ErrInvalidTableRef = errors.New("invalid table reference")
)

// Column is one (name, declared type) pair of a table schema, in declaration order
type Column struct {
	Name string
	Type string
}

// Rows is a lazy cursor over comparison query results. Row returns the current
// row keyed by selected-expression alias; values are normalized to JSON-safe
// scalars. The iteration protocol mirrors database/sql.Rows.
type Rows interface {
	Next() bool
	Row() map[string]any
	Err() error
	Close() error
}

// Engine is the capability surface the differ consumes: table reference
// resolution, schema lookup, and query execution, plus the SQL dialect the
// engine speaks. Implementations own their connection lifecycle.
type Engine interface {
	// ResolveTable canonicalizes a CLI table reference for this engine
	ResolveTable(ref string) (string, error)

	// TableColumns returns the table's columns in declaration order
	TableColumns(ctx context.Context, table string) ([]Column, error)

	// Query executes a query and returns a lazy row cursor
	Query(ctx context.Context, query string) (Rows, error)

	// Dialect returns the SQL dialect for query synthesis
	Dialect() dialects.Dialect

	Close() error
}

// validateDottedRef checks a dotted table reference for emptiness and part count
func validateDottedRef(ref string, maxParts int) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrInvalidTableRef
	}
	parts := strings.Split(ref, ".")
	if len(parts) > maxParts {
		return "", fmt.Errorf("%w: %s", ErrInvalidTableRef, ref)
	}
	for _, p := range parts {
		if p == "" {
			return "", fmt.Errorf("%w: %s", ErrInvalidTableRef, ref)
		}
	}
	return ref, nil
}

// splitSchemaTable splits an optionally schema-qualified reference, applying
// the engine's default schema when the reference is bare
func splitSchemaTable(ref, defaultSchema string) (schema, table string) {
	if i := strings.LastIndex(ref, "."); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return defaultSchema, ref
}

// normalizeSQLValue converts database/sql driver values into JSON-safe scalars
func normalizeSQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
