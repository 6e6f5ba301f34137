package cmd

import (
	"context"
	"fmt"

	"github.com/tidewell/tablediff/cmd/engines"
)

// TableSchema represents the resolved column metadata for one table
type TableSchema struct {
	Table   string // normalized table reference
	Columns []engines.Column
}

// ColumnNames returns the column names in declaration order
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// HasColumn reports whether the schema contains the named column
func (s *TableSchema) HasColumn(name string) bool {
	for _, col := range s.Columns {
		if col.Name == name {
			return true
		}
	}
	return false
}

// resolveSchema normalizes a table reference and fetches its column
// metadata through the engine. Failures carry the table name so the
// caller can tell which side of the comparison broke.
func resolveSchema(ctx context.Context, engine engines.Engine, ref string) (*TableSchema, error) {
	normalized, err := engine.ResolveTable(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid table reference %q: %w", ref, err)
	}

	columns, err := engine.TableColumns(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema for %s: %w", normalized, err)
	}

	return &TableSchema{Table: normalized, Columns: columns}, nil
}
