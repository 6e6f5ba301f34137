package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tidewell/tablediff/cmd/dialects"
)

var (
	// ErrMissingPrimaryKey is returned when a key column is absent from either table
	ErrMissingPrimaryKey = errors.New("primary key column missing")

	// ErrCastColumnNotComparable is returned when a cast targets a column
	// outside the comparison set (a key column, an ignored column, or a
	// column present in only one table)
	ErrCastColumnNotComparable = errors.New("cast column is not comparable")
)

// ComparisonPlan fixes the column sets and casts for one diff run. It is
// derived once from the two resolved schemas and never mutated afterward.
type ComparisonPlan struct {
	// PKCols holds the key columns in the user-specified order. Order
	// affects the join and output field order, not matching semantics.
	PKCols []string

	// CompareCols holds the common non-key columns, sorted so the
	// generated SQL is deterministic across runs.
	CompareCols []string

	// Casts maps compared column names to their target scalar type.
	Casts map[string]dialects.CastType
}

// buildPlan derives the comparison plan from the two resolved schemas.
// Columns present in only one table are silently excluded from value
// comparison; asymmetric schemas are allowed. An empty comparison set is
// not an error: the run degrades to a presence-only diff.
func buildPlan(schema1, schema2 *TableSchema, pkCols, ignoreCols []string, casts map[string]dialects.CastType) (*ComparisonPlan, error) {
	if len(pkCols) == 0 {
		return nil, fmt.Errorf("%w: at least one key column is required", ErrMissingPrimaryKey)
	}

	for _, pk := range pkCols {
		if !schema1.HasColumn(pk) || !schema2.HasColumn(pk) {
			return nil, fmt.Errorf("%w: %q is not present in both tables", ErrMissingPrimaryKey, pk)
		}
	}

	isKey := make(map[string]bool, len(pkCols))
	for _, pk := range pkCols {
		isKey[pk] = true
	}
	ignored := make(map[string]bool, len(ignoreCols))
	for _, col := range ignoreCols {
		ignored[col] = true
	}

	common := make(map[string]bool)
	for _, col := range schema1.Columns {
		if schema2.HasColumn(col.Name) {
			common[col.Name] = true
		}
	}

	compareCols := make([]string, 0, len(common))
	for col := range common {
		if isKey[col] || ignored[col] {
			continue
		}
		compareCols = append(compareCols, col)
	}
	sort.Strings(compareCols)

	if len(compareCols) == 0 {
		if len(common) <= len(isKey) {
			logger.Warn("⚠️  No common non-key columns between the two tables, comparing row presence only")
		} else {
			logger.Warn("⚠️  All common columns are ignored, comparing row presence only")
		}
	}

	comparable := make(map[string]bool, len(compareCols))
	for _, col := range compareCols {
		comparable[col] = true
	}
	for col := range casts {
		if comparable[col] {
			continue
		}
		switch {
		case isKey[col]:
			return nil, fmt.Errorf("%w: %q is a primary key column", ErrCastColumnNotComparable, col)
		case ignored[col]:
			return nil, fmt.Errorf("%w: %q is ignored", ErrCastColumnNotComparable, col)
		default:
			return nil, fmt.Errorf("%w: %q is not present in both tables", ErrCastColumnNotComparable, col)
		}
	}

	plan := &ComparisonPlan{
		PKCols:      append([]string(nil), pkCols...),
		CompareCols: compareCols,
	}
	if len(casts) > 0 {
		plan.Casts = make(map[string]dialects.CastType, len(casts))
		for col, target := range casts {
			plan.Casts[col] = target
		}
	}

	return plan, nil
}
