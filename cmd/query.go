package cmd

import (
	"fmt"
	"strings"

	"github.com/tidewell/tablediff/cmd/dialects"
)

// QueryError wraps an engine failure together with the generated query
// text, so the failing SQL can be inspected without re-running the tool.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("comparison query failed: %v\nquery:\n%s", e.Err, e.Query)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// buildComparisonQuery assembles the single full outer join query the engine
// executes for one diff run. Each side is prepared in a CTE that renames
// every selected column with a side prefix (t1_/t2_) and applies the
// configured casts, so the outer select can pull both values for each
// compared column plus a NULL sentinel per key column for one-sided rows.
// The predicate keeps a row when any compared column is NULL-safely distinct
// or when either side is absent; the limit caps results after the predicate.
func buildComparisonQuery(d dialects.Dialect, table1, table2 string, plan *ComparisonPlan, limit int) string {
	var sb strings.Builder

	sb.WriteString("WITH table1_prepared AS (\n")
	writePreparedSelect(&sb, d, table1, "t1", plan)
	sb.WriteString("), table2_prepared AS (\n")
	writePreparedSelect(&sb, d, table2, "t2", plan)
	sb.WriteString(")\nSELECT\n")

	// Coalesced key columns come first so every output row carries its
	// key regardless of which side it came from.
	for _, pk := range plan.PKCols {
		sb.WriteString(fmt.Sprintf("    COALESCE(t1.%s, t2.%s) AS %s,\n",
			d.QuoteIdent("t1_"+pk), d.QuoteIdent("t2_"+pk), d.QuoteIdent(pk)))
	}
	sb.WriteString("    t1.*,\n    t2.*\n")

	sb.WriteString("FROM table1_prepared t1\nFULL OUTER JOIN table2_prepared t2\n    ON ")
	for i, pk := range plan.PKCols {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		sb.WriteString(fmt.Sprintf("t1.%s = t2.%s",
			d.QuoteIdent("t1_"+pk), d.QuoteIdent("t2_"+pk)))
	}

	sb.WriteString("\nWHERE ")
	distinct := make([]string, 0, len(plan.CompareCols))
	for _, col := range plan.CompareCols {
		distinct = append(distinct, d.NullSafeDistinct(
			"t1."+d.QuoteIdent("t1_"+col), "t2."+d.QuoteIdent("t2_"+col)))
	}
	if len(distinct) > 0 {
		sb.WriteString("(" + strings.Join(distinct, "\n    OR ") + ")")
		sb.WriteString("\n    OR ")
	}
	sb.WriteString("(" + absentPredicate(d, "t2", plan.PKCols) + ")")
	sb.WriteString("\n    OR (" + absentPredicate(d, "t1", plan.PKCols) + ")")

	if clause := d.LimitClause(limit); clause != "" {
		sb.WriteString("\n" + clause)
	}

	return sb.String()
}

// writePreparedSelect renders one side's CTE body: key columns first in
// their configured order, then the compared columns with casts applied.
func writePreparedSelect(sb *strings.Builder, d dialects.Dialect, table, side string, plan *ComparisonPlan) {
	sb.WriteString("    SELECT\n")

	cols := make([]string, 0, len(plan.PKCols)+len(plan.CompareCols))
	for _, pk := range plan.PKCols {
		cols = append(cols, fmt.Sprintf("        %s.%s AS %s",
			side, d.QuoteIdent(pk), d.QuoteIdent(side+"_"+pk)))
	}
	for _, col := range plan.CompareCols {
		expr := side + "." + d.QuoteIdent(col)
		if cast, ok := plan.Casts[col]; ok {
			expr = fmt.Sprintf("CAST(%s AS %s)", expr, d.CastTypeName(cast))
		}
		cols = append(cols, fmt.Sprintf("        %s AS %s",
			expr, d.QuoteIdent(side+"_"+col)))
	}

	sb.WriteString(strings.Join(cols, ",\n"))
	sb.WriteString(fmt.Sprintf("\n    FROM %s %s\n", d.QuoteTable(table), side))
}

// absentPredicate matches rows where the given side produced no join match:
// after a full outer join every key column on the absent side is NULL.
func absentPredicate(d dialects.Dialect, side string, pkCols []string) string {
	checks := make([]string, len(pkCols))
	for i, pk := range pkCols {
		checks[i] = fmt.Sprintf("%s.%s IS NULL", side, d.QuoteIdent(side+"_"+pk))
	}
	return strings.Join(checks, " AND ")
}
