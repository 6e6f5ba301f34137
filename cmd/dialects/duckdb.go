package dialects

import (
	"fmt"
	"strings"
)

// DuckDB implements Dialect for DuckDB
type DuckDB struct{}

// Name returns the dialect identifier
func (DuckDB) Name() string {
	return "duckdb"
}

// QuoteIdent quotes an identifier with double quotes, doubling embedded quotes
func (DuckDB) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteTable quotes each dot-separated part of the reference, so
// schema-qualified names like main.orders become "main"."orders"
func (d DuckDB) QuoteTable(ref string) string {
	return quoteDotted(ref, d.QuoteIdent)
}

// NullSafeDistinct renders DuckDB's IS DISTINCT FROM predicate
func (DuckDB) NullSafeDistinct(left, right string) string {
	return fmt.Sprintf("%s IS DISTINCT FROM %s", left, right)
}

// CastTypeName maps cast types onto DuckDB type names. NUMERIC and BIGNUMERIC
// both land on DECIMAL(38,9): DuckDB's decimal width caps at 38 digits.
func (DuckDB) CastTypeName(t CastType) string {
	switch t {
	case CastString:
		return "VARCHAR"
	case CastFloat64:
		return "DOUBLE"
	case CastBool:
		return "BOOLEAN"
	case CastInt64:
		return "BIGINT"
	case CastBytes:
		return "BLOB"
	case CastNumeric, CastBigNumeric:
		return "DECIMAL(38,9)"
	default:
		return string(t)
	}
}

// LimitClause renders a trailing LIMIT clause
func (DuckDB) LimitClause(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("LIMIT %d", n)
}
