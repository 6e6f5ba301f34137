package dialects

import (
	"fmt"

	"github.com/lib/pq"
)

// Postgres implements Dialect for PostgreSQL
type Postgres struct{}

// Name returns the dialect identifier
func (Postgres) Name() string {
	return "postgres"
}

// QuoteIdent quotes an identifier using lib/pq's quoting rules
func (Postgres) QuoteIdent(name string) string {
	return pq.QuoteIdentifier(name)
}

// QuoteTable quotes each dot-separated part of the reference, so
// schema-qualified names like public.orders become "public"."orders"
func (d Postgres) QuoteTable(ref string) string {
	return quoteDotted(ref, d.QuoteIdent)
}

// NullSafeDistinct renders PostgreSQL's IS DISTINCT FROM predicate
func (Postgres) NullSafeDistinct(left, right string) string {
	return fmt.Sprintf("%s IS DISTINCT FROM %s", left, right)
}

// CastTypeName maps cast types onto PostgreSQL type names. JSON maps to JSONB
// because the plain json type has no equality operator, which the comparison
// predicate needs.
func (Postgres) CastTypeName(t CastType) string {
	switch t {
	case CastString:
		return "TEXT"
	case CastFloat64:
		return "DOUBLE PRECISION"
	case CastBool:
		return "BOOLEAN"
	case CastInt64:
		return "BIGINT"
	case CastBytes:
		return "BYTEA"
	case CastNumeric, CastBigNumeric:
		return "NUMERIC"
	case CastJSON:
		return "JSONB"
	default:
		return string(t)
	}
}

// LimitClause renders a trailing LIMIT clause
func (Postgres) LimitClause(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("LIMIT %d", n)
}
