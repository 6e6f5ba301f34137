package dialects

import (
	"fmt"
	"strings"
)

// BigQuery implements Dialect for Google BigQuery standard SQL
type BigQuery struct{}

// Name returns the dialect identifier
func (BigQuery) Name() string {
	return "bigquery"
}

// QuoteIdent quotes an identifier with backticks, escaping embedded backticks
func (BigQuery) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}

// QuoteTable wraps the whole project.dataset.table reference in one pair of
// backticks, which is how BigQuery expects fully qualified names
func (d BigQuery) QuoteTable(ref string) string {
	return d.QuoteIdent(ref)
}

// NullSafeDistinct renders BigQuery's IS DISTINCT FROM predicate
func (BigQuery) NullSafeDistinct(left, right string) string {
	return fmt.Sprintf("%s IS DISTINCT FROM %s", left, right)
}

// CastTypeName maps cast types onto BigQuery type names, which are the
// canonical names of the supported set
func (BigQuery) CastTypeName(t CastType) string {
	return string(t)
}

// LimitClause renders a trailing LIMIT clause
func (BigQuery) LimitClause(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("LIMIT %d", n)
}
