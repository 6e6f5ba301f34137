package dialects

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCastType is returned when a cast type is not in the supported set
var ErrUnknownCastType = errors.New("unknown cast type")

// CastType is one of the supported scalar cast targets. The set is closed:
// every engine dialect maps each member onto its native type name.
type CastType string

// Supported cast types
const (
	CastString     CastType = "STRING"
	CastFloat64    CastType = "FLOAT64"
	CastBool       CastType = "BOOL"
	CastDate       CastType = "DATE"
	CastTimestamp  CastType = "TIMESTAMP"
	CastInt64      CastType = "INT64"
	CastBytes      CastType = "BYTES"
	CastNumeric    CastType = "NUMERIC"
	CastBigNumeric CastType = "BIGNUMERIC"
	CastJSON       CastType = "JSON"
	CastTime       CastType = "TIME"
)

// ParseCastType validates a user-supplied cast type name (case-insensitive)
func ParseCastType(s string) (CastType, error) {
	switch CastType(strings.ToUpper(strings.TrimSpace(s))) {
	case CastString:
		return CastString, nil
	case CastFloat64:
		return CastFloat64, nil
	case CastBool:
		return CastBool, nil
	case CastDate:
		return CastDate, nil
	case CastTimestamp:
		return CastTimestamp, nil
	case CastInt64:
		return CastInt64, nil
	case CastBytes:
		return CastBytes, nil
	case CastNumeric:
		return CastNumeric, nil
	case CastBigNumeric:
		return CastBigNumeric, nil
	case CastJSON:
		return CastJSON, nil
	case CastTime:
		return CastTime, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownCastType, s)
	}
}

// Dialect captures the SQL text differences between target engines: identifier
// quoting, table qualification, the NULL-safe inequality operator, cast type
// names, and LIMIT rendering. The query builder composes these fragments
// without knowing which engine it is targeting.
type Dialect interface {
	// Name returns the dialect identifier (matches the CLI subcommand)
	Name() string

	// QuoteIdent quotes a single identifier (column name or alias)
	QuoteIdent(name string) string

	// QuoteTable quotes a dotted table reference for use in FROM clauses
	QuoteTable(ref string) string

	// NullSafeDistinct renders the NULL-safe inequality predicate between
	// two expressions (two NULLs compare equal, NULL vs non-NULL differs)
	NullSafeDistinct(left, right string) string

	// CastTypeName maps a supported cast type onto the engine's type name
	CastTypeName(t CastType) string

	// LimitClause renders a trailing result-count cap; empty when n <= 0
	LimitClause(n int) string
}

// quoteDotted quotes each dot-separated part of a table reference with the
// given per-identifier quoting function.
func quoteDotted(ref string, quote func(string) string) string {
	parts := strings.Split(ref, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}
