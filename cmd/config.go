package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidewell/tablediff/cmd/dialects"
)

// Static errors for configuration validation
var (
	ErrTableRefsRequired       = errors.New("two table references are required")
	ErrPKColsRequired          = errors.New("at least one primary key column is required")
	ErrLimitInvalid            = errors.New("limit must be >= 0 (0 means unlimited)")
	ErrScalarCastInvalid       = errors.New("invalid scalar cast specification")
	ErrCompressionInvalid      = errors.New("compression must be one of: zstd, lz4, gzip, none")
	ErrCompressionLevelInvalid = errors.New("compression level must be between 1 and 22 (zstd), 1-9 (lz4/gzip)")
	ErrCompressionNeedsOutput  = errors.New("compression requires --output; stdout is always uncompressed")
	ErrDatabaseUserRequired    = errors.New("database user is required")
	ErrDatabaseNameRequired    = errors.New("database name is required")
	ErrDatabasePortInvalid     = errors.New("database port must be between 1 and 65535")
)

type Config struct {
	Engine string // duckdb, bigquery, postgres

	Table1 string
	Table2 string

	PKCols      []string
	IgnoreCols  []string
	ScalarCasts map[string]dialects.CastType

	Limit            int    // maximum diff records to emit (0 = unlimited)
	Output           string // output target; empty = stdout
	Compression      string
	CompressionLevel int // 0 = compressor default

	Debug     bool
	LogFormat string

	DuckDB   DuckDBConfig
	BigQuery BigQueryConfig
	Database DatabaseConfig
	S3       S3Config
}

type DuckDBConfig struct {
	Path       string // database file; empty = in-memory
	InitScript string // SQL script executed after connect
}

type BigQueryConfig struct {
	Project string // empty = detect from environment
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// S3Config carries credentials for s3:// output targets. When access keys
// are empty the default AWS credential chain is used.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// parseColumnList splits a comma-separated column specification, trimming
// whitespace and dropping empty entries.
func parseColumnList(spec string) []string {
	if spec == "" {
		return nil
	}
	parts := strings.Split(spec, ",")
	cols := make([]string, 0, len(parts))
	for _, part := range parts {
		if col := strings.TrimSpace(part); col != "" {
			cols = append(cols, col)
		}
	}
	return cols
}

// parseScalarCasts parses a col=TYPE,col=TYPE specification into resolved
// cast targets. Unknown target types are rejected here, before any engine
// round-trip.
func parseScalarCasts(spec string) (map[string]dialects.CastType, error) {
	if spec == "" {
		return nil, nil
	}

	casts := make(map[string]dialects.CastType)
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		col, typeName, ok := strings.Cut(pair, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("%w: %q (expected col=TYPE)", ErrScalarCastInvalid, pair)
		}
		target, err := dialects.ParseCastType(typeName)
		if err != nil {
			return nil, err
		}
		casts[col] = target
	}

	return casts, nil
}

// isValidCompression validates the compression type
func isValidCompression(compression string) bool {
	validCompressions := map[string]bool{
		"zstd": true,
		"lz4":  true,
		"gzip": true,
		"none": true,
	}
	return validCompressions[compression]
}

// isValidCompressionLevel validates compression level based on compression
// type. Level 0 selects the compressor's default.
func isValidCompressionLevel(compression string, level int) bool {
	if level == 0 {
		return true
	}
	switch compression {
	case "zstd":
		return level >= 1 && level <= 22
	case "lz4", "gzip":
		return level >= 1 && level <= 9
	default:
		return false
	}
}

func (c *Config) Validate() error {
	if c.Table1 == "" || c.Table2 == "" {
		return ErrTableRefsRequired
	}
	if len(c.PKCols) == 0 {
		return ErrPKColsRequired
	}
	if c.Limit < 0 {
		return fmt.Errorf("%w, got %d", ErrLimitInvalid, c.Limit)
	}

	// Validate compression
	if !isValidCompression(c.Compression) {
		return fmt.Errorf("%w: '%s'", ErrCompressionInvalid, c.Compression)
	}
	if !isValidCompressionLevel(c.Compression, c.CompressionLevel) {
		return fmt.Errorf("%w for compression %s: got %d", ErrCompressionLevelInvalid, c.Compression, c.CompressionLevel)
	}
	if c.Compression != "none" && c.Output == "" {
		return ErrCompressionNeedsOutput
	}

	// Validate the output target early so a bad S3 URI fails before any
	// query work happens
	if strings.HasPrefix(c.Output, "s3://") {
		if _, _, err := parseS3URI(c.Output); err != nil {
			return err
		}
	}

	// Engine-specific validation
	if c.Engine == "postgres" {
		if c.Database.User == "" {
			return ErrDatabaseUserRequired
		}
		if c.Database.Name == "" {
			return ErrDatabaseNameRequired
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("%w, got %d", ErrDatabasePortInvalid, c.Database.Port)
		}
	}

	return nil
}
