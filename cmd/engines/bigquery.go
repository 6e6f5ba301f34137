package engines

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/tidewell/tablediff/cmd/dialects"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// BigQueryEngine runs comparisons against Google BigQuery
type BigQueryEngine struct {
	client  *bigquery.Client
	dialect dialects.BigQuery
}

// OpenBigQuery creates a BigQuery client. An empty project falls back to
// project detection from application default credentials.
func OpenBigQuery(ctx context.Context, project string) (*BigQueryEngine, error) {
	if project == "" {
		project = bigquery.DetectProjectID
	}
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigquery client: %w", err)
	}
	return &BigQueryEngine{client: client}, nil
}

// Dialect returns the BigQuery dialect
func (e *BigQueryEngine) Dialect() dialects.Dialect {
	return e.dialect
}

// ResolveTable expands dataset.table references with the client's default
// project; project.dataset.table references pass through unchanged.
func (e *BigQueryEngine) ResolveTable(ref string) (string, error) {
	ref, err := validateDottedRef(ref, 3)
	if err != nil {
		return "", err
	}
	parts := strings.Split(ref, ".")
	switch len(parts) {
	case 3:
		return ref, nil
	case 2:
		return e.client.Project() + "." + ref, nil
	default:
		return "", fmt.Errorf("%w: %s (expected dataset.table or project.dataset.table)", ErrInvalidTableRef, ref)
	}
}

// TableColumns fetches the table's schema through the metadata API
func (e *BigQueryEngine) TableColumns(ctx context.Context, table string) ([]Column, error) {
	parts := strings.Split(table, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTableRef, table)
	}

	md, err := e.client.DatasetInProject(parts[0], parts[1]).Table(parts[2]).Metadata(ctx)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, table)
		}
		return nil, fmt.Errorf("failed to fetch table metadata: %w", err)
	}

	cols := make([]Column, 0, len(md.Schema))
	for _, field := range md.Schema {
		cols = append(cols, Column{Name: field.Name, Type: string(field.Type)})
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, table)
	}
	return cols, nil
}

// Query runs a comparison query and returns its row iterator
func (e *BigQueryEngine) Query(ctx context.Context, query string) (Rows, error) {
	it, err := e.client.Query(query).Read(ctx)
	if err != nil {
		return nil, err
	}
	return &bigqueryRows{it: it}, nil
}

// Close closes the client
func (e *BigQueryEngine) Close() error {
	return e.client.Close()
}

// bigqueryRows adapts *bigquery.RowIterator to the Rows interface
type bigqueryRows struct {
	it      *bigquery.RowIterator
	current map[string]any
	err     error
}

func (r *bigqueryRows) Next() bool {
	var row map[string]bigquery.Value
	err := r.it.Next(&row)
	if errors.Is(err, iterator.Done) {
		return false
	}
	if err != nil {
		r.err = err
		return false
	}

	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = normalizeBigQueryValue(v)
	}
	r.current = out
	return true
}

func (r *bigqueryRows) Row() map[string]any {
	return r.current
}

func (r *bigqueryRows) Err() error {
	return r.err
}

func (r *bigqueryRows) Close() error {
	return nil
}

// normalizeBigQueryValue converts driver-specific value types (civil dates and
// times, NUMERIC rationals) into JSON-safe scalars
func normalizeBigQueryValue(v bigquery.Value) any {
	switch val := v.(type) {
	case civil.Date:
		return val.String()
	case civil.Time:
		return val.String()
	case civil.DateTime:
		return val.String()
	case *big.Rat:
		return ratString(val)
	case []byte:
		return string(val)
	default:
		return val
	}
}

// ratString renders a NUMERIC value as a plain decimal string with trailing
// zeros trimmed
func ratString(r *big.Rat) string {
	s := r.FloatString(9)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
