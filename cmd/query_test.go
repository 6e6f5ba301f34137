package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/tidewell/tablediff/cmd/dialects"
)

func TestBuildComparisonQuery(t *testing.T) {
	t.Run("DuckDBSingleKey", func(t *testing.T) {
		plan := &ComparisonPlan{
			PKCols:      []string{"id"},
			CompareCols: []string{"amount"},
		}

		got := buildComparisonQuery(dialects.DuckDB{}, "orders_v1", "orders_v2", plan, 0)
		want := `WITH table1_prepared AS (
    SELECT
        t1."id" AS "t1_id",
        t1."amount" AS "t1_amount"
    FROM "orders_v1" t1
), table2_prepared AS (
    SELECT
        t2."id" AS "t2_id",
        t2."amount" AS "t2_amount"
    FROM "orders_v2" t2
)
SELECT
    COALESCE(t1."t1_id", t2."t2_id") AS "id",
    t1.*,
    t2.*
FROM table1_prepared t1
FULL OUTER JOIN table2_prepared t2
    ON t1."t1_id" = t2."t2_id"
WHERE (t1."t1_amount" IS DISTINCT FROM t2."t2_amount")
    OR (t2."t2_id" IS NULL)
    OR (t1."t1_id" IS NULL)`

		if got != want {
			t.Fatalf("unexpected query:\n--- got ---\n%s\n--- want ---\n%s", got, want)
		}
	})

	t.Run("CastAppliedToBothSides", func(t *testing.T) {
		plan := &ComparisonPlan{
			PKCols:      []string{"id"},
			CompareCols: []string{"amount"},
			Casts:       map[string]dialects.CastType{"amount": dialects.CastFloat64},
		}

		query := buildComparisonQuery(dialects.DuckDB{}, "t1", "t2", plan, 0)

		for _, fragment := range []string{
			`CAST(t1."amount" AS DOUBLE) AS "t1_amount"`,
			`CAST(t2."amount" AS DOUBLE) AS "t2_amount"`,
		} {
			if !strings.Contains(query, fragment) {
				t.Errorf("query missing %q:\n%s", fragment, query)
			}
		}
	})

	t.Run("CastNeverAppliedToKeyColumns", func(t *testing.T) {
		plan := &ComparisonPlan{
			PKCols:      []string{"id"},
			CompareCols: []string{"amount"},
			Casts:       map[string]dialects.CastType{"amount": dialects.CastString},
		}

		query := buildComparisonQuery(dialects.DuckDB{}, "t1", "t2", plan, 0)

		if !strings.Contains(query, `t1."id" AS "t1_id"`) {
			t.Errorf("key column should be selected raw:\n%s", query)
		}
		if strings.Contains(query, `CAST(t1."id"`) {
			t.Errorf("key column must not be cast:\n%s", query)
		}
	})

	t.Run("CompositeKey", func(t *testing.T) {
		plan := &ComparisonPlan{
			PKCols:      []string{"region", "id"},
			CompareCols: []string{"amount"},
		}

		query := buildComparisonQuery(dialects.DuckDB{}, "t1", "t2", plan, 0)

		for _, fragment := range []string{
			`ON t1."t1_region" = t2."t2_region" AND t1."t1_id" = t2."t2_id"`,
			`COALESCE(t1."t1_region", t2."t2_region") AS "region"`,
			`COALESCE(t1."t1_id", t2."t2_id") AS "id"`,
			`(t2."t2_region" IS NULL AND t2."t2_id" IS NULL)`,
			`(t1."t1_region" IS NULL AND t1."t1_id" IS NULL)`,
		} {
			if !strings.Contains(query, fragment) {
				t.Errorf("query missing %q:\n%s", fragment, query)
			}
		}
	})

	t.Run("PresenceOnlyPredicate", func(t *testing.T) {
		// Empty compare set: the query still detects one-sided rows
		plan := &ComparisonPlan{PKCols: []string{"id"}}

		query := buildComparisonQuery(dialects.DuckDB{}, "t1", "t2", plan, 0)

		wantWhere := `WHERE (t2."t2_id" IS NULL)
    OR (t1."t1_id" IS NULL)`
		if !strings.Contains(query, wantWhere) {
			t.Errorf("query missing presence-only predicate:\n%s", query)
		}
		if strings.Contains(query, "IS DISTINCT FROM") {
			t.Errorf("no distinct checks expected with empty compare set:\n%s", query)
		}
	})

	t.Run("LimitAppended", func(t *testing.T) {
		plan := &ComparisonPlan{
			PKCols:      []string{"id"},
			CompareCols: []string{"amount"},
		}

		query := buildComparisonQuery(dialects.DuckDB{}, "t1", "t2", plan, 50)
		if !strings.HasSuffix(query, "\nLIMIT 50") {
			t.Errorf("expected trailing LIMIT 50:\n%s", query)
		}

		unlimited := buildComparisonQuery(dialects.DuckDB{}, "t1", "t2", plan, 0)
		if strings.Contains(unlimited, "LIMIT") {
			t.Errorf("limit 0 must not render a LIMIT clause:\n%s", unlimited)
		}
	})

	t.Run("BigQueryTableQuoting", func(t *testing.T) {
		plan := &ComparisonPlan{
			PKCols:      []string{"id"},
			CompareCols: []string{"amount"},
		}

		query := buildComparisonQuery(dialects.BigQuery{}, "proj.ds.orders_v1", "proj.ds.orders_v2", plan, 0)

		// The whole dotted reference sits inside a single pair of backticks
		if !strings.Contains(query, "FROM `proj.ds.orders_v1` t1") {
			t.Errorf("unexpected table quoting:\n%s", query)
		}
		if !strings.Contains(query, "t1.`t1_amount` IS DISTINCT FROM t2.`t2_amount`") {
			t.Errorf("unexpected identifier quoting:\n%s", query)
		}
	})

	t.Run("PostgresCastNames", func(t *testing.T) {
		plan := &ComparisonPlan{
			PKCols:      []string{"id"},
			CompareCols: []string{"amount", "payload"},
			Casts: map[string]dialects.CastType{
				"amount":  dialects.CastFloat64,
				"payload": dialects.CastJSON,
			},
		}

		query := buildComparisonQuery(dialects.Postgres{}, "public.orders", "staging.orders", plan, 0)

		for _, fragment := range []string{
			`FROM "public"."orders" t1`,
			`CAST(t1."amount" AS DOUBLE PRECISION)`,
			`CAST(t1."payload" AS JSONB)`,
		} {
			if !strings.Contains(query, fragment) {
				t.Errorf("query missing %q:\n%s", fragment, query)
			}
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		plan := &ComparisonPlan{
			PKCols:      []string{"region", "id"},
			CompareCols: []string{"amount", "name", "status"},
			Casts: map[string]dialects.CastType{
				"amount": dialects.CastFloat64,
				"status": dialects.CastString,
			},
		}

		first := buildComparisonQuery(dialects.DuckDB{}, "t1", "t2", plan, 10)
		for i := 0; i < 5; i++ {
			if got := buildComparisonQuery(dialects.DuckDB{}, "t1", "t2", plan, 10); got != first {
				t.Fatal("query text changed between runs with identical inputs")
			}
		}
	})
}

func TestQueryError(t *testing.T) {
	inner := errors.New("relation does not exist")
	err := &QueryError{Query: "SELECT 1", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("QueryError should unwrap to the engine error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "relation does not exist") {
		t.Errorf("message missing cause: %s", msg)
	}
	if !strings.Contains(msg, "SELECT 1") {
		t.Errorf("message missing query text: %s", msg)
	}
}
