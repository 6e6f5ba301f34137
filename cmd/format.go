package cmd

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"time"
)

// Diff record statuses, one per output line.
const (
	StatusValueDifferences = "value_differences"
	StatusTable1Only       = "present_in_table1_only"
	StatusTable2Only       = "present_in_table2_only"
)

// DiffRecord is one output unit: the key values identifying a row plus the
// columns that differ between the two tables. Records are built per result
// row, written, and discarded.
type DiffRecord struct {
	PKCols []string // key field order for serialization
	PKVals map[string]any
	Diffs  map[string][2]any // column -> (table1 value, table2 value)
	Status string
}

// MarshalJSON writes the record with the key fields first (in key order),
// then the diff mapping with sorted column names and "_status" last.
// Output lines are byte-stable for a given input, which keeps diffs of
// diffs meaningful.
func (r *DiffRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for _, pk := range r.PKCols {
		if err := appendField(&buf, pk, r.PKVals[pk]); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
	}

	buf.WriteString(`"diffs":{`)
	cols := make([]string, 0, len(r.Diffs))
	for col := range r.Diffs {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		if err := appendField(&buf, col, r.Diffs[col]); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
	}
	if err := appendField(&buf, "_status", r.Status); err != nil {
		return nil, err
	}
	buf.WriteString("}}")

	return buf.Bytes(), nil
}

func appendField(buf *bytes.Buffer, name string, value any) error {
	key, err := json.Marshal(name)
	if err != nil {
		return err
	}
	buf.Write(key)
	buf.WriteByte(':')

	val, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(val)
	return nil
}

// diffFormatter turns joined result rows into diff records. One-sided
// presence is derived from the key sentinels the full outer join leaves
// behind, and value equality is re-checked client-side, so a row the
// predicate let through with no actual differences is dropped rather than
// emitted empty.
type diffFormatter struct {
	plan    *ComparisonPlan
	limit   int
	emitted int
}

func newDiffFormatter(plan *ComparisonPlan, limit int) *diffFormatter {
	return &diffFormatter{plan: plan, limit: limit}
}

// LimitReached reports whether the configured record limit has been hit.
// The generated query already carries a LIMIT, but the formatter enforces
// the cap independently so a misbehaving engine cannot overrun it.
func (f *diffFormatter) LimitReached() bool {
	return f.limit > 0 && f.emitted >= f.limit
}

// Format builds the diff record for one result row. It returns nil when
// the row carries no differences and should be skipped.
func (f *diffFormatter) Format(row map[string]any) *DiffRecord {
	record := &DiffRecord{
		PKCols: f.plan.PKCols,
		PKVals: make(map[string]any, len(f.plan.PKCols)),
		Diffs:  make(map[string][2]any),
	}
	for _, pk := range f.plan.PKCols {
		record.PKVals[pk] = row[pk]
	}

	t1Present := anyKeyNotNull(row, "t1_", f.plan.PKCols)
	t2Present := anyKeyNotNull(row, "t2_", f.plan.PKCols)

	switch {
	case t1Present && !t2Present:
		record.Status = StatusTable1Only
		for _, col := range f.plan.CompareCols {
			record.Diffs[col] = [2]any{row["t1_"+col], nil}
		}
	case t2Present && !t1Present:
		record.Status = StatusTable2Only
		for _, col := range f.plan.CompareCols {
			record.Diffs[col] = [2]any{nil, row["t2_"+col]}
		}
	default:
		for _, col := range f.plan.CompareCols {
			v1 := row["t1_"+col]
			v2 := row["t2_"+col]
			if !valuesEqual(v1, v2) {
				record.Diffs[col] = [2]any{v1, v2}
			}
		}
		if len(record.Diffs) == 0 {
			// The predicate should not let a fully matching row
			// through; if one arrives anyway, skip it instead of
			// emitting an empty record.
			return nil
		}
		record.Status = StatusValueDifferences
	}

	f.emitted++
	return record
}

func anyKeyNotNull(row map[string]any, prefix string, pkCols []string) bool {
	for _, pk := range pkCols {
		if row[prefix+pk] != nil {
			return true
		}
	}
	return false
}

// valuesEqual reports whether two post-cast values from the engine are
// equal under NULL-safe semantics: two NULLs match, a lone NULL does not.
// Timestamps compare by instant so the same moment in different zones is
// not a difference.
func valuesEqual(v1, v2 any) bool {
	if v1 == nil && v2 == nil {
		return true
	}
	if v1 == nil || v2 == nil {
		return false
	}
	if t1, ok := v1.(time.Time); ok {
		t2, ok := v2.(time.Time)
		return ok && t1.Equal(t2)
	}
	return reflect.DeepEqual(v1, v2)
}
