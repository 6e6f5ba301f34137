package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tidewell/tablediff/cmd/engines"
)

// DiffSummary aggregates the counters for one comparison run
type DiffSummary struct {
	RowsScanned int64
	Emitted     int64
	ValueDiffs  int64
	Table1Only  int64
	Table2Only  int64
	SkippedRows int64
	Truncated   bool
	Duration    time.Duration
}

// Differ orchestrates one table comparison: resolve both schemas, derive
// the comparison plan, run the generated join query, and stream diff
// records to the report sink.
type Differ struct {
	config  *Config
	engine  engines.Engine
	logger  *slog.Logger
	stdout  io.Writer
	ctx     context.Context // Context for cancellation checks
	summary DiffSummary
}

func NewDiffer(config *Config, engine engines.Engine, logger *slog.Logger) *Differ {
	return &Differ{
		config: config,
		engine: engine,
		logger: logger,
		stdout: os.Stdout,
	}
}

// Summary returns the counters accumulated by the last Run
func (d *Differ) Summary() DiffSummary {
	return d.summary
}

func (d *Differ) Run(ctx context.Context) error {
	d.ctx = ctx

	// The progress display would fight with the report on stdout, so it
	// only runs when the report goes elsewhere. Debug mode stays plain
	// text for better log visibility.
	if d.config.Debug || d.config.Output == "" {
		return d.runDiffProcess(ctx, nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 1)
	model := newProgressModel(cancel, d.config)
	program := tea.NewProgram(model, tea.WithoutSignalHandler(), tea.WithOutput(os.Stderr))

	go func() {
		err := d.runDiffProcess(ctx, program)
		errChan <- err
		program.Send(diffDoneMsg{err: err})
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running progress display: %w", err)
	}

	return <-errChan
}

//nolint:gocognit // orchestration function
func (d *Differ) runDiffProcess(ctx context.Context, program *tea.Program) error {
	start := time.Now()

	d.sendPhase(program, "Resolving schemas...")
	schema1, err := resolveSchema(ctx, d.engine, d.config.Table1)
	if err != nil {
		return err
	}
	schema2, err := resolveSchema(ctx, d.engine, d.config.Table2)
	if err != nil {
		return err
	}
	d.logger.Debug(fmt.Sprintf("Resolved %s (%d columns) and %s (%d columns)",
		schema1.Table, len(schema1.Columns), schema2.Table, len(schema2.Columns)))

	plan, err := buildPlan(schema1, schema2, d.config.PKCols, d.config.IgnoreCols, d.config.ScalarCasts)
	if err != nil {
		return err
	}
	d.logger.Debug(fmt.Sprintf("Comparing %d columns on key (%s)",
		len(plan.CompareCols), strings.Join(plan.PKCols, ", ")))

	query := buildComparisonQuery(d.engine.Dialect(), schema1.Table, schema2.Table, plan, d.config.Limit)
	d.logger.Debug("Generated comparison query:\n" + query)

	d.sendPhase(program, "Executing comparison query...")
	rows, err := d.engine.Query(ctx, query)
	if err != nil {
		return &QueryError{Query: query, Err: err}
	}
	defer rows.Close()

	sink, err := newReportSink(ctx, d.config, d.stdout)
	if err != nil {
		return err
	}

	d.sendPhase(program, "Scanning result rows...")
	formatter := newDiffFormatter(plan, d.config.Limit)

	for rows.Next() {
		// Check for cancellation periodically for responsiveness
		if d.summary.RowsScanned%100 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		if formatter.LimitReached() {
			d.summary.Truncated = true
			break
		}

		d.summary.RowsScanned++
		record := formatter.Format(rows.Row())
		if record == nil {
			d.summary.SkippedRows++
			continue
		}

		if err := sink.WriteRecord(record); err != nil {
			return err
		}

		d.summary.Emitted++
		switch record.Status {
		case StatusValueDifferences:
			d.summary.ValueDiffs++
		case StatusTable1Only:
			d.summary.Table1Only++
		case StatusTable2Only:
			d.summary.Table2Only++
		}

		if program != nil && d.summary.Emitted%100 == 0 {
			program.Send(progressMsg{scanned: d.summary.RowsScanned, emitted: d.summary.Emitted})
		}
	}
	if err := rows.Err(); err != nil {
		return &QueryError{Query: query, Err: err}
	}

	if err := sink.Close(); err != nil {
		return err
	}

	d.summary.Duration = time.Since(start)
	d.printSummary(sink.Target())

	return nil
}

func (d *Differ) sendPhase(program *tea.Program, phase string) {
	if program != nil {
		program.Send(phaseMsg(phase))
		return
	}
	d.logger.Debug(phase)
}

func (d *Differ) printSummary(target string) {
	s := d.summary

	d.logger.Info("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	d.logger.Info("📈 Summary")
	d.logger.Info(fmt.Sprintf("🔍 Rows scanned: %d", s.RowsScanned))
	d.logger.Info(fmt.Sprintf("📝 Diff records: %d", s.Emitted))
	d.logger.Info(fmt.Sprintf("  ↔️  Value differences: %d", s.ValueDiffs))
	d.logger.Info(fmt.Sprintf("  ⬅️  Only in table 1: %d", s.Table1Only))
	d.logger.Info(fmt.Sprintf("  ➡️  Only in table 2: %d", s.Table2Only))
	if s.SkippedRows > 0 {
		d.logger.Info(fmt.Sprintf("⏭️  Skipped rows: %d", s.SkippedRows))
	}
	if s.Truncated {
		d.logger.Info(fmt.Sprintf("✂️  Output truncated at limit %d", d.config.Limit))
	}
	d.logger.Info(fmt.Sprintf("📦 Report written to %s", target))
	d.logger.Info(fmt.Sprintf("⏱️  Completed in %s", s.Duration.Round(time.Millisecond)))
}
