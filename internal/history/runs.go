package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/adna-downsample/internal/genotype"
)

// Run is one output produced by the pipeline.
type Run struct {
	RecordedAt time.Time
	Input      FileFingerprint
	Output     string
	Operation  string
	Percentage *float64 // nil when no downsampling was applied
	Seed       int64
	Before     genotype.Stats
	After      genotype.Stats
}

// Summary aggregates runs sharing an operation and percentage.
type Summary struct {
	Operation          string
	Percentage         *float64
	Runs               int64
	MeanMissingnessPct float64
	MinMissingnessPct  float64
	MaxMissingnessPct  float64
}

// RecordRuns batch-inserts runs using the Appender API.
func (s *Store) RecordRuns(runs []Run) error {
	if len(runs) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "runs")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range runs {
		var pct any
		if r.Percentage != nil {
			pct = *r.Percentage
		}
		if err := appender.AppendRow(
			r.RecordedAt.UTC(), r.Input.Path, r.Input.Size, r.Input.ModTime.UTC(),
			r.Output, r.Operation, pct, r.Seed,
			int64(r.Before.Total), int64(r.Before.Missing), int64(r.After.Missing),
			r.Before.MissingnessPct, r.After.MissingnessPct,
		); err != nil {
			return fmt.Errorf("append run: %w", err)
		}
	}

	return appender.Flush()
}

// Runs returns recorded runs in recording order. An empty input returns
// runs for every input file.
func (s *Store) Runs(input string) ([]Run, error) {
	query, args := filterByInput(`SELECT
		recorded_at, input, input_size, input_mod_time, output, operation,
		percentage, seed, total, missing_before, missing_after,
		missingness_before, missingness_after
		FROM runs`, input)
	rows, err := s.db.Query(query+" ORDER BY recorded_at, output", args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                          Run
			pct                        sql.NullFloat64
			total, missBefore, missAft int64
		)
		if err := rows.Scan(
			&r.RecordedAt, &r.Input.Path, &r.Input.Size, &r.Input.ModTime, &r.Output, &r.Operation,
			&pct, &r.Seed, &total, &missBefore, &missAft,
			&r.Before.MissingnessPct, &r.After.MissingnessPct,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if pct.Valid {
			v := pct.Float64
			r.Percentage = &v
		}
		r.Before.Total, r.After.Total = int(total), int(total)
		r.Before.Missing, r.After.Missing = int(missBefore), int(missAft)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Summarize aggregates the missingness reached per operation and
// percentage for one input, or all inputs when input is empty.
func (s *Store) Summarize(input string) ([]Summary, error) {
	query, args := filterByInput(`SELECT
		operation, percentage, COUNT(*),
		AVG(missingness_after), MIN(missingness_after), MAX(missingness_after)
		FROM runs`, input)
	rows, err := s.db.Query(query+" GROUP BY operation, percentage ORDER BY operation, percentage NULLS FIRST", args...)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum Summary
			pct sql.NullFloat64
		)
		if err := rows.Scan(&sum.Operation, &pct, &sum.Runs,
			&sum.MeanMissingnessPct, &sum.MinMissingnessPct, &sum.MaxMissingnessPct); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if pct.Valid {
			v := pct.Float64
			sum.Percentage = &v
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary: %w", err)
	}
	return out, nil
}

// filterByInput restricts query to one input file when input is set.
func filterByInput(query, input string) (string, []any) {
	if input == "" {
		return query, nil
	}
	return query + " WHERE input = ?", []any{input}
}

// ClearRuns removes all recorded runs.
func (s *Store) ClearRuns() error {
	_, err := s.db.Exec("DELETE FROM runs")
	return err
}
