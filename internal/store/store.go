// Package store persists evaluation runs in SQLite so that thresholds
// selected on a training split can be recalled when evaluating other splits.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	szeval "github.com/jamesainslie/go-szeval"
	"github.com/jamesainslie/go-szeval/metrics"
	"github.com/jamesainslie/go-szeval/sweep"
)

// ErrNotFound is returned when no run matches a query.
var ErrNotFound = errors.New("store: not found")

// Run is the persisted summary of one evaluated report.
type Run struct {
	RunID          string          `json:"run_id"`
	Dataset        string          `json:"dataset"`
	Variant        szeval.Variant  `json:"variant"`
	Lookback       int             `json:"lookback"`
	Threshold      float64         `json:"threshold"`
	ThresholdIndex int             `json:"threshold_index"`
	Reason         sweep.Reason    `json:"reason"`
	TotalSeizures  int             `json:"total_seizures"`
	TotalDuration  float64         `json:"total_duration"`
	Advance        float64         `json:"window_advance"`
	Window         *metrics.Result `json:"window,omitempty"`
	CreatedAt      int64           `json:"created_at"`
}

// Store wraps a SQLite database holding evaluation runs.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := migrateUp(db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SchemaVersion reports the applied migration version.
func (s *Store) SchemaVersion() (uint, error) {
	v, dirty, err := migrateVersion(s.db, s.logger)
	if err != nil {
		return 0, err
	}
	if dirty {
		return v, fmt.Errorf("store: schema version %d is dirty", v)
	}
	return v, nil
}

// SaveReport persists rep with its sweep table and per-recording rows and
// returns the new run ID.
func (s *Store) SaveReport(ctx context.Context, rep *szeval.Report) (string, error) {
	runID := uuid.New().String()
	windowJSON, err := json.Marshal(rep.Window)
	if err != nil {
		return "", fmt.Errorf("encode window report: %w", err)
	}

	var seizures int
	var duration, advance float64
	if rep.Sweep != nil {
		seizures = rep.Sweep.TotalSeizures
		duration = rep.Sweep.TotalDuration
		advance = rep.Sweep.Advance
	} else {
		seizures = rep.Sequence.Total.Seizures
		duration = rep.Sequence.Total.Duration
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, dataset, variant, lookback, threshold, threshold_index, reason,
			total_seizures, total_duration, window_advance, window_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rep.Dataset, string(rep.Variant), rep.Lookback,
		rep.Selection.Threshold, rep.Selection.Index, string(rep.Selection.Reason),
		seizures, duration, advance, string(windowJSON), time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	if sw := rep.Sweep; sw != nil {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sweep_rows (
				run_id, threshold_index, threshold, nfps, nfp_samples, latency_samples, ncorrect
			) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return "", fmt.Errorf("prepare sweep rows: %w", err)
		}
		defer stmt.Close()
		for t, th := range sw.Thresholds {
			if _, err := stmt.ExecContext(ctx, runID, t, th,
				sw.FalsePositiveEvents[t], sw.FalsePositiveSamples[t],
				sw.LatencySamples[t], sw.Correct[t]); err != nil {
				return "", fmt.Errorf("insert sweep row %d: %w", t, err)
			}
		}
	}

	for _, r := range rep.Sequence.Rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recording_results (
				run_id, filename, nfps, latency_samples, ncorrect,
				nfp_samples, ntp_samples, nseizures, duration
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, r.Filename, r.FalsePositiveEvents, r.LatencySamples, r.Correct,
			r.FalsePositiveSamples, r.TruePositiveSamples, r.Seizures, r.Duration,
		)
		if err != nil {
			return "", fmt.Errorf("insert recording %s: %w", r.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("saved run", "run_id", runID, "dataset", rep.Dataset, "variant", rep.Variant)
	return runID, nil
}

const runColumns = `run_id, dataset, variant, lookback, threshold, threshold_index, reason,
	total_seizures, total_duration, window_advance, window_json, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var variant, reason string
	var windowJSON sql.NullString
	if err := row.Scan(&r.RunID, &r.Dataset, &variant, &r.Lookback, &r.Threshold,
		&r.ThresholdIndex, &reason, &r.TotalSeizures, &r.TotalDuration, &r.Advance,
		&windowJSON, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Variant = szeval.Variant(variant)
	r.Reason = sweep.Reason(reason)
	if windowJSON.Valid && windowJSON.String != "" {
		var m metrics.Result
		if err := json.Unmarshal([]byte(windowJSON.String), &m); err != nil {
			return nil, fmt.Errorf("decode window report of run %s: %w", r.RunID, err)
		}
		r.Window = &m
	}
	return &r, nil
}

// Get returns a single run by ID.
func (s *Store) Get(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return r, nil
}

// Latest returns the most recent run for dataset and variant.
func (s *Store) Latest(ctx context.Context, dataset string, v szeval.Variant) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE dataset = ? AND variant = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, dataset, string(v))
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, dataset, v)
	}
	if err != nil {
		return nil, fmt.Errorf("latest run %s/%s: %w", dataset, v, err)
	}
	return r, nil
}

// LatestThreshold returns the threshold of the most recent run for dataset
// and variant.
func (s *Store) LatestThreshold(ctx context.Context, dataset string, v szeval.Variant) (float64, error) {
	r, err := s.Latest(ctx, dataset, v)
	if err != nil {
		return 0, err
	}
	return r.Threshold, nil
}

// ListByDataset returns every run of dataset, newest first.
func (s *Store) ListByDataset(ctx context.Context, dataset string) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE dataset = ?
		ORDER BY created_at DESC, rowid DESC`, dataset)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Sweep reloads the count columns of a run's sweep table and re-derives its
// rates from the run's set totals.
func (s *Store) Sweep(ctx context.Context, runID string) (*sweep.Result, error) {
	run, err := s.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT threshold, nfps, nfp_samples, latency_samples, ncorrect
		FROM sweep_rows
		WHERE run_id = ?
		ORDER BY threshold_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query sweep rows: %w", err)
	}
	defer rows.Close()

	res := &sweep.Result{
		TotalSeizures: run.TotalSeizures,
		TotalDuration: run.TotalDuration,
		Advance:       run.Advance,
	}
	for rows.Next() {
		var th float64
		var nfps, nfp, lat, correct int
		if err := rows.Scan(&th, &nfps, &nfp, &lat, &correct); err != nil {
			return nil, err
		}
		res.Thresholds = append(res.Thresholds, th)
		res.FalsePositiveEvents = append(res.FalsePositiveEvents, nfps)
		res.FalsePositiveSamples = append(res.FalsePositiveSamples, nfp)
		res.LatencySamples = append(res.LatencySamples, lat)
		res.Correct = append(res.Correct, correct)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	res.Derive()
	return res, nil
}

// Recordings returns the per-recording rows of a run ordered by filename.
func (s *Store) Recordings(ctx context.Context, runID string) ([]szeval.SequenceRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT filename, nfps, latency_samples, ncorrect, nfp_samples, ntp_samples, nseizures, duration
		FROM recording_results
		WHERE run_id = ?
		ORDER BY filename`, runID)
	if err != nil {
		return nil, fmt.Errorf("query recording results: %w", err)
	}
	defer rows.Close()

	var out []szeval.SequenceRow
	for rows.Next() {
		var r szeval.SequenceRow
		if err := rows.Scan(&r.Filename, &r.FalsePositiveEvents, &r.LatencySamples, &r.Correct,
			&r.FalsePositiveSamples, &r.TruePositiveSamples, &r.Seizures, &r.Duration); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes a run and its child rows.
func (s *Store) Delete(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	return nil
}
