package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/tickmerge/internal/merge"
	"github.com/roach88/tickmerge/internal/stage"
)

const runColumns = `seq, id, run_digest, challenge_id, stage, settings, result_digest, timeline_digest,
	merged_count, unmerged_count, skipped_count, alerts`

// ReadRun returns the run with the given id, or ErrNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return s.readRun(ctx, row, id)
}

// FindRun returns the run with the given input digest, or ErrNotFound.
func (s *Store) FindRun(ctx context.Context, digest string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_digest = ?`, digest)
	return s.readRun(ctx, row, digest)
}

func (s *Store) readRun(ctx context.Context, row *sql.Row, key string) (Run, error) {
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", key, err)
	}
	if err := s.loadRunChildren(ctx, &run); err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", key, err)
	}
	return run, nil
}

// ListRuns returns every run in write order. It returns an empty slice, not
// nil, when there are none.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list runs: iterate: %w", err)
	}
	// The single connection must be released before the child queries.
	rows.Close()

	for i := range runs {
		if err := s.loadRunChildren(ctx, &runs[i]); err != nil {
			return nil, fmt.Errorf("list runs: %s: %w", runs[i].ID, err)
		}
	}
	return runs, nil
}

// ReadRunBatches returns the raw batches of a run ordered by client id.
func (s *Store) ReadRunBatches(ctx context.Context, runID string) ([]Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.digest, b.client_id, b.challenge_id, b.stage, b.body
		FROM run_batches rb
		JOIN batches b ON b.digest = rb.batch_digest
		WHERE rb.run_id = ?
		ORDER BY b.client_id ASC, b.digest COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read run batches %s: %w", runID, err)
	}
	defer rows.Close()

	batches := []Batch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("read run batches %s: %w", runID, err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read run batches %s: iterate: %w", runID, err)
	}
	return batches, nil
}

// ReadBatch returns the batch with the given digest, or ErrNotFound.
func (s *Store) ReadBatch(ctx context.Context, digest string) (Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT digest, client_id, challenge_id, stage, body
		FROM batches
		WHERE digest = ?
	`, digest)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, fmt.Errorf("read batch %s: %w", digest, ErrNotFound)
	}
	if err != nil {
		return Batch{}, fmt.Errorf("read batch %s: %w", digest, err)
	}
	return b, nil
}

func (s *Store) loadRunChildren(ctx context.Context, run *Run) error {
	digests, err := s.queryStrings(ctx, `
		SELECT batch_digest FROM run_batches
		WHERE run_id = ?
		ORDER BY batch_digest COLLATE BINARY ASC
	`, run.ID)
	if err != nil {
		return fmt.Errorf("batches: %w", err)
	}
	run.BatchDigests = digests

	records, err := s.queryStrings(ctx, `
		SELECT record FROM run_clients
		WHERE run_id = ?
		ORDER BY sequence_number ASC, client_id ASC
	`, run.ID)
	if err != nil {
		return fmt.Errorf("clients: %w", err)
	}
	run.Clients = make([]merge.Client, len(records))
	for i, record := range records {
		if err := json.Unmarshal([]byte(record), &run.Clients[i]); err != nil {
			return fmt.Errorf("client record: %w", err)
		}
	}
	return nil
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run              Run
		stageName        string
		settings, alerts string
	)
	err := row.Scan(
		&run.Seq,
		&run.ID,
		&run.Digest,
		&run.ChallengeID,
		&stageName,
		&settings,
		&run.ResultDigest,
		&run.TimelineDigest,
		&run.MergedCount,
		&run.UnmergedCount,
		&run.SkippedCount,
		&alerts,
	)
	if err != nil {
		return Run{}, err
	}

	if run.Stage, err = stage.Parse(stageName); err != nil {
		return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	run.Settings = json.RawMessage(settings)
	if err := json.Unmarshal([]byte(alerts), &run.Alerts); err != nil {
		return Run{}, fmt.Errorf("run %s: alerts: %w", run.ID, err)
	}
	return run, nil
}

func scanBatch(row scanner) (Batch, error) {
	var (
		b         Batch
		stageName string
	)
	if err := row.Scan(&b.Digest, &b.ClientID, &b.ChallengeID, &stageName, &b.Body); err != nil {
		return Batch{}, err
	}
	st, err := stage.Parse(stageName)
	if err != nil {
		return Batch{}, fmt.Errorf("batch %s: %w", b.Digest, err)
	}
	b.Stage = st
	return b, nil
}
