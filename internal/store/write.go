package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/tickmerge/internal/merge"
	"github.com/roach88/tickmerge/internal/stage"
)

// Batch is a raw client upload.
type Batch struct {
	Digest      string
	ClientID    int
	ChallengeID string
	Stage       stage.Stage
	Body        []byte
}

// Run is one stored merge.
type Run struct {
	ID  string
	Seq int64

	// Digest identifies the run's inputs. See ir.RunDigest.
	Digest      string
	ChallengeID string
	Stage       stage.Stage

	// Settings is the JSON form of the settings the run was merged with.
	Settings json.RawMessage

	ResultDigest   string
	TimelineDigest string
	MergedCount    int
	UnmergedCount  int
	SkippedCount   int
	Alerts         []merge.Alert
	BatchDigests   []string
	Clients        []merge.Client
}

// WriteBatch stores a raw batch. Writing a batch that already exists is a
// no-op and reports inserted=false.
func (s *Store) WriteBatch(ctx context.Context, b Batch) (inserted bool, err error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (digest, client_id, challenge_id, stage, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(digest) DO NOTHING
	`, b.Digest, b.ClientID, b.ChallengeID, b.Stage.String(), b.Body)
	if err != nil {
		return false, fmt.Errorf("write batch %s: %w", b.Digest, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write batch %s: %w", b.Digest, err)
	}
	return n > 0, nil
}

// WriteRun stores a run and its client records. Runs are deduplicated by
// digest: if a run with the same digest exists, nothing is written and its
// id is returned with inserted=false. A run without an id gets a new one.
//
// Every batch the run references must already be stored.
func (s *Store) WriteRun(ctx context.Context, run Run) (id string, inserted bool, err error) {
	if run.ID == "" {
		if run.ID, err = NewRunID(); err != nil {
			return "", false, fmt.Errorf("write run: %w", err)
		}
	}

	alerts, err := json.Marshal(nonNil(run.Alerts))
	if err != nil {
		return "", false, fmt.Errorf("write run: alerts: %w", err)
	}
	settings := run.Settings
	if len(settings) == 0 {
		settings = json.RawMessage("{}")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, run_digest, challenge_id, stage, settings, result_digest, timeline_digest,
		 merged_count, unmerged_count, skipped_count, alerts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_digest) DO NOTHING
	`,
		run.ID,
		run.Digest,
		run.ChallengeID,
		run.Stage.String(),
		string(settings),
		run.ResultDigest,
		run.TimelineDigest,
		run.MergedCount,
		run.UnmergedCount,
		run.SkippedCount,
		string(alerts),
	)
	if err != nil {
		return "", false, fmt.Errorf("write run: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("write run: rows affected: %w", err)
	}
	if n == 0 {
		var existing string
		err := tx.QueryRowContext(ctx, `SELECT id FROM runs WHERE run_digest = ?`, run.Digest).Scan(&existing)
		if err != nil {
			return "", false, fmt.Errorf("write run: lookup existing: %w", err)
		}
		return existing, false, nil
	}

	if err := writeRunChildren(ctx, tx, run); err != nil {
		return "", false, fmt.Errorf("write run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("write run: commit: %w", err)
	}
	return run.ID, true, nil
}

func writeRunChildren(ctx context.Context, tx *sql.Tx, run Run) error {
	for _, digest := range run.BatchDigests {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_batches (run_id, batch_digest)
			VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, run.ID, digest)
		if err != nil {
			return fmt.Errorf("batch %s: %w", digest, err)
		}
	}

	for _, c := range run.Clients {
		record, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("client %d: marshal: %w", c.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_clients (run_id, client_id, status, classification, sequence_number, record)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, run.ID, c.ID, string(c.Status), string(c.Classification), c.SequenceNumber, string(record))
		if err != nil {
			return fmt.Errorf("client %d: %w", c.ID, err)
		}
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
