package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tickmerge/internal/config"
	"github.com/roach88/tickmerge/internal/observe"
	"github.com/roach88/tickmerge/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID        string `json:"run_id"`
	ChallengeID  string `json:"challenge_id"`
	Stage        string `json:"stage"`
	Batches      int    `json:"batches"`
	ResultDigest string `json:"result_digest"`

	// Replayed is the digest of the first re-merge.
	Replayed string `json:"replayed_digest"`

	// InputsMatch reports whether the stored batches and settings still
	// hash to the run's digest.
	InputsMatch   bool `json:"inputs_match"`
	Deterministic bool `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-merge stored runs and verify determinism",
		Long: `Re-merge stored runs from their raw batches and verify determinism.

Each run is merged twice with the settings it was stored with. A run is
deterministic when both merges hash to the stored result digest.

Exit codes:
  0 - All runs are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, unknown run, etc.)

Examples:
  tickmerge replay --db ./tickmerge.db
  tickmerge replay --db ./tickmerge.db --run 0f8c2a...
  tickmerge replay --db ./tickmerge.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sess, err := newSession(ctx, opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.close(ctx)

	st, err := store.Open(ctx, opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var runs []store.Run
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if errors.Is(err, store.ErrNotFound) {
			return runNotFound(opts.Format, cmd, opts.RunID)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		runs = []store.Run{run}
	} else {
		runs, err = st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}
	for _, run := range runs {
		rr, err := replayRun(ctx, st, run, sess.obs)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", run.ID), err)
		}
		result.Runs = append(result.Runs, rr)
		if !rr.Deterministic {
			result.AllDeterministic = false
		}
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if f.JSON() {
		var failure *CLIError
		if !result.AllDeterministic {
			failure = &CLIError{Code: ErrCodeDeterminism, Message: "determinism verification failed"}
		}
		if err := f.Result(result, failure); err != nil {
			return err
		}
	} else {
		writeReplayText(cmd, result)
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// replayRun re-merges one stored run twice from its raw batches.
func replayRun(ctx context.Context, st *store.Store, run store.Run, obs observe.Observer) (ReplayRunResult, error) {
	rr := ReplayRunResult{
		RunID:        run.ID,
		ChallengeID:  run.ChallengeID,
		Stage:        run.Stage.String(),
		ResultDigest: run.ResultDigest,
	}

	settings := config.Default().Settings()
	if err := json.Unmarshal(run.Settings, &settings); err != nil {
		return rr, fmt.Errorf("decode settings: %w", err)
	}

	stored, err := st.ReadRunBatches(ctx, run.ID)
	if err != nil {
		return rr, err
	}
	rr.Batches = len(stored)

	loaded := make([]loadedBatch, 0, len(stored))
	for _, b := range stored {
		lb, err := decodeBatch(b.Digest, b.Body, obs)
		if err != nil {
			return rr, err
		}
		loaded = append(loaded, lb)
	}
	set, err := newBatchSet(loaded)
	if err != nil {
		return rr, err
	}

	first, err := mergeBatches(set, settings, obs)
	if err != nil {
		return rr, fmt.Errorf("first replay failed: %w", err)
	}
	second, err := mergeBatches(set, settings, obs)
	if err != nil {
		return rr, fmt.Errorf("second replay failed: %w", err)
	}

	rr.Replayed = first.ResultDigest
	rr.InputsMatch = first.RunDigest == run.Digest
	rr.Deterministic = rr.InputsMatch &&
		first.ResultDigest == second.ResultDigest &&
		first.ResultDigest == run.ResultDigest
	return rr, nil
}

func runNotFound(format string, cmd *cobra.Command, id string) error {
	msg := fmt.Sprintf("run not found: %s", id)
	f := &OutputFormatter{Format: format, Writer: cmd.OutOrStdout()}
	_ = f.Error(ErrCodeRunNotFound, msg, nil)
	return NewExitError(ExitCommandError, msg)
}

func writeReplayText(cmd *cobra.Command, result ReplayResult) {
	w := cmd.OutOrStdout()
	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return
	}

	fmt.Fprintf(w, "Replay Summary: %s\n", plural(result.TotalRuns, "run", "runs"))
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		status := "✓"
		if !run.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Run: %s (%s of challenge %s, %s)\n",
			status, run.RunID, run.Stage, run.ChallengeID, plural(run.Batches, "batch", "batches"))
		if !run.InputsMatch {
			fmt.Fprintln(w, "  Warning: stored batches or settings no longer match the run digest")
		}
		if run.Replayed != run.ResultDigest {
			fmt.Fprintf(w, "  Stored:   %s\n", run.ResultDigest)
			fmt.Fprintf(w, "  Replayed: %s\n", run.Replayed)
		}
	}
	fmt.Fprintln(w)

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All runs verified deterministic")
		return
	}
	fmt.Fprintln(w, "✗ Determinism verification failed")
}
