package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/tickmerge/internal/batch"
	"github.com/roach88/tickmerge/internal/classify"
	"github.com/roach88/tickmerge/internal/config"
	"github.com/roach88/tickmerge/internal/ir"
	"github.com/roach88/tickmerge/internal/merge"
	"github.com/roach88/tickmerge/internal/observe"
	"github.com/roach88/tickmerge/internal/store"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	Database string // audit database, overrides store.path
	Jobs     int    // concurrent batch decoders
	Events   string // write the merged timeline here as a batch document
}

// MergeSummary is the output of a merge.
type MergeSummary struct {
	RunID  string `json:"run_id,omitempty"`
	Stored bool   `json:"stored"`

	ChallengeID    string                      `json:"challenge_id"`
	Stage          string                      `json:"stage"`
	BatchBytes     int                         `json:"batch_bytes"`
	RunDigest      string                      `json:"run_digest"`
	ResultDigest   string                      `json:"result_digest"`
	TimelineDigest string                      `json:"timeline_digest"`
	Reference      classify.ReferenceSelection `json:"reference"`
	Clients        []merge.Client              `json:"clients"`
	MergedCount    int                         `json:"merged_count"`
	UnmergedCount  int                         `json:"unmerged_count"`
	SkippedCount   int                         `json:"skipped_count"`
	Alerts         []merge.Alert               `json:"alerts"`
	TickCount      int                         `json:"tick_count"`
	MissingTicks   int                         `json:"missing_ticks"`
	EventCount     int                         `json:"event_count"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge <batch.json>...",
		Short: "Merge client batches into one timeline",
		Long: `Decode the batch of every client that recorded a stage and merge them
into a single timeline. Prints each client's role and status, the
merge-wide alerts and the digests that identify the result.

With --db, the batches and the run are written to the audit database.
Merging the same batches with the same settings again reuses the stored run.

Exit codes:
  0 - Merge completed
  1 - Invalid or mismatched batches
  2 - Command error (unreadable files, config or database)

Examples:
  tickmerge merge client1.json client2.json
  tickmerge merge --db ./tickmerge.db batches/*.json
  tickmerge merge --events merged.json --format json batches/*.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite audit database")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "batches decoded in parallel (default: one per CPU)")
	cmd.Flags().StringVar(&opts.Events, "events", "", "write the merged timeline to this file")

	return cmd
}

func runMerge(ctx context.Context, opts *MergeOptions, paths []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sess, err := newSession(ctx, opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.close(ctx)

	loaded, err := loadBatches(ctx, paths, opts.Jobs, sess.obs)
	if err != nil {
		return err
	}
	set, err := newBatchSet(loaded)
	if err != nil {
		return err
	}

	settings := sess.cfg.Settings()
	out, err := mergeBatches(set, settings, sess.obs)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to digest merge", err)
	}
	summary := summarize(set, out)

	if opts.Events != "" {
		if err := writeTimeline(opts.Events, set, out.Result); err != nil {
			return WrapExitError(ExitCommandError, "failed to write timeline", err)
		}
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = sess.cfg.Store.Path
	}
	if dbPath != "" {
		if err := storeRun(ctx, dbPath, opts.NewRunID, set, settings, out, &summary); err != nil {
			return err
		}
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if f.JSON() {
		return f.Success(summary)
	}
	writeMergeText(cmd.OutOrStdout(), summary, len(set.Batches))
	return nil
}

// mergeOutcome is a merge result with the digests that identify it.
type mergeOutcome struct {
	Result         *merge.Result
	RunDigest      string
	ResultDigest   string
	TimelineDigest string
}

// mergeBatches merges a batch set with the given settings and digests the
// outcome. It is shared by merge and replay so both digest the same way.
func mergeBatches(set *batchSet, settings config.Settings, obs observe.Observer) (*mergeOutcome, error) {
	opts := append(settings.MergeOptions(), merge.WithObserver(obs))
	res := merge.New(set.Stage, set.Challenge, set.Clients(), opts...).Merge()
	if res == nil {
		return nil, fmt.Errorf("merge of %s produced no result", set.Stage)
	}

	out := &mergeOutcome{Result: res}
	var err error
	if out.RunDigest, err = ir.RunDigest(set.Challenge.ID, set.Stage, set.Digests(), settings); err != nil {
		return nil, err
	}
	if out.ResultDigest, err = ir.ResultDigest(set.Stage, res); err != nil {
		return nil, err
	}
	if out.TimelineDigest, err = ir.TimelineDigest(set.Stage, res.Events.Events()); err != nil {
		return nil, err
	}
	return out, nil
}

func summarize(set *batchSet, out *mergeOutcome) MergeSummary {
	res := out.Result
	alerts := res.Alerts
	if alerts == nil {
		alerts = []merge.Alert{}
	}
	return MergeSummary{
		ChallengeID:    set.Challenge.ID,
		Stage:          set.Stage.String(),
		BatchBytes:     set.Size(),
		RunDigest:      out.RunDigest,
		ResultDigest:   out.ResultDigest,
		TimelineDigest: out.TimelineDigest,
		Reference:      res.ReferenceSelection,
		Clients:        res.Clients,
		MergedCount:    res.MergedCount,
		UnmergedCount:  res.UnmergedCount,
		SkippedCount:   res.SkippedCount,
		Alerts:         alerts,
		TickCount:      res.Events.Len(),
		MissingTicks:   res.Events.MissingTickCount(),
		EventCount:     res.Events.EventCount(),
	}
}

func writeTimeline(path string, set *batchSet, res *merge.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := batch.EncodeEvents(f, 0, set.Challenge, set.Stage, res.Events.Events()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// storeRun writes the batches and the run to the audit database and records
// the run id in summary.
func storeRun(ctx context.Context, path string, newID func() (string, error), set *batchSet, settings config.Settings, out *mergeOutcome, summary *MergeSummary) error {
	st, err := store.Open(ctx, path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	for _, lb := range set.Batches {
		_, err := st.WriteBatch(ctx, store.Batch{
			Digest:      lb.Digest,
			ClientID:    lb.Client.ID(),
			ChallengeID: set.Challenge.ID,
			Stage:       set.Stage,
			Body:        lb.Body,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to store batch", err)
		}
	}

	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode settings", err)
	}
	var id string
	if newID != nil {
		if id, err = newID(); err != nil {
			return WrapExitError(ExitCommandError, "failed to generate run id", err)
		}
	}

	res := out.Result
	runID, inserted, err := st.WriteRun(ctx, store.Run{
		ID:             id,
		Digest:         out.RunDigest,
		ChallengeID:    set.Challenge.ID,
		Stage:          set.Stage,
		Settings:       settingsJSON,
		ResultDigest:   out.ResultDigest,
		TimelineDigest: out.TimelineDigest,
		MergedCount:    res.MergedCount,
		UnmergedCount:  res.UnmergedCount,
		SkippedCount:   res.SkippedCount,
		Alerts:         res.Alerts,
		BatchDigests:   set.Digests(),
		Clients:        res.Clients,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to store run", err)
	}
	summary.RunID = runID
	summary.Stored = inserted
	return nil
}

func writeMergeText(w io.Writer, s MergeSummary, batches int) {
	fmt.Fprintf(w, "Merged %s of challenge %s from %s (%s)\n",
		s.Stage, s.ChallengeID, plural(batches, "batch", "batches"), humanize.Bytes(uint64(s.BatchBytes)))
	fmt.Fprintf(w, "Reference: %d ticks (%s)\n", s.Reference.Count, s.Reference.Method)
	fmt.Fprintf(w, "Timeline: %d ticks, %d missing, %s events\n",
		s.TickCount, s.MissingTicks, humanize.Comma(int64(s.EventCount)))
	fmt.Fprintln(w)

	for _, c := range s.Clients {
		fmt.Fprintf(w, "  [%d] client %d  %-10s  %-8s  %s\n",
			c.SequenceNumber, c.ID, c.Classification, c.Status, clientNote(c))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d merged, %d unmerged, %d skipped\n", s.MergedCount, s.UnmergedCount, s.SkippedCount)

	for _, a := range s.Alerts {
		fmt.Fprintf(w, "Alert: %s %v\n", a.Type, a.Details)
	}

	fmt.Fprintf(w, "Result digest: %s\n", s.ResultDigest)
	if s.RunID != "" {
		state := "existing"
		if s.Stored {
			state = "new"
		}
		fmt.Fprintf(w, "Run: %s (%s)\n", s.RunID, state)
	}
}

func clientNote(c merge.Client) string {
	var parts []string
	accuracy := "inaccurate"
	if c.DerivedAccurate {
		accuracy = "accurate"
	}
	parts = append(parts, accuracy, plural(c.RecordedTicks, "tick", "ticks"))
	if c.Spectator {
		parts = append(parts, "spectator")
	}
	if a := c.Alignment; a != nil {
		parts = append(parts, fmt.Sprintf("aligned %d ticks, %.1f%% coverage, %s",
			a.MappedTicks, a.Coverage*100, plural(a.GapCount, "gap", "gaps")))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return humanize.Comma(int64(n)) + " " + many
}
