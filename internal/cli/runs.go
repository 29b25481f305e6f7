package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/tickmerge/internal/merge"
	"github.com/roach88/tickmerge/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database  string
	RunID     string // optional - show one run in detail
	Challenge string // optional - filter the listing
}

// RunSummary is one stored run as listed by the runs command.
type RunSummary struct {
	ID             string        `json:"id"`
	Seq            int64         `json:"seq"`
	Digest         string        `json:"digest"`
	ChallengeID    string        `json:"challenge_id"`
	Stage          string        `json:"stage"`
	ResultDigest   string        `json:"result_digest"`
	TimelineDigest string        `json:"timeline_digest"`
	MergedCount    int           `json:"merged_count"`
	UnmergedCount  int           `json:"unmerged_count"`
	SkippedCount   int           `json:"skipped_count"`
	Alerts         []merge.Alert `json:"alerts"`
}

// StoredBatch is a batch of a run as shown in run detail.
type StoredBatch struct {
	Digest   string `json:"digest"`
	ClientID int    `json:"client_id"`
	Size     int    `json:"size"`
}

// RunDetail is the full record of one stored run.
type RunDetail struct {
	RunSummary
	Clients []merge.Client `json:"clients"`
	Batches []StoredBatch  `json:"batches"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored merge runs",
		Long: `List the merge runs in the audit database, or show one run with its
per-client audit and the batches it was merged from.

Examples:
  tickmerge runs --db ./tickmerge.db
  tickmerge runs --db ./tickmerge.db --challenge 9a1e...
  tickmerge runs --db ./tickmerge.db --run 0f8c2a... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show one run in detail")
	cmd.Flags().StringVar(&opts.Challenge, "challenge", "", "only list runs of this challenge")

	return cmd
}

func runRuns(ctx context.Context, opts *RunsOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(ctx, opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	if opts.RunID != "" {
		detail, err := readRunDetail(ctx, st, opts.RunID)
		if errors.Is(err, store.ErrNotFound) {
			return runNotFound(opts.Format, cmd, opts.RunID)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		if f.JSON() {
			return f.Success(detail)
		}
		writeRunDetail(cmd.OutOrStdout(), detail)
		return nil
	}

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	summaries := []RunSummary{}
	for _, run := range runs {
		if opts.Challenge != "" && run.ChallengeID != opts.Challenge {
			continue
		}
		summaries = append(summaries, newRunSummary(run))
	}

	if f.JSON() {
		return f.Success(summaries)
	}
	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "%4d  %s  %-16s  %s  %d/%d/%d",
			s.Seq, s.ID, s.Stage, s.ChallengeID, s.MergedCount, s.UnmergedCount, s.SkippedCount)
		if n := len(s.Alerts); n > 0 {
			fmt.Fprintf(w, "  %s", plural(n, "alert", "alerts"))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func newRunSummary(run store.Run) RunSummary {
	alerts := run.Alerts
	if alerts == nil {
		alerts = []merge.Alert{}
	}
	return RunSummary{
		ID:             run.ID,
		Seq:            run.Seq,
		Digest:         run.Digest,
		ChallengeID:    run.ChallengeID,
		Stage:          run.Stage.String(),
		ResultDigest:   run.ResultDigest,
		TimelineDigest: run.TimelineDigest,
		MergedCount:    run.MergedCount,
		UnmergedCount:  run.UnmergedCount,
		SkippedCount:   run.SkippedCount,
		Alerts:         alerts,
	}
}

func readRunDetail(ctx context.Context, st *store.Store, id string) (RunDetail, error) {
	run, err := st.ReadRun(ctx, id)
	if err != nil {
		return RunDetail{}, err
	}
	batches, err := st.ReadRunBatches(ctx, id)
	if err != nil {
		return RunDetail{}, err
	}

	detail := RunDetail{
		RunSummary: newRunSummary(run),
		Clients:    run.Clients,
		Batches:    make([]StoredBatch, 0, len(batches)),
	}
	if detail.Clients == nil {
		detail.Clients = []merge.Client{}
	}
	for _, b := range batches {
		detail.Batches = append(detail.Batches, StoredBatch{Digest: b.Digest, ClientID: b.ClientID, Size: len(b.Body)})
	}
	return detail, nil
}

func writeRunDetail(w io.Writer, d RunDetail) {
	fmt.Fprintf(w, "Run %s (#%d)\n", d.ID, d.Seq)
	fmt.Fprintf(w, "  Stage:     %s of challenge %s\n", d.Stage, d.ChallengeID)
	fmt.Fprintf(w, "  Inputs:    %s\n", d.Digest)
	fmt.Fprintf(w, "  Result:    %s\n", d.ResultDigest)
	fmt.Fprintf(w, "  Timeline:  %s\n", d.TimelineDigest)
	fmt.Fprintf(w, "  Clients:   %d merged, %d unmerged, %d skipped\n", d.MergedCount, d.UnmergedCount, d.SkippedCount)
	for _, c := range d.Clients {
		fmt.Fprintf(w, "    [%d] client %d  %-10s  %-8s  %s\n",
			c.SequenceNumber, c.ID, c.Classification, c.Status, clientNote(c))
	}
	for _, a := range d.Alerts {
		fmt.Fprintf(w, "  Alert:     %s %v\n", a.Type, a.Details)
	}
	fmt.Fprintf(w, "  Batches:\n")
	for _, b := range d.Batches {
		fmt.Fprintf(w, "    client %d  %s  %s\n", b.ClientID, b.Digest, humanize.Bytes(uint64(b.Size)))
	}
}
