package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/tickmerge/internal/clientevents"
	"github.com/roach88/tickmerge/internal/event"
)

// ClientReport describes one decoded client recording.
type ClientReport struct {
	Path              string                          `json:"path"`
	Digest            string                          `json:"digest"`
	ClientID          int                             `json:"client_id"`
	ChallengeID       string                          `json:"challenge_id"`
	Stage             string                          `json:"stage"`
	Status            string                          `json:"status"`
	RecordedTicks     int                             `json:"recorded_ticks"`
	ServerTicks       *event.ServerTicks              `json:"server_ticks,omitempty"`
	ReportedAccurate  bool                            `json:"reported_accurate"`
	DerivedAccurate   bool                            `json:"derived_accurate"`
	InvalidTickCount  bool                            `json:"invalid_tick_count"`
	EventCount        int                             `json:"event_count"`
	DroppedEvents     int                             `json:"dropped_events"`
	PrimaryPlayer     string                          `json:"primary_player,omitempty"`
	Spectator         bool                            `json:"spectator"`
	Anomalies         []clientevents.Anomaly          `json:"anomalies"`
	ConsistencyIssues []clientevents.ConsistencyIssue `json:"consistency_issues"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	var jobs int

	cmd := &cobra.Command{
		Use:   "inspect <batch.json>...",
		Short: "Show how each client recording was decoded",
		Long: `Decode client batches without merging them and report each recording:
its reported and derived accuracy, anomalies and the position jumps that
failed the consistency check.

Examples:
  tickmerge inspect client1.json
  tickmerge inspect --format json batches/*.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), rootOpts, args, jobs, cmd)
		},
	}

	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "batches decoded in parallel (default: one per CPU)")
	return cmd
}

func runInspect(ctx context.Context, opts *RootOptions, paths []string, jobs int, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sess, err := newSession(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.close(ctx)

	loaded, err := loadBatches(ctx, paths, jobs, sess.obs)
	if err != nil {
		return err
	}

	reports := make([]ClientReport, 0, len(loaded))
	for _, lb := range loaded {
		reports = append(reports, newClientReport(lb))
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if f.JSON() {
		return f.Success(reports)
	}
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		writeClientReport(cmd.OutOrStdout(), r)
	}
	return nil
}

func newClientReport(lb loadedBatch) ClientReport {
	c := lb.Client
	r := ClientReport{
		Path:              lb.Path,
		Digest:            lb.Digest,
		ClientID:          c.ID(),
		ChallengeID:       c.Challenge().ID,
		Stage:             c.Stage().String(),
		Status:            string(c.Status()),
		RecordedTicks:     c.FinalTick(),
		ServerTicks:       c.ServerTicks(),
		ReportedAccurate:  c.ReportedAccurate(),
		DerivedAccurate:   c.Accurate(),
		InvalidTickCount:  c.InvalidTickCount(),
		EventCount:        c.EventCount(),
		DroppedEvents:     c.DroppedEvents(),
		Spectator:         c.IsSpectator(),
		Anomalies:         c.Anomalies(),
		ConsistencyIssues: c.ConsistencyIssues(),
	}
	if name, ok := c.PrimaryPlayer(); ok {
		r.PrimaryPlayer = name
	}
	if r.Anomalies == nil {
		r.Anomalies = []clientevents.Anomaly{}
	}
	if r.ConsistencyIssues == nil {
		r.ConsistencyIssues = []clientevents.ConsistencyIssue{}
	}
	return r
}

func writeClientReport(w io.Writer, r ClientReport) {
	fmt.Fprintf(w, "Client %d: %s of challenge %s (%s)\n", r.ClientID, r.Stage, r.ChallengeID, r.Path)
	fmt.Fprintf(w, "  Status:    %s after %d ticks\n", r.Status, r.RecordedTicks)
	if r.ServerTicks != nil {
		precision := "imprecise"
		if r.ServerTicks.Precise {
			precision = "precise"
		}
		fmt.Fprintf(w, "  Server:    %d ticks (%s)\n", r.ServerTicks.Count, precision)
	}
	fmt.Fprintf(w, "  Accurate:  reported %t, derived %t\n", r.ReportedAccurate, r.DerivedAccurate)
	fmt.Fprintf(w, "  Events:    %s", humanize.Comma(int64(r.EventCount)))
	if r.DroppedEvents > 0 {
		fmt.Fprintf(w, " (%d outside the recording dropped)", r.DroppedEvents)
	}
	fmt.Fprintln(w)
	if r.Spectator {
		fmt.Fprintln(w, "  Player:    spectator")
	} else {
		fmt.Fprintf(w, "  Player:    %s\n", r.PrimaryPlayer)
	}

	for _, a := range r.Anomalies {
		fmt.Fprintf(w, "  Anomaly:   %s\n", a)
	}
	if n := len(r.ConsistencyIssues); n > 0 {
		fmt.Fprintf(w, "  Consistency issues: %d\n", n)
		for _, is := range r.ConsistencyIssues {
			fmt.Fprintf(w, "    %s moved (%d,%d) over %d ticks, tick %d to %d\n",
				is.Player, is.Delta.X, is.Delta.Y, is.TicksSinceLast, is.LastTick, is.CurrentTick)
		}
	}
}
