package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tickmerge/internal/align"
	"github.com/roach88/tickmerge/internal/similarity"
)

// AlignedTick is one base tick paired with a target tick.
type AlignedTick struct {
	BaseTick   int     `json:"base_tick"`
	TargetTick int     `json:"target_tick"`
	Score      float64 `json:"score"`
}

// AlignReport is the output of the align command.
type AlignReport struct {
	BaseClient   int           `json:"base_client"`
	TargetClient int           `json:"target_client"`
	BaseTicks    int           `json:"base_ticks"`
	TargetTicks  int           `json:"target_ticks"`
	Coverage     float64       `json:"coverage"`
	GapCount     int           `json:"gap_count"`
	MeanScore    float64       `json:"mean_score"`
	Pairs        []AlignedTick `json:"pairs,omitempty"`
}

// NewAlignCommand creates the align command.
func NewAlignCommand(rootOpts *RootOptions) *cobra.Command {
	var showPairs bool

	cmd := &cobra.Command{
		Use:   "align <base.json> <target.json>",
		Short: "Align one client's ticks against another's",
		Long: `Run the tick alignment between two recordings of the same stage and
report how much of the base recording the target covers. The similarity
constants and alignment parameters come from the config file.

Examples:
  tickmerge align client1.json client2.json
  tickmerge align --pairs --format json client1.json client2.json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlign(cmd.Context(), rootOpts, args[0], args[1], showPairs, cmd)
		},
	}

	cmd.Flags().BoolVar(&showPairs, "pairs", false, "list every aligned tick pair")
	return cmd
}

func runAlign(ctx context.Context, opts *RootOptions, basePath, targetPath string, showPairs bool, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sess, err := newSession(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.close(ctx)

	base, err := loadBatch(basePath, sess.obs)
	if err != nil {
		return err
	}
	target, err := loadBatch(targetPath, sess.obs)
	if err != nil {
		return err
	}
	if base.Client.Stage() != target.Client.Stage() {
		return NewExitError(ExitFailure, fmt.Sprintf("%s records %s, %s records %s",
			basePath, base.Client.Stage(), targetPath, target.Client.Stage()))
	}

	scorer := similarity.New(
		similarity.WithConstants(sess.cfg.Similarity),
		similarity.WithObserver(sess.obs),
	)
	aligner := align.New(scorer.Score,
		align.WithParams(sess.cfg.Align),
		align.WithObserver(sess.obs),
	)

	baseTicks := base.Client.Ticks()
	targetTicks := target.Client.Ticks()
	res := aligner.Align(baseTicks, targetTicks)

	report := AlignReport{
		BaseClient:   base.Client.ID(),
		TargetClient: target.Client.ID(),
		BaseTicks:    len(baseTicks),
		TargetTicks:  len(targetTicks),
		Coverage:     res.Coverage,
		GapCount:     res.GapCount,
		MeanScore:    res.MeanScore(),
		Pairs:        []AlignedTick{},
	}
	for _, p := range res.Pairs {
		report.Pairs = append(report.Pairs, AlignedTick{
			BaseTick:   baseTicks[p.BaseIndex].Tick(),
			TargetTick: targetTicks[p.TargetIndex].Tick(),
			Score:      p.Score,
		})
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if f.JSON() {
		if !showPairs {
			report.Pairs = nil
		}
		return f.Success(report)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Aligned client %d (%d ticks) against client %d (%d ticks)\n",
		report.TargetClient, report.TargetTicks, report.BaseClient, report.BaseTicks)
	fmt.Fprintf(w, "Coverage: %.1f%%, %d pairs, %d gaps, mean score %.3f\n",
		report.Coverage*100, len(report.Pairs), report.GapCount, report.MeanScore)
	if showPairs {
		for _, p := range report.Pairs {
			offset := p.TargetTick - p.BaseTick
			fmt.Fprintf(w, "  %5d -> %5d  %+d  %.3f\n", p.TargetTick, p.BaseTick, offset, p.Score)
		}
	}
	return nil
}
