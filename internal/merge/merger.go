package merge

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/roach88/tickmerge/internal/align"
	"github.com/roach88/tickmerge/internal/classify"
	"github.com/roach88/tickmerge/internal/clientevents"
	"github.com/roach88/tickmerge/internal/observe"
	"github.com/roach88/tickmerge/internal/similarity"
	"github.com/roach88/tickmerge/internal/stage"
)

// Merger reconciles the recordings of one stage attempt.
type Merger struct {
	stage     stage.Stage
	challenge clientevents.ChallengeInfo
	clients   []*clientevents.ClientEvents

	constants      similarity.Constants
	alignParams    align.Params
	postprocessors []Postprocessor
	obs            observe.Observer
}

// Option configures a Merger.
type Option func(*Merger)

// WithObserver reports the merge's progress and warnings to o.
func WithObserver(o observe.Observer) Option {
	return func(m *Merger) { m.obs = observe.OrNop(o) }
}

// WithConstants sets the similarity constants used to align clients that
// cannot be merged tick for tick.
func WithConstants(c similarity.Constants) Option {
	return func(m *Merger) { m.constants = c }
}

// WithAlignParams sets the alignment parameters.
func WithAlignParams(p align.Params) Option {
	return func(m *Merger) { m.alignParams = p }
}

// WithPostprocessors replaces DefaultPostprocessors.
func WithPostprocessors(p ...Postprocessor) Option {
	return func(m *Merger) { m.postprocessors = slices.Clone(p) }
}

// New returns a Merger for the given clients of one stage. Clients are
// ordered by final tick, longest first, then by ID.
func New(st stage.Stage, challenge clientevents.ChallengeInfo, clients []*clientevents.ClientEvents, opts ...Option) *Merger {
	sorted := slices.Clone(clients)
	slices.SortStableFunc(sorted, func(a, b *clientevents.ClientEvents) int {
		return cmp.Or(cmp.Compare(b.FinalTick(), a.FinalTick()), cmp.Compare(a.ID(), b.ID()))
	})

	m := &Merger{
		stage:          st,
		challenge:      challenge,
		clients:        sorted,
		constants:      similarity.DefaultConstants(),
		alignParams:    align.DefaultParams(),
		postprocessors: DefaultPostprocessors,
		obs:            observe.Nop,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge builds the reconciled timeline. It returns nil when there are no
// clients.
func (m *Merger) Merge() *Result {
	if len(m.clients) == 0 {
		m.obs.Log(slog.LevelWarn, "merge no clients",
			"challenge_id", m.challenge.ID,
			"stage", m.stage.String(),
		)
		return nil
	}

	end := m.obs.Phase("merge",
		"challenge_id", m.challenge.ID,
		"stage", m.stage.String(),
		"client_count", len(m.clients),
	)
	defer end()

	for _, c := range m.clients {
		m.obs.Log(slog.LevelDebug, "merge input",
			"client", c.String(),
			"final_tick", c.FinalTick(),
			"accurate", c.Accurate(),
		)
	}

	res := &Result{}
	clients := m.checkAccuracy(res)
	cls := classify.Classify(clients, classify.WithObserver(m.obs))
	res.ReferenceSelection = cls.Reference

	res.Clients = append(res.Clients, newClient(cls.Base, ClassificationReference, StatusMerged, 0))
	timeline := newMergedEvents(cls.Base)

	aligner := align.New(
		similarity.New(similarity.WithConstants(m.constants), similarity.WithObserver(m.obs)).Score,
		align.WithParams(m.alignParams),
		align.WithObserver(m.obs),
	)
	for _, c := range cls.Matching {
		res.Clients = append(res.Clients, m.mergeClient(timeline, aligner, c, ClassificationMatching, len(res.Clients)))
	}
	for _, c := range cls.Mismatched {
		res.Clients = append(res.Clients, m.mergeClient(timeline, aligner, c, ClassificationMismatched, len(res.Clients)))
	}

	res.count()
	m.obs.Log(slog.LevelInfo, "merge complete",
		"challenge_id", m.challenge.ID,
		"stage", m.stage.String(),
		"merged", res.MergedCount,
		"unmerged", res.UnmergedCount,
		"skipped", res.SkippedCount,
		"missing_ticks", timeline.MissingTickCount(),
	)
	if res.UnmergedCount > 0 {
		m.obs.Log(slog.LevelWarn, "merge clients unmerged",
			"challenge_id", m.challenge.ID,
			"stage", m.stage.String(),
			"count", res.UnmergedCount,
		)
	}

	m.postprocess(timeline)
	res.Events = timeline
	return res
}

// checkAccuracy demotes accurate clients whose tick counts disagree with the
// other accurate clients. Demoted clients are replaced by copies.
func (m *Merger) checkAccuracy(res *Result) []*clientevents.ClientEvents {
	clients := slices.Clone(m.clients)

	var accurate []*clientevents.ClientEvents
	for _, c := range clients {
		if c.Accurate() {
			accurate = append(accurate, c)
		}
	}
	if len(accurate) == 0 {
		return clients
	}

	counts := classify.TickCounts(accurate)
	maxClients := 0
	for _, tc := range counts {
		maxClients = max(maxClients, tc.Clients)
	}
	var modes []int
	for _, tc := range counts {
		if tc.Clients == maxClients {
			modes = append(modes, tc.Ticks)
		}
	}

	demote := func(keep func(*clientevents.ClientEvents) bool) {
		for i, c := range clients {
			if c.Accurate() && !keep(c) {
				clients[i] = c.WithAccurate(false)
			}
		}
	}

	if len(modes) > 1 {
		m.obs.Log(slog.LevelWarn, "merge multiple accurate tick modes",
			"challenge_id", m.challenge.ID,
			"stage", m.stage.String(),
			"tick_counts", modes,
		)
		res.Alerts = append(res.Alerts, Alert{
			Type:    AlertMultipleAccurateTickModes,
			Details: map[string]any{"tickCounts": modes},
		})
		demote(func(*clientevents.ClientEvents) bool { return false })
		return clients
	}

	mode := modes[0]
	demote(func(c *clientevents.ClientEvents) bool {
		if c.FinalTick() == mode {
			return true
		}
		m.obs.Log(slog.LevelWarn, "merge client accuracy mismatch",
			"challenge_id", m.challenge.ID,
			"stage", m.stage.String(),
			"client_id", c.ID(),
			"expected_ticks", mode,
			"actual_ticks", c.FinalTick(),
		)
		return false
	})
	return clients
}

func (m *Merger) mergeClient(timeline *MergedEvents, aligner *align.Aligner, c *clientevents.ClientEvents, cls Classification, seq int) Client {
	if c.EventCount() == 0 {
		m.obs.Log(slog.LevelInfo, "merge client skipped",
			"challenge_id", m.challenge.ID,
			"client_id", c.ID(),
			"reason", "no events",
		)
		return newClient(c, cls, StatusSkipped, seq)
	}

	if timeline.Accurate() && c.Accurate() {
		if tick, ok := timeline.mergeAccurate(c); !ok {
			m.obs.Log(slog.LevelError, "merge client conflict",
				"challenge_id", m.challenge.ID,
				"client_id", c.ID(),
				"tick", tick,
			)
			return newClient(c, cls, StatusUnmerged, seq)
		}
		return newClient(c, cls, StatusMerged, seq)
	}

	end := m.obs.Phase("measure_alignment", "client_id", c.ID())
	ar := aligner.Align(timeline.ticks, c.Ticks())
	end()

	summary := &AlignmentSummary{
		MappedTicks: len(ar.Mapping),
		Coverage:    ar.Coverage,
		GapCount:    ar.GapCount,
		MeanScore:   ar.MeanScore(),
	}
	m.obs.Log(slog.LevelInfo, "merge client aligned but not merged",
		"challenge_id", m.challenge.ID,
		"client_id", c.ID(),
		"timeline_accurate", timeline.Accurate(),
		"client_accurate", c.Accurate(),
		"mapped_ticks", summary.MappedTicks,
		"coverage", summary.Coverage,
		"gap_count", summary.GapCount,
	)

	mc := newClient(c, cls, StatusUnmerged, seq)
	mc.Alignment = summary
	return mc
}

func (m *Merger) postprocess(timeline *MergedEvents) {
	for _, p := range m.postprocessors {
		if !p.appliesTo(m.stage) || p.Apply == nil {
			continue
		}
		if p.Apply(timeline) {
			m.obs.Log(slog.LevelInfo, "merge postprocess applied",
				"challenge_id", m.challenge.ID,
				"stage", m.stage.String(),
				"postprocessor", p.Name,
			)
		}
	}
}
