// Package align finds where one client's tick sequence lines up with
// another's when their tick numbers cannot be trusted to correspond.
//
// The search is a local sequence alignment over a score matrix. Instead of a
// single global alignment it extracts every sufficiently strong disjoint run,
// so a recording that drifts, drops a stretch of ticks and then resumes is
// still matched in separate windows.
package align

import (
	"log/slog"
	"math"
	"slices"

	"github.com/roach88/tickmerge/internal/observe"
	"github.com/roach88/tickmerge/internal/tickstate"
)

// Params tunes the alignment search.
type Params struct {
	// GapPenalty is subtracted for every skipped tick on either side.
	GapPenalty float64 `yaml:"gap_penalty" json:"gap_penalty"`

	// MinScore is the lowest run score worth extracting.
	MinScore float64 `yaml:"min_score" json:"min_score"`

	// MinLength is the fewest matched pairs a run may have.
	MinLength int `yaml:"min_length" json:"min_length"`
}

// DefaultParams returns the standard search parameters.
func DefaultParams() Params {
	return Params{GapPenalty: 5, MinScore: 5, MinLength: 3}
}

// SimilarityFunc scores a base tick against a target tick. It may return
// negative infinity to forbid the pair.
type SimilarityFunc func(base, target *tickstate.TickState) float64

// Pair is one aligned base and target tick.
type Pair struct {
	BaseIndex   int
	TargetIndex int
	Score       float64
}

// Result is the outcome of an alignment.
type Result struct {
	// Mapping maps target index to base index.
	Mapping map[int]int

	// Scores holds the similarity of each aligned pair, by target index.
	Scores map[int]float64

	// Pairs lists the aligned pairs in increasing base index.
	Pairs []Pair

	// Coverage is the fraction of base ticks aligned to something.
	Coverage float64
	GapCount int
}

// MeanScore returns the average pair score, or 0 for an empty alignment.
func (r Result) MeanScore() float64 {
	if len(r.Pairs) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range r.Pairs {
		sum += p.Score
	}
	return sum / float64(len(r.Pairs))
}

type direction uint8

const (
	dirNone direction = iota
	dirMatch
	dirGapTarget
	dirGapBase
)

// Aligner runs alignments with fixed parameters.
type Aligner struct {
	params Params
	sim    SimilarityFunc
	obs    observe.Observer
}

// Option configures an Aligner.
type Option func(*Aligner)

// WithParams overrides the default parameters.
func WithParams(p Params) Option {
	return func(a *Aligner) { a.params = p }
}

// WithObserver reports phases and run statistics to o.
func WithObserver(o observe.Observer) Option {
	return func(a *Aligner) { a.obs = observe.OrNop(o) }
}

// New returns an Aligner scoring tick pairs with sim.
func New(sim SimilarityFunc, opts ...Option) *Aligner {
	a := &Aligner{params: DefaultParams(), sim: sim, obs: observe.Nop}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// matrix is the dynamic programming state of one alignment.
type matrix struct {
	h   [][]float64
	dir [][]direction
	sim [][]float64
}

func newMatrix(m, n int) *matrix {
	mx := &matrix{
		h:   make([][]float64, m),
		dir: make([][]direction, m),
		sim: make([][]float64, m),
	}
	for i := range m {
		mx.h[i] = make([]float64, n)
		mx.dir[i] = make([]direction, n)
		mx.sim[i] = make([]float64, n)
	}
	return mx
}

// at returns H[i][j], treating out of range cells as zero.
func (mx *matrix) at(i, j int) float64 {
	if i < 0 || j < 0 {
		return 0
	}
	return mx.h[i][j]
}

// Align aligns target onto base. Nil entries are missing ticks and score 0
// against anything.
func (a *Aligner) Align(base, target []*tickstate.TickState) Result {
	end := a.obs.Phase("align", "base_ticks", len(base), "target_ticks", len(target))
	defer end()

	mx := a.fill(base, target)

	var pairs []Pair
	gaps := 0
	for {
		run, runGaps := a.extract(mx)
		if len(run) == 0 || len(run) < a.params.MinLength {
			break
		}
		a.obs.Log(slog.LevelDebug, "alignment run",
			"pairs", len(run),
			"gaps", runGaps,
			"base_start", run[0].BaseIndex,
			"target_start", run[0].TargetIndex,
		)
		pairs = append(pairs, run...)
		gaps += runGaps
	}

	slices.SortStableFunc(pairs, func(x, y Pair) int { return x.BaseIndex - y.BaseIndex })

	res := Result{
		Mapping:  make(map[int]int, len(pairs)),
		Scores:   make(map[int]float64, len(pairs)),
		Pairs:    pairs,
		GapCount: gaps,
	}
	covered := make(map[int]struct{}, len(pairs))
	for _, p := range pairs {
		res.Mapping[p.TargetIndex] = p.BaseIndex
		res.Scores[p.TargetIndex] = p.Score
		covered[p.BaseIndex] = struct{}{}
	}
	if len(base) > 0 {
		res.Coverage = float64(len(covered)) / float64(len(base))
	}

	a.obs.Log(slog.LevelDebug, "alignment complete",
		"mapped_ticks", len(res.Mapping),
		"coverage", res.Coverage,
		"gap_count", res.GapCount,
	)
	return res
}

func (a *Aligner) fill(base, target []*tickstate.TickState) *matrix {
	mx := newMatrix(len(base), len(target))
	gap := a.params.GapPenalty

	for i := range base {
		for j := range target {
			s := a.similarity(base[i], target[j])
			mx.sim[i][j] = s

			diag := mx.at(i-1, j-1) + s
			up := mx.at(i-1, j) - gap
			left := mx.at(i, j-1) - gap
			best := max(0, diag, up, left)
			mx.h[i][j] = best

			switch {
			case best == diag && !math.IsInf(s, 0):
				mx.dir[i][j] = dirMatch
			case best == up:
				mx.dir[i][j] = dirGapTarget
			case best == left:
				mx.dir[i][j] = dirGapBase
			default:
				mx.dir[i][j] = dirNone
			}
		}
	}
	return mx
}

func (a *Aligner) similarity(base, target *tickstate.TickState) float64 {
	if base == nil || target == nil {
		return 0
	}
	return a.sim(base, target)
}

// extract backtracks from the best remaining cell, zeroing every cell it
// visits so later runs cannot reuse them. It returns no pairs once the best
// cell falls below MinScore.
func (a *Aligner) extract(mx *matrix) ([]Pair, int) {
	if len(mx.h) == 0 || len(mx.h[0]) == 0 {
		return nil, 0
	}

	best, bi, bj := 0.0, 0, 0
	for i := range mx.h {
		for j := range mx.h[i] {
			if mx.h[i][j] > best {
				best, bi, bj = mx.h[i][j], i, j
			}
		}
	}
	if best < a.params.MinScore {
		return nil, 0
	}

	var pairs []Pair
	gaps := 0
	i, j := bi, bj
	for i >= 0 && j >= 0 && mx.dir[i][j] != dirNone {
		d := mx.dir[i][j]
		mx.h[i][j] = 0
		mx.dir[i][j] = dirNone

		switch d {
		case dirMatch:
			pairs = append(pairs, Pair{BaseIndex: i, TargetIndex: j, Score: mx.sim[i][j]})
			i--
			j--
		case dirGapTarget:
			gaps++
			i--
		case dirGapBase:
			gaps++
			j--
		}
	}

	slices.Reverse(pairs)
	return pairs, gaps
}
