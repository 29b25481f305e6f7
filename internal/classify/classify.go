// Package classify chooses the reference client of a merge and sorts the
// remaining clients by how far their tick numbers can be trusted.
package classify

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/roach88/tickmerge/internal/clientevents"
	"github.com/roach88/tickmerge/internal/observe"
)

// Method names the strategy that selected the reference tick count.
type Method string

const (
	MethodAccurateModal   Method = "ACCURATE_MODAL"
	MethodPreciseServer   Method = "PRECISE_SERVER"
	MethodImpreciseServer Method = "IMPRECISE_SERVER"
	MethodRecordedTicks   Method = "RECORDED_TICKS"
)

// TickCount is how many clients recorded a given number of ticks.
type TickCount struct {
	Ticks   int `json:"ticks"`
	Clients int `json:"clients"`
}

// Details records the inputs a strategy based its choice on.
type Details struct {
	AccurateClientIDs  []int       `json:"accurateClientIds,omitempty"`
	AccurateTickCounts []TickCount `json:"accurateTickCounts,omitempty"`
	CandidateClientIDs []int       `json:"candidateClientIds,omitempty"`
}

// ReferenceSelection is the stage length the merge treats as authoritative,
// and how it was chosen.
type ReferenceSelection struct {
	Count   int     `json:"count"`
	Method  Method  `json:"method"`
	Details Details `json:"details"`
}

// Result is a classified set of clients.
type Result struct {
	Base       *clientevents.ClientEvents
	Matching   []*clientevents.ClientEvents
	Mismatched []*clientevents.ClientEvents
	Reference  ReferenceSelection
}

// Strategy tries to pick a base client. It reports false when none of the
// clients qualify.
type Strategy func(clients []*clientevents.ClientEvents) (*clientevents.ClientEvents, ReferenceSelection, bool)

// DefaultStrategies lists the strategies in order of preference.
var DefaultStrategies = []Strategy{AccurateModal, PreciseServer, ImpreciseServer, RecordedTicks}

type options struct {
	strategies []Strategy
	obs        observe.Observer
}

// Option configures classification.
type Option func(*options)

// WithStrategies replaces DefaultStrategies.
func WithStrategies(s ...Strategy) Option {
	return func(o *options) { o.strategies = s }
}

// WithObserver reports the selection to obs.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) { o.obs = observe.OrNop(obs) }
}

// Classify picks a base client with the first strategy that succeeds. A
// client matches the base when both are accurate and it recorded exactly the
// reference tick count; every other client is mismatched.
//
// Classify panics if clients is empty or no strategy selects a base.
func Classify(clients []*clientevents.ClientEvents, opts ...Option) Result {
	if len(clients) == 0 {
		panic("classify: no clients")
	}
	o := &options{strategies: DefaultStrategies, obs: observe.Nop}
	for _, opt := range opts {
		opt(o)
	}

	var (
		base *clientevents.ClientEvents
		ref  ReferenceSelection
		ok   bool
	)
	for _, s := range o.strategies {
		if base, ref, ok = s(clients); ok {
			break
		}
	}
	if !ok {
		panic("classify: no strategy selected a reference client")
	}

	o.obs.Log(slog.LevelDebug, "reference selection",
		"base_client", base.ID(),
		"reference_ticks", ref.Count,
		"method", string(ref.Method),
	)

	res := Result{Base: base, Reference: ref}
	for _, c := range clients {
		if c == base {
			continue
		}
		if base.Accurate() && c.Accurate() && c.FinalTick() == ref.Count {
			res.Matching = append(res.Matching, c)
		} else {
			res.Mismatched = append(res.Mismatched, c)
		}
	}
	return res
}

// AccurateModal selects among accurate clients. The reference count is the
// most common final tick, preferring the larger count on a tie, and the base
// is the lowest-ID client that recorded it.
func AccurateModal(clients []*clientevents.ClientEvents) (*clientevents.ClientEvents, ReferenceSelection, bool) {
	var accurate []*clientevents.ClientEvents
	for _, c := range clients {
		if c.Accurate() {
			accurate = append(accurate, c)
		}
	}
	if len(accurate) == 0 {
		return nil, ReferenceSelection{}, false
	}

	counts := TickCounts(accurate)
	mode := counts[0]
	for _, tc := range counts[1:] {
		if tc.Clients >= mode.Clients {
			mode = tc
		}
	}

	var base *clientevents.ClientEvents
	ids := make([]int, 0, len(accurate))
	for _, c := range accurate {
		ids = append(ids, c.ID())
		if c.FinalTick() == mode.Ticks && (base == nil || c.ID() < base.ID()) {
			base = c
		}
	}
	slices.Sort(ids)

	return base, ReferenceSelection{
		Count:  mode.Ticks,
		Method: MethodAccurateModal,
		Details: Details{
			AccurateClientIDs:  ids,
			AccurateTickCounts: counts,
		},
	}, true
}

// TickCounts tallies the clients' final ticks in increasing tick order.
func TickCounts(clients []*clientevents.ClientEvents) []TickCount {
	byTicks := make(map[int]int)
	for _, c := range clients {
		byTicks[c.FinalTick()]++
	}
	out := make([]TickCount, 0, len(byTicks))
	for ticks, n := range byTicks {
		out = append(out, TickCount{Ticks: ticks, Clients: n})
	}
	slices.SortFunc(out, func(a, b TickCount) int { return cmp.Compare(a.Ticks, b.Ticks) })
	return out
}

// PreciseServer selects the longest recording among clients with a precise
// server tick count. The reference count is the server's.
func PreciseServer(clients []*clientevents.ClientEvents) (*clientevents.ClientEvents, ReferenceSelection, bool) {
	return byServerTicks(clients, true, MethodPreciseServer)
}

// ImpreciseServer selects the longest recording among clients with an
// estimated server tick count. The reference count is the server's.
func ImpreciseServer(clients []*clientevents.ClientEvents) (*clientevents.ClientEvents, ReferenceSelection, bool) {
	return byServerTicks(clients, false, MethodImpreciseServer)
}

func byServerTicks(clients []*clientevents.ClientEvents, precise bool, method Method) (*clientevents.ClientEvents, ReferenceSelection, bool) {
	var candidates []*clientevents.ClientEvents
	for _, c := range clients {
		if st := c.ServerTicks(); st != nil && st.Precise == precise {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, ReferenceSelection{}, false
	}

	sortLongestFirst(candidates)
	base := candidates[0]
	return base, ReferenceSelection{
		Count:   base.ServerTicks().Count,
		Method:  method,
		Details: Details{CandidateClientIDs: ids(candidates)},
	}, true
}

// RecordedTicks selects the longest recording of all. It always succeeds for
// a non-empty input.
func RecordedTicks(clients []*clientevents.ClientEvents) (*clientevents.ClientEvents, ReferenceSelection, bool) {
	if len(clients) == 0 {
		return nil, ReferenceSelection{}, false
	}
	sorted := slices.Clone(clients)
	sortLongestFirst(sorted)
	base := sorted[0]
	return base, ReferenceSelection{
		Count:   base.FinalTick(),
		Method:  MethodRecordedTicks,
		Details: Details{CandidateClientIDs: ids(sorted)},
	}, true
}

// sortLongestFirst orders clients by final tick, descending, then by ID.
func sortLongestFirst(clients []*clientevents.ClientEvents) {
	slices.SortStableFunc(clients, func(a, b *clientevents.ClientEvents) int {
		return cmp.Or(cmp.Compare(b.FinalTick(), a.FinalTick()), cmp.Compare(a.ID(), b.ID()))
	})
}

func ids(clients []*clientevents.ClientEvents) []int {
	out := make([]int, len(clients))
	for i, c := range clients {
		out[i] = c.ID()
	}
	return out
}
