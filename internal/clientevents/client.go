package clientevents

import (
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/observe"
	"github.com/roach88/tickmerge/internal/stage"
	"github.com/roach88/tickmerge/internal/tickstate"
)

// ChallengeInfo identifies the challenge a recording belongs to.
type ChallengeInfo struct {
	ID    string   `json:"id" yaml:"id"`
	Party []string `json:"party" yaml:"party"`
}

// StageInfo is what a client reported about the stage it recorded.
type StageInfo struct {
	Stage            stage.Stage
	Status           event.StageStatus
	ReportedAccurate bool
	RecordedTicks    int
	ServerTicks      *event.ServerTicks
}

// Anomaly flags an irregularity in a recording.
type Anomaly string

const (
	AnomalyMultiplePrimaryPlayers Anomaly = "MULTIPLE_PRIMARY_PLAYERS"
	AnomalyMissingStageMetadata   Anomaly = "MISSING_STAGE_METADATA"
	AnomalyConsistencyIssues      Anomaly = "CONSISTENCY_ISSUES"
)

// ClientEvents is one client's recording of a stage.
type ClientEvents struct {
	id        int
	challenge ChallengeInfo
	info      StageInfo

	ticks  []*tickstate.TickState
	events []event.Event

	primaryPlayer    string
	accurate         bool
	invalidTickCount bool
	anomalies        []Anomaly
	issues           []ConsistencyIssue
	dropped          int
}

type options struct {
	obs observe.Observer
}

// Option configures client construction.
type Option func(*options)

// WithObserver reports warnings found while building the client to o.
func WithObserver(o observe.Observer) Option {
	return func(opts *options) { opts.obs = observe.OrNop(o) }
}

// FromStream builds a client from the events it sent, in arrival order.
// Stage updates are consumed as metadata: the last COMPLETED or WIPED update
// supplies the final status, accuracy claim and tick counts. Without one the
// client is flagged with MISSING_STAGE_METADATA.
func FromStream(id int, challenge ChallengeInfo, st stage.Stage, stream []event.Event, opts ...Option) *ClientEvents {
	o := buildOptions(opts)

	info := StageInfo{Stage: st, Status: event.StatusStarted}
	events := make([]event.Event, 0, len(stream))
	sawEnd := false

	for _, e := range stream {
		update, ok := e.(event.StageUpdate)
		if !ok {
			events = append(events, e)
			continue
		}
		info.Status = update.Status
		if update.Status == event.StatusCompleted || update.Status == event.StatusWiped {
			info.ReportedAccurate = update.Accurate
			info.RecordedTicks = update.RecordedTicks
			info.ServerTicks = cloneServerTicks(update.ServerTicks)
			sawEnd = true
		}
	}

	var anomalies []Anomaly
	if !sawEnd {
		anomalies = append(anomalies, AnomalyMissingStageMetadata)
		o.obs.Log(slog.LevelWarn, "client missing stage metadata",
			"challenge_id", challenge.ID,
			"client_id", id,
			"stage", st.String(),
		)
	}

	return build(id, challenge, info, events, anomalies, o)
}

// FromRawEvents builds a client from an unordered list of events and the
// stage metadata reported alongside them. A zero or negative RecordedTicks
// is replaced by the highest event tick.
func FromRawEvents(id int, challenge ChallengeInfo, info StageInfo, events []event.Event, opts ...Option) *ClientEvents {
	return build(id, challenge, info, events, nil, buildOptions(opts))
}

func buildOptions(opts []Option) *options {
	o := &options{obs: observe.Nop}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func build(id int, challenge ChallengeInfo, info StageInfo, raw []event.Event, anomalies []Anomaly, o *options) *ClientEvents {
	challenge.Party = slices.Clone(challenge.Party)
	info.ServerTicks = cloneServerTicks(info.ServerTicks)

	sorted := slices.Clone(raw)
	slices.SortStableFunc(sorted, func(a, b event.Event) int {
		return a.Header().Tick - b.Header().Tick
	})
	if info.RecordedTicks < 0 {
		o.obs.Log(slog.LevelWarn, "client negative recorded ticks",
			"challenge_id", challenge.ID,
			"client_id", id,
			"recorded_ticks", info.RecordedTicks,
		)
		info.RecordedTicks = 0
	}
	if info.RecordedTicks == 0 && len(sorted) > 0 {
		info.RecordedTicks = max(sorted[len(sorted)-1].Header().Tick, 0)
	}

	c := &ClientEvents{
		id:        id,
		challenge: challenge,
		info:      info,
		events:    make([]event.Event, 0, len(sorted)),
		anomalies: anomalies,
	}

	byTick := make([][]event.Event, info.RecordedTicks+1)
	primaries := make(map[string]struct{})
	for _, e := range sorted {
		tick := e.Header().Tick
		if tick < 0 || tick > info.RecordedTicks {
			c.dropped++
			continue
		}
		if u, ok := e.(event.PlayerUpdate); ok && u.Source == event.Primary {
			primaries[u.Name] = struct{}{}
		}
		byTick[tick] = append(byTick[tick], e)
		c.events = append(c.events, e)
	}
	if c.dropped > 0 {
		o.obs.Log(slog.LevelWarn, "client events outside recorded ticks",
			"challenge_id", challenge.ID,
			"client_id", id,
			"recorded_ticks", info.RecordedTicks,
			"dropped", c.dropped,
		)
	}

	if len(primaries) == 1 {
		for name := range primaries {
			c.primaryPlayer = name
		}
	} else if len(primaries) > 1 {
		names := make([]string, 0, len(primaries))
		for name := range primaries {
			names = append(names, name)
		}
		slices.Sort(names)
		o.obs.Log(slog.LevelWarn, "client multiple primary players",
			"challenge_id", challenge.ID,
			"client_id", id,
			"players", names,
		)
		c.addAnomaly(AnomalyMultiplePrimaryPlayers)
	}

	players := buildPlayerStates(byTick, challenge.Party)
	c.ticks = make([]*tickstate.TickState, len(byTick))
	for tick, evts := range byTick {
		c.ticks[tick] = tickstate.New(tick, evts, players[tick])
	}

	c.deriveAccuracy(o.obs)
	c.checkConsistency(o.obs)
	return c
}

func (c *ClientEvents) deriveAccuracy(obs observe.Observer) {
	st := c.info.ServerTicks
	derived := st != nil && st.Precise && st.Count == c.info.RecordedTicks

	if st != nil && c.info.RecordedTicks > st.Count {
		c.invalidTickCount = true
		derived = false
		obs.Log(slog.LevelWarn, "client recorded ticks exceed server",
			"challenge_id", c.challenge.ID,
			"client_id", c.id,
			"recorded_ticks", c.info.RecordedTicks,
			"server_ticks", st.Count,
		)
	}

	if c.info.ReportedAccurate && !derived {
		serverTicks := "none"
		if st != nil {
			serverTicks = fmt.Sprintf("(count=%d,precise=%t)", st.Count, st.Precise)
		}
		obs.Log(slog.LevelWarn, "client accuracy mismatch",
			"challenge_id", c.challenge.ID,
			"client_id", c.id,
			"recorded_ticks", c.info.RecordedTicks,
			"server_ticks", serverTicks,
		)
	}

	c.accurate = c.info.ReportedAccurate && derived && !c.invalidTickCount
}

func (c *ClientEvents) addAnomaly(a Anomaly) {
	if !slices.Contains(c.anomalies, a) {
		c.anomalies = append(c.anomalies, a)
	}
}

func cloneServerTicks(st *event.ServerTicks) *event.ServerTicks {
	if st == nil {
		return nil
	}
	cp := *st
	return &cp
}

// WithAccurate returns a copy of the client with its accuracy replaced. The
// copy shares the receiver's tick states, which callers must treat as
// read-only.
func (c *ClientEvents) WithAccurate(accurate bool) *ClientEvents {
	cp := *c
	cp.accurate = accurate
	return &cp
}

// ID returns the client's ID.
func (c *ClientEvents) ID() int { return c.id }

// Challenge returns the challenge the recording belongs to.
func (c *ClientEvents) Challenge() ChallengeInfo {
	ch := c.challenge
	ch.Party = slices.Clone(ch.Party)
	return ch
}

// Stage returns the recorded stage.
func (c *ClientEvents) Stage() stage.Stage { return c.info.Stage }

// Status returns the stage status at the client's last update.
func (c *ClientEvents) Status() event.StageStatus { return c.info.Status }

// FinalTick returns the last recorded tick.
func (c *ClientEvents) FinalTick() int { return c.info.RecordedTicks }

// ServerTicks returns the server-reported stage length, or nil.
func (c *ClientEvents) ServerTicks() *event.ServerTicks { return cloneServerTicks(c.info.ServerTicks) }

// Accurate reports whether the client's tick numbers can be trusted.
func (c *ClientEvents) Accurate() bool { return c.accurate }

// ReportedAccurate reports whether the client claimed accuracy.
func (c *ClientEvents) ReportedAccurate() bool { return c.info.ReportedAccurate }

// InvalidTickCount reports whether the client recorded more ticks than the
// server says the stage lasted.
func (c *ClientEvents) InvalidTickCount() bool { return c.invalidTickCount }

// DroppedEvents returns how many events fell outside the recorded ticks.
func (c *ClientEvents) DroppedEvents() int { return c.dropped }

// TickState returns the state of a tick, or nil if tick is out of range.
func (c *ClientEvents) TickState(tick int) *tickstate.TickState {
	if tick < 0 || tick >= len(c.ticks) {
		return nil
	}
	return c.ticks[tick]
}

// Ticks returns every tick state, indexed by tick.
func (c *ClientEvents) Ticks() []*tickstate.TickState { return slices.Clone(c.ticks) }

// EventCount returns the number of events in the recording.
func (c *ClientEvents) EventCount() int { return len(c.events) }

// Events yields the recording's events in tick order.
func (c *ClientEvents) Events() iter.Seq[event.Event] {
	return func(yield func(event.Event) bool) {
		for _, e := range c.events {
			if !yield(e) {
				return
			}
		}
	}
}

// PrimaryPlayer returns the player whose client made the recording.
func (c *ClientEvents) PrimaryPlayer() (string, bool) {
	return c.primaryPlayer, c.primaryPlayer != ""
}

// IsSpectator reports whether the recording was made by a non-participant.
func (c *ClientEvents) IsSpectator() bool { return c.primaryPlayer == "" }

// Anomalies returns the client's anomalies in the order they were found.
func (c *ClientEvents) Anomalies() []Anomaly { return slices.Clone(c.anomalies) }

// HasAnomaly reports whether a was found.
func (c *ClientEvents) HasAnomaly(a Anomaly) bool { return slices.Contains(c.anomalies, a) }

// ConsistencyIssues returns the suspicious movements found in the recording.
func (c *ClientEvents) ConsistencyIssues() []ConsistencyIssue { return slices.Clone(c.issues) }

// HasConsistencyIssues reports whether any suspicious movement was found.
func (c *ClientEvents) HasConsistencyIssues() bool { return len(c.issues) > 0 }

func (c *ClientEvents) String() string {
	who := c.primaryPlayer
	if who == "" {
		who = "spectator"
	}
	return fmt.Sprintf("Client#%d[%s]", c.id, who)
}
