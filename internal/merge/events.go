package merge

import (
	"iter"

	"github.com/roach88/tickmerge/internal/clientevents"
	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/tickstate"
)

// MergedEvents is the reconciled timeline of a stage, indexed by tick. A tick
// no client recorded has no state.
type MergedEvents struct {
	ticks    []*tickstate.TickState
	status   event.StageStatus
	accurate bool
}

// newMergedEvents seeds a timeline from the base client. The timeline spans
// the server's stage length when the base reports one. An inaccurate base
// with a server length is assumed to have lost ticks at the start, so its
// recording is shifted to end on the last tick.
func newMergedEvents(base *clientevents.ClientEvents) *MergedEvents {
	length := base.FinalTick() + 1
	st := base.ServerTicks()
	if st != nil {
		length = st.Count + 1
	}

	m := &MergedEvents{
		ticks:    make([]*tickstate.TickState, max(length, 0)),
		status:   base.Status(),
		accurate: base.Accurate(),
	}

	offset := 0
	if !base.Accurate() && st != nil {
		offset = st.Count - base.FinalTick()
	}

	for _, ts := range base.Ticks() {
		if ts == nil {
			continue
		}
		tick := ts.Tick() + offset
		if tick < 0 || tick >= len(m.ticks) {
			continue
		}
		if offset == 0 {
			m.ticks[tick] = ts.Clone()
		} else {
			m.ticks[tick] = ts.Retick(event.Offset(offset))
		}
	}
	return m
}

// Events yields every event of the timeline in tick order, and within a
// tick in recorded order. Each call starts from the beginning.
func (m *MergedEvents) Events() iter.Seq[event.Event] {
	return func(yield func(event.Event) bool) {
		for _, ts := range m.ticks {
			if ts == nil {
				continue
			}
			for _, e := range ts.Events() {
				if !yield(e) {
					return
				}
			}
		}
	}
}

// EventsForTick returns the events of one tick, or nil if the tick has no
// state.
func (m *MergedEvents) EventsForTick(tick int) []event.Event {
	if ts := m.TickState(tick); ts != nil {
		return ts.Events()
	}
	return nil
}

// TickState returns the state of a tick, or nil. The result must not be
// modified.
func (m *MergedEvents) TickState(tick int) *tickstate.TickState {
	if tick < 0 || tick >= len(m.ticks) {
		return nil
	}
	return m.ticks[tick]
}

func (m *MergedEvents) Len() int                  { return len(m.ticks) }
func (m *MergedEvents) LastTick() int             { return len(m.ticks) - 1 }
func (m *MergedEvents) Accurate() bool            { return m.accurate }
func (m *MergedEvents) Status() event.StageStatus { return m.status }

// MissingTickCount returns how many ticks no client recorded.
func (m *MergedEvents) MissingTickCount() int {
	n := 0
	for _, ts := range m.ticks {
		if ts == nil {
			n++
		}
	}
	return n
}

// EventCount returns the number of events in the timeline.
func (m *MergedEvents) EventCount() int {
	n := 0
	for _, ts := range m.ticks {
		if ts != nil {
			n += len(ts.Events())
		}
	}
	return n
}

// mergeAccurate folds an accurate client into the timeline tick for tick,
// starting from the end. The timeline changes only if every tick merges; on
// failure the offending tick is returned.
func (m *MergedEvents) mergeAccurate(c *clientevents.ClientEvents) (int, bool) {
	if c.FinalTick() >= len(m.ticks) {
		return c.FinalTick(), false
	}

	ticks := make([]*tickstate.TickState, len(m.ticks))
	for i, ts := range m.ticks {
		if ts != nil {
			ticks[i] = ts.Clone()
		}
	}

	for tick := len(ticks) - 1; tick >= 0; tick-- {
		incoming := c.TickState(tick)
		if incoming == nil {
			continue
		}
		if ticks[tick] == nil {
			ticks[tick] = incoming.Clone()
			continue
		}
		if !ticks[tick].Merge(incoming) {
			return tick, false
		}
	}

	for _, ts := range ticks {
		if ts != nil {
			ts.Resynchronize(ticks)
		}
	}
	m.ticks = ticks
	return 0, true
}
