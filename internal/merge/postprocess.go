package merge

import (
	"slices"

	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/stage"
)

// Postprocessor corrects a merged timeline for a known client defect.
type Postprocessor struct {
	Name string

	// Stages restricts the correction to these stages. Empty means every
	// stage.
	Stages []stage.Stage

	// Apply corrects m in place and reports whether it changed anything.
	Apply func(m *MergedEvents) bool
}

func (p Postprocessor) appliesTo(st stage.Stage) bool {
	return len(p.Stages) == 0 || slices.Contains(p.Stages, st)
}

// DefaultPostprocessors are applied by every Merger unless replaced.
var DefaultPostprocessors = []Postprocessor{MaidenSpawnCorrection}

// MaidenSpawnCorrection restores Maiden's spawn for clients that only saw her
// once she was rendered, two ticks into the room. Such clients report the
// spawn at tick 2 with Maiden at full health; the spawn is moved to tick 0
// and updates at full health fill the ticks in between.
var MaidenSpawnCorrection = Postprocessor{
	Name:   "maiden_spawn",
	Stages: []stage.Stage{stage.TobMaiden},
	Apply:  correctMaidenSpawn,
}

const lateMaidenSpawnTick = 2

func correctMaidenSpawn(m *MergedEvents) bool {
	var (
		spawn event.NpcSpawn
		found bool
	)
	for e := range m.Events() {
		if s, ok := e.(event.NpcSpawn); ok && stage.IsMaiden(s.ID) {
			spawn, found = s, true
			break
		}
	}
	if !found || spawn.Tick != lateMaidenSpawnTick || spawn.Hitpoints.Current != spawn.Hitpoints.Base {
		return false
	}

	tick := spawn.Tick
	ts := m.TickState(tick)
	if ts == nil {
		return false
	}
	events := ts.Events()
	idx := slices.IndexFunc(events, func(e event.Event) bool {
		s, ok := e.(event.NpcSpawn)
		return ok && s == spawn
	})
	if idx < 0 {
		return false
	}

	update := spawn.AsUpdate()
	events = slices.Delete(events, idx, idx+1)
	m.ticks[tick] = ts.WithEvents(append(events, update))

	for i := range tick {
		prior := m.ticks[i]
		if prior == nil {
			continue
		}
		var synthesized event.Event
		if i == 0 {
			synthesized = event.Shift(spawn, -tick)
		} else {
			synthesized = event.Shift(update, i-tick)
		}
		m.ticks[i] = prior.WithEvents(append(prior.Events(), synthesized))
	}
	return true
}
