// Package testutil builds client recordings for tests.
package testutil

import (
	"slices"

	"github.com/roach88/tickmerge/internal/batch"
	"github.com/roach88/tickmerge/internal/clientevents"
	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/stage"
)

// Recording builds one client's recording tick by tick. Methods add events
// at the current tick and return the recording for chaining.
type Recording struct {
	id        int
	challenge clientevents.ChallengeInfo
	stage     stage.Stage
	tick      int
	events    []event.Event
	end       *event.StageUpdate
}

// NewRecording starts a recording by client id of st. Events are added at
// tick 0 until At moves the cursor.
func NewRecording(id int, challengeID string, st stage.Stage, party ...string) *Recording {
	return &Recording{
		id:        id,
		challenge: clientevents.ChallengeInfo{ID: challengeID, Party: slices.Clone(party)},
		stage:     st,
	}
}

// At moves the cursor to tick.
func (r *Recording) At(tick int) *Recording {
	r.tick = tick
	return r
}

func (r *Recording) meta(x, y int) event.Meta {
	return event.Meta{Tick: r.tick, Stage: r.stage, X: x, Y: y}
}

// Primary adds a PRIMARY update for name at (x, y).
func (r *Recording) Primary(name string, x, y int) *Recording {
	return r.Add(event.PlayerUpdate{Meta: r.meta(x, y), Name: name, Source: event.Primary})
}

// Secondary adds a SECONDARY update for name at (x, y).
func (r *Recording) Secondary(name string, x, y int) *Recording {
	return r.Add(event.PlayerUpdate{Meta: r.meta(x, y), Name: name, Source: event.Secondary})
}

// Spawn adds an NPC spawn at full health.
func (r *Recording) Spawn(roomID, id, hitpoints, x, y int) *Recording {
	hp := event.SkillLevel{Current: hitpoints, Base: hitpoints}
	return r.Add(event.NpcSpawn{Meta: r.meta(x, y), Npc: event.Npc{RoomID: roomID, ID: id, Hitpoints: hp}})
}

// Npc adds an NPC update.
func (r *Recording) Npc(roomID, id int, hp event.SkillLevel, x, y int) *Recording {
	return r.Add(event.NpcUpdate{Meta: r.meta(x, y), Npc: event.Npc{RoomID: roomID, ID: id, Hitpoints: hp}})
}

// Attack adds a player attack on the NPC with the given room id.
func (r *Recording) Attack(name, style string, target int) *Recording {
	return r.Add(event.PlayerAttack{Meta: r.meta(0, 0), Name: name, Type: style, Target: target, Targeted: true})
}

// Add adds an arbitrary event, shifted so that it lands on the cursor. Ticks
// the event refers to move with it.
func (r *Recording) Add(e event.Event) *Recording {
	r.events = append(r.events, event.Shift(e, r.tick-e.Header().Tick))
	return r
}

// End closes the recording with a terminal stage update. A nil server
// count leaves the server ticks unreported.
func (r *Recording) End(status event.StageStatus, accurate bool, recorded int, server *event.ServerTicks) *Recording {
	r.end = &event.StageUpdate{
		Meta:          r.meta(0, 0),
		Status:        status,
		Accurate:      accurate,
		RecordedTicks: recorded,
		ServerTicks:   server,
	}
	return r
}

// Completed closes the recording as an accurate, completed stage whose
// server count matches the recorded ticks.
func (r *Recording) Completed(ticks int) *Recording {
	return r.At(ticks).End(event.StatusCompleted, true, ticks, &event.ServerTicks{Count: ticks, Precise: true})
}

// Events returns the recorded events followed by the terminal update, if
// any.
func (r *Recording) Events() []event.Event {
	events := slices.Clone(r.events)
	if r.end != nil {
		events = append(events, *r.end)
	}
	return events
}

// Client builds the recording through the same path an upload takes.
func (r *Recording) Client(opts ...clientevents.Option) *clientevents.ClientEvents {
	return clientevents.FromStream(r.id, r.challenge, r.stage, r.Events(), opts...)
}

// Batch returns the wire form of the recording.
func (r *Recording) Batch() *batch.Batch {
	return batch.FromEvents(r.id, r.challenge, r.stage, slices.Values(r.Events()))
}

// Challenge returns the challenge the recording belongs to.
func (r *Recording) Challenge() clientevents.ChallengeInfo {
	return clientevents.ChallengeInfo{ID: r.challenge.ID, Party: slices.Clone(r.challenge.Party)}
}
