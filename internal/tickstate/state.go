// Package tickstate holds the reconstructed state of every actor on a single
// tick, together with the raw events it was built from.
//
// A TickState is built once per recorded tick. It is only changed during a
// merge, and a merge only adds information: a PRIMARY player state replaces a
// SECONDARY one, missing NPCs are copied in, and event kinds the tick does not
// have yet are appended.
package tickstate

import (
	"maps"
	"slices"

	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/stage"
)

// EquippedItem is the item in an equipment slot. A slot with a non-positive
// quantity is empty.
type EquippedItem struct {
	ID       int
	Quantity int
}

// Empty reports whether the slot holds nothing.
func (e EquippedItem) Empty() bool { return e.Quantity <= 0 }

// PlayerAttackState is the attack a player started on a tick.
type PlayerAttackState struct {
	Type     string
	WeaponID int
	Target   int
	Targeted bool
}

// NpcAttackState is the attack an NPC started on a tick.
type NpcAttackState struct {
	Attack string
	Target string
}

// PlayerState is one player's state on one tick.
type PlayerState struct {
	Name      string
	Source    event.DataSource
	X         int
	Y         int
	IsDead    bool
	Equipment [event.NumSlots]EquippedItem
	Attack    *PlayerAttackState
	Prayers   event.PrayerSet
}

// Coords returns the player's position.
func (p *PlayerState) Coords() stage.Coords { return stage.Coords{X: p.X, Y: p.Y} }

// Clone returns a deep copy of the state.
func (p *PlayerState) Clone() *PlayerState {
	if p == nil {
		return nil
	}
	c := *p
	if p.Attack != nil {
		a := *p.Attack
		c.Attack = &a
	}
	return &c
}

// NpcState is one NPC's state on one tick.
type NpcState struct {
	RoomID    int
	ID        int
	X         int
	Y         int
	Hitpoints event.SkillLevel
	Attack    *NpcAttackState
}

// Clone returns a deep copy of the state.
func (n *NpcState) Clone() *NpcState {
	if n == nil {
		return nil
	}
	c := *n
	if n.Attack != nil {
		a := *n.Attack
		c.Attack = &a
	}
	return &c
}

// TickState is the state of a stage on a single tick.
type TickState struct {
	tick           int
	events         []event.Event
	players        map[string]*PlayerState
	npcs           map[int]*NpcState
	requiresResync bool
}

// New builds the state of tick from its events and the already reconstructed
// player states. NPC states are derived from the spawn, update and attack
// events. The players map is retained; events are copied.
func New(tick int, events []event.Event, players map[string]*PlayerState) *TickState {
	if players == nil {
		players = make(map[string]*PlayerState)
	}
	ts := &TickState{
		tick:    tick,
		events:  slices.Clone(events),
		players: players,
		npcs:    make(map[int]*NpcState),
	}

	for _, e := range events {
		switch v := e.(type) {
		case event.NpcSpawn:
			ts.npcs[v.RoomID] = npcFrom(v.Meta, v.Npc)
		case event.NpcUpdate:
			ts.npcs[v.RoomID] = npcFrom(v.Meta, v.Npc)
		}
	}
	for _, e := range events {
		if v, ok := e.(event.NpcAttack); ok {
			if npc := ts.npcs[v.RoomID]; npc != nil {
				npc.Attack = &NpcAttackState{Attack: v.Attack, Target: v.Target}
			}
		}
	}

	return ts
}

func npcFrom(m event.Meta, n event.Npc) *NpcState {
	return &NpcState{RoomID: n.RoomID, ID: n.ID, X: m.X, Y: m.Y, Hitpoints: n.Hitpoints}
}

// Tick returns the tick this state represents.
func (t *TickState) Tick() int { return t.tick }

// Events returns the tick's events in recorded order.
func (t *TickState) Events() []event.Event { return slices.Clone(t.events) }

// EventsOfKind returns the tick's events of kind k in recorded order.
func (t *TickState) EventsOfKind(k event.Kind) []event.Event {
	var out []event.Event
	for _, e := range t.events {
		if e.Kind() == k {
			out = append(out, e)
		}
	}
	return out
}

// HasKind reports whether any event of kind k was recorded on this tick.
func (t *TickState) HasKind(k event.Kind) bool {
	for _, e := range t.events {
		if e.Kind() == k {
			return true
		}
	}
	return false
}

// Player returns the named player's state, or nil. The result must not be
// modified.
func (t *TickState) Player(name string) *PlayerState { return t.players[name] }

// PlayerNames returns the names of players with a state, sorted.
func (t *TickState) PlayerNames() []string {
	names := make([]string, 0, len(t.players))
	for name, p := range t.players {
		if p != nil {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Npc returns the state of the NPC with the given room ID, or nil. The
// result must not be modified.
func (t *TickState) Npc(roomID int) *NpcState { return t.npcs[roomID] }

// NpcRoomIDs returns the room IDs of all NPCs present, sorted.
func (t *TickState) NpcRoomIDs() []int {
	return slices.Sorted(maps.Keys(t.npcs))
}

// RequiresResync reports whether a merge replaced player state whose events
// have not been brought back in line yet.
func (t *TickState) RequiresResync() bool { return t.requiresResync }

// Clone returns a deep copy of the state. Events are immutable and shared.
func (t *TickState) Clone() *TickState {
	c := &TickState{
		tick:           t.tick,
		events:         slices.Clone(t.events),
		players:        make(map[string]*PlayerState, len(t.players)),
		npcs:           make(map[int]*NpcState, len(t.npcs)),
		requiresResync: t.requiresResync,
	}
	for name, p := range t.players {
		c.players[name] = p.Clone()
	}
	for id, n := range t.npcs {
		c.npcs[id] = n.Clone()
	}
	return c
}

// Retick returns a copy of the state moved through m. The tick and every
// tick referenced by its events are renumbered.
func (t *TickState) Retick(m event.TickMap) *TickState {
	c := t.Clone()
	c.tick = m.Apply(t.tick)
	for i, e := range c.events {
		c.events[i] = e.Retick(m)
	}
	return c
}
