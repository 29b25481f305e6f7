package tickstate

import (
	"slices"

	"github.com/roach88/tickmerge/internal/event"
)

// Event kinds that are reconciled through player and NPC state rather than
// copied wholesale.
var stateKinds = map[event.Kind]bool{
	event.KindPlayerAttack: true,
	event.KindPlayerDeath:  true,
	event.KindPlayerUpdate: true,
	event.KindNpcAttack:    true,
	event.KindNpcDeath:     true,
	event.KindNpcUpdate:    true,
	event.KindNpcSpawn:     true,
}

// Merge folds other's information into t. Both states must describe the same
// tick; otherwise nothing changes and Merge returns false.
//
// A player missing from t, or known to t only through SECONDARY data, takes
// other's state if other has it. A SECONDARY state never replaces a PRIMARY
// one. NPCs missing from t are copied together with their events. Any other
// event kind t has not recorded is copied as well.
func (t *TickState) Merge(other *TickState) bool {
	if other == nil || t.tick != other.tick {
		return false
	}

	for _, name := range other.PlayerNames() {
		theirs := other.players[name]
		ours := t.players[name]
		if ours == nil || (ours.Source == event.Secondary && theirs.Source == event.Primary) {
			t.overridePlayer(name, other)
			t.requiresResync = true
		}
	}

	for _, roomID := range other.NpcRoomIDs() {
		if _, ok := t.npcs[roomID]; ok {
			continue
		}
		t.npcs[roomID] = other.npcs[roomID].Clone()
		for _, e := range other.events {
			if id, ok := npcRoomID(e); ok && id == roomID {
				t.events = append(t.events, e)
			}
		}
	}

	present := make(map[event.Kind]bool)
	for _, e := range t.events {
		present[e.Kind()] = true
	}
	for _, e := range other.events {
		if !stateKinds[e.Kind()] && !present[e.Kind()] {
			t.events = append(t.events, e)
		}
	}

	return true
}

func (t *TickState) overridePlayer(name string, other *TickState) {
	t.events = slices.DeleteFunc(t.events, func(e event.Event) bool {
		n, ok := event.PlayerName(e)
		return ok && n == name
	})

	t.players[name] = other.players[name].Clone()
	for _, e := range other.events {
		if n, ok := event.PlayerName(e); ok && n == name {
			t.events = append(t.events, e)
		}
	}
}

func npcRoomID(e event.Event) (int, bool) {
	switch v := e.(type) {
	case event.NpcSpawn:
		return v.RoomID, true
	case event.NpcUpdate:
		return v.RoomID, true
	case event.NpcDeath:
		return v.RoomID, true
	case event.NpcAttack:
		return v.RoomID, true
	default:
		return 0, false
	}
}

// Resynchronize rewrites the equipment deltas of every player update on this
// tick so that they lead from each player's nearest earlier known state to
// the state now held. states is the full timeline, indexed by tick. It does
// nothing unless a merge replaced player state.
func (t *TickState) Resynchronize(states []*TickState) {
	if !t.requiresResync {
		return
	}
	for _, name := range t.PlayerNames() {
		t.resynchronizePlayer(name, states)
	}
	t.requiresResync = false
}

func (t *TickState) resynchronizePlayer(name string, states []*TickState) {
	current := t.players[name]

	idx := slices.IndexFunc(t.events, func(e event.Event) bool {
		u, ok := e.(event.PlayerUpdate)
		return ok && u.Name == name
	})
	if idx < 0 {
		return
	}

	var previous *PlayerState
	for tick := min(t.tick, len(states)) - 1; tick >= 0; tick-- {
		if states[tick] == nil {
			continue
		}
		if p := states[tick].Player(name); p != nil {
			previous = p
			break
		}
	}

	update := t.events[idx].(event.PlayerUpdate)
	t.events[idx] = update.WithDeltas(EquipmentDeltas(previous, current))
}

// EquipmentDeltas returns the deltas that turn previous's equipment into
// current's. A nil previous is treated as wearing nothing.
func EquipmentDeltas(previous, current *PlayerState) []event.ItemDelta {
	var deltas []event.ItemDelta
	for slot := range event.NumSlots {
		cur := current.Equipment[slot]
		var prev EquippedItem
		if previous != nil {
			prev = previous.Equipment[slot]
		}
		s := event.EquipmentSlot(slot)

		switch {
		case !cur.Empty() && (prev.Empty() || cur.ID != prev.ID):
			deltas = append(deltas, event.ItemDelta{Slot: s, ItemID: cur.ID, Quantity: cur.Quantity, Added: true})
		case !cur.Empty():
			if diff := cur.Quantity - prev.Quantity; diff != 0 {
				deltas = append(deltas, event.ItemDelta{Slot: s, ItemID: cur.ID, Quantity: abs(diff), Added: diff > 0})
			}
		case !prev.Empty():
			deltas = append(deltas, event.ItemDelta{Slot: s, ItemID: prev.ID, Quantity: prev.Quantity, Added: false})
		}
	}
	return deltas
}

// WithEvents returns a new state for the same tick and players built from a
// different set of events.
func (t *TickState) WithEvents(events []event.Event) *TickState {
	players := make(map[string]*PlayerState, len(t.players))
	for name, p := range t.players {
		players[name] = p.Clone()
	}
	return New(t.tick, events, players)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
