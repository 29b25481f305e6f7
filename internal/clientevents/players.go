package clientevents

import (
	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/tickstate"
)

// buildPlayerStates reconstructs each party member's state on every tick
// that carries an event about them. The result is indexed by tick.
func buildPlayerStates(byTick [][]event.Event, party []string) []map[string]*tickstate.PlayerState {
	out := make([]map[string]*tickstate.PlayerState, len(byTick))
	for tick := range out {
		out[tick] = make(map[string]*tickstate.PlayerState, len(party))
	}

	for _, name := range party {
		var last *tickstate.PlayerState
		dead := false

		for tick, events := range byTick {
			var state *tickstate.PlayerState
			for _, e := range events {
				if n, ok := event.PlayerName(e); !ok || n != name {
					continue
				}
				if state == nil {
					state = next(name, last, dead)
				}
				switch v := e.(type) {
				case event.PlayerUpdate:
					state.Source = v.Source
					state.X, state.Y = v.X, v.Y
					state.Prayers = v.Prayers
					for _, d := range v.EquipmentDeltas {
						applyDelta(&state.Equipment, d)
					}
				case event.PlayerAttack:
					state.Attack = &tickstate.PlayerAttackState{
						Type:     v.Type,
						WeaponID: v.WeaponID,
						Target:   v.Target,
						Targeted: v.Targeted,
					}
				case event.PlayerDeath:
					dead = true
					state.IsDead = true
				}
			}
			if state != nil {
				out[tick][name] = state
				last = state
			}
		}
	}
	return out
}

// next starts a player's state for a new tick from their last known one. It
// is SECONDARY until an update on the tick says otherwise.
func next(name string, last *tickstate.PlayerState, dead bool) *tickstate.PlayerState {
	s := &tickstate.PlayerState{Name: name, Source: event.Secondary, IsDead: dead}
	if last != nil {
		s.X, s.Y = last.X, last.Y
		s.Equipment = last.Equipment
		s.Prayers = last.Prayers
	}
	return s
}

func applyDelta(equipment *[event.NumSlots]tickstate.EquippedItem, d event.ItemDelta) {
	if d.Slot < 0 || int(d.Slot) >= event.NumSlots {
		return
	}
	prev := equipment[d.Slot]
	sameItem := !prev.Empty() && prev.ID == d.ItemID

	switch {
	case d.Added && sameItem:
		equipment[d.Slot].Quantity += d.Quantity
	case d.Added:
		equipment[d.Slot] = tickstate.EquippedItem{ID: d.ItemID, Quantity: d.Quantity}
	case sameItem && d.Quantity < prev.Quantity:
		equipment[d.Slot].Quantity -= d.Quantity
	default:
		equipment[d.Slot] = tickstate.EquippedItem{}
	}
}
