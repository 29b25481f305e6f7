package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/roach88/tickmerge/internal/clientevents"
	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/stage"
)

// FromEvents builds the wire form of a recording.
func FromEvents(clientID int, challenge clientevents.ChallengeInfo, st stage.Stage, events iter.Seq[event.Event]) *Batch {
	b := &Batch{
		ClientID:  clientID,
		Challenge: challenge,
		Stage:     st.String(),
		Events:    []Event{},
	}
	for e := range events {
		b.Events = append(b.Events, encodeEvent(e))
	}
	return b
}

// Encode writes b as an indented JSON document.
func Encode(w io.Writer, b *Batch) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	return nil
}

// EncodeEvents writes events in the batch format.
func EncodeEvents(w io.Writer, clientID int, challenge clientevents.ChallengeInfo, st stage.Stage, events iter.Seq[event.Event]) error {
	return Encode(w, FromEvents(clientID, challenge, st, events))
}

func encodeNpc(n event.Npc) *Npc {
	return &Npc{RoomID: n.RoomID, ID: n.ID, Hitpoints: n.Hitpoints.Raw()}
}

func encodeEvent(e event.Event) Event {
	h := e.Header()
	we := Event{Type: e.Kind().String(), Tick: h.Tick, XCoord: h.X, YCoord: h.Y}

	switch v := e.(type) {
	case event.StageUpdate:
		we.StageUpdate = &StageUpdate{Status: string(v.Status), Accurate: v.Accurate, RecordedTicks: v.RecordedTicks}
		if v.ServerTicks != nil {
			we.StageUpdate.ServerTicks = &ServerTicks{Count: v.ServerTicks.Count, Precise: v.ServerTicks.Precise}
		}
	case event.PlayerUpdate:
		p := &Player{
			Name:            v.Name,
			Source:          v.Source.String(),
			OffCooldownTick: v.OffCooldownTick,
			Hitpoints:       v.Hitpoints.Raw(),
			Prayers:         uint64(v.Prayers),
		}
		for _, d := range v.EquipmentDeltas {
			p.EquipmentDeltas = append(p.EquipmentDeltas, ItemDelta{Slot: d.Slot.String(), ItemID: d.ItemID, Quantity: d.Quantity, Added: d.Added})
		}
		we.Player = p
	case event.PlayerAttack:
		we.PlayerAttack = &PlayerAttack{Player: v.Name, Type: v.Type, WeaponID: v.WeaponID, Distance: v.Distance}
		if v.Targeted {
			target := v.Target
			we.PlayerAttack.Target = &target
		}
	case event.PlayerDeath:
		we.Player = &Player{Name: v.Name}
	case event.NpcSpawn:
		we.Npc = encodeNpc(v.Npc)
	case event.NpcUpdate:
		we.Npc = encodeNpc(v.Npc)
	case event.NpcDeath:
		we.Npc = encodeNpc(v.Npc)
	case event.NpcAttack:
		we.NpcAttack = &NpcAttack{RoomID: v.RoomID, ID: v.ID, Attack: v.Attack, Target: v.Target}
	case event.VerzikBounce:
		we.VerzikBounce = &VerzikBounce{
			NpcAttackTick:     v.NpcAttackTick,
			PlayersInRange:    v.PlayersInRange,
			PlayersNotInRange: v.PlayersNotInRange,
			BouncedPlayer:     v.BouncedPlayer,
		}
	case event.VerzikAttackStyle:
		we.VerzikAttackStyle = &AttackStyle{Style: v.Style, NpcAttackTick: v.NpcAttackTick}
	case event.VerzikDawn:
		we.VerzikDawn = &VerzikDawn{AttackTick: v.AttackTick, Damage: v.Damage, Player: v.Player}
	case event.XarpusExhumed:
		we.XarpusExhumed = &XarpusExhumed{SpawnTick: v.SpawnTick, HealAmount: v.HealAmount, HealTicks: v.HealTicks}
	case event.MokhaiotlAttackStyle:
		we.MokhaiotlAttackStyle = &AttackStyle{Style: v.Style, NpcAttackTick: v.NpcAttackTick}
	case event.MokhaiotlOrb:
		we.MokhaiotlOrb = &MokhaiotlOrb{Source: v.Source, Style: v.Style, StartTick: v.StartTick, EndTick: v.EndTick}
	case event.MaidenBloodSplats:
		we.MaidenBloodSplats = v.Tiles
	case event.BloatDown:
		we.BloatDown = &BloatDown{DownNumber: v.DownNumber, WalkTime: v.WalkTime}
	case event.NyloWave:
		we.NyloWave = &NyloWave{Wave: v.Wave, NylosAlive: v.NylosAlive, RoomCap: v.RoomCap}
	}
	return we
}
