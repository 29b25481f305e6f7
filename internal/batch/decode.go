// Package batch reads and writes the JSON documents clients upload: one
// document per client holding every event it recorded during a stage.
//
// Documents are validated against an embedded JSON Schema before they are
// decoded, so structural problems are reported with the JSON pointer of the
// offending value.
package batch

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/roach88/tickmerge/internal/clientevents"
	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/stage"
)

//go:embed schema.json
var schemaSource string

const schemaURL = "https://github.com/roach88/tickmerge/batch.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, bytes.NewReader([]byte(schemaSource))); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
})

// Read reads and validates a batch document.
func Read(r io.Reader) (*Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	return Parse(data)
}

// Parse validates data against the batch schema and decodes it.
func Parse(data []byte) (*Batch, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &DecodeError{Code: CodeMalformedJSON, Message: err.Error(), Err: err}
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("batch schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, schemaError(err)
	}

	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, &DecodeError{Code: CodeMalformedJSON, Message: err.Error(), Err: err}
	}
	return &b, nil
}

// schemaError reports the first leaf of a validation failure, which names
// the innermost offending value.
func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &DecodeError{Code: CodeSchemaViolation, Message: err.Error(), Err: err}
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	return &DecodeError{
		Code:    CodeSchemaViolation,
		Message: leaf.Message,
		Path:    leaf.InstanceLocation,
		Err:     err,
	}
}

// DecodeClient reads a batch and builds the client recording it describes.
func DecodeClient(r io.Reader, opts ...clientevents.Option) (*clientevents.ClientEvents, error) {
	b, err := Read(r)
	if err != nil {
		return nil, err
	}
	return b.Client(opts...)
}

// Client builds the client recording the batch describes. Stage updates in
// the batch supply its metadata.
func (b *Batch) Client(opts ...clientevents.Option) (*clientevents.ClientEvents, error) {
	st, events, err := b.Decode()
	if err != nil {
		return nil, err
	}
	return clientevents.FromStream(b.ClientID, b.Challenge, st, events, opts...), nil
}

// Decode converts the batch's stage and events to their typed form.
func (b *Batch) Decode() (stage.Stage, []event.Event, error) {
	st, err := stage.Parse(b.Stage)
	if err != nil {
		return 0, nil, &DecodeError{Code: CodeUnknownStage, Message: err.Error(), Path: "/stage", Err: err}
	}

	events := make([]event.Event, 0, len(b.Events))
	for i, we := range b.Events {
		e, err := we.decode(st, fmt.Sprintf("/events/%d", i))
		if err != nil {
			return 0, nil, err
		}
		events = append(events, e)
	}
	return st, events, nil
}

func missing(path, payload string) error {
	return &DecodeError{
		Code:    CodeMissingPayload,
		Message: fmt.Sprintf("event has no %s payload", payload),
		Path:    path,
	}
}

func invalid(path string, err error) error {
	return &DecodeError{Code: CodeInvalidField, Message: err.Error(), Path: path, Err: err}
}

func (we Event) decode(st stage.Stage, path string) (event.Event, error) {
	kind, err := event.ParseKind(we.Type)
	if err != nil {
		return nil, &DecodeError{Code: CodeUnknownEventType, Message: err.Error(), Path: path + "/type", Err: err}
	}
	meta := event.Meta{Tick: we.Tick, Stage: st, X: we.XCoord, Y: we.YCoord}

	switch kind {
	case event.KindStageUpdate:
		p := we.StageUpdate
		if p == nil {
			return nil, missing(path, "stageUpdate")
		}
		update := event.StageUpdate{
			Meta:          meta,
			Status:        event.StageStatus(p.Status),
			Accurate:      p.Accurate,
			RecordedTicks: p.RecordedTicks,
		}
		if p.ServerTicks != nil {
			update.ServerTicks = &event.ServerTicks{Count: p.ServerTicks.Count, Precise: p.ServerTicks.Precise}
		}
		return update, nil

	case event.KindPlayerUpdate:
		p := we.Player
		if p == nil {
			return nil, missing(path, "player")
		}
		source, err := event.ParseDataSource(p.Source)
		if err != nil {
			return nil, invalid(path+"/player/source", err)
		}
		var deltas []event.ItemDelta
		for i, d := range p.EquipmentDeltas {
			slot, err := event.ParseEquipmentSlot(d.Slot)
			if err != nil {
				return nil, invalid(fmt.Sprintf("%s/player/equipmentDeltas/%d/slot", path, i), err)
			}
			deltas = append(deltas, event.ItemDelta{Slot: slot, ItemID: d.ItemID, Quantity: d.Quantity, Added: d.Added})
		}
		return event.PlayerUpdate{
			Meta:            meta,
			Name:            p.Name,
			Source:          source,
			OffCooldownTick: p.OffCooldownTick,
			Hitpoints:       event.SkillLevelFromRaw(p.Hitpoints),
			Prayers:         event.PrayerSet(p.Prayers),
			EquipmentDeltas: deltas,
		}, nil

	case event.KindPlayerAttack:
		p := we.PlayerAttack
		if p == nil {
			return nil, missing(path, "playerAttack")
		}
		attack := event.PlayerAttack{Meta: meta, Name: p.Player, Type: p.Type, WeaponID: p.WeaponID, Distance: p.Distance}
		if p.Target != nil {
			attack.Target, attack.Targeted = *p.Target, true
		}
		return attack, nil

	case event.KindPlayerDeath:
		if we.Player == nil {
			return nil, missing(path, "player")
		}
		return event.PlayerDeath{Meta: meta, Name: we.Player.Name}, nil

	case event.KindNpcSpawn, event.KindNpcUpdate, event.KindNpcDeath:
		p := we.Npc
		if p == nil {
			return nil, missing(path, "npc")
		}
		npc := event.Npc{RoomID: p.RoomID, ID: p.ID, Hitpoints: event.SkillLevelFromRaw(p.Hitpoints)}
		switch kind {
		case event.KindNpcSpawn:
			return event.NpcSpawn{Meta: meta, Npc: npc}, nil
		case event.KindNpcUpdate:
			return event.NpcUpdate{Meta: meta, Npc: npc}, nil
		default:
			return event.NpcDeath{Meta: meta, Npc: npc}, nil
		}

	case event.KindNpcAttack:
		p := we.NpcAttack
		if p == nil {
			return nil, missing(path, "npcAttack")
		}
		return event.NpcAttack{Meta: meta, RoomID: p.RoomID, ID: p.ID, Attack: p.Attack, Target: p.Target}, nil

	case event.KindVerzikBounce:
		p := we.VerzikBounce
		if p == nil {
			return nil, missing(path, "verzikBounce")
		}
		return event.VerzikBounce{
			Meta:              meta,
			NpcAttackTick:     p.NpcAttackTick,
			PlayersInRange:    p.PlayersInRange,
			PlayersNotInRange: p.PlayersNotInRange,
			BouncedPlayer:     p.BouncedPlayer,
		}, nil

	case event.KindVerzikAttackStyle:
		p := we.VerzikAttackStyle
		if p == nil {
			return nil, missing(path, "verzikAttackStyle")
		}
		return event.VerzikAttackStyle{Meta: meta, Style: p.Style, NpcAttackTick: p.NpcAttackTick}, nil

	case event.KindVerzikDawn:
		p := we.VerzikDawn
		if p == nil {
			return nil, missing(path, "verzikDawn")
		}
		return event.VerzikDawn{Meta: meta, AttackTick: p.AttackTick, Damage: p.Damage, Player: p.Player}, nil

	case event.KindXarpusExhumed:
		p := we.XarpusExhumed
		if p == nil {
			return nil, missing(path, "xarpusExhumed")
		}
		return event.XarpusExhumed{Meta: meta, SpawnTick: p.SpawnTick, HealAmount: p.HealAmount, HealTicks: p.HealTicks}, nil

	case event.KindMokhaiotlAttackStyle:
		p := we.MokhaiotlAttackStyle
		if p == nil {
			return nil, missing(path, "mokhaiotlAttackStyle")
		}
		return event.MokhaiotlAttackStyle{Meta: meta, Style: p.Style, NpcAttackTick: p.NpcAttackTick}, nil

	case event.KindMokhaiotlOrb:
		p := we.MokhaiotlOrb
		if p == nil {
			return nil, missing(path, "mokhaiotlOrb")
		}
		return event.MokhaiotlOrb{Meta: meta, Source: p.Source, Style: p.Style, StartTick: p.StartTick, EndTick: p.EndTick}, nil

	case event.KindMaidenBloodSplats:
		return event.MaidenBloodSplats{Meta: meta, Tiles: we.MaidenBloodSplats}, nil

	case event.KindBloatDown:
		p := we.BloatDown
		if p == nil {
			return nil, missing(path, "bloatDown")
		}
		return event.BloatDown{Meta: meta, DownNumber: p.DownNumber, WalkTime: p.WalkTime}, nil

	case event.KindNyloWave:
		p := we.NyloWave
		if p == nil {
			return nil, missing(path, "nyloWave")
		}
		return event.NyloWave{Meta: meta, Wave: p.Wave, NylosAlive: p.NylosAlive, RoomCap: p.RoomCap}, nil
	}

	return nil, &DecodeError{Code: CodeUnknownEventType, Message: fmt.Sprintf("unhandled event type %q", we.Type), Path: path + "/type"}
}
