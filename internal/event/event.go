package event

import (
	"fmt"

	"github.com/roach88/tickmerge/internal/stage"
)

// Kind names an event variant. Its string form is the wire type.
type Kind int

const (
	KindStageUpdate Kind = iota + 1
	KindPlayerUpdate
	KindPlayerAttack
	KindPlayerDeath
	KindNpcSpawn
	KindNpcUpdate
	KindNpcAttack
	KindNpcDeath
	KindVerzikBounce
	KindVerzikAttackStyle
	KindVerzikDawn
	KindXarpusExhumed
	KindMokhaiotlAttackStyle
	KindMokhaiotlOrb
	KindMaidenBloodSplats
	KindBloatDown
	KindNyloWave
)

var kindNames = map[Kind]string{
	KindStageUpdate:          "STAGE_UPDATE",
	KindPlayerUpdate:         "PLAYER_UPDATE",
	KindPlayerAttack:         "PLAYER_ATTACK",
	KindPlayerDeath:          "PLAYER_DEATH",
	KindNpcSpawn:             "NPC_SPAWN",
	KindNpcUpdate:            "NPC_UPDATE",
	KindNpcAttack:            "NPC_ATTACK",
	KindNpcDeath:             "NPC_DEATH",
	KindVerzikBounce:         "TOB_VERZIK_BOUNCE",
	KindVerzikAttackStyle:    "TOB_VERZIK_ATTACK_STYLE",
	KindVerzikDawn:           "TOB_VERZIK_DAWN",
	KindXarpusExhumed:        "TOB_XARPUS_EXHUMED",
	KindMokhaiotlAttackStyle: "MOKHAIOTL_ATTACK_STYLE",
	KindMokhaiotlOrb:         "MOKHAIOTL_ORB",
	KindMaidenBloodSplats:    "TOB_MAIDEN_BLOOD_SPLATS",
	KindBloatDown:            "TOB_BLOAT_DOWN",
	KindNyloWave:             "TOB_NYLO_WAVE_SPAWN",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts a wire type name into a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", name)
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames))
	for k := KindStageUpdate; k <= KindNyloWave; k++ {
		out = append(out, k)
	}
	return out
}

// Meta is the header shared by every event.
type Meta struct {
	Tick  int
	Stage stage.Stage
	X     int
	Y     int
}

// Header returns the event header.
func (m Meta) Header() Meta { return m }

// Coords returns the position the event was recorded at.
func (m Meta) Coords() stage.Coords { return stage.Coords{X: m.X, Y: m.Y} }

func (m Meta) retick(tm TickMap) Meta {
	m.Tick = tm.Apply(m.Tick)
	return m
}

// Event is implemented by every event variant in this package.
type Event interface {
	Header() Meta
	Kind() Kind
	// Retick returns a copy of the event with its own tick and every tick it
	// references renumbered through m.
	Retick(m TickMap) Event

	sealed()
}

// StageStatus is the lifecycle state a stage update reports.
type StageStatus string

const (
	StatusEntered   StageStatus = "ENTERED"
	StatusStarted   StageStatus = "STARTED"
	StatusCompleted StageStatus = "COMPLETED"
	StatusWiped     StageStatus = "WIPED"
)

// ServerTicks is the stage length as reported by the game server.
type ServerTicks struct {
	Count int `json:"count" yaml:"count"`

	// Precise distinguishes a confirmed count from an estimate.
	Precise bool `json:"precise" yaml:"precise"`
}

// StageUpdate carries a client's own metadata about its recording.
type StageUpdate struct {
	Meta
	Status        StageStatus
	Accurate      bool
	RecordedTicks int
	ServerTicks   *ServerTicks
}

// PlayerUpdate is a snapshot of one player's state on a tick. Its position is
// the event's X and Y.
type PlayerUpdate struct {
	Meta
	Name            string
	Source          DataSource
	OffCooldownTick int
	Hitpoints       SkillLevel
	Prayers         PrayerSet
	EquipmentDeltas []ItemDelta
}

// WithDeltas returns a copy of the update carrying deltas instead.
func (e PlayerUpdate) WithDeltas(deltas []ItemDelta) PlayerUpdate {
	e.EquipmentDeltas = append([]ItemDelta(nil), deltas...)
	return e
}

// PlayerAttack records an attack a player started on this tick.
type PlayerAttack struct {
	Meta
	Name     string
	Type     string
	WeaponID int

	// Target is the room ID of the attacked NPC, valid when Targeted is set.
	Target   int
	Targeted bool
	Distance int
}

// PlayerDeath records a player dying.
type PlayerDeath struct {
	Meta
	Name string
}

// Npc identifies an NPC instance and its health.
type Npc struct {
	RoomID    int
	ID        int
	Hitpoints SkillLevel
}

// NpcSpawn records an NPC appearing.
type NpcSpawn struct {
	Meta
	Npc
}

// AsUpdate converts the spawn into an update of the same NPC.
func (e NpcSpawn) AsUpdate() NpcUpdate {
	return NpcUpdate{Meta: e.Meta, Npc: e.Npc}
}

// NpcUpdate is a snapshot of an NPC on a tick.
type NpcUpdate struct {
	Meta
	Npc
}

// NpcAttack records an attack an NPC started on this tick.
type NpcAttack struct {
	Meta
	RoomID int
	ID     int
	Attack string

	// Target is the attacked player's name, empty when untargeted.
	Target string
}

// NpcDeath records an NPC dying.
type NpcDeath struct {
	Meta
	Npc
}

// VerzikBounce reports the result of a Verzik bounce attack.
type VerzikBounce struct {
	Meta
	// NpcAttackTick is the tick of the bounce attack, or NoTick.
	NpcAttackTick     int
	PlayersInRange    int
	PlayersNotInRange int
	BouncedPlayer     string
}

// VerzikAttackStyle corrects the style of an earlier Verzik attack.
type VerzikAttackStyle struct {
	Meta
	Style         string
	NpcAttackTick int
}

// VerzikDawn records damage from a dawnbringer special attack.
type VerzikDawn struct {
	Meta
	AttackTick int
	Damage     int
	Player     string
}

// XarpusExhumed records an exhumed pool and the ticks it healed on.
type XarpusExhumed struct {
	Meta
	SpawnTick  int
	HealAmount int
	HealTicks  []int
}

// MokhaiotlAttackStyle corrects the style of an earlier Mokhaiotl attack.
type MokhaiotlAttackStyle struct {
	Meta
	Style         string
	NpcAttackTick int
}

// MokhaiotlOrb records an orb projectile and its flight window.
type MokhaiotlOrb struct {
	Meta
	Source    string
	Style     string
	StartTick int
	EndTick   int
}

// MaidenBloodSplats lists the blood tiles visible on a tick.
type MaidenBloodSplats struct {
	Meta
	Tiles []stage.Coords
}

// BloatDown records Pestilent Bloat going down.
type BloatDown struct {
	Meta
	DownNumber int
	WalkTime   int
}

// NyloWave records a Nylocas wave spawning.
type NyloWave struct {
	Meta
	Wave       int
	NylosAlive int
	RoomCap    int
}

func (StageUpdate) Kind() Kind          { return KindStageUpdate }
func (PlayerUpdate) Kind() Kind         { return KindPlayerUpdate }
func (PlayerAttack) Kind() Kind         { return KindPlayerAttack }
func (PlayerDeath) Kind() Kind          { return KindPlayerDeath }
func (NpcSpawn) Kind() Kind             { return KindNpcSpawn }
func (NpcUpdate) Kind() Kind            { return KindNpcUpdate }
func (NpcAttack) Kind() Kind            { return KindNpcAttack }
func (NpcDeath) Kind() Kind             { return KindNpcDeath }
func (VerzikBounce) Kind() Kind         { return KindVerzikBounce }
func (VerzikAttackStyle) Kind() Kind    { return KindVerzikAttackStyle }
func (VerzikDawn) Kind() Kind           { return KindVerzikDawn }
func (XarpusExhumed) Kind() Kind        { return KindXarpusExhumed }
func (MokhaiotlAttackStyle) Kind() Kind { return KindMokhaiotlAttackStyle }
func (MokhaiotlOrb) Kind() Kind         { return KindMokhaiotlOrb }
func (MaidenBloodSplats) Kind() Kind    { return KindMaidenBloodSplats }
func (BloatDown) Kind() Kind            { return KindBloatDown }
func (NyloWave) Kind() Kind             { return KindNyloWave }

func (StageUpdate) sealed()          {}
func (PlayerUpdate) sealed()         {}
func (PlayerAttack) sealed()         {}
func (PlayerDeath) sealed()          {}
func (NpcSpawn) sealed()             {}
func (NpcUpdate) sealed()            {}
func (NpcAttack) sealed()            {}
func (NpcDeath) sealed()             {}
func (VerzikBounce) sealed()         {}
func (VerzikAttackStyle) sealed()    {}
func (VerzikDawn) sealed()           {}
func (XarpusExhumed) sealed()        {}
func (MokhaiotlAttackStyle) sealed() {}
func (MokhaiotlOrb) sealed()         {}
func (MaidenBloodSplats) sealed()    {}
func (BloatDown) sealed()            {}
func (NyloWave) sealed()             {}

func (e StageUpdate) Retick(m TickMap) Event {
	e.Meta = e.Meta.retick(m)
	return e
}

func (e PlayerUpdate) Retick(m TickMap) Event {
	e.Meta = e.Meta.retick(m)
	e.OffCooldownTick = m.Apply(e.OffCooldownTick)
	return e
}

func (e PlayerAttack) Retick(m TickMap) Event {
	e.Meta = e.Meta.retick(m)
	return e
}

func (e PlayerDeath) Retick(m TickMap) Event {
	e.Meta = e.Meta.retick(m)
	return e
}

func (e NpcSpawn) Retick(m TickMap) Event {
	e.Meta = e.Meta.retick(m)
	return e
}

func (e NpcUpdate) Retick(m TickMap) Event {
	e.Meta = e.Meta.retick(m)
	return e
}

func (e NpcAttack) Retick(m TickMap) Event {
	e.Meta = e.Meta.retick(m)
	return e
}

func (e NpcDeath) Retick(m TickMap) Event {
	e.Meta = e.Meta.retick(m)
	return e
}

func (e VerzikBounce) Retick(m TickMap) Event {
	e.Meta = e.Meta.retick(m)
	e.NpcAttackTick = m.Apply(e.NpcAttackTick)
	return e
}

func (e VerzikAttackStyle) Retick(m TickMap) Event {
	e.Meta = e.Meta.retick(m)
	e.NpcAttackTick = m.Apply(e.NpcAttackTick)
	return e
}

func (e VerzikDawn) Retick(m TickMap) Event {
	e.Meta = e.Meta.retick(m)
	e.AttackTick = m.Apply(e.AttackTick)
	return e
}

func (e XarpusExhumed) Retick(m TickMap) Event {
	e.Meta = e.Meta.retick(m)
	e.SpawnTick = m.Apply(e.SpawnTick)
	e.HealTicks = m.applyAll(e.HealTicks)
	return e
}

func (e MokhaiotlAttackStyle) Retick(m TickMap) Event {
	e.Meta = e.Meta.retick(m)
	e.NpcAttackTick = m.Apply(e.NpcAttackTick)
	return e
}

func (e MokhaiotlOrb) Retick(m TickMap) Event {
	e.Meta = e.Meta.retick(m)
	e.StartTick = m.Apply(e.StartTick)
	e.EndTick = m.Apply(e.EndTick)
	return e
}

func (e MaidenBloodSplats) Retick(m TickMap) Event {
	e.Meta = e.Meta.retick(m)
	return e
}

func (e BloatDown) Retick(m TickMap) Event {
	e.Meta = e.Meta.retick(m)
	return e
}

func (e NyloWave) Retick(m TickMap) Event {
	e.Meta = e.Meta.retick(m)
	return e
}

// PlayerName returns the player an event is about, if any.
func PlayerName(e Event) (string, bool) {
	switch v := e.(type) {
	case PlayerUpdate:
		return v.Name, true
	case PlayerAttack:
		return v.Name, true
	case PlayerDeath:
		return v.Name, true
	default:
		return "", false
	}
}

// IsPlayerState reports whether an event contributes to a player's per-tick
// state.
func IsPlayerState(k Kind) bool {
	return k == KindPlayerUpdate || k == KindPlayerAttack || k == KindPlayerDeath
}

// IsNpcState reports whether an event contributes to an NPC's per-tick state.
func IsNpcState(k Kind) bool {
	return k == KindNpcSpawn || k == KindNpcUpdate || k == KindNpcAttack || k == KindNpcDeath
}
