package batch

import (
	"github.com/roach88/tickmerge/internal/clientevents"
	"github.com/roach88/tickmerge/internal/stage"
)

// Batch is one client's upload: everything it recorded during a stage.
type Batch struct {
	ClientID  int                        `json:"clientId" yaml:"clientId"`
	Challenge clientevents.ChallengeInfo `json:"challenge" yaml:"challenge"`
	Stage     string                     `json:"stage" yaml:"stage"`
	Events    []Event                    `json:"events" yaml:"events"`
}

// Event is the wire form of an event. Type selects which payload is read.
type Event struct {
	Type   string `json:"type" yaml:"type"`
	Tick   int    `json:"tick" yaml:"tick"`
	XCoord int    `json:"xCoord,omitempty" yaml:"xCoord,omitempty"`
	YCoord int    `json:"yCoord,omitempty" yaml:"yCoord,omitempty"`

	StageUpdate          *StageUpdate   `json:"stageUpdate,omitempty" yaml:"stageUpdate,omitempty"`
	Player               *Player        `json:"player,omitempty" yaml:"player,omitempty"`
	PlayerAttack         *PlayerAttack  `json:"playerAttack,omitempty" yaml:"playerAttack,omitempty"`
	Npc                  *Npc           `json:"npc,omitempty" yaml:"npc,omitempty"`
	NpcAttack            *NpcAttack     `json:"npcAttack,omitempty" yaml:"npcAttack,omitempty"`
	VerzikBounce         *VerzikBounce  `json:"verzikBounce,omitempty" yaml:"verzikBounce,omitempty"`
	VerzikAttackStyle    *AttackStyle   `json:"verzikAttackStyle,omitempty" yaml:"verzikAttackStyle,omitempty"`
	VerzikDawn           *VerzikDawn    `json:"verzikDawn,omitempty" yaml:"verzikDawn,omitempty"`
	XarpusExhumed        *XarpusExhumed `json:"xarpusExhumed,omitempty" yaml:"xarpusExhumed,omitempty"`
	MokhaiotlAttackStyle *AttackStyle   `json:"mokhaiotlAttackStyle,omitempty" yaml:"mokhaiotlAttackStyle,omitempty"`
	MokhaiotlOrb         *MokhaiotlOrb  `json:"mokhaiotlOrb,omitempty" yaml:"mokhaiotlOrb,omitempty"`
	MaidenBloodSplats    []stage.Coords `json:"maidenBloodSplats,omitempty" yaml:"maidenBloodSplats,omitempty"`
	BloatDown            *BloatDown     `json:"bloatDown,omitempty" yaml:"bloatDown,omitempty"`
	NyloWave             *NyloWave      `json:"nyloWave,omitempty" yaml:"nyloWave,omitempty"`
}

type ServerTicks struct {
	Count   int  `json:"count" yaml:"count"`
	Precise bool `json:"precise,omitempty" yaml:"precise,omitempty"`
}

type StageUpdate struct {
	Status        string       `json:"status" yaml:"status"`
	Accurate      bool         `json:"accurate,omitempty" yaml:"accurate,omitempty"`
	RecordedTicks int          `json:"recordedTicks,omitempty" yaml:"recordedTicks,omitempty"`
	ServerTicks   *ServerTicks `json:"serverTicks,omitempty" yaml:"serverTicks,omitempty"`
}

// Player is the player payload of updates and deaths. Hitpoints use the
// packed current<<16|base encoding and Prayers is a bitmask.
type Player struct {
	Name            string      `json:"name" yaml:"name"`
	Source          string      `json:"source,omitempty" yaml:"source,omitempty"`
	OffCooldownTick int         `json:"offCooldownTick,omitempty" yaml:"offCooldownTick,omitempty"`
	Hitpoints       int         `json:"hitpoints,omitempty" yaml:"hitpoints,omitempty"`
	Prayers         uint64      `json:"prayers,omitempty" yaml:"prayers,omitempty"`
	EquipmentDeltas []ItemDelta `json:"equipmentDeltas,omitempty" yaml:"equipmentDeltas,omitempty"`
}

type ItemDelta struct {
	Slot     string `json:"slot" yaml:"slot"`
	ItemID   int    `json:"itemId" yaml:"itemId"`
	Quantity int    `json:"quantity" yaml:"quantity"`
	Added    bool   `json:"added" yaml:"added"`
}

// PlayerAttack targets an NPC by room ID when Target is set.
type PlayerAttack struct {
	Player   string `json:"player" yaml:"player"`
	Type     string `json:"type" yaml:"type"`
	WeaponID int    `json:"weaponId,omitempty" yaml:"weaponId,omitempty"`
	Target   *int   `json:"target,omitempty" yaml:"target,omitempty"`
	Distance int    `json:"distance,omitempty" yaml:"distance,omitempty"`
}

type Npc struct {
	RoomID    int `json:"roomId" yaml:"roomId"`
	ID        int `json:"id" yaml:"id"`
	Hitpoints int `json:"hitpoints,omitempty" yaml:"hitpoints,omitempty"`
}

type NpcAttack struct {
	RoomID int    `json:"roomId" yaml:"roomId"`
	ID     int    `json:"id,omitempty" yaml:"id,omitempty"`
	Attack string `json:"attack" yaml:"attack"`
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
}

type VerzikBounce struct {
	NpcAttackTick     int    `json:"npcAttackTick" yaml:"npcAttackTick"`
	PlayersInRange    int    `json:"playersInRange,omitempty" yaml:"playersInRange,omitempty"`
	PlayersNotInRange int    `json:"playersNotInRange,omitempty" yaml:"playersNotInRange,omitempty"`
	BouncedPlayer     string `json:"bouncedPlayer,omitempty" yaml:"bouncedPlayer,omitempty"`
}

// AttackStyle is shared by the Verzik and Mokhaiotl style corrections.
type AttackStyle struct {
	Style         string `json:"style" yaml:"style"`
	NpcAttackTick int    `json:"npcAttackTick" yaml:"npcAttackTick"`
}

type VerzikDawn struct {
	AttackTick int    `json:"attackTick" yaml:"attackTick"`
	Damage     int    `json:"damage,omitempty" yaml:"damage,omitempty"`
	Player     string `json:"player,omitempty" yaml:"player,omitempty"`
}

type XarpusExhumed struct {
	SpawnTick  int   `json:"spawnTick" yaml:"spawnTick"`
	HealAmount int   `json:"healAmount,omitempty" yaml:"healAmount,omitempty"`
	HealTicks  []int `json:"healTicks,omitempty" yaml:"healTicks,omitempty"`
}

type MokhaiotlOrb struct {
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`
	Style     string `json:"style,omitempty" yaml:"style,omitempty"`
	StartTick int    `json:"startTick" yaml:"startTick"`
	EndTick   int    `json:"endTick" yaml:"endTick"`
}

type BloatDown struct {
	DownNumber int `json:"downNumber,omitempty" yaml:"downNumber,omitempty"`
	WalkTime   int `json:"walkTime,omitempty" yaml:"walkTime,omitempty"`
}

type NyloWave struct {
	Wave       int `json:"wave,omitempty" yaml:"wave,omitempty"`
	NylosAlive int `json:"nylosAlive,omitempty" yaml:"nylosAlive,omitempty"`
	RoomCap    int `json:"roomCap,omitempty" yaml:"roomCap,omitempty"`
}
