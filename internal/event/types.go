package event

import (
	"fmt"
	"strings"
)

// DataSource identifies who reported a player's state.
type DataSource int

const (
	// Primary state comes from the player's own client.
	Primary DataSource = iota
	// Secondary state was observed by another client.
	Secondary
)

func (d DataSource) String() string {
	switch d {
	case Primary:
		return "PRIMARY"
	case Secondary:
		return "SECONDARY"
	default:
		return fmt.Sprintf("DataSource(%d)", int(d))
	}
}

// ParseDataSource converts a wire name into a DataSource.
func ParseDataSource(s string) (DataSource, error) {
	switch strings.ToUpper(s) {
	case "PRIMARY":
		return Primary, nil
	case "SECONDARY", "":
		return Secondary, nil
	default:
		return Secondary, fmt.Errorf("unknown data source %q", s)
	}
}

// EquipmentSlot is one of a player's worn-item slots.
type EquipmentSlot int

const (
	SlotHead EquipmentSlot = iota
	SlotCape
	SlotAmulet
	SlotAmmo
	SlotWeapon
	SlotTorso
	SlotShield
	SlotLegs
	SlotGloves
	SlotBoots
	SlotRing

	// NumSlots is the number of equipment slots.
	NumSlots = 11
)

var slotNames = [NumSlots]string{
	"HEAD", "CAPE", "AMULET", "AMMO", "WEAPON", "TORSO",
	"SHIELD", "LEGS", "GLOVES", "BOOTS", "RING",
}

func (s EquipmentSlot) String() string {
	if s >= 0 && int(s) < NumSlots {
		return slotNames[s]
	}
	return fmt.Sprintf("EquipmentSlot(%d)", int(s))
}

// ParseEquipmentSlot converts a wire name into an EquipmentSlot.
func ParseEquipmentSlot(s string) (EquipmentSlot, error) {
	for i, name := range slotNames {
		if strings.EqualFold(name, s) {
			return EquipmentSlot(i), nil
		}
	}
	return 0, fmt.Errorf("unknown equipment slot %q", s)
}

// VisibleSlots are the slots every other client can see on a player.
var VisibleSlots = []EquipmentSlot{
	SlotHead, SlotCape, SlotAmulet, SlotWeapon, SlotTorso,
	SlotShield, SlotLegs, SlotGloves, SlotBoots,
}

// ItemDelta is a signed change to a single equipment slot.
type ItemDelta struct {
	Slot     EquipmentSlot
	ItemID   int
	Quantity int

	// Added distinguishes an item being equipped (or stacked) from one being
	// removed.
	Added bool
}

// SkillLevel is a current and base level pair, such as hitpoints.
type SkillLevel struct {
	Current int
	Base    int
}

// SkillLevelFromRaw unpacks the wire encoding (current << 16 | base).
func SkillLevelFromRaw(raw int) SkillLevel {
	return SkillLevel{Current: max(raw>>16, 0), Base: max(raw&0xffff, 0)}
}

// Raw packs the level into its wire encoding.
func (s SkillLevel) Raw() int {
	return s.Current<<16 | s.Base&0xffff
}

// Ratio returns current/base clamped to [0, 1], or 0 when base is unknown.
func (s SkillLevel) Ratio() float64 {
	if s.Base <= 0 {
		return 0
	}
	return float64(min(s.Current, s.Base)) / float64(s.Base)
}

func (s SkillLevel) String() string {
	return fmt.Sprintf("%d/%d", s.Current, s.Base)
}

// Prayer is the index of a prayer within the normal prayer book.
type Prayer uint

const (
	ProtectFromMagic    Prayer = 16
	ProtectFromMissiles Prayer = 17
	ProtectFromMelee    Prayer = 18
	Retribution         Prayer = 21
	Redemption          Prayer = 22
	Smite               Prayer = 23
)

// PrayerSet is a bitmask of active prayers.
type PrayerSet uint64

const overheadMask = PrayerSet(1<<ProtectFromMagic | 1<<ProtectFromMissiles | 1<<ProtectFromMelee |
	1<<Retribution | 1<<Redemption | 1<<Smite)

// NewPrayerSet builds a set from individual prayers.
func NewPrayerSet(prayers ...Prayer) PrayerSet {
	var s PrayerSet
	for _, p := range prayers {
		s |= 1 << p
	}
	return s
}

// Has reports whether p is active.
func (s PrayerSet) Has(p Prayer) bool { return s&(1<<p) != 0 }

// Overheads returns only the prayers that draw an icon above the player.
func (s PrayerSet) Overheads() PrayerSet { return s & overheadMask }
