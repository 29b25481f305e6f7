// Package similarity scores how likely two recorded tick states are to
// describe the same real-world tick.
//
// Scoring has two stages. A hard compatibility gate rejects pairs that cannot
// be the same tick, returning negative infinity. Every pair that passes is
// scored as a weighted sum of independent, individually clamped components:
// NPC hitpoints, player and NPC attacks, overhead prayers and deaths. Higher
// is more alike.
package similarity

import (
	"math"
	"strconv"

	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/observe"
	"github.com/roach88/tickmerge/internal/stage"
	"github.com/roach88/tickmerge/internal/tickstate"
)

// Incompatible is the score of a pair that fails the compatibility gate.
var Incompatible = math.Inf(-1)

// Scorer compares tick states. The zero value is not usable; use New.
type Scorer struct {
	c   Constants
	obs observe.Observer
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithConstants replaces the default scoring constants.
func WithConstants(c Constants) Option {
	return func(s *Scorer) { s.c = c }
}

// WithObserver routes component breakdowns to o at observe.LevelTrace.
func WithObserver(o observe.Observer) Option {
	return func(s *Scorer) { s.obs = observe.OrNop(o) }
}

// New returns a Scorer using the default constants.
func New(opts ...Option) *Scorer {
	s := &Scorer{c: DefaultConstants(), obs: observe.Nop}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Constants returns the constants in use.
func (s *Scorer) Constants() Constants { return s.c }

// Score returns the similarity of a and b, or Incompatible.
func (s *Scorer) Score(a, b *tickstate.TickState) float64 {
	if !Compatible(a, b) {
		return Incompatible
	}

	hp := s.scoreHitpoints(a, b)
	playerAttacks := s.scorePlayerAttacks(a, b)
	npcAttacks := s.scoreNpcAttacks(a, b)
	prayers := s.scorePrayers(a, b)
	deaths := s.scoreDeaths(a, b)

	total := hp*s.c.HitpointsWeight +
		(playerAttacks+npcAttacks)*s.c.AttacksWeight +
		prayers*s.c.PrayersWeight +
		deaths*s.c.DeathsWeight

	if s.obs.Enabled(observe.LevelTrace) {
		s.obs.Log(observe.LevelTrace, "tick similarity",
			"tick_a", a.Tick(),
			"tick_b", b.Tick(),
			"hitpoints", hp,
			"player_attacks", playerAttacks,
			"npc_attacks", npcAttacks,
			"prayers", prayers,
			"deaths", deaths,
			"total", total,
		)
	}
	return total
}

// Compatible reports whether a and b could describe the same tick. Every
// player visible in both must stand on the same tile wearing the same
// visible items, and every NPC visible in both must have the same ID and
// position. Death is ignored, as the tick it first shows on depends on lag.
func Compatible(a, b *tickstate.TickState) bool {
	for _, name := range a.PlayerNames() {
		pa, pb := a.Player(name), b.Player(name)
		if pb == nil {
			continue
		}
		if pa.X != pb.X || pa.Y != pb.Y {
			return false
		}
		for _, slot := range event.VisibleSlots {
			if itemID(pa.Equipment[slot]) != itemID(pb.Equipment[slot]) {
				return false
			}
		}
	}

	for _, roomID := range a.NpcRoomIDs() {
		na, nb := a.Npc(roomID), b.Npc(roomID)
		if nb == nil {
			continue
		}
		if na.ID != nb.ID || na.X != nb.X || na.Y != nb.Y {
			return false
		}
	}
	return true
}

func itemID(item tickstate.EquippedItem) int {
	if item.Empty() {
		return -1
	}
	return item.ID
}

func (s *Scorer) scoreHitpoints(a, b *tickstate.TickState) float64 {
	score := 0.0
	for _, roomID := range a.NpcRoomIDs() {
		na, nb := a.Npc(roomID), b.Npc(roomID)
		if nb == nil {
			continue
		}

		weight, k := s.c.RegularHitpointsWeight, s.c.RegularHitpointsK
		if stage.HasVarbitHitpoints(na.ID) {
			weight, k = s.c.VarbitHitpointsWeight, s.c.VarbitHitpointsK
		}

		delta := math.Abs(na.Hitpoints.Ratio() - nb.Hitpoints.Ratio())
		if delta > s.c.HitpointsDeltaThreshold {
			// Client health estimates are fuzzy; large gaps say nothing.
			continue
		}
		score += weight * math.Exp(-k*delta*delta)
	}
	return math.Min(score, s.c.HitpointsMax)
}

// attack is one actor's attack on a tick, reduced to what two clients can
// agree on.
type attack struct {
	actor    string
	identity string
	target   string
}

func playerAttacks(ts *tickstate.TickState) []attack {
	var out []attack
	for _, name := range ts.PlayerNames() {
		p := ts.Player(name)
		if p.Attack == nil {
			continue
		}
		a := attack{actor: name, identity: p.Attack.Type + ":" + strconv.Itoa(p.Attack.WeaponID)}
		if p.Attack.Targeted {
			a.target = strconv.Itoa(p.Attack.Target)
		}
		out = append(out, a)
	}
	return out
}

func npcAttacks(ts *tickstate.TickState) []attack {
	var out []attack
	for _, roomID := range ts.NpcRoomIDs() {
		n := ts.Npc(roomID)
		if n.Attack == nil {
			continue
		}
		out = append(out, attack{actor: strconv.Itoa(roomID), identity: n.Attack.Attack, target: n.Attack.Target})
	}
	return out
}

func hasPlayer(ts *tickstate.TickState, name string) bool { return ts.Player(name) != nil }

func hasNpc(ts *tickstate.TickState, roomID string) bool {
	id, err := strconv.Atoi(roomID)
	return err == nil && ts.Npc(id) != nil
}

func (s *Scorer) scorePlayerAttacks(a, b *tickstate.TickState) float64 {
	return scoreAttacks(a, b, playerAttacks(a), playerAttacks(b), hasPlayer, hasNpc, s.c.PlayerAttacks)
}

func (s *Scorer) scoreNpcAttacks(a, b *tickstate.TickState) float64 {
	return scoreAttacks(a, b, npcAttacks(a), npcAttacks(b), hasNpc, hasPlayer, s.c.NpcAttacks)
}

// scoreAttacks compares the attacks each actor performed on two ticks.
//
// Clients infer attacks from animations, so a dropped tick can move an attack
// to the next tick on one side only. Omissions and missing targets are
// therefore only weak signals; an actor performing a different attack, or the
// same attack on a different target, is a contradiction.
func scoreAttacks(
	a, b *tickstate.TickState,
	attacksA, attacksB []attack,
	hasActor, hasTarget func(*tickstate.TickState, string) bool,
	sig AttackSignals,
) float64 {
	if len(attacksA) == 0 && len(attacksB) == 0 {
		return 0
	}

	byActorB := make(map[string]attack, len(attacksB))
	for _, atk := range attacksB {
		byActorB[atk.actor] = atk
	}
	byActorA := make(map[string]attack, len(attacksA))
	for _, atk := range attacksA {
		byActorA[atk.actor] = atk
	}

	score := 0.0
	for _, atkA := range attacksA {
		atkB, ok := byActorB[atkA.actor]
		if !ok {
			if hasActor(b, atkA.actor) {
				score += sig.WeakNegative
			}
			continue
		}

		switch {
		case atkA.identity != atkB.identity:
			score += sig.Contradictory
		case atkA.target != "" && atkB.target != "":
			if atkA.target == atkB.target {
				score += sig.Positive
			} else {
				score += sig.Contradictory
			}
		case atkA.target != "":
			score += targetSignal(b, atkA.target, hasTarget, sig)
		case atkB.target != "":
			score += targetSignal(a, atkB.target, hasTarget, sig)
		default:
			score += sig.WeakPositive
		}
	}

	for _, atkB := range attacksB {
		if _, ok := byActorA[atkB.actor]; !ok && hasActor(a, atkB.actor) {
			score += sig.WeakNegative
		}
	}

	return clamp(score, sig.Min, sig.Max)
}

// targetSignal scores an attack whose target only one side recorded. If the
// other side could see the target it should have recorded it too.
func targetSignal(other *tickstate.TickState, target string, hasTarget func(*tickstate.TickState, string) bool, sig AttackSignals) float64 {
	if hasTarget(other, target) {
		return sig.WeakNegative
	}
	return sig.WeakPositive
}

func (s *Scorer) scorePrayers(a, b *tickstate.TickState) float64 {
	score := 0.0
	for _, name := range a.PlayerNames() {
		pa, pb := a.Player(name), b.Player(name)
		if pb == nil {
			continue
		}
		oa, ob := pa.Prayers.Overheads(), pb.Prayers.Overheads()
		if oa == 0 && ob == 0 {
			continue
		}
		if oa == ob {
			score += s.c.PrayersPositive
		} else {
			score += s.c.PrayersNegative
		}
	}
	return clamp(score, s.c.PrayersMin, s.c.PrayersMax)
}

func (s *Scorer) scoreDeaths(a, b *tickstate.TickState) float64 {
	score := 0.0
	for _, name := range a.PlayerNames() {
		if b.Player(name) == nil {
			continue
		}
		if playerDied(a, name) && playerDied(b, name) {
			score += s.c.PlayerDeathPositive
		}
	}

	for _, roomID := range a.NpcRoomIDs() {
		if b.Npc(roomID) == nil {
			continue
		}
		da, db := npcDied(a, roomID), npcDied(b, roomID)
		switch {
		case da && db:
			score += s.c.NpcDeathPositive
		case da || db:
			score += s.c.NpcDeathNegative
		}
	}
	return clamp(score, s.c.DeathsMin, s.c.DeathsMax)
}

func playerDied(ts *tickstate.TickState, name string) bool {
	for _, e := range ts.EventsOfKind(event.KindPlayerDeath) {
		if e.(event.PlayerDeath).Name == name {
			return true
		}
	}
	return false
}

func npcDied(ts *tickstate.TickState, roomID int) bool {
	for _, e := range ts.EventsOfKind(event.KindNpcDeath) {
		if e.(event.NpcDeath).RoomID == roomID {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
