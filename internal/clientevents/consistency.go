package clientevents

import (
	"log/slog"

	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/observe"
	"github.com/roach88/tickmerge/internal/stage"
	"github.com/roach88/tickmerge/internal/tickstate"
)

// maxTilesPerTick is how far a running player can move in one tick.
const maxTilesPerTick = 2

// Delta is a change in position.
type Delta struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ConsistencyIssue is a movement too fast to be real, usually a sign that the
// client lost ticks between two observations of a player.
type ConsistencyIssue struct {
	Player         string       `json:"player"`
	Delta          Delta        `json:"delta"`
	TicksSinceLast int          `json:"ticksSinceLast"`
	LastTick       int          `json:"lastTick"`
	CurrentTick    int          `json:"currentTick"`
	Start          stage.Coords `json:"start"`
	End            stage.Coords `json:"end"`
}

// move is a player's change of position between two observations.
type move struct {
	player  string
	tick    int
	elapsed int
	from    stage.Coords
	to      stage.Coords
}

// exemption reports whether a scripted mechanic explains a move that would
// otherwise be too fast.
type exemption func(c *checker, m move) bool

var exemptions = []exemption{
	(*checker).isRespawn,
	(*checker).isMazeTeleport,
	(*checker).isBounce,
	(*checker).isKnockback,
}

type checker struct {
	rules  stage.Rules
	ticks  []*tickstate.TickState
	party  []string
	byKind map[event.Kind][]event.Event
}

// checkConsistency scans every party member's movement for jumps no player
// could make. Issues are recorded but never change accuracy.
func (c *ClientEvents) checkConsistency(obs observe.Observer) {
	ch := &checker{
		rules:  stage.RulesFor(c.info.Stage),
		ticks:  c.ticks,
		party:  c.challenge.Party,
		byKind: make(map[event.Kind][]event.Event),
	}
	for _, e := range c.events {
		ch.byKind[e.Kind()] = append(ch.byKind[e.Kind()], e)
	}

	type seen struct {
		tick int
		pos  stage.Coords
	}
	last := make(map[string]seen, len(c.challenge.Party))

	for tick, ts := range c.ticks {
		for _, name := range c.challenge.Party {
			p := ts.Player(name)
			if p == nil {
				continue
			}
			prev, ok := last[name]
			last[name] = seen{tick: tick, pos: p.Coords()}
			if !ok || p.IsDead {
				continue
			}

			m := move{player: name, tick: tick, elapsed: tick - prev.tick, from: prev.pos, to: p.Coords()}
			if stage.Chebyshev(m.from, m.to) <= maxTilesPerTick*m.elapsed || ch.exempt(m) {
				continue
			}

			issue := ConsistencyIssue{
				Player:         name,
				Delta:          Delta{X: m.to.X - m.from.X, Y: m.to.Y - m.from.Y},
				TicksSinceLast: m.elapsed,
				LastTick:       prev.tick,
				CurrentTick:    tick,
				Start:          m.from,
				End:            m.to,
			}
			obs.Log(slog.LevelInfo, "client consistency issue",
				"challenge_id", c.challenge.ID,
				"client_id", c.id,
				"player", name,
				"delta_x", issue.Delta.X,
				"delta_y", issue.Delta.Y,
				"ticks_since_last", issue.TicksSinceLast,
				"last_tick", issue.LastTick,
				"current_tick", issue.CurrentTick,
				"stage", c.info.Stage.String(),
			)
			c.issues = append(c.issues, issue)
		}
	}

	if len(c.issues) > 0 {
		c.addAnomaly(AnomalyConsistencyIssues)
	}
}

func (ch *checker) exempt(m move) bool {
	for _, ex := range exemptions {
		if ex(ch, m) {
			return true
		}
	}
	return false
}

func (ch *checker) isRespawn(m move) bool {
	return ch.rules.IsRespawnTile(m.to)
}

// isMazeTeleport accepts teleports between the Sotetseg room and its
// underworld in either direction, and the one-tick teleport to the start of
// an overworld maze.
func (ch *checker) isMazeTeleport(m move) bool {
	maze := ch.rules.Maze
	if maze == nil {
		return false
	}
	if maze.Room.Contains(m.from) && maze.Underworld.Contains(m.to) {
		return true
	}
	if maze.Underworld.Contains(m.from) && maze.Room.Contains(m.to) {
		return true
	}
	return m.elapsed == 1 && m.to == maze.OverworldStart && maze.Room.Contains(m.from)
}

// isBounce accepts a one-tick move from melee range to bounce distance. A
// bounce event for the previous tick settles it either way. Without one, the
// bounce attack must have happened, and the mover must be the only party
// member who moved like a bounced player on this tick.
func (ch *checker) isBounce(m move) bool {
	b := ch.rules.Bounce
	if b == nil || m.elapsed != 1 || !b.LandsAt(m.to) {
		return false
	}

	attackTick := m.tick - 1
	logged := false
	for _, e := range ch.byKind[event.KindVerzikBounce] {
		v := e.(event.VerzikBounce)
		if v.NpcAttackTick != attackTick {
			continue
		}
		if v.BouncedPlayer == m.player {
			return true
		}
		logged = true
	}
	if logged {
		return false
	}

	if !ch.attackBetween(b.Attack, attackTick, m.tick) || !b.MeleeArea.Contains(m.from) {
		return false
	}
	return ch.bouncedPlayers(b, m.tick) == 1
}

// bouncedPlayers counts the party members who moved like a bounced player
// into tick.
func (ch *checker) bouncedPlayers(b *stage.Bounce, tick int) int {
	if tick < 1 || tick >= len(ch.ticks) {
		return 0
	}
	n := 0
	for _, name := range ch.party {
		cur := ch.ticks[tick].Player(name)
		prev := ch.ticks[tick-1].Player(name)
		if cur == nil || prev == nil || cur.IsDead {
			continue
		}
		if b.LandsAt(cur.Coords()) && b.MeleeArea.Contains(prev.Coords()) {
			n++
		}
	}
	return n
}

// isKnockback accepts a move to exactly the knockback distance from the
// center, starting inside the mechanic's area, shortly after the attack.
func (ch *checker) isKnockback(m move) bool {
	k := ch.rules.Knockback
	if k == nil || stage.Chebyshev(k.Center, m.to) != k.Distance || !k.Area.Contains(m.from) {
		return false
	}
	return ch.attackBetween(k.Attack, m.tick-k.Window, m.tick-1)
}

// attackBetween reports whether an NPC performed attack on a tick in
// [from, to].
func (ch *checker) attackBetween(attack string, from, to int) bool {
	for _, e := range ch.byKind[event.KindNpcAttack] {
		v := e.(event.NpcAttack)
		if v.Attack == attack && v.Tick >= from && v.Tick <= to {
			return true
		}
	}
	return false
}
