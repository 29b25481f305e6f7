package clientevents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/stage"
)

func at(tick int, name string, c stage.Coords) event.PlayerUpdate {
	return update(tick, name, event.Secondary, c.X, c.Y)
}

func npcAttack(tick int, attack string) event.NpcAttack {
	return event.NpcAttack{Meta: event.Meta{Tick: tick}, RoomID: 1, ID: 1, Attack: attack}
}

func bounce(attackTick int, player string) event.VerzikBounce {
	return event.VerzikBounce{
		Meta:          event.Meta{Tick: attackTick + 1, Stage: stage.TobVerzik},
		NpcAttackTick: attackTick,
		BouncedPlayer: player,
	}
}

func inStage(st stage.Stage, events ...event.Event) *ClientEvents {
	return FromRawEvents(1, challenge, StageInfo{Stage: st, Status: event.StatusStarted}, events)
}

func offset(c stage.Coords, dx, dy int) stage.Coords {
	return stage.Coords{X: c.X + dx, Y: c.Y + dy}
}

func TestConsistency_FastMoveFlagged(t *testing.T) {
	for _, st := range []stage.Stage{stage.TobMaiden, stage.TobVerzik, stage.TobSotetseg, stage.CoxTekton, stage.MokhaiotlDelve1} {
		t.Run(st.String(), func(t *testing.T) {
			c := inStage(st,
				at(0, "player1", stage.Coords{X: 100, Y: 100}),
				at(1, "player1", stage.Coords{X: 110, Y: 100}),
			)

			require.True(t, c.HasConsistencyIssues())
			assert.True(t, c.HasAnomaly(AnomalyConsistencyIssues))
			issues := c.ConsistencyIssues()
			require.Len(t, issues, 1)
			assert.Equal(t, ConsistencyIssue{
				Player:         "player1",
				Delta:          Delta{X: 10, Y: 0},
				TicksSinceLast: 1,
				LastTick:       0,
				CurrentTick:    1,
				Start:          stage.Coords{X: 100, Y: 100},
				End:            stage.Coords{X: 110, Y: 100},
			}, issues[0])
		})
	}
}

func TestConsistency_RunningNotFlagged(t *testing.T) {
	c := FromRawEvents(5, challenge, info(2, true, &event.ServerTicks{Count: 2, Precise: true}), []event.Event{
		at(0, "player1", stage.Coords{X: 0, Y: 0}),
		at(1, "player1", stage.Coords{X: 2, Y: 1}),
		at(2, "player1", stage.Coords{X: 4, Y: 3}),
	})

	assert.False(t, c.HasConsistencyIssues())
	assert.False(t, c.HasAnomaly(AnomalyConsistencyIssues))
	assert.True(t, c.Accurate())
}

func TestConsistency_ElapsedTicksScaleLimit(t *testing.T) {
	c := inStage(stage.TobMaiden,
		at(0, "player1", stage.Coords{X: 0, Y: 0}),
		at(3, "player1", stage.Coords{X: 6, Y: 0}),
	)
	assert.False(t, c.HasConsistencyIssues())

	c = inStage(stage.TobMaiden,
		at(0, "player1", stage.Coords{X: 0, Y: 0}),
		at(3, "player1", stage.Coords{X: 7, Y: 0}),
	)
	assert.True(t, c.HasConsistencyIssues())
}

func TestConsistency_IssuesDoNotDemote(t *testing.T) {
	c := FromRawEvents(4, challenge, info(2, true, &event.ServerTicks{Count: 2, Precise: true}), []event.Event{
		at(0, "player1", stage.Coords{X: 0, Y: 0}),
		at(1, "player1", stage.Coords{X: 10, Y: 0}),
	})

	assert.True(t, c.HasConsistencyIssues())
	assert.True(t, c.Accurate())
}

func TestConsistency_DeadPlayersIgnored(t *testing.T) {
	c := inStage(stage.TobMaiden,
		at(0, "player1", stage.Coords{X: 0, Y: 0}),
		death(1, "player1"),
		at(2, "player1", stage.Coords{X: 50, Y: 50}),
	)

	assert.False(t, c.HasConsistencyIssues())
}

func TestConsistency_RespawnTile(t *testing.T) {
	respawn := stage.RulesFor(stage.CoxTekton).RespawnTiles[0]
	c := inStage(stage.CoxTekton,
		at(0, "player1", stage.Coords{X: 3200, Y: 5100}),
		at(1, "player1", respawn),
	)

	assert.False(t, c.HasConsistencyIssues())
}

func TestConsistency_SotetsegMaze(t *testing.T) {
	maze := stage.RulesFor(stage.TobSotetseg).Maze
	room := stage.Coords{X: 3280, Y: 4320}

	tests := []struct {
		name    string
		from    stage.Coords
		to      stage.Coords
		elapsed int
		flagged bool
	}{
		{name: "into underworld", from: room, to: maze.UnderworldStart, elapsed: 1},
		{name: "into underworld after gap", from: room, to: maze.UnderworldStart, elapsed: 5},
		{name: "back to room", from: maze.UnderworldStart, to: maze.End, elapsed: 1},
		{name: "back to room after gap", from: offset(maze.UnderworldStart, 3, 10), to: maze.End, elapsed: 8},
		{name: "overworld maze start", from: room, to: maze.OverworldStart, elapsed: 1},
		{name: "overworld maze start after gap", from: room, to: maze.OverworldStart, elapsed: 2, flagged: true},
		{name: "outside maze", from: stage.Coords{X: 3000, Y: 4000}, to: maze.OverworldStart, elapsed: 1, flagged: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := inStage(stage.TobSotetseg,
				at(0, "player1", tt.from),
				at(tt.elapsed, "player1", tt.to),
			)
			assert.Equal(t, tt.flagged, c.HasConsistencyIssues())
		})
	}
}

func TestConsistency_VerzikBounce(t *testing.T) {
	b := stage.RulesFor(stage.TobVerzik).Bounce
	melee := offset(b.Center, 1, 0)
	landed := offset(b.Center, 6, 0)
	standing := offset(b.Center, -8, 0)

	tests := []struct {
		name    string
		events  []event.Event
		flagged bool
	}{
		{
			name:   "logged bounce",
			events: []event.Event{at(0, "player1", melee), bounce(0, "player1"), at(1, "player1", landed)},
		},
		{
			name:    "no bounce",
			events:  []event.Event{at(0, "player1", melee), at(1, "player1", landed)},
			flagged: true,
		},
		{
			name:    "logged bounce names someone else",
			events:  []event.Event{at(0, "player1", melee), bounce(0, "player2"), npcAttack(0, b.Attack), at(1, "player1", landed)},
			flagged: true,
		},
		{
			name:    "logged bounce on another tick",
			events:  []event.Event{at(0, "player1", melee), at(1, "player1", melee), bounce(0, "player1"), at(2, "player1", landed)},
			flagged: true,
		},
		{
			name: "fallback single mover",
			events: []event.Event{
				at(0, "player1", melee), at(0, "player2", standing),
				npcAttack(0, b.Attack),
				at(1, "player1", landed), at(1, "player2", standing),
			},
		},
		{
			name: "fallback attack on landing tick",
			events: []event.Event{
				at(0, "player1", melee),
				npcAttack(1, b.Attack),
				at(1, "player1", landed),
			},
		},
		{
			name: "fallback ambiguous",
			events: []event.Event{
				at(0, "player1", melee), at(0, "player2", offset(b.Center, 0, 1)),
				npcAttack(0, b.Attack),
				at(1, "player1", landed), at(1, "player2", offset(b.Center, 0, 6)),
			},
			flagged: true,
		},
		{
			name: "fallback outside melee range",
			events: []event.Event{
				at(0, "player1", offset(b.Center, 3, 0)),
				npcAttack(0, b.Attack),
				at(1, "player1", offset(b.Center, -5, 3)),
			},
			flagged: true,
		},
		{
			name: "wrong distance",
			events: []event.Event{
				at(0, "player1", melee), bounce(0, "player1"),
				at(1, "player1", offset(b.Center, 8, 0)),
			},
			flagged: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := inStage(stage.TobVerzik, tt.events...)
			assert.Equal(t, tt.flagged, c.HasConsistencyIssues(), "%v", c.ConsistencyIssues())
		})
	}
}

func TestConsistency_BounceOnlyInVerzik(t *testing.T) {
	center := stage.RulesFor(stage.TobVerzik).Bounce.Center
	c := inStage(stage.TobXarpus,
		at(0, "player1", offset(center, 1, 0)),
		bounce(0, "player1"),
		at(1, "player1", offset(center, 6, 0)),
	)

	assert.True(t, c.HasConsistencyIssues())
}

func TestConsistency_MokhaiotlKnockback(t *testing.T) {
	k := stage.RulesFor(stage.MokhaiotlDelve3).Knockback
	from := offset(k.Center, 1, 0)
	to := offset(k.Center, 4, 0)

	tests := []struct {
		name    string
		events  []event.Event
		flagged bool
	}{
		{
			name:   "recent attack",
			events: []event.Event{at(0, "player1", from), npcAttack(1, k.Attack), at(3, "player1", from), at(4, "player1", to)},
		},
		{
			name:    "attack outside window",
			events:  []event.Event{at(0, "player1", from), at(3, "player1", from), npcAttack(0, k.Attack), at(4, "player1", to)},
			flagged: true,
		},
		{
			name:    "no attack",
			events:  []event.Event{at(0, "player1", from), at(1, "player1", to)},
			flagged: true,
		},
		{
			name:    "wrong distance",
			events:  []event.Event{at(0, "player1", from), npcAttack(0, k.Attack), at(1, "player1", offset(k.Center, 5, 0))},
			flagged: true,
		},
		{
			name:    "started outside area",
			events:  []event.Event{at(0, "player1", offset(k.Center, -8, 0)), npcAttack(0, k.Attack), at(1, "player1", offset(k.Center, -4, 0))},
			flagged: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := inStage(stage.MokhaiotlDelve3, tt.events...)
			assert.Equal(t, tt.flagged, c.HasConsistencyIssues(), "%v", c.ConsistencyIssues())
		})
	}
}

func TestConsistency_KnockbackUsesDelveRegion(t *testing.T) {
	k := stage.RulesFor(stage.MokhaiotlDelve1).Knockback
	events := []event.Event{
		at(0, "player1", offset(k.Center, 1, 0)),
		npcAttack(0, k.Attack),
		at(1, "player1", offset(k.Center, 4, 0)),
	}

	assert.False(t, inStage(stage.MokhaiotlDelve1, events...).HasConsistencyIssues())
	assert.True(t, inStage(stage.MokhaiotlDelve6, events...).HasConsistencyIssues(),
		"delve 6 is instanced in another map region")
}
