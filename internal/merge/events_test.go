package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/tickstate"
)

func TestMergeAccurate_ConflictLeavesTimeline(t *testing.T) {
	misplaced := tickstate.New(5, []event.Event{update(5, "player1", event.Primary)}, nil)
	m := &MergedEvents{ticks: []*tickstate.TickState{misplaced}, accurate: true}
	c := client(2, true, 0, &event.ServerTicks{Count: 0, Precise: true}, nil)
	require.True(t, c.Accurate())

	tick, ok := m.mergeAccurate(c)
	assert.False(t, ok)
	assert.Equal(t, 0, tick)
	assert.Same(t, misplaced, m.ticks[0])
}

func TestMergeAccurate_ClientPastTimeline(t *testing.T) {
	m := &MergedEvents{ticks: make([]*tickstate.TickState, 2), accurate: true}
	c := client(2, true, 3, &event.ServerTicks{Count: 3, Precise: true}, twoTicks())
	require.True(t, c.Accurate())

	tick, ok := m.mergeAccurate(c)
	assert.False(t, ok)
	assert.Equal(t, 3, tick)
	assert.Equal(t, 2, m.MissingTickCount())
}

func TestMergeAccurate_FillsMissingTicks(t *testing.T) {
	m := &MergedEvents{ticks: make([]*tickstate.TickState, 3), accurate: true}
	c := client(2, true, 2, &event.ServerTicks{Count: 2, Precise: true}, twoTicks())

	_, ok := m.mergeAccurate(c)
	require.True(t, ok)

	assert.Zero(t, m.MissingTickCount())
	assert.Equal(t, twoTicks(), collect(m))
	assert.NotSame(t, c.TickState(0), m.TickState(0))
}

func TestNewMergedEvents_NegativeOffset(t *testing.T) {
	// The client recorded more ticks than the server reports; ticks shifted
	// before the start are dropped.
	c := client(1, false, 1, &event.ServerTicks{Count: 0, Precise: false}, twoTicks())
	require.True(t, c.InvalidTickCount())

	m := newMergedEvents(c)

	assert.Equal(t, 1, m.Len())
	require.NotNil(t, m.TickState(0))
	assert.Equal(t, []event.Event{
		event.Shift(update(1, "player1", event.Primary), -1),
		event.Shift(update(1, "player2", event.Secondary), -1),
	}, m.EventsForTick(0))
}
