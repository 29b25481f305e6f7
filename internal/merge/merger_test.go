package merge

import (
	"bytes"
	"log/slog"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickmerge/internal/classify"
	"github.com/roach88/tickmerge/internal/clientevents"
	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/observe"
	"github.com/roach88/tickmerge/internal/stage"
)

var challenge = clientevents.ChallengeInfo{
	ID:    "aaaaaaaa-bbbb-cccc-dddd-eeeeeeffffff",
	Party: []string{"player1", "player2"},
}

func update(tick int, name string, source event.DataSource) event.PlayerUpdate {
	return event.PlayerUpdate{
		Meta:   event.Meta{Tick: tick, Stage: stage.TobMaiden, X: 3170, Y: 4440},
		Name:   name,
		Source: source,
	}
}

// twoTicks is a recording of ticks 0 and 1 made by player1's client.
func twoTicks() []event.Event {
	return []event.Event{
		update(0, "player1", event.Primary),
		update(0, "player2", event.Secondary),
		update(1, "player1", event.Primary),
		update(1, "player2", event.Secondary),
	}
}

func client(id int, accurate bool, recorded int, server *event.ServerTicks, events []event.Event) *clientevents.ClientEvents {
	status := event.StatusWiped
	if accurate {
		status = event.StatusCompleted
	}
	return clientevents.FromRawEvents(id, challenge, clientevents.StageInfo{
		Stage:            stage.TobMaiden,
		Status:           status,
		ReportedAccurate: accurate,
		RecordedTicks:    recorded,
		ServerTicks:      server,
	}, events)
}

func collect(m *MergedEvents) []event.Event {
	return slices.Collect(m.Events())
}

func TestMerge_NoClients(t *testing.T) {
	assert.Nil(t, New(stage.TobMaiden, challenge, nil).Merge())
}

func TestMerge_SingleInaccurateClient(t *testing.T) {
	c := client(1, false, 0, nil, twoTicks())

	res := New(stage.TobMaiden, challenge, []*clientevents.ClientEvents{c}).Merge()
	require.NotNil(t, res)

	require.Len(t, res.Clients, 1)
	assert.Equal(t, 1, res.Clients[0].ID)
	assert.Equal(t, StatusMerged, res.Clients[0].Status)
	assert.Equal(t, ClassificationReference, res.Clients[0].Classification)
	assert.Equal(t, 1, res.MergedCount)
	assert.Zero(t, res.UnmergedCount)
	assert.Zero(t, res.SkippedCount)
	assert.Empty(t, res.Alerts)

	assert.False(t, res.Events.Accurate())
	assert.Zero(t, res.Events.MissingTickCount())
	assert.Equal(t, twoTicks(), collect(res.Events))
}

func TestMerge_SingleAccurateClient(t *testing.T) {
	c := client(1, true, 2, &event.ServerTicks{Count: 2, Precise: true}, twoTicks())

	res := New(stage.TobMaiden, challenge, []*clientevents.ClientEvents{c}).Merge()
	require.NotNil(t, res)

	assert.Equal(t, StatusMerged, res.Clients[0].Status)
	assert.True(t, res.Clients[0].DerivedAccurate)
	assert.True(t, res.Events.Accurate())
	assert.Equal(t, event.StatusCompleted, res.Events.Status())
	assert.Zero(t, res.Events.MissingTickCount())
	assert.Equal(t, 2, res.Events.LastTick())
	assert.Equal(t, twoTicks(), collect(res.Events))
}

func TestMerge_OffsetsInaccurateBase(t *testing.T) {
	const missing = 8
	events := twoTicks()
	events[0] = func() event.PlayerUpdate {
		u := update(0, "player1", event.Primary)
		u.OffCooldownTick = 1
		return u
	}()
	c := client(1, false, 2, &event.ServerTicks{Count: 2 + missing, Precise: true}, events)

	res := New(stage.TobMaiden, challenge, []*clientevents.ClientEvents{c}).Merge()
	require.NotNil(t, res)

	assert.False(t, res.Events.Accurate())
	assert.Equal(t, 10, res.Events.LastTick())
	assert.Equal(t, missing, res.Events.MissingTickCount())

	want := make([]event.Event, len(events))
	for i, e := range events {
		want[i] = event.Shift(e, missing)
	}
	got := collect(res.Events)
	assert.Equal(t, want, got)

	first := got[0].(event.PlayerUpdate)
	assert.Equal(t, 8, first.Tick)
	assert.Equal(t, 9, first.OffCooldownTick)
	assert.Nil(t, res.Events.TickState(0))
	assert.Equal(t, 8, res.Events.TickState(8).Tick())
}

func TestMerge_MultipleAccurateTickModes(t *testing.T) {
	a := client(10, true, 2, &event.ServerTicks{Count: 2, Precise: true}, twoTicks())
	b := client(11, true, 3, &event.ServerTicks{Count: 3, Precise: true}, twoTicks())

	var buf bytes.Buffer
	obs := observe.NewSlog(slog.New(slog.NewTextHandler(&buf, nil)))

	res := New(stage.TobMaiden, challenge, []*clientevents.ClientEvents{a, b}, WithObserver(obs)).Merge()
	require.NotNil(t, res)

	assert.Equal(t, []Alert{{
		Type:    AlertMultipleAccurateTickModes,
		Details: map[string]any{"tickCounts": []int{2, 3}},
	}}, res.Alerts)
	require.Len(t, res.Clients, 2)
	assert.False(t, res.Clients[0].DerivedAccurate)
	assert.False(t, res.Clients[1].DerivedAccurate)
	assert.Contains(t, buf.String(), "merge multiple accurate tick modes")

	// The inputs keep their own accuracy.
	assert.True(t, a.Accurate())
	assert.True(t, b.Accurate())
}

func TestMerge_DemotesAccurateOutlier(t *testing.T) {
	a := client(1, true, 2, &event.ServerTicks{Count: 2, Precise: true}, twoTicks())
	b := client(2, true, 2, &event.ServerTicks{Count: 2, Precise: true}, twoTicks())
	c := client(3, true, 3, &event.ServerTicks{Count: 3, Precise: true}, twoTicks())

	res := New(stage.TobMaiden, challenge, []*clientevents.ClientEvents{a, b, c}).Merge()
	require.NotNil(t, res)

	assert.Empty(t, res.Alerts)
	assert.Equal(t, classify.MethodAccurateModal, res.ReferenceSelection.Method)
	assert.Equal(t, 2, res.ReferenceSelection.Count)

	outlier, ok := res.Client(3)
	require.True(t, ok)
	assert.False(t, outlier.DerivedAccurate)
	assert.True(t, outlier.ReportedAccurate)
	assert.Equal(t, ClassificationMismatched, outlier.Classification)
	assert.Equal(t, StatusUnmerged, outlier.Status)
	assert.NotNil(t, outlier.Alignment)

	matching, ok := res.Client(2)
	require.True(t, ok)
	assert.Equal(t, ClassificationMatching, matching.Classification)
	assert.Equal(t, StatusMerged, matching.Status)
	assert.Equal(t, 2, res.MergedCount)
	assert.Equal(t, 1, res.UnmergedCount)
}

func TestMerge_ReferenceSelection(t *testing.T) {
	c := client(1, true, 2, &event.ServerTicks{Count: 2, Precise: true}, twoTicks())

	res := New(stage.TobMaiden, challenge, []*clientevents.ClientEvents{c}).Merge()
	require.NotNil(t, res)

	assert.Equal(t, classify.ReferenceSelection{
		Count:  2,
		Method: classify.MethodAccurateModal,
		Details: classify.Details{
			AccurateClientIDs:  []int{1},
			AccurateTickCounts: []classify.TickCount{{Ticks: 2, Clients: 1}},
		},
	}, res.ReferenceSelection)
}

func TestMerge_AccurateClientsMergeTickForTick(t *testing.T) {
	server := &event.ServerTicks{Count: 2, Precise: true}
	a := client(1, true, 2, server, twoTicks())
	b := client(2, true, 2, server, []event.Event{
		update(0, "player1", event.Secondary),
		update(0, "player2", event.Primary),
		update(1, "player1", event.Secondary),
		update(1, "player2", event.Primary),
		event.PlayerDeath{Meta: event.Meta{Tick: 1, Stage: stage.TobMaiden}, Name: "player2"},
	})

	res := New(stage.TobMaiden, challenge, []*clientevents.ClientEvents{b, a}).Merge()
	require.NotNil(t, res)

	require.Len(t, res.Clients, 2)
	assert.Equal(t, 1, res.Clients[0].ID)
	assert.Equal(t, 0, res.Clients[0].SequenceNumber)
	assert.Equal(t, 2, res.Clients[1].ID)
	assert.Equal(t, 1, res.Clients[1].SequenceNumber)
	assert.Equal(t, StatusMerged, res.Clients[1].Status)
	assert.Equal(t, ClassificationMatching, res.Clients[1].Classification)
	assert.Equal(t, 2, res.MergedCount)

	for tick := range 2 {
		ts := res.Events.TickState(tick)
		require.NotNil(t, ts)
		assert.Equal(t, event.Primary, ts.Player("player1").Source, "tick %d", tick)
		assert.Equal(t, event.Primary, ts.Player("player2").Source, "tick %d", tick)
	}
	assert.Equal(t, []event.Event{
		update(0, "player1", event.Primary),
		update(0, "player2", event.Primary),
	}, res.Events.EventsForTick(0))
	assert.True(t, res.Events.TickState(1).HasKind(event.KindPlayerDeath))

	// The base client's own states are untouched.
	assert.Equal(t, event.Secondary, a.TickState(0).Player("player2").Source)
	assert.Len(t, a.TickState(1).Events(), 2)
}

func TestMerge_SkipsEmptyClients(t *testing.T) {
	base := client(1, true, 2, &event.ServerTicks{Count: 2, Precise: true}, twoTicks())
	empty := client(2, false, 0, nil, nil)

	res := New(stage.TobMaiden, challenge, []*clientevents.ClientEvents{base, empty}).Merge()
	require.NotNil(t, res)

	skipped, ok := res.Client(2)
	require.True(t, ok)
	assert.Equal(t, StatusSkipped, skipped.Status)
	assert.Equal(t, 1, skipped.SequenceNumber)
	assert.Equal(t, 1, res.SkippedCount)
	assert.Equal(t, 1, res.MergedCount)
}

func TestMerge_InaccurateClientIsMeasured(t *testing.T) {
	base := client(1, true, 2, &event.ServerTicks{Count: 2, Precise: true}, twoTicks())
	partial := client(2, false, 1, nil, twoTicks())

	res := New(stage.TobMaiden, challenge, []*clientevents.ClientEvents{base, partial}).Merge()
	require.NotNil(t, res)

	mc, ok := res.Client(2)
	require.True(t, ok)
	assert.Equal(t, StatusUnmerged, mc.Status)
	assert.Equal(t, ClassificationMismatched, mc.Classification)
	require.NotNil(t, mc.Alignment)
	assert.GreaterOrEqual(t, mc.Alignment.Coverage, 0.0)
	assert.LessOrEqual(t, mc.Alignment.Coverage, 1.0)

	// The timeline is the base's alone.
	assert.Equal(t, twoTicks(), collect(res.Events))
}

func TestMerge_AuditRecord(t *testing.T) {
	c := client(7, true, 2, &event.ServerTicks{Count: 2, Precise: true}, twoTicks())

	res := New(stage.TobMaiden, challenge, []*clientevents.ClientEvents{c}).Merge()
	require.NotNil(t, res)

	assert.Equal(t, Client{
		ID:               7,
		Status:           StatusMerged,
		Classification:   ClassificationReference,
		SequenceNumber:   0,
		RecordedTicks:    2,
		ServerTicks:      &event.ServerTicks{Count: 2, Precise: true},
		ReportedAccurate: true,
		DerivedAccurate:  true,
	}, res.Clients[0])
}

func TestMerge_Deterministic(t *testing.T) {
	server := &event.ServerTicks{Count: 2, Precise: true}
	clients := []*clientevents.ClientEvents{
		client(3, false, 1, nil, twoTicks()),
		client(1, true, 2, server, twoTicks()),
		client(2, true, 2, server, twoTicks()),
	}

	first := New(stage.TobMaiden, challenge, clients).Merge()
	slices.Reverse(clients)
	second := New(stage.TobMaiden, challenge, clients).Merge()

	assert.Equal(t, first.Clients, second.Clients)
	assert.Equal(t, collect(first.Events), collect(second.Events))
}

func TestMergedEvents_IteratorRestarts(t *testing.T) {
	c := client(1, false, 0, nil, twoTicks())
	res := New(stage.TobMaiden, challenge, []*clientevents.ClientEvents{c}).Merge()
	require.NotNil(t, res)

	first := collect(res.Events)
	second := collect(res.Events)
	assert.Equal(t, first, second)
	assert.Len(t, first, 4)
	assert.Equal(t, 4, res.Events.EventCount())

	n := 0
	for range res.Events.Events() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Len(t, collect(res.Events), 4)
}

func TestMergedEvents_OutOfRange(t *testing.T) {
	c := client(1, false, 0, nil, twoTicks())
	res := New(stage.TobMaiden, challenge, []*clientevents.ClientEvents{c}).Merge()
	require.NotNil(t, res)

	assert.Nil(t, res.Events.TickState(-1))
	assert.Nil(t, res.Events.TickState(res.Events.Len()))
	assert.Nil(t, res.Events.EventsForTick(99))
}
