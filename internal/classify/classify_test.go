package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickmerge/internal/clientevents"
	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/stage"
)

var challenge = clientevents.ChallengeInfo{ID: "aaaaaaaa-bbbb-cccc-dddd-eeeeeeffffff", Party: []string{"player1", "player2"}}

func client(id int, accurate bool, recorded int, server *event.ServerTicks) *clientevents.ClientEvents {
	return clientevents.FromRawEvents(id, challenge, clientevents.StageInfo{
		Stage:            stage.TobMaiden,
		Status:           event.StatusWiped,
		ReportedAccurate: accurate,
		RecordedTicks:    recorded,
		ServerTicks:      server,
	}, nil)
}

func precise(n int) *event.ServerTicks   { return &event.ServerTicks{Count: n, Precise: true} }
func imprecise(n int) *event.ServerTicks { return &event.ServerTicks{Count: n} }

func TestClassify_SingleClient(t *testing.T) {
	c := client(1, false, 10, nil)

	res := Classify([]*clientevents.ClientEvents{c})

	assert.Same(t, c, res.Base)
	assert.Empty(t, res.Matching)
	assert.Empty(t, res.Mismatched)
	assert.Equal(t, MethodRecordedTicks, res.Reference.Method)
	assert.Equal(t, 10, res.Reference.Count)
}

func TestClassify_PrefersAccurate(t *testing.T) {
	inaccurate := client(1, false, 12, precise(12))
	accurate := client(2, true, 10, precise(10))
	other := client(3, true, 10, precise(10))

	res := Classify([]*clientevents.ClientEvents{inaccurate, accurate, other})

	assert.Same(t, accurate, res.Base)
	assert.Equal(t, []*clientevents.ClientEvents{other}, res.Matching)
	assert.Equal(t, []*clientevents.ClientEvents{inaccurate}, res.Mismatched)
	assert.Equal(t, ReferenceSelection{
		Count:  10,
		Method: MethodAccurateModal,
		Details: Details{
			AccurateClientIDs:  []int{2, 3},
			AccurateTickCounts: []TickCount{{Ticks: 10, Clients: 2}},
		},
	}, res.Reference)
}

func TestClassify_LowestIDWins(t *testing.T) {
	c3 := client(3, true, 10, precise(10))
	c1 := client(1, true, 10, precise(10))
	c2 := client(2, true, 10, precise(10))

	res := Classify([]*clientevents.ClientEvents{c3, c1, c2})

	assert.Same(t, c1, res.Base)
	assert.Equal(t, []*clientevents.ClientEvents{c3, c2}, res.Matching)
}

func TestClassify_ModalTickCount(t *testing.T) {
	a := client(1, true, 10, precise(10))
	b := client(2, true, 11, precise(11))
	c := client(3, true, 11, precise(11))

	res := Classify([]*clientevents.ClientEvents{a, b, c})

	assert.Same(t, b, res.Base)
	assert.Equal(t, 11, res.Reference.Count)
	assert.Equal(t, []*clientevents.ClientEvents{c}, res.Matching)
	assert.Equal(t, []*clientevents.ClientEvents{a}, res.Mismatched)
	assert.Equal(t, []TickCount{{Ticks: 10, Clients: 1}, {Ticks: 11, Clients: 2}}, res.Reference.Details.AccurateTickCounts)
}

func TestClassify_TiedModePrefersLarger(t *testing.T) {
	acc1 := client(1, true, 10, precise(10))
	acc2 := client(2, true, 11, precise(11))
	other := client(3, false, 11, imprecise(11))

	res := Classify([]*clientevents.ClientEvents{acc1, acc2, other})

	assert.Same(t, acc2, res.Base)
	assert.Empty(t, res.Matching)
	assert.ElementsMatch(t, []*clientevents.ClientEvents{acc1, other}, res.Mismatched)
	assert.Equal(t, MethodAccurateModal, res.Reference.Method)
	assert.Equal(t, 11, res.Reference.Count)
}

func TestClassify_PreciseServer(t *testing.T) {
	short := client(1, false, 8, precise(12))
	long := client(2, false, 10, precise(12))
	estimated := client(3, false, 11, imprecise(12))

	res := Classify([]*clientevents.ClientEvents{short, long, estimated})

	assert.Same(t, long, res.Base)
	assert.Equal(t, MethodPreciseServer, res.Reference.Method)
	assert.Equal(t, 12, res.Reference.Count)
	assert.Equal(t, []int{2, 1}, res.Reference.Details.CandidateClientIDs)
	assert.Empty(t, res.Matching)
	assert.Len(t, res.Mismatched, 2)
}

func TestClassify_ImpreciseServer(t *testing.T) {
	server1 := client(1, false, 11, imprecise(11))
	server2 := client(2, false, 9, imprecise(9))
	server3 := client(3, false, 11, imprecise(11))
	other := client(4, false, 11, nil)

	res := Classify([]*clientevents.ClientEvents{server1, server3, other, server2})

	assert.Same(t, server1, res.Base)
	assert.Empty(t, res.Matching)
	assert.ElementsMatch(t, []*clientevents.ClientEvents{server3, other, server2}, res.Mismatched)
	assert.Equal(t, MethodImpreciseServer, res.Reference.Method)
	assert.Equal(t, 11, res.Reference.Count)
	assert.Equal(t, []int{1, 3, 2}, res.Reference.Details.CandidateClientIDs)
}

func TestClassify_RecordedTicks(t *testing.T) {
	a := client(2, false, 11, nil)
	b := client(1, false, 11, nil)
	c := client(3, false, 5, nil)

	res := Classify([]*clientevents.ClientEvents{a, b, c})

	assert.Same(t, b, res.Base)
	assert.Equal(t, MethodRecordedTicks, res.Reference.Method)
	assert.Equal(t, 11, res.Reference.Count)
	assert.Equal(t, []int{1, 2, 3}, res.Reference.Details.CandidateClientIDs)
}

func TestClassify_ZeroServerTicks(t *testing.T) {
	c1 := client(1, false, 0, precise(0))
	c2 := client(2, false, 10, nil)

	res := Classify([]*clientevents.ClientEvents{c1, c2})

	assert.Same(t, c1, res.Base)
	assert.Equal(t, MethodPreciseServer, res.Reference.Method)
	assert.Equal(t, 0, res.Reference.Count)
}

func TestClassify_EmptyPanics(t *testing.T) {
	assert.PanicsWithValue(t, "classify: no clients", func() { Classify(nil) })
}

func TestClassify_CustomStrategies(t *testing.T) {
	accurate := client(1, true, 10, precise(10))
	longer := client(2, false, 20, nil)

	res := Classify([]*clientevents.ClientEvents{accurate, longer}, WithStrategies(RecordedTicks))
	assert.Same(t, longer, res.Base)

	assert.Panics(t, func() {
		Classify([]*clientevents.ClientEvents{longer}, WithStrategies(AccurateModal))
	})
}

func TestStrategies_Independent(t *testing.T) {
	clients := []*clientevents.ClientEvents{client(1, false, 10, nil)}

	for name, s := range map[string]Strategy{
		"accurate modal":   AccurateModal,
		"precise server":   PreciseServer,
		"imprecise server": ImpreciseServer,
	} {
		t.Run(name, func(t *testing.T) {
			_, _, ok := s(clients)
			assert.False(t, ok)
		})
	}

	base, ref, ok := RecordedTicks(clients)
	require.True(t, ok)
	assert.Equal(t, 1, base.ID())
	assert.Equal(t, 10, ref.Count)
}
