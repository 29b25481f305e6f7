package ir

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickmerge/internal/batch"
	"github.com/roach88/tickmerge/internal/clientevents"
	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/merge"
	"github.com/roach88/tickmerge/internal/similarity"
	"github.com/roach88/tickmerge/internal/stage"
)

func mergeFixtures(t *testing.T, names ...string) *merge.Result {
	t.Helper()
	var clients []*clientevents.ClientEvents
	var challenge clientevents.ChallengeInfo
	for _, name := range names {
		f, err := os.Open(filepath.Join("..", "batch", "testdata", name))
		require.NoError(t, err)
		c, err := batch.DecodeClient(f)
		f.Close()
		require.NoError(t, err)
		clients = append(clients, c)
		challenge = c.Challenge()
	}
	res := merge.New(stage.TobMaiden, challenge, clients).Merge()
	require.NotNil(t, res)
	return res
}

func TestHashWithDomain(t *testing.T) {
	a := hashWithDomain(DomainBatch, []byte("{}"))
	b := hashWithDomain(DomainRun, []byte("{}"))

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b, "domains separate identical data")
	assert.Equal(t, a, hashWithDomain(DomainBatch, []byte("{}")))
}

func TestBatchDigest_IgnoresFormatting(t *testing.T) {
	compact := []byte(`{"clientId":1,"stage":"TOB_MAIDEN","events":[]}`)
	spaced := []byte("{\n  \"stage\": \"TOB_MAIDEN\",\n  \"events\": [],\n  \"clientId\": 1\n}")
	other := []byte(`{"clientId":2,"stage":"TOB_MAIDEN","events":[]}`)

	a, err := BatchDigest(compact)
	require.NoError(t, err)
	b, err := BatchDigest(spaced)
	require.NoError(t, err)
	c, err := BatchDigest(other)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestBatchDigest_Malformed(t *testing.T) {
	_, err := BatchDigest([]byte(`{"clientId":`))
	assert.Error(t, err)
}

func TestRunDigest(t *testing.T) {
	settings := similarity.DefaultConstants()

	a, err := RunDigest("challenge", stage.TobMaiden, []string{"b1", "b2"}, settings)
	require.NoError(t, err)
	b, err := RunDigest("challenge", stage.TobMaiden, []string{"b2", "b1"}, settings)
	require.NoError(t, err)
	assert.Equal(t, a, b, "batch order does not matter")

	changed := settings
	changed.HitpointsWeight = 0.3
	c, err := RunDigest("challenge", stage.TobMaiden, []string{"b1", "b2"}, changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "settings are part of the identity")

	d, err := RunDigest("challenge", stage.TobBloat, []string{"b1", "b2"}, settings)
	require.NoError(t, err)
	assert.NotEqual(t, a, d)
}

func TestEventsValue(t *testing.T) {
	events := []event.Event{
		event.NpcSpawn{
			Meta: event.Meta{Tick: 0, Stage: stage.TobMaiden, X: 3162, Y: 4444},
			Npc:  event.Npc{RoomID: 1, ID: 8360, Hitpoints: event.SkillLevel{Current: 3500, Base: 3500}},
		},
	}

	v, err := EventsValue(stage.TobMaiden, slices.Values(events))
	require.NoError(t, err)
	assert.Equal(t, Array{Object{
		"type":   String("NPC_SPAWN"),
		"tick":   Int(0),
		"xCoord": Int(3162),
		"yCoord": Int(4444),
		"npc":    Object{"roomId": Int(1), "id": Int(8360), "hitpoints": Int(229379500)},
	}}, v)
}

func TestResultDigest_Deterministic(t *testing.T) {
	first := mergeFixtures(t, "maiden_client1.json", "maiden_client2.json")
	second := mergeFixtures(t, "maiden_client2.json", "maiden_client1.json")

	a, err := ResultDigest(stage.TobMaiden, first)
	require.NoError(t, err)
	b, err := ResultDigest(stage.TobMaiden, second)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	single := mergeFixtures(t, "maiden_client1.json")
	c, err := ResultDigest(stage.TobMaiden, single)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestResultValue(t *testing.T) {
	res := mergeFixtures(t, "maiden_client1.json", "maiden_client2.json", "maiden_partial.json")

	v, err := ResultValue(stage.TobMaiden, res)
	require.NoError(t, err)

	timeline, err := TimelineDigest(stage.TobMaiden, res.Events.Events())
	require.NoError(t, err)
	assert.Equal(t, String(timeline), v["timeline"])

	clients := v["clients"].(Array)
	require.Len(t, clients, 3)
	assert.Equal(t, Int(1), clients[0].(Object)["id"])
	assert.Equal(t, String(merge.StatusMerged), clients[0].(Object)["status"])
	assert.Equal(t, String(merge.ClassificationReference), clients[0].(Object)["classification"])

	_, err = MarshalCanonical(v)
	assert.NoError(t, err)
}
