package batch

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickmerge/internal/clientevents"
	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/stage"
)

func openFixture(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestDecodeClient(t *testing.T) {
	c, err := DecodeClient(openFixture(t, "maiden_client1.json"))
	require.NoError(t, err)

	assert.Equal(t, 1, c.ID())
	assert.Equal(t, stage.TobMaiden, c.Stage())
	assert.Equal(t, event.StatusCompleted, c.Status())
	assert.Equal(t, 5, c.FinalTick())
	assert.Equal(t, &event.ServerTicks{Count: 5, Precise: true}, c.ServerTicks())
	assert.True(t, c.Accurate())
	assert.Empty(t, c.Anomalies())
	assert.Equal(t, 19, c.EventCount())

	primary, ok := c.PrimaryPlayer()
	require.True(t, ok)
	assert.Equal(t, "player1", primary)

	p := c.TickState(0).Player("player1")
	require.NotNil(t, p)
	assert.Equal(t, 22325, p.Equipment[event.SlotWeapon].ID)
	assert.Equal(t, event.Primary, p.Source)

	npc := c.TickState(0).Npc(1)
	require.NotNil(t, npc)
	assert.Equal(t, event.SkillLevel{Current: 3500, Base: 3500}, npc.Hitpoints)
}

func TestDecodeClient_TypedPayloads(t *testing.T) {
	b, err := Read(openFixture(t, "maiden_client2.json"))
	require.NoError(t, err)

	_, events, err := b.Decode()
	require.NoError(t, err)

	var attack event.NpcAttack
	var splats event.MaidenBloodSplats
	for _, e := range events {
		switch v := e.(type) {
		case event.NpcAttack:
			attack = v
		case event.MaidenBloodSplats:
			splats = v
		}
	}
	assert.Equal(t, event.NpcAttack{
		Meta:   event.Meta{Tick: 3, Stage: stage.TobMaiden, X: 3162, Y: 4444},
		RoomID: 1,
		ID:     8360,
		Attack: "MAIDEN_BLOOD_THROW",
		Target: "player2",
	}, attack)
	assert.Equal(t, []stage.Coords{{X: 3170, Y: 4441}, {X: 3171, Y: 4441}}, splats.Tiles)
}

func TestDecodeClient_PlayerAttackTarget(t *testing.T) {
	b, err := Read(openFixture(t, "maiden_client1.json"))
	require.NoError(t, err)
	_, events, err := b.Decode()
	require.NoError(t, err)

	i := slices.IndexFunc(events, func(e event.Event) bool { return e.Kind() == event.KindPlayerAttack })
	require.GreaterOrEqual(t, i, 0)
	attack := events[i].(event.PlayerAttack)
	assert.True(t, attack.Targeted)
	assert.Equal(t, 1, attack.Target)
	assert.Equal(t, "SCYTHE", attack.Type)
}

func TestDecodeClient_Errors(t *testing.T) {
	tests := []struct {
		fixture string
		code    ErrorCode
		path    string
	}{
		{"malformed.json", CodeMalformedJSON, ""},
		{"invalid_schema.json", CodeSchemaViolation, "/events/1/tick"},
		{"unknown_stage.json", CodeUnknownStage, "/stage"},
	}

	for _, tt := range tests {
		t.Run(tt.fixture, func(t *testing.T) {
			_, err := DecodeClient(openFixture(t, tt.fixture))
			require.Error(t, err)

			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, tt.path, de.Path)
			assert.True(t, IsDecodeError(err))
			assert.Equal(t, tt.code == CodeSchemaViolation, IsSchemaError(err))
		})
	}
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := map[string]string{
		"missing events":     `{"clientId":1,"challenge":{"id":"c","party":[]},"stage":"TOB_MAIDEN"}`,
		"negative client":    `{"clientId":-1,"challenge":{"id":"c","party":[]},"stage":"TOB_MAIDEN","events":[]}`,
		"unknown property":   `{"clientId":1,"challenge":{"id":"c","party":[]},"stage":"TOB_MAIDEN","events":[],"extra":true}`,
		"lowercase stage":    `{"clientId":1,"challenge":{"id":"c","party":[]},"stage":"maiden","events":[]}`,
		"bad slot":           `{"clientId":1,"challenge":{"id":"c","party":[]},"stage":"TOB_MAIDEN","events":[{"type":"PLAYER_UPDATE","tick":0,"player":{"name":"a","equipmentDeltas":[{"slot":"POCKET","itemId":1,"quantity":1,"added":true}]}}]}`,
		"bad status":         `{"clientId":1,"challenge":{"id":"c","party":[]},"stage":"TOB_MAIDEN","events":[{"type":"STAGE_UPDATE","tick":0,"stageUpdate":{"status":"PAUSED"}}]}`,
		"unnamed player":     `{"clientId":1,"challenge":{"id":"c","party":[]},"stage":"TOB_MAIDEN","events":[{"type":"PLAYER_DEATH","tick":0,"player":{}}]}`,
		"fractional tick":    `{"clientId":1,"challenge":{"id":"c","party":[]},"stage":"TOB_MAIDEN","events":[{"type":"NPC_DEATH","tick":1.5,"npc":{"roomId":1,"id":2}}]}`,
		"bad cooldown tick":  `{"clientId":1,"challenge":{"id":"c","party":[]},"stage":"TOB_MAIDEN","events":[{"type":"PLAYER_UPDATE","tick":0,"player":{"name":"a","offCooldownTick":-2}}]}`,
		"huge event tick":    `{"clientId":1,"challenge":{"id":"c","party":[]},"stage":"TOB_MAIDEN","events":[{"type":"NPC_DEATH","tick":72001,"npc":{"roomId":1,"id":2}}]}`,
		"huge server ticks":  `{"clientId":1,"challenge":{"id":"c","party":[]},"stage":"TOB_MAIDEN","events":[{"type":"STAGE_UPDATE","tick":0,"stageUpdate":{"status":"COMPLETED","serverTicks":{"count":2000000000,"precise":true}}}]}`,
		"huge heal tick":     `{"clientId":1,"challenge":{"id":"c","party":[]},"stage":"TOB_XARPUS","events":[{"type":"TOB_XARPUS_EXHUMED","tick":0,"xarpusExhumed":{"spawnTick":0,"healAmount":1,"healTicks":[99999]}}]}`,
		"splats not objects": `{"clientId":1,"challenge":{"id":"c","party":[]},"stage":"TOB_MAIDEN","events":[{"type":"TOB_MAIDEN_BLOOD_SPLATS","tick":0,"maidenBloodSplats":[1,2]}]}`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.True(t, IsSchemaError(err), "got %v", err)
		})
	}
}

func TestParse_RecordedTicksBounded(t *testing.T) {
	doc := func(ticks int) []byte {
		return []byte(fmt.Sprintf(`{"clientId":1,"challenge":{"id":"c","party":[]},"stage":"TOB_MAIDEN","events":[{"type":"STAGE_UPDATE","tick":0,"stageUpdate":{"status":"COMPLETED","recordedTicks":%d}}]}`, ticks))
	}

	_, err := Parse(doc(72000))
	require.NoError(t, err)

	_, err = Parse(doc(2000000000))
	require.Error(t, err)
	assert.Equal(t, CodeSchemaViolation, Code(err))

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "/events/0/stageUpdate/recordedTicks", de.Path)
}

func TestBatch_DecodeErrors(t *testing.T) {
	tests := map[string]struct {
		doc  string
		code ErrorCode
		path string
	}{
		"unknown type": {
			doc:  `{"clientId":1,"challenge":{"id":"c","party":[]},"stage":"TOB_MAIDEN","events":[{"type":"PLAYER_DANCE","tick":0}]}`,
			code: CodeUnknownEventType,
			path: "/events/0/type",
		},
		"missing payload": {
			doc:  `{"clientId":1,"challenge":{"id":"c","party":[]},"stage":"TOB_MAIDEN","events":[{"type":"NPC_SPAWN","tick":0}]}`,
			code: CodeMissingPayload,
			path: "/events/0",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			b, err := Parse([]byte(tt.doc))
			require.NoError(t, err)

			_, err = b.Client()
			require.Error(t, err)
			assert.Equal(t, tt.code, Code(err))

			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.path, de.Path)
		})
	}
}

func TestEncodeEvents_RoundTrip(t *testing.T) {
	original, err := DecodeClient(openFixture(t, "maiden_client2.json"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeEvents(&buf, original.ID(), original.Challenge(), original.Stage(), original.Events()))

	b, err := Parse(buf.Bytes())
	require.NoError(t, err, buf.String())
	st, events, err := b.Decode()
	require.NoError(t, err)

	assert.Equal(t, stage.TobMaiden, st)
	assert.Equal(t, slices.Collect(original.Events()), events)
}

func TestEncode_EmptyEvents(t *testing.T) {
	var buf bytes.Buffer
	b := FromEvents(4, clientevents.ChallengeInfo{ID: "c", Party: []string{}}, stage.TobBloat, slices.Values([]event.Event(nil)))
	require.NoError(t, Encode(&buf, b))

	assert.True(t, strings.Contains(buf.String(), `"events": []`))
	_, err := Parse(buf.Bytes())
	assert.NoError(t, err)
}

func TestDecodeError_Message(t *testing.T) {
	err := &DecodeError{Code: CodeSchemaViolation, Message: "expected integer", Path: "/events/0/tick"}
	assert.Equal(t, "SCHEMA_VIOLATION: expected integer (at /events/0/tick)", err.Error())

	err = &DecodeError{Code: CodeMalformedJSON, Message: "unexpected EOF"}
	assert.Equal(t, "MALFORMED_JSON: unexpected EOF", err.Error())
}
