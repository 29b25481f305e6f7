package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickmerge/internal/batch"
	"github.com/roach88/tickmerge/internal/merge"
	"github.com/roach88/tickmerge/internal/stage"
	"github.com/roach88/tickmerge/internal/store"
	"github.com/roach88/tickmerge/internal/testutil"
)

func TestMerge_JSON(t *testing.T) {
	cmd := NewMergeCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, fixture("maiden_client1.json"), fixture("maiden_partial.json"))
	require.NoError(t, err)

	var summary MergeSummary
	resp := decodeResponse(t, out, &summary)
	assert.Equal(t, "ok", resp.Status)

	assert.Equal(t, fixtureChallenge, summary.ChallengeID)
	assert.Equal(t, "TOB_MAIDEN", summary.Stage)
	assert.Equal(t, 1, summary.MergedCount)
	assert.Equal(t, 1, summary.UnmergedCount)
	assert.Equal(t, 0, summary.SkippedCount)
	assert.Equal(t, 6, summary.TickCount)
	assert.Equal(t, 19, summary.EventCount)
	assert.Empty(t, summary.Alerts)
	assert.False(t, summary.Stored)
	assert.Empty(t, summary.RunID)
	assert.NotEmpty(t, summary.ResultDigest)
	assert.NotEmpty(t, summary.RunDigest)
	assert.NotEmpty(t, summary.TimelineDigest)

	require.Len(t, summary.Clients, 2)
	assert.Equal(t, 1, summary.Clients[0].ID)
	assert.Equal(t, merge.ClassificationReference, summary.Clients[0].Classification)
	assert.Equal(t, merge.StatusMerged, summary.Clients[0].Status)
	assert.Equal(t, 3, summary.Clients[1].ID)
	assert.Equal(t, merge.StatusUnmerged, summary.Clients[1].Status)
	assert.Equal(t, merge.ClassificationMismatched, summary.Clients[1].Classification)
}

func TestMerge_ArgumentOrderDoesNotMatter(t *testing.T) {
	digests := func(args ...string) (string, string) {
		out, err := execute(t, NewMergeCommand(&RootOptions{Format: "json"}), args...)
		require.NoError(t, err)
		var s MergeSummary
		decodeResponse(t, out, &s)
		return s.RunDigest, s.ResultDigest
	}

	run1, res1 := digests(fixture("maiden_client1.json"), fixture("maiden_partial.json"))
	run2, res2 := digests(fixture("maiden_partial.json"), fixture("maiden_client1.json"))
	assert.Equal(t, run1, run2)
	assert.Equal(t, res1, res2)
}

func TestMerge_Text(t *testing.T) {
	cmd := NewMergeCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, fixture("maiden_client1.json"), fixture("maiden_partial.json"))
	require.NoError(t, err)

	assert.Contains(t, out, "Merged TOB_MAIDEN of challenge "+fixtureChallenge+" from 2 batches")
	assert.Contains(t, out, "client 1")
	assert.Contains(t, out, "client 3")
	assert.Contains(t, out, "1 merged, 1 unmerged, 0 skipped")
	assert.Contains(t, out, "Result digest: ")
	assert.NotContains(t, out, "Run: ")
}

func TestMerge_StoresRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	args := []string{"--db", db, fixture("maiden_client1.json"), fixture("maiden_partial.json")}

	out, err := execute(t, NewMergeCommand(&RootOptions{Format: "json", NewRunID: fixedRunID("run-1")}), args...)
	require.NoError(t, err)
	var first MergeSummary
	decodeResponse(t, out, &first)
	assert.Equal(t, "run-1", first.RunID)
	assert.True(t, first.Stored)

	out, err = execute(t, NewMergeCommand(&RootOptions{Format: "json", NewRunID: fixedRunID("run-2")}), args...)
	require.NoError(t, err)
	var second MergeSummary
	decodeResponse(t, out, &second)
	assert.Equal(t, "run-1", second.RunID, "same inputs reuse the stored run")
	assert.False(t, second.Stored)

	ctx := context.Background()
	st, err := store.Open(ctx, db)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, first.ResultDigest, run.ResultDigest)
	assert.Equal(t, first.RunDigest, run.Digest)
	assert.Equal(t, stage.TobMaiden, run.Stage)
	assert.Equal(t, 1, run.MergedCount)
	assert.Len(t, run.Clients, 2)

	batches, err := st.ReadRunBatches(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, 1, batches[0].ClientID)
	assert.Equal(t, 3, batches[1].ClientID)
}

func TestMerge_WritesTimeline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merged.json")
	cmd := NewMergeCommand(&RootOptions{Format: "json"})
	_, err := execute(t, cmd, "--events", path, fixture("maiden_client1.json"), fixture("maiden_partial.json"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	b, err := batch.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 0, b.ClientID)
	assert.Equal(t, fixtureChallenge, b.Challenge.ID)

	st, events, err := b.Decode()
	require.NoError(t, err)
	assert.Equal(t, stage.TobMaiden, st)
	assert.Len(t, events, 19)
}

func TestMerge_Errors(t *testing.T) {
	bloat := writeRecording(t, "bloat.json",
		testutil.NewRecording(2, fixtureChallenge, stage.TobBloat, "player1", "player2").
			Primary("player2", 3288, 4447).
			Completed(1))
	other := writeRecording(t, "other.json",
		testutil.NewRecording(2, "other-challenge", stage.TobMaiden, "player1", "player2").
			Primary("player2", 3165, 4440).
			Completed(1))

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{
			name:     "malformed batch",
			args:     []string{fixture("malformed.json")},
			wantCode: ExitFailure,
			wantErr:  "invalid batch",
		},
		{
			name:     "schema violation",
			args:     []string{fixture("invalid_schema.json")},
			wantCode: ExitFailure,
			wantErr:  "SCHEMA_VIOLATION",
		},
		{
			name:     "missing file",
			args:     []string{filepath.Join(t.TempDir(), "absent.json")},
			wantCode: ExitCommandError,
			wantErr:  "failed to read batch",
		},
		{
			name:     "mixed stages",
			args:     []string{fixture("maiden_client1.json"), bloat},
			wantCode: ExitFailure,
			wantErr:  "records TOB_BLOAT, expected TOB_MAIDEN",
		},
		{
			name:     "mixed challenges",
			args:     []string{fixture("maiden_client1.json"), other},
			wantCode: ExitFailure,
			wantErr:  "belongs to challenge other-challenge",
		},
		{
			name:     "duplicate client",
			args:     []string{fixture("maiden_client1.json"), fixture("maiden_client1.json")},
			wantCode: ExitFailure,
			wantErr:  "both record client 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, NewMergeCommand(&RootOptions{Format: "text"}), tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMerge_RequiresArgs(t *testing.T) {
	_, err := execute(t, NewMergeCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
}

func TestMerge_BadConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log:\n  level: [not, a, string]\n"), 0o644))

	_, err := execute(t, NewMergeCommand(&RootOptions{Format: "text", Config: cfg}), fixture("maiden_client1.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}
