package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickmerge/internal/batch"
	"github.com/roach88/tickmerge/internal/testutil"
)

const fixtureChallenge = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeffffff"

func fixture(name string) string {
	return filepath.Join("..", "batch", "testdata", name)
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decodeResponse parses a JSON envelope and decodes its data into v.
func decodeResponse(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if v != nil {
		require.NoError(t, json.Unmarshal(raw.Data, v), out)
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

// writeRecording encodes a recording as a batch file in a temp dir.
func writeRecording(t *testing.T, name string, r *testutil.Recording) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, batch.Encode(f, r.Batch()))
	require.NoError(t, f.Close())
	return path
}

func fixedRunID(id string) func() (string, error) {
	return func() (string, error) { return id, nil }
}
