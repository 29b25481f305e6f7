package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tickmerge", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"merge", "inspect", "align", "validate", "replay", "runs", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command  string
		flag     string
		required bool
	}{
		{"merge", "db", false},
		{"merge", "jobs", false},
		{"merge", "events", false},
		{"inspect", "jobs", false},
		{"align", "pairs", false},
		{"replay", "db", true},
		{"replay", "run", false},
		{"runs", "db", true},
		{"runs", "run", false},
		{"runs", "challenge", false},
		{"test", "update", false},
		{"test", "filter", false},
		{"test", "golden-dir", false},
	}

	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			sub, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			f := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			_, required := f.Annotations["cobra_annotation_bash_completion_one_required_flag"]
			assert.Equal(t, tt.required, required)
		})
	}
}

func TestFormatValidationIntegration(t *testing.T) {
	_, err := execute(t, NewRootCommand(), "--format", "xml", "validate", fixture("maiden_client1.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootExecutesSubcommand(t *testing.T) {
	out, err := execute(t, NewRootCommand(), "--format", "text", "validate", fixture("maiden_client1.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 1 batch valid")
}
