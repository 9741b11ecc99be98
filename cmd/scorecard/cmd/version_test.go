package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.String()
}

func TestVersionCommand(t *testing.T) {
	SetVersion("v1.2.3", "abc123def", "2026-01-15")

	t.Run("version command output", func(t *testing.T) {
		output := captureStdout(t, func() { versionCmd.Run(versionCmd, []string{}) })

		assert.Contains(t, output, "scorecard v1.2.3")
		assert.Contains(t, output, "commit: abc123def")
		assert.Contains(t, output, "built:  2026-01-15")
		assert.Equal(t, "v1.2.3", GetVersion())
	})

	t.Run("version with empty values", func(t *testing.T) {
		SetVersion("", "", "")
		output := captureStdout(t, func() { versionCmd.Run(versionCmd, []string{}) })

		assert.Contains(t, output, "scorecard")
		assert.Contains(t, output, "commit:")
		assert.Contains(t, output, "built:")
	})
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"serve": false, "migrate": false, "init": false, "import": false,
		"validate": false, "mcp": false, "version": false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		assert.True(t, found, "%s command should be registered with root command", name)
	}
}
