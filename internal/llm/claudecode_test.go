package llm

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClaude writes a script that prints the given output the way the CLI does.
func fakeClaude(t *testing.T, output string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "claude")
	script := "#!/bin/sh\ncat <<'EOF'\n" + output + "\nEOF\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0700)) //nolint:gosec // test executable
	return path
}

func TestClaudeCodeBackend_Describe(t *testing.T) {
	cli := fakeClaude(t, `{"type":"result","result":"The case is closed.","is_error":false}`)
	backend, err := newClaudeCodeBackend(Config{ClaudeCodePath: cli})
	require.NoError(t, err)

	got, err := backend.Describe(context.Background(), testFrame(t, "frame_0001.jpg"), "describe")
	require.NoError(t, err)
	assert.Equal(t, "The case is closed.", got)
}

func TestClaudeCodeBackend_Args(t *testing.T) {
	backend := &claudeCodeBackend{model: "sonnet", cliPath: "claude", maxTurns: 2}
	args := backend.args("/tmp/run/frames/frame_0001.jpg", "describe")

	require.Len(t, args, 12)
	assert.Equal(t, "-p", args[0])
	assert.Contains(t, args[1], "/tmp/run/frames/frame_0001.jpg")
	assert.Contains(t, args[1], "describe")
	assert.Equal(t, []string{"--add-dir", "/tmp/run/frames"}, args[10:])
}

func TestClaudeCodeBackend_RequiresImage(t *testing.T) {
	backend := &claudeCodeBackend{model: "sonnet", cliPath: "claude", maxTurns: 2}
	_, err := backend.Describe(context.Background(), model.Frame{ID: "frame_0000"}, "p")
	require.Error(t, err)
	assert.False(t, common.IsRetryable(err))
}

func TestParseClaudeCodeOutput(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    string
		wantErr bool
	}{
		{name: "json result", out: `{"result":"Both earbuds visible."}`, want: "Both earbuds visible."},
		{name: "plain text", out: "  The lid is open.\n", want: "The lid is open."},
		{name: "error flag", out: `{"result":"quota","is_error":true}`, wantErr: true},
		{name: "empty result", out: `{"result":""}`, wantErr: true},
		{name: "empty output", out: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseClaudeCodeOutput([]byte(tt.out))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
