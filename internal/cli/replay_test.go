package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/limbwalk/internal/checkpoint"
	"github.com/roach88/limbwalk/internal/engine"
	"github.com/roach88/limbwalk/internal/limbs"
	"github.com/roach88/limbwalk/internal/steplog"
)

// writeStepLog runs a fresh automaton for steps steps and returns the log
// path plus a checkpoint saved after checkpointAt steps.
func writeStepLog(t *testing.T, group, steps, checkpointAt int) (string, string) {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "steps.log")
	ckptPath := filepath.Join(dir, "state.ckpt")

	w, err := steplog.Open(logPath)
	require.NoError(t, err)
	a := engine.New(limbs.New(), engine.WithGroupLimbs(group), engine.WithRecorder(w))
	mgr := checkpoint.NewManager(ckptPath)
	for i := 0; i < steps; i++ {
		if i == checkpointAt {
			require.NoError(t, mgr.Save(a.Snapshot()))
		}
		_, err := a.Step()
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return logPath, ckptPath
}

func executeReplay(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: format})
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReplayFreshLog(t *testing.T) {
	logPath, _ := writeStepLog(t, 2, 20, -1)

	out, err := executeReplay(t, "text", logPath)
	require.NoError(t, err)
	assert.Contains(t, out, "20 lines reproduced from step 0")
}

func TestReplayFromCheckpoint(t *testing.T) {
	logPath, ckptPath := writeStepLog(t, 1, 30, 12)

	out, err := executeReplay(t, "json", logPath, "--restore", ckptPath, "--group", "3")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Match)
	assert.Equal(t, 1, resp.Data.Group, "the checkpoint's group wins over --group")
	assert.Equal(t, uint64(12), resp.Data.StartStep)
	assert.Equal(t, 12, resp.Data.Skipped)
	assert.Equal(t, 18, resp.Data.Checked)
	assert.Equal(t, uint64(30), resp.Data.NextStep)
}

func TestReplayDetectsDivergence(t *testing.T) {
	logPath, _ := writeStepLog(t, 2, 10, -1)
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	lines[4] = "4 1 2 3"
	require.NoError(t, os.WriteFile(logPath, []byte(strings.Join(lines, "\n")), 0644))

	out, err := executeReplay(t, "text", logPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "diverges after 4 lines")
	assert.Contains(t, out, "line 5 (step 4): line differs")
	assert.Contains(t, out, "got:  4 1 2 3")
}

func TestReplayDivergenceJSON(t *testing.T) {
	logPath, _ := writeStepLog(t, 2, 5, -1)

	out, err := executeReplay(t, "json", logPath, "--group", "1")
	require.Error(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeLogDiverged, resp.Error.Code)
	require.NotNil(t, resp.Data.Mismatch)
	assert.Equal(t, 2, resp.Data.Mismatch.Line)
}

func TestReplayLimit(t *testing.T) {
	logPath, _ := writeStepLog(t, 2, 10, -1)

	out, err := executeReplay(t, "text", logPath, "--limit", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "4 lines reproduced")
}

func TestReplayCommandErrors(t *testing.T) {
	logPath, _ := writeStepLog(t, 2, 2, -1)
	bad := filepath.Join(t.TempDir(), "bad.ckpt")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0644))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing log", []string{filepath.Join(t.TempDir(), "none.log")}, "failed to open log file"},
		{"bad checkpoint", []string{logPath, "--restore", bad}, "failed to restore checkpoint"},
		{"group range", []string{logPath, "--group", "9"}, "--group must be in"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeReplay(t, "text", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestReplayResultString(t *testing.T) {
	r := ReplayResult{LogPath: "s.log", Checked: 3, Skipped: 2, StartStep: 2, Match: true, Halted: true, NextStep: 4}
	assert.Equal(t, "✓ s.log: 3 lines reproduced from step 2 (2 earlier lines skipped)\n  halted at step 4", r.String())
}
