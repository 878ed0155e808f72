package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/limbwalk/internal/checkpoint"
	"github.com/roach88/limbwalk/internal/engine"
	"github.com/roach88/limbwalk/internal/limbs"
)

func writeTestCheckpoint(t *testing.T, steps int, compress bool) (string, *engine.Automaton) {
	t.Helper()
	a := engine.New(limbs.New())
	for i := 0; i < steps; i++ {
		halted, err := a.Step()
		require.NoError(t, err)
		require.False(t, halted)
	}
	path := filepath.Join(t.TempDir(), "state.ckpt")
	require.NoError(t, checkpoint.NewManager(path, checkpoint.WithCompression(compress)).Save(a.Snapshot()))
	return path, a
}

func executeInspect(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewInspectCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestInspectText(t *testing.T) {
	path, _ := writeTestCheckpoint(t, 6, false)

	out, err := executeInspect(t, "text", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Step:       6")
	assert.Contains(t, out, "Group:      2 limbs")
	assert.Contains(t, out, "Compressed: false")
	assert.Contains(t, out, "Bits:       ~")
	assert.Contains(t, out, "not verified")
}

func TestInspectVerifyJSON(t *testing.T) {
	path, a := writeTestCheckpoint(t, 10, true)

	out, err := executeInspect(t, "json", path, "--verify")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   InspectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, uint64(10), resp.Data.Step)
	assert.Equal(t, a.Counter(), resp.Data.Counter)
	assert.True(t, resp.Data.Compressed)
	assert.True(t, resp.Data.Verified)
	assert.True(t, resp.Data.Exact)
	assert.Equal(t, uint64(a.Store().Value().BitLen()), resp.Data.Bits)
	assert.Equal(t, uint64(a.Store().Len()), resp.Data.Limbs)
}

func TestInspectCorruptFile(t *testing.T) {
	path, _ := writeTestCheckpoint(t, 3, false)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	// The header alone still reads fine.
	_, err = executeInspect(t, "text", path)
	require.NoError(t, err)

	out, err := executeInspect(t, "text", path, "--verify")
	require.Error(t, err)
	assert.ErrorIs(t, err, checkpoint.ErrChecksum)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E201]")
}

func TestInspectNotACheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a checkpoint file at all, no sir, not even close"), 0o644))

	_, err := executeInspect(t, "text", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, checkpoint.ErrBadMagic)
}
