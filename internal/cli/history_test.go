package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/limbwalk/internal/store"
	"github.com/roach88/limbwalk/internal/testutil"
)

func seedLedger(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	gen := testutil.NewFixedIDGenerator("run-a", "run-b")
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	a, err := st.BeginRun(ctx, gen, store.Run{Label: "first", StartedAt: start, StartCounter: 2, LogPath: "a.log"})
	require.NoError(t, err)
	require.NoError(t, st.RecordCheckpoint(ctx, store.Checkpoint{RunID: a.ID, Step: 500, Path: "s.ckpt", SavedAt: start}))
	require.NoError(t, st.FinishRun(ctx, store.Outcome{RunID: a.ID, Kind: store.OutcomeInterrupted, Step: 640, FinishedAt: start}))

	_, err = st.BeginRun(ctx, gen, store.Run{StartedAt: start.Add(time.Hour), StartStep: 640, ResumedFrom: "s.ckpt", LogPath: "a.log"})
	require.NoError(t, err)
	return path
}

func executeHistory(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewHistoryCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestHistoryText(t *testing.T) {
	out, err := executeHistory(t, "text", "--ledger", seedLedger(t))
	require.NoError(t, err)

	assert.Contains(t, out, "run-b")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "resumed from s.ckpt")
	assert.Contains(t, out, "run-a")
	assert.Contains(t, out, "interrupted at step 640")
	assert.Contains(t, out, "[first]")
	assert.Contains(t, out, "1 checkpoints, last at step 500")
	assert.Less(t, bytes.Index([]byte(out), []byte("run-b")), bytes.Index([]byte(out), []byte("run-a")))
}

func TestHistoryJSONWithLimit(t *testing.T) {
	out, err := executeHistory(t, "json", "--ledger", seedLedger(t), "--limit", "1")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Runs, 1)
	assert.Equal(t, "run-b", resp.Data.Runs[0].RunID)
	assert.Equal(t, uint64(640), resp.Data.Runs[0].StartStep)
	assert.Nil(t, resp.Data.Runs[0].FinalStep)
}

func TestHistoryEmptyLedger(t *testing.T) {
	out, err := executeHistory(t, "text", "--ledger", filepath.Join(t.TempDir(), "fresh.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestHistoryMissingLedgerFlag(t *testing.T) {
	_, err := executeHistory(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
