package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10*time.Minute, cfg.CheckpointInterval)
	assert.Equal(t, time.Second, cfg.StatusInterval)
	assert.Equal(t, 0, cfg.Workers)
	assert.Equal(t, 4, cfg.ChunksPerWorker)
	assert.Equal(t, 2, cfg.GroupLimbs)
	assert.False(t, cfg.Compress)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Ledger)
	assert.Empty(t, cfg.CheckpointFile)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse([]byte(`
log_file: out.log
checkpoint_file: state.ckpt
checkpoint_interval: 90s
status_interval: 250ms
workers: 6
chunks_per_worker: 3
group_limbs: 1
compress: true
ledger: runs.db
label: nightly
log_level: debug
event_log: events.jsonl
`))
	require.NoError(t, err)

	assert.Equal(t, "out.log", cfg.LogFile)
	assert.Equal(t, "state.ckpt", cfg.CheckpointFile)
	assert.Equal(t, 90*time.Second, cfg.CheckpointInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.StatusInterval)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, 3, cfg.ChunksPerWorker)
	assert.Equal(t, 1, cfg.GroupLimbs)
	assert.True(t, cfg.Compress)
	assert.Equal(t, "runs.db", cfg.Ledger)
	assert.Equal(t, "nightly", cfg.Label)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, "events.jsonl", cfg.EventLog)
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("workers: 2\n"))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 2, cfg.GroupLimbs)
	assert.Equal(t, 10*time.Minute, cfg.CheckpointInterval)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "wokers: 2\n"},
		{"group too large", "group_limbs: 5\n"},
		{"group zero", "group_limbs: 0\n"},
		{"negative workers", "workers: -1\n"},
		{"zero chunks", "chunks_per_worker: 0\n"},
		{"bad duration", "checkpoint_interval: soon\n"},
		{"numeric duration", "status_interval: 5\n"},
		{"bad level", "log_level: loud\n"},
		{"wrong type", "compress: maybe\n"},
		{"malformed yaml", "workers: [1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_SchemaIssues(t *testing.T) {
	tests := []struct {
		yaml string
		want string
	}{
		{"wokers: 2\n", "wokers"},
		{"group_limbs: 9\n", "group_limbs"},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.yaml))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")

		var se *SchemaError
		require.ErrorAs(t, err, &se)
		issues := se.Issues()
		require.NotEmpty(t, issues)

		var all strings.Builder
		for _, is := range issues {
			assert.NotEmpty(t, is.Message)
			all.WriteString(is.Path + " " + is.Message + "\n")
		}
		assert.Contains(t, all.String(), tt.want)
	}
}

func TestParse_YAMLErrorIsNotSchemaError(t *testing.T) {
	_, err := Parse([]byte("workers: [1\n"))
	require.Error(t, err)
	var se *SchemaError
	assert.False(t, errors.As(err, &se))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limbwalk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("label: from-file\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Label)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLevel(t *testing.T) {
	for level, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	} {
		assert.Equal(t, want, (&Config{LogLevel: level}).Level(), level)
	}
}
