package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "limbwalk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func executeValidate(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCommandValid(t *testing.T) {
	path := writeConfig(t, "group_limbs: 1\ncompress: true\n")

	out, err := executeValidate(t, "text", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "group_limbs:         1")
	assert.Contains(t, out, "checkpoint_interval: 10m0s")
	assert.Contains(t, out, "compress:            true")
}

func TestValidateCommandValidJSON(t *testing.T) {
	path := writeConfig(t, "workers: 3\n")

	out, err := executeValidate(t, "json", path)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.NotNil(t, resp.Data.Config)
	assert.Equal(t, 3, resp.Data.Config.Workers)
	assert.Equal(t, 2, resp.Data.Config.GroupLimbs)
	assert.Equal(t, "1s", resp.Data.Config.StatusInterval)
}

func TestValidateCommandSchemaViolation(t *testing.T) {
	path := writeConfig(t, "wokers: 3\n")

	out, err := executeValidate(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "is invalid")
	assert.Contains(t, out, "wokers")
}

func TestValidateCommandSchemaViolationJSON(t *testing.T) {
	path := writeConfig(t, "group_limbs: 7\n")

	out, err := executeValidate(t, "json", path)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.NotEmpty(t, resp.Data.Errors)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidConfig, resp.Error.Code)
}

func TestValidateCommandMalformedYAML(t *testing.T) {
	path := writeConfig(t, "workers: [1\n")

	out, err := executeValidate(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "failed to parse YAML")
}

func TestValidateCommandMissingFile(t *testing.T) {
	_, err := executeValidate(t, "text", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
