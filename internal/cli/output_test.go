package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]uint64{"step": 42})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeBadCheckpoint, "checkpoint truncated", map[string]string{"path": "state.ckpt"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E201", resp.Error.Code)
	assert.Equal(t, "checkpoint truncated", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	require.NoError(t, formatter.Success("halted at step 7"))
	assert.Equal(t, "halted at step 7\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error(ErrCodeLedger, "ledger locked", "busy"))
			assert.Contains(t, buf.String(), "Error [E301]: ledger locked")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: busy")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}

	formatter.VerboseLog("restoring %s", "state.ckpt")
	assert.Empty(t, out.String())
	assert.Equal(t, "restoring state.ckpt\n", diag.String())
	assert.Equal(t, diag, formatter.GetErrWriter())

	formatter.Verbose = false
	formatter.VerboseLog("hidden")
	assert.Equal(t, "restoring state.ckpt\n", diag.String())
}

func TestExitError(t *testing.T) {
	base := errors.New("disk full")
	err := WrapExitError(ExitFailure, "automaton failed", base)

	assert.Equal(t, "automaton failed: disk full", err.Error())
	assert.ErrorIs(t, err, base)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "bad flag"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, "bad flag", NewExitError(ExitCommandError, "bad flag").Error())
}
