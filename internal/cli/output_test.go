package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"plan": "plan-1"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"plan": "plan-1"}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("E004", "failed to load CUE instances", map[string]string{"dir": "schemas"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E004", resp.Error.Code)
	assert.Equal(t, "failed to load CUE instances", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
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

			require.NoError(t, formatter.Error("E003", "no CUE files found", "schemas/"))
			assert.Contains(t, buf.String(), "Error [E003]: no CUE files found")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: schemas/")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		out, diag := &bytes.Buffer{}, &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag}
		formatter.VerboseLog("compiled %d actions", 3)
		assert.Empty(t, out.String())
		assert.Empty(t, diag.String())
	})

	t.Run("goes to ErrWriter", func(t *testing.T) {
		out, diag := &bytes.Buffer{}, &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}
		formatter.VerboseLog("compiled %d actions", 3)
		assert.Empty(t, out.String())
		assert.Equal(t, "compiled 3 actions\n", diag.String())
	})

	t.Run("falls back to Writer", func(t *testing.T) {
		out := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: out, Verbose: true}
		formatter.VerboseLog("compiled %d actions", 3)
		assert.Equal(t, "compiled 3 actions\n", out.String())
	})
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "open db", errors.New("locked")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "outer: open db: locked", wrapped.Error())
}

func TestMark(t *testing.T) {
	assert.Equal(t, "✓", mark(true))
	assert.Equal(t, "✗", mark(false))

	color.NoColor = false
	t.Cleanup(func() { color.NoColor = true })
	assert.Equal(t, "\x1b[32m✓\x1b[0m", mark(true))
	assert.Equal(t, "\x1b[31m✗\x1b[0m", mark(false))
}
