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

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "check failed")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain error")))

	wrapped := fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "inner"))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
}

func TestExitError_Error(t *testing.T) {
	err := NewExitError(ExitFailure, "machine is invalid")
	assert.Equal(t, "machine is invalid", err.Error())

	wrapped := WrapExitError(ExitCommandError, "failed to parse playbook", errors.New("bad yaml"))
	assert.Equal(t, "failed to parse playbook: bad yaml", wrapped.Error())
	assert.Equal(t, "bad yaml", wrapped.Unwrap().Error())
}

func TestOutputFormatter_SuccessJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Success(map[string]int{"mutants": 25}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_ErrorJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Error(ErrCodeParse, "malformed playbook", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeParse, resp.Error.Code)
}

func TestOutputFormatter_ErrorText(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Error(ErrCodeNotFound, "playbook file not found: x.yaml", nil))
	assert.Contains(t, buf.String(), "✗ E003: playbook file not found: x.yaml")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &out, ErrWriter: &errBuf, Verbose: true}

	f.VerboseLog("generated %d mutants", 25)
	assert.Empty(t, out.String(), "diagnostics stay off stdout")
	assert.Contains(t, errBuf.String(), "generated 25 mutants")

	f.Verbose = false
	errBuf.Reset()
	f.VerboseLog("silent")
	assert.Empty(t, errBuf.String())
}
