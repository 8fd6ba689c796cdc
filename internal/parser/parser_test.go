package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiml/probar/internal/machine"
)

const loginYAML = `
version: "1.0"
name: login-flow
description: Login flow verification
machine:
  id: login
  initial: logged_out
  states:
    logged_out: {}
    authenticating: {}
    logged_in:
      final: true
      invariants:
        - description: session cookie present
          condition: session_active
    error: {}
  transitions:
    - id: submit
      from: logged_out
      to: authenticating
      event: submit_credentials
      actions:
        - action: type_text
          selector: "#username"
          text: alice
        - action: click
          selector: "#login"
    - id: success
      from: authenticating
      to: logged_in
      event: auth_ok
      assertions:
        - assert: element_exists
          selector: "#dashboard"
    - id: failure
      from: authenticating
      to: error
      event: auth_failed
    - id: retry
      from: error
      to: logged_out
      event: retry
  forbidden:
    - from: logged_out
      to: logged_in
      reason: authentication bypass
playbook:
  setup:
    - action: navigate
      url: https://example.com/login
  steps:
    - name: login
      transitions: [submit, success]
      capture:
        - var: landing
          source: url
  teardown:
    - action: screenshot
      name: final
assertions:
  path:
    must_visit: [authenticating]
    ends_at: logged_in
  output:
    - var: landing
      check: not_empty
performance:
  max_duration_ms: 5000
`

func TestParse_FullDocument(t *testing.T) {
	pb, err := Parse([]byte(loginYAML))
	require.NoError(t, err)

	assert.Equal(t, "1.0", pb.Version)
	assert.Equal(t, "login-flow", pb.Name)
	assert.Equal(t, "login", pb.Machine.ID)
	assert.Equal(t, machine.StateID("logged_out"), pb.Machine.Initial)
	assert.Len(t, pb.Machine.States, 4)
	assert.Len(t, pb.Machine.Transitions, 4)

	// State IDs come from the table keys.
	assert.Equal(t, machine.StateID("logged_in"), pb.Machine.States["logged_in"].ID)
	assert.True(t, pb.Machine.States["logged_in"].Final)
	require.Len(t, pb.Machine.States["logged_in"].Invariants, 1)
	assert.Equal(t, "session_active", pb.Machine.States["logged_in"].Invariants[0].Condition)

	tr, ok := pb.Machine.TransitionByID("submit")
	require.True(t, ok)
	require.Len(t, tr.Actions, 2)
	assert.Equal(t, machine.ActionTypeText, tr.Actions[0].Kind)
	assert.Equal(t, "alice", tr.Actions[0].Text)

	require.Len(t, pb.Machine.Forbidden, 1)
	assert.Equal(t, "authentication bypass", pb.Machine.Forbidden[0].Reason)

	require.Len(t, pb.Steps, 1)
	assert.Equal(t, []string{"submit", "success"}, pb.Steps[0].Transitions)
	assert.Equal(t, machine.StateID("logged_in"), pb.Path.EndsAt)
	require.Len(t, pb.Output, 1)
	assert.Equal(t, machine.OutputNotEmpty, pb.Output[0].Kind)
	assert.Equal(t, 5000, pb.Performance.MaxDurationMS)
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("version: [unclosed"))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "malformed YAML")
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	doc := `
version: "1.0"
name: typo
machne:
  id: m
`
	_, err := Parse([]byte(doc))
	require.Error(t, err, "unknown top-level fields must not be silently dropped")
}

func TestParse_RequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"missing name", "version: \"1.0\"\n", "name"},
		{"missing version", "name: x\n", "version"},
		{
			"missing machine id",
			"version: \"1.0\"\nname: x\nmachine:\n  initial: a\n  states:\n    a: {final: true}\n",
			"machine.id",
		},
		{
			"missing initial",
			"version: \"1.0\"\nname: x\nmachine:\n  id: m\n  states:\n    a: {final: true}\n",
			"machine.initial",
		},
		{
			"no states",
			"version: \"1.0\"\nname: x\nmachine:\n  id: m\n  initial: a\n",
			"machine.states",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.field, perr.Field)
		})
	}
}

func TestParse_InitialNotDeclared(t *testing.T) {
	doc := `
version: "1.0"
name: x
machine:
  id: m
  initial: ghost
  states:
    a: {final: true}
`
	_, err := Parse([]byte(doc))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "machine.initial", perr.Field)
	assert.Contains(t, perr.Message, "ghost")
}

func TestParse_DuplicateTransitionID(t *testing.T) {
	doc := `
version: "1.0"
name: x
machine:
  id: m
  initial: a
  states:
    a: {}
    b: {final: true}
  transitions:
    - {id: go, from: a, to: b, event: go}
    - {id: go, from: b, to: a, event: back}
`
	_, err := Parse([]byte(doc))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "duplicate transition id")
}

func TestParse_TransitionMissingEvent(t *testing.T) {
	doc := `
version: "1.0"
name: x
machine:
  id: m
  initial: a
  states:
    a: {}
    b: {final: true}
  transitions:
    - {id: go, from: a, to: b}
`
	_, err := Parse([]byte(doc))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "requires an event")
}

func TestParse_StepReferencesUnknownTransition(t *testing.T) {
	doc := `
version: "1.0"
name: x
machine:
  id: m
  initial: a
  states:
    a: {}
    b: {final: true}
  transitions:
    - {id: go, from: a, to: b, event: go}
playbook:
  steps:
    - name: walk
      transitions: [go, ghost]
`
	_, err := Parse([]byte(doc))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "ghost")
}

func TestParse_UnknownActionKind(t *testing.T) {
	doc := `
version: "1.0"
name: x
machine:
  id: m
  initial: a
  states:
    a: {final: true}
playbook:
  setup:
    - action: teleport
`
	_, err := Parse([]byte(doc))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "teleport")
}

func TestParse_UnknownOutputAssertionKind(t *testing.T) {
	doc := `
version: "1.0"
name: x
machine:
  id: m
  initial: a
  states:
    a: {final: true}
assertions:
  output:
    - var: v
      check: roughly_equal
`
	_, err := Parse([]byte(doc))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "roughly_equal")
}

func TestValidateCaptureSource(t *testing.T) {
	valid := []string{
		"url",
		"text:#heading",
		"attribute:#link:href",
		"script:document.title",
	}
	for _, source := range valid {
		assert.NoError(t, validateCaptureSource(source), source)
	}

	invalid := []string{
		"",
		"text:",
		"attribute:#link",
		"attribute::href",
		"script:",
		"dom:#heading",
	}
	for _, source := range invalid {
		assert.Error(t, validateCaptureSource(source), source)
	}
}

func TestLoadPlaybook_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "login.yaml")
	require.NoError(t, os.WriteFile(path, []byte(loginYAML), 0o644))

	pb, err := LoadPlaybook(path)
	require.NoError(t, err)
	assert.Equal(t, "login-flow", pb.Name)
}

func TestLoadPlaybook_MissingFile(t *testing.T) {
	_, err := LoadPlaybook(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
