package diagram

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/paiml/probar/internal/machine"
)

func loginSpec() *machine.StateMachineSpec {
	return &machine.StateMachineSpec{
		ID:      "login",
		Initial: "logged_out",
		States: map[machine.StateID]machine.State{
			"logged_out":     {ID: "logged_out"},
			"authenticating": {ID: "authenticating"},
			"logged_in":      {ID: "logged_in", Final: true},
			"error":          {ID: "error"},
		},
		Transitions: []machine.Transition{
			{ID: "submit", From: "logged_out", To: "authenticating", Event: "submit_credentials"},
			{ID: "success", From: "authenticating", To: "logged_in", Event: "auth_ok"},
			{ID: "failure", From: "authenticating", To: "error", Event: "auth_failed"},
			{ID: "retry", From: "error", To: "logged_out", Event: "retry"},
		},
		Forbidden: []machine.ForbiddenTransition{
			{From: "logged_out", To: "logged_in", Reason: "authentication bypass"},
		},
	}
}

func TestExportDOT_Golden(t *testing.T) {
	g := goldie.New(t)
	g.Assert(t, "login", []byte(ExportDOT(loginSpec())))
}

func TestExportDOT_Deterministic(t *testing.T) {
	// Map iteration must never leak into the rendering.
	first := ExportDOT(loginSpec())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ExportDOT(loginSpec()))
	}
}

func TestExportDOT_GuardInLabel(t *testing.T) {
	spec := loginSpec()
	spec.Transitions[1].Guard = "token_fresh"

	dot := ExportDOT(spec)
	assert.Contains(t, dot, `label="auth_ok [token_fresh]"`)
}

func TestExportDOT_EscapesQuotes(t *testing.T) {
	spec := loginSpec()
	spec.Transitions[0].Event = `submit "now"`

	dot := ExportDOT(spec)
	assert.Contains(t, dot, `label="submit \"now\""`)
}

func TestExportDOT_NoMachineID(t *testing.T) {
	spec := loginSpec()
	spec.ID = ""

	dot := ExportDOT(spec)
	assert.NotContains(t, dot, "labelloc")
}
