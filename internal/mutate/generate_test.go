package mutate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiml/probar/internal/machine"
)

// loginSpec: S=4 states, T=4 transitions, G=0 guards.
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

// loginPlaybook wraps loginSpec with the flow and assertions used by the
// scoring tests.
func loginPlaybook() *machine.Playbook {
	return &machine.Playbook{
		Version: "1.0",
		Name:    "login-flow",
		Machine: *loginSpec(),
		Steps: []machine.Step{
			{Name: "login", Transitions: []string{"submit", "success"}},
		},
		Path: machine.PathAssertions{
			MustVisit: []machine.StateID{"authenticating"},
			EndsAt:    "logged_in",
		},
	}
}

func countByClass(mutants []Mutant) map[Class]int {
	counts := make(map[Class]int)
	for _, m := range mutants {
		counts[m.Class]++
	}
	return counts
}

func TestGenerate_Counts(t *testing.T) {
	// S=4, T=4, G=0: M1=3, M2=4, M3=C(4,2)=6, M4=4*3=12, M5=0.
	mutants := Generate(loginSpec())

	counts := countByClass(mutants)
	assert.Equal(t, 3, counts[ClassStateRemoval])
	assert.Equal(t, 4, counts[ClassTransitionRemoval])
	assert.Equal(t, 6, counts[ClassEventSwap])
	assert.Equal(t, 12, counts[ClassTargetSwap])
	assert.Equal(t, 0, counts[ClassGuardNegation])
	assert.Len(t, mutants, 25)
}

func TestGenerate_GuardCounts(t *testing.T) {
	spec := loginSpec()
	spec.Transitions[1].Guard = "token_fresh"
	spec.Transitions[3].Guard = "attempts < 3"

	mutants := Generate(spec)
	assert.Equal(t, 2, countByClass(mutants)[ClassGuardNegation])
}

func TestGenerate_Deterministic(t *testing.T) {
	first := Generate(loginSpec())
	second := Generate(loginSpec())

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Class, second[i].Class)
	}
}

func TestGenerate_SourceSpecUntouched(t *testing.T) {
	spec := loginSpec()
	spec.Transitions[0].Guard = "remembered"
	before := spec.Clone()

	Generate(spec)

	assert.Equal(t, before, spec.Clone())
}

func TestRemoveStates_NeverRemovesInitial(t *testing.T) {
	for _, m := range removeStates(loginSpec()) {
		assert.True(t, m.Spec.HasState("logged_out"), m.ID)
	}
}

func TestRemoveStates_DropsTouchingTransitionsAndForbidden(t *testing.T) {
	mutants := removeStates(loginSpec())

	var removed *Mutant
	for i := range mutants {
		if mutants[i].ID == "M1_remove_state_logged_in" {
			removed = &mutants[i]
		}
	}
	require.NotNil(t, removed)

	assert.False(t, removed.Spec.HasState("logged_in"))
	_, ok := removed.Spec.TransitionByID("success")
	assert.False(t, ok, "transition into the removed state must be dropped")
	assert.Empty(t, removed.Spec.Forbidden, "forbidden pairs naming the removed state must be dropped")
}

func TestRemoveTransitions_OnePerTransition(t *testing.T) {
	mutants := removeTransitions(loginSpec())
	require.Len(t, mutants, 4)

	assert.Equal(t, "M2_remove_transition_submit", mutants[0].ID)
	assert.Len(t, mutants[0].Spec.Transitions, 3)
	_, ok := mutants[0].Spec.TransitionByID("submit")
	assert.False(t, ok)
}

func TestSwapEvents_ExchangesLabels(t *testing.T) {
	mutants := swapEvents(loginSpec())
	require.Len(t, mutants, 6)

	first := mutants[0]
	assert.Equal(t, "M3_swap_events_submit_success", first.ID)
	a, _ := first.Spec.TransitionByID("submit")
	b, _ := first.Spec.TransitionByID("success")
	assert.Equal(t, "auth_ok", a.Event)
	assert.Equal(t, "submit_credentials", b.Event)
}

func TestSwapTargets_SkipsCurrentTarget(t *testing.T) {
	mutants := swapTargets(loginSpec())
	require.Len(t, mutants, 12)

	for _, m := range mutants {
		assert.False(t, strings.HasSuffix(m.ID, "_to_"), m.ID)
	}

	var retargeted *Mutant
	for i := range mutants {
		if mutants[i].ID == "M4_retarget_submit_to_logged_in" {
			retargeted = &mutants[i]
		}
	}
	require.NotNil(t, retargeted)
	tr, _ := retargeted.Spec.TransitionByID("submit")
	assert.Equal(t, machine.StateID("logged_in"), tr.To)
}

func TestNegateGuards_WrapsGuard(t *testing.T) {
	spec := loginSpec()
	spec.Transitions = append(spec.Transitions, machine.Transition{
		ID: "pay", From: "logged_in", To: "logged_in", Event: "pay", Guard: "amount > 0",
	})

	mutants := negateGuards(spec)
	require.Len(t, mutants, 1)
	assert.Equal(t, "M5_negate_guard_pay", mutants[0].ID)

	tr, _ := mutants[0].Spec.TransitionByID("pay")
	assert.Equal(t, "not(amount > 0)", tr.Guard)

	// The source keeps its original guard.
	orig, _ := spec.TransitionByID("pay")
	assert.Equal(t, "amount > 0", orig.Guard)
}
