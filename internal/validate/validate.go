// Package validate performs graph analysis over a parsed state machine:
// reachability from the initial state, dead ends, paths to final states,
// determinism of event dispatch, and unguarded self-loops.
//
// Validation runs after parsing and before anything else. A machine with
// Error-severity issues is never executed and never mutated.
package validate

import (
	"fmt"

	"github.com/paiml/probar/internal/machine"
)

// Severity classifies an issue. Errors block execution; warnings never do.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Category identifies the structural defect an issue reports.
type Category string

const (
	CategoryOrphanedState     Category = "orphaned_state"
	CategoryDeadEnd           Category = "dead_end"
	CategoryNoPathToFinal     Category = "no_path_to_final"
	CategoryNonDeterministic  Category = "non_deterministic"
	CategoryUnguardedSelfLoop Category = "unguarded_self_loop"
)

// Validation issue codes (E200-E299).
const (
	CodeOrphanedState     = "E201" // state unreachable from initial
	CodeDeadEnd           = "E202" // reachable non-final state with no exits
	CodeNoPathToFinal     = "E203" // no final state reachable from here
	CodeNonDeterministic  = "E204" // multiple unguarded transitions on one (from, event)
	CodeUnguardedSelfLoop = "E205" // self-loop without a guard
)

// Issue is one structural finding about a machine.
type Issue struct {
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`

	// Target is the state or transition the issue is about.
	Target  string `json:"target"`
	Message string `json:"message"`
}

// Error implements the error interface so issues can be wrapped when a
// caller chooses to treat one as fatal.
func (i Issue) Error() string {
	return fmt.Sprintf("[%s] %s: %s", i.Code, i.Target, i.Message)
}

// IsValid reports whether a machine may be executed: true iff no
// Error-severity issue is present. Warnings never block execution.
func IsValid(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Validate analyzes the machine and returns all issues found, in check
// order, deterministically. It returns a *ReferentialError (and no issues)
// when any transition or forbidden pair references a state that does not
// exist; dangling references make graph analysis meaningless, so they stop
// validation outright.
func Validate(spec *machine.StateMachineSpec) ([]Issue, error) {
	if err := checkReferences(spec); err != nil {
		return nil, err
	}

	var issues []Issue
	reached := Reachable(spec)

	// Orphaned states: never visited by the breadth-first traversal.
	for _, id := range spec.StateIDs() {
		if !reached[id] {
			issues = append(issues, Issue{
				Category: CategoryOrphanedState,
				Severity: SeverityError,
				Code:     CodeOrphanedState,
				Target:   string(id),
				Message:  fmt.Sprintf("state %q is unreachable from initial state %q", id, spec.Initial),
			})
		}
	}

	// Dead ends: reachable, non-final, no outgoing transitions.
	for _, id := range spec.StateIDs() {
		if !reached[id] || spec.States[id].Final {
			continue
		}
		if len(spec.Outgoing(id)) == 0 {
			issues = append(issues, Issue{
				Category: CategoryDeadEnd,
				Severity: SeverityError,
				Code:     CodeDeadEnd,
				Target:   string(id),
				Message:  fmt.Sprintf("state %q is not final and has no outgoing transitions", id),
			})
		}
	}

	// No path to final: forward search from each reachable state.
	canFinish := canReachFinal(spec)
	for _, id := range spec.StateIDs() {
		if reached[id] && !canFinish[id] {
			issues = append(issues, Issue{
				Category: CategoryNoPathToFinal,
				Severity: SeverityWarning,
				Code:     CodeNoPathToFinal,
				Target:   string(id),
				Message:  fmt.Sprintf("no final state is reachable from state %q", id),
			})
		}
	}

	// Non-determinism: more than one unguarded transition in a
	// (from, event) group means dispatch order decides which fires.
	type group struct {
		from  machine.StateID
		event string
	}
	unguarded := make(map[group][]string)
	var order []group
	for _, t := range spec.Transitions {
		if t.Guard != "" {
			continue
		}
		g := group{t.From, t.Event}
		if len(unguarded[g]) == 0 {
			order = append(order, g)
		}
		unguarded[g] = append(unguarded[g], t.ID)
	}
	for _, g := range order {
		ids := unguarded[g]
		if len(ids) > 1 {
			issues = append(issues, Issue{
				Category: CategoryNonDeterministic,
				Severity: SeverityWarning,
				Code:     CodeNonDeterministic,
				Target:   fmt.Sprintf("%s/%s", g.from, g.event),
				Message: fmt.Sprintf("%d unguarded transitions from state %q on event %q: %v",
					len(ids), g.from, g.event, ids),
			})
		}
	}

	// Unguarded self-loops can fire forever without progress.
	for _, t := range spec.Transitions {
		if t.From == t.To && t.Guard == "" {
			issues = append(issues, Issue{
				Category: CategoryUnguardedSelfLoop,
				Severity: SeverityWarning,
				Code:     CodeUnguardedSelfLoop,
				Target:   t.ID,
				Message:  fmt.Sprintf("transition %q loops on state %q without a guard", t.ID, t.From),
			})
		}
	}

	return issues, nil
}

// Reachable returns the set of states reachable from the initial state via
// zero or more transitions, computed by breadth-first traversal.
func Reachable(spec *machine.StateMachineSpec) map[machine.StateID]bool {
	reached := map[machine.StateID]bool{spec.Initial: true}
	queue := []machine.StateID{spec.Initial}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range spec.Transitions {
			if t.From == cur && !reached[t.To] {
				reached[t.To] = true
				queue = append(queue, t.To)
			}
		}
	}
	return reached
}

// canReachFinal returns, for every state, whether some final state is
// reachable from it. Computed as one reverse traversal from the final
// states rather than a forward search per state.
func canReachFinal(spec *machine.StateMachineSpec) map[machine.StateID]bool {
	can := make(map[machine.StateID]bool, len(spec.States))
	var queue []machine.StateID
	for id, st := range spec.States {
		if st.Final {
			can[id] = true
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range spec.Transitions {
			if t.To == cur && !can[t.From] {
				can[t.From] = true
				queue = append(queue, t.From)
			}
		}
	}
	return can
}
