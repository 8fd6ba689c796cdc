// Package mutate implements mutation falsification for state-machine
// playbooks: it derives single-defect variants of a machine across five
// operator classes and scores how many of them the playbook's declared
// checks detect.
//
// Generation is a pure function of the spec: the operator classes are
// deterministic and exhaustive, and every mutant carries its own deep copy
// of the machine. The source spec is never altered.
package mutate

import (
	"fmt"

	"github.com/paiml/probar/internal/machine"
)

// Class identifies a mutation operator.
type Class string

const (
	// ClassStateRemoval removes one non-initial state and every
	// transition touching it.
	ClassStateRemoval Class = "M1"

	// ClassTransitionRemoval removes exactly one transition.
	ClassTransitionRemoval Class = "M2"

	// ClassEventSwap exchanges the event labels of two transitions.
	ClassEventSwap Class = "M3"

	// ClassTargetSwap retargets one transition to a different state.
	ClassTargetSwap Class = "M4"

	// ClassGuardNegation negates one transition's guard.
	ClassGuardNegation Class = "M5"
)

// Classes lists all operator classes in order.
var Classes = []Class{
	ClassStateRemoval,
	ClassTransitionRemoval,
	ClassEventSwap,
	ClassTargetSwap,
	ClassGuardNegation,
}

// Mutant is one machine variant containing exactly one systematic defect.
// Spec is always a deep copy owned by the mutant.
type Mutant struct {
	ID          string                    `json:"id"`
	Class       Class                     `json:"class"`
	Description string                    `json:"description"`
	Spec        *machine.StateMachineSpec `json:"-"`
}

// Generate derives all mutants of spec, grouped by class in M1..M5 order
// and deterministic within each class. For S states, T transitions, and G
// guarded transitions the counts are:
//
//	M1 = S-1    M2 = T    M3 = C(T,2)    M4 = T*(S-1)    M5 = G
func Generate(spec *machine.StateMachineSpec) []Mutant {
	var mutants []Mutant
	mutants = append(mutants, removeStates(spec)...)
	mutants = append(mutants, removeTransitions(spec)...)
	mutants = append(mutants, swapEvents(spec)...)
	mutants = append(mutants, swapTargets(spec)...)
	mutants = append(mutants, negateGuards(spec)...)
	return mutants
}

// removeStates generates M1 mutants: one per non-initial state, removing
// the state, every transition touching it, and every forbidden pair naming
// it (dropping the pairs keeps the mutant referentially closed).
func removeStates(spec *machine.StateMachineSpec) []Mutant {
	var mutants []Mutant
	for _, id := range spec.StateIDs() {
		if id == spec.Initial {
			continue
		}
		m := spec.Clone()
		delete(m.States, id)

		kept := m.Transitions[:0]
		for _, t := range m.Transitions {
			if t.From != id && t.To != id {
				kept = append(kept, t)
			}
		}
		m.Transitions = kept

		forbidden := m.Forbidden[:0]
		for _, f := range m.Forbidden {
			if f.From != id && f.To != id {
				forbidden = append(forbidden, f)
			}
		}
		m.Forbidden = forbidden

		mutants = append(mutants, Mutant{
			ID:          fmt.Sprintf("M1_remove_state_%s", id),
			Class:       ClassStateRemoval,
			Description: fmt.Sprintf("remove state %q and all transitions touching it", id),
			Spec:        m,
		})
	}
	return mutants
}

// removeTransitions generates M2 mutants: one per transition.
func removeTransitions(spec *machine.StateMachineSpec) []Mutant {
	var mutants []Mutant
	for i, t := range spec.Transitions {
		m := spec.Clone()
		m.Transitions = append(m.Transitions[:i], m.Transitions[i+1:]...)
		mutants = append(mutants, Mutant{
			ID:          fmt.Sprintf("M2_remove_transition_%s", t.ID),
			Class:       ClassTransitionRemoval,
			Description: fmt.Sprintf("remove transition %q (%s -> %s on %s)", t.ID, t.From, t.To, t.Event),
			Spec:        m,
		})
	}
	return mutants
}

// swapEvents generates M3 mutants: one per unordered pair of distinct
// transitions, exchanging their event labels. Pairs are drawn across the
// whole machine, not only among same-source transitions, for maximum fault
// coverage.
func swapEvents(spec *machine.StateMachineSpec) []Mutant {
	var mutants []Mutant
	for i := 0; i < len(spec.Transitions); i++ {
		for j := i + 1; j < len(spec.Transitions); j++ {
			a, b := spec.Transitions[i], spec.Transitions[j]
			m := spec.Clone()
			m.Transitions[i].Event = b.Event
			m.Transitions[j].Event = a.Event
			mutants = append(mutants, Mutant{
				ID:          fmt.Sprintf("M3_swap_events_%s_%s", a.ID, b.ID),
				Class:       ClassEventSwap,
				Description: fmt.Sprintf("swap events of %q (%s) and %q (%s)", a.ID, a.Event, b.ID, b.Event),
				Spec:        m,
			})
		}
	}
	return mutants
}

// swapTargets generates M4 mutants: for every transition and every state
// other than its current target, retarget the transition there.
func swapTargets(spec *machine.StateMachineSpec) []Mutant {
	var mutants []Mutant
	for i, t := range spec.Transitions {
		for _, id := range spec.StateIDs() {
			if id == t.To {
				continue
			}
			m := spec.Clone()
			m.Transitions[i].To = id
			mutants = append(mutants, Mutant{
				ID:          fmt.Sprintf("M4_retarget_%s_to_%s", t.ID, id),
				Class:       ClassTargetSwap,
				Description: fmt.Sprintf("retarget transition %q from %q to %q", t.ID, t.To, id),
				Spec:        m,
			})
		}
	}
	return mutants
}

// negateGuards generates M5 mutants: one per guarded transition, wrapping
// the guard in a logical negation.
func negateGuards(spec *machine.StateMachineSpec) []Mutant {
	var mutants []Mutant
	for i, t := range spec.Transitions {
		if t.Guard == "" {
			continue
		}
		m := spec.Clone()
		m.Transitions[i].Guard = fmt.Sprintf("not(%s)", t.Guard)
		mutants = append(mutants, Mutant{
			ID:          fmt.Sprintf("M5_negate_guard_%s", t.ID),
			Class:       ClassGuardNegation,
			Description: fmt.Sprintf("negate guard of transition %q: %q", t.ID, t.Guard),
			Spec:        m,
		})
	}
	return mutants
}
