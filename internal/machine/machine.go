package machine

import "sort"

// StateID is an opaque key into a spec's state table.
// It is never a pointer; two specs may use the same IDs independently.
type StateID string

// Invariant is a boolean condition expected to hold whenever the machine
// occupies the state it is attached to. The condition expression is opaque
// to this package and evaluated by an ActionExecutor at run time.
type Invariant struct {
	// Description explains the invariant in human terms.
	Description string `yaml:"description" json:"description"`

	// Condition is the expression handed to the executor's evaluate call.
	Condition string `yaml:"condition" json:"condition"`
}

// State is a single node of the machine.
type State struct {
	// ID is the state's key in the spec's state table.
	// The parser fills it from the table key.
	ID StateID `yaml:"-" json:"id"`

	// Final marks an accepting state. Final states are allowed to have no
	// outgoing transitions.
	Final bool `yaml:"final,omitempty" json:"final,omitempty"`

	// Invariants are checked in order each time the machine enters the state.
	Invariants []Invariant `yaml:"invariants,omitempty" json:"invariants,omitempty"`
}

// Transition is a directed, event-labeled edge between two states.
type Transition struct {
	// ID uniquely identifies the transition within its spec.
	ID string `yaml:"id" json:"id"`

	From StateID `yaml:"from" json:"from"`
	To   StateID `yaml:"to" json:"to"`

	// Event names the stimulus that fires this transition.
	Event string `yaml:"event" json:"event"`

	// Guard is an optional boolean precondition. Empty means unguarded.
	// Guards are opaque expressions evaluated by the executor.
	Guard string `yaml:"guard,omitempty" json:"guard,omitempty"`

	// Actions run in order when the transition fires.
	Actions []Action `yaml:"actions,omitempty" json:"actions,omitempty"`

	// Assertions are checked in order after the transition's actions.
	Assertions []Assertion `yaml:"assertions,omitempty" json:"assertions,omitempty"`
}

// ForbiddenTransition is an explicitly disallowed (from, to) pair.
// Observing one at run time is a safety violation and always fatal.
type ForbiddenTransition struct {
	From   StateID `yaml:"from" json:"from"`
	To     StateID `yaml:"to" json:"to"`
	Reason string  `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// StateMachineSpec is the complete machine: a state table, an ordered
// transition sequence, and the forbidden pairs.
type StateMachineSpec struct {
	// ID names the machine.
	ID string `yaml:"id" json:"id"`

	// Initial is the state the machine starts in. It must exist in States.
	Initial StateID `yaml:"initial" json:"initial"`

	// States maps each StateID to its state. Keys are unique by construction.
	States map[StateID]State `yaml:"states" json:"states"`

	// Transitions preserves declaration order.
	Transitions []Transition `yaml:"transitions" json:"transitions"`

	// Forbidden lists the disallowed (from, to) pairs.
	Forbidden []ForbiddenTransition `yaml:"forbidden,omitempty" json:"forbidden,omitempty"`
}

// HasState reports whether id exists in the state table.
func (s *StateMachineSpec) HasState(id StateID) bool {
	_, ok := s.States[id]
	return ok
}

// StateIDs returns all state IDs in lexicographic order.
// Map iteration order is not deterministic; every consumer that reports or
// renders states goes through this accessor.
func (s *StateMachineSpec) StateIDs() []StateID {
	ids := make([]StateID, 0, len(s.States))
	for id := range s.States {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Outgoing returns the transitions leaving from, in declaration order.
func (s *StateMachineSpec) Outgoing(from StateID) []Transition {
	var out []Transition
	for _, t := range s.Transitions {
		if t.From == from {
			out = append(out, t)
		}
	}
	return out
}

// TransitionByID looks up a transition by its ID.
func (s *StateMachineSpec) TransitionByID(id string) (Transition, bool) {
	for _, t := range s.Transitions {
		if t.ID == id {
			return t, true
		}
	}
	return Transition{}, false
}

// IsForbidden reports whether (from, to) matches a forbidden pair,
// returning the matching pair when it does.
func (s *StateMachineSpec) IsForbidden(from, to StateID) (ForbiddenTransition, bool) {
	for _, f := range s.Forbidden {
		if f.From == from && f.To == to {
			return f, true
		}
	}
	return ForbiddenTransition{}, false
}

// FinalStates returns the IDs of all final states in lexicographic order.
func (s *StateMachineSpec) FinalStates() []StateID {
	var finals []StateID
	for _, id := range s.StateIDs() {
		if s.States[id].Final {
			finals = append(finals, id)
		}
	}
	return finals
}

// Clone returns a deep copy sharing no mutable storage with the receiver.
// Mutation operators clone first and edit the copy; the original spec is
// never altered in place.
func (s *StateMachineSpec) Clone() *StateMachineSpec {
	c := &StateMachineSpec{
		ID:      s.ID,
		Initial: s.Initial,
		States:  make(map[StateID]State, len(s.States)),
	}
	for id, st := range s.States {
		cs := st
		cs.Invariants = append([]Invariant(nil), st.Invariants...)
		c.States[id] = cs
	}
	c.Transitions = make([]Transition, len(s.Transitions))
	for i, t := range s.Transitions {
		ct := t
		ct.Actions = cloneActions(t.Actions)
		ct.Assertions = append([]Assertion(nil), t.Assertions...)
		c.Transitions[i] = ct
	}
	c.Forbidden = append([]ForbiddenTransition(nil), s.Forbidden...)
	return c
}

func cloneActions(actions []Action) []Action {
	return append([]Action(nil), actions...)
}
