package validate

import (
	"errors"
	"fmt"

	"github.com/paiml/probar/internal/machine"
)

// ReferentialError reports a dangling state reference: a transition
// endpoint or forbidden pair naming a state that is not in the state table.
// It is fatal; no issue list is produced alongside it.
type ReferentialError struct {
	// Ref names the referencing element ("transition submit",
	// "forbidden[0]").
	Ref string

	// Field is the offending endpoint, "from" or "to".
	Field string

	// State is the missing state ID.
	State machine.StateID
}

// Error implements the error interface.
func (e *ReferentialError) Error() string {
	return fmt.Sprintf("%s: %s references unknown state %q", e.Ref, e.Field, e.State)
}

// IsReferentialError reports whether err is (or wraps) a ReferentialError.
func IsReferentialError(err error) bool {
	var re *ReferentialError
	return errors.As(err, &re)
}

// checkReferences verifies that every transition endpoint and every
// forbidden pair names an existing state.
func checkReferences(spec *machine.StateMachineSpec) error {
	if !spec.HasState(spec.Initial) {
		return &ReferentialError{Ref: "machine", Field: "initial", State: spec.Initial}
	}
	for _, t := range spec.Transitions {
		ref := fmt.Sprintf("transition %s", t.ID)
		if !spec.HasState(t.From) {
			return &ReferentialError{Ref: ref, Field: "from", State: t.From}
		}
		if !spec.HasState(t.To) {
			return &ReferentialError{Ref: ref, Field: "to", State: t.To}
		}
	}
	for i, f := range spec.Forbidden {
		ref := fmt.Sprintf("forbidden[%d]", i)
		if !spec.HasState(f.From) {
			return &ReferentialError{Ref: ref, Field: "from", State: f.From}
		}
		if !spec.HasState(f.To) {
			return &ReferentialError{Ref: ref, Field: "to", State: f.To}
		}
	}
	return nil
}
