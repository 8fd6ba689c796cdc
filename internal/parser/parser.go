// Package parser converts declarative playbook documents into machine
// values. It enforces local well-formedness only: required fields, unique
// state and transition IDs, a declared initial state. Graph analysis
// (reachability, dead ends, determinism) belongs to the validate package
// and runs after parsing.
//
// The primary document format is YAML. Documents with a .cue extension are
// compiled through CUE instead; both formats decode into the same Playbook.
package parser

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/paiml/probar/internal/machine"
)

// ParseError reports a malformed playbook document. Field names the
// offending location in document terms ("machine.initial",
// "playbook.steps[2]").
type ParseError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func parseErrorf(field, format string, args ...any) *ParseError {
	return &ParseError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// document mirrors the on-disk layout of a playbook file.
// The nested playbook section is flattened into machine.Playbook after
// decoding.
type document struct {
	Version     string `yaml:"version"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	Machine machineSection `yaml:"machine"`

	Playbook struct {
		Setup    []machine.Action `yaml:"setup"`
		Steps    []machine.Step   `yaml:"steps"`
		Teardown []machine.Action `yaml:"teardown"`
	} `yaml:"playbook"`

	Assertions struct {
		Path   machine.PathAssertions    `yaml:"path"`
		Output []machine.OutputAssertion `yaml:"output"`
	} `yaml:"assertions"`

	Performance machine.Performance `yaml:"performance"`
}

type machineSection struct {
	ID          string                        `yaml:"id"`
	Initial     machine.StateID               `yaml:"initial"`
	States      map[machine.StateID]stateNode `yaml:"states"`
	Transitions []machine.Transition          `yaml:"transitions"`
	Forbidden   []machine.ForbiddenTransition `yaml:"forbidden"`
}

// stateNode is a state as written in the document, without the ID field
// (the table key carries it).
type stateNode struct {
	Final      bool                `yaml:"final"`
	Invariants []machine.Invariant `yaml:"invariants"`
}

// Parse decodes a playbook document from YAML text.
// Unknown fields are rejected so that typos surface as parse errors rather
// than silently dropped sections.
func Parse(data []byte) (*machine.Playbook, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("malformed YAML: %v", err)}
	}
	return buildPlaybook(&doc)
}

// LoadPlaybook reads and parses a playbook file. Files ending in .cue are
// compiled through CUE; everything else is decoded as YAML.
func LoadPlaybook(path string) (*machine.Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playbook file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		return ParseCUE(path, data)
	}
	return Parse(data)
}

// buildPlaybook assembles and locally validates a Playbook from a decoded
// document. Shared by the YAML and CUE front ends.
func buildPlaybook(doc *document) (*machine.Playbook, error) {
	if doc.Name == "" {
		return nil, parseErrorf("name", "name is required")
	}
	if doc.Version == "" {
		return nil, parseErrorf("version", "version is required")
	}

	spec, err := buildSpec(&doc.Machine)
	if err != nil {
		return nil, err
	}

	pb := &machine.Playbook{
		Version:     doc.Version,
		Name:        doc.Name,
		Description: doc.Description,
		Machine:     *spec,
		Setup:       doc.Playbook.Setup,
		Steps:       doc.Playbook.Steps,
		Teardown:    doc.Playbook.Teardown,
		Path:        doc.Assertions.Path,
		Output:      doc.Assertions.Output,
		Performance: doc.Performance,
	}

	if err := validatePlaybook(pb); err != nil {
		return nil, err
	}
	return pb, nil
}

func buildSpec(sec *machineSection) (*machine.StateMachineSpec, error) {
	if sec.ID == "" {
		return nil, parseErrorf("machine.id", "machine id is required")
	}
	if sec.Initial == "" {
		return nil, parseErrorf("machine.initial", "initial state is required")
	}
	if len(sec.States) == 0 {
		return nil, parseErrorf("machine.states", "at least one state is required")
	}

	spec := &machine.StateMachineSpec{
		ID:        sec.ID,
		Initial:   sec.Initial,
		States:    make(map[machine.StateID]machine.State, len(sec.States)),
		Forbidden: sec.Forbidden,
	}
	for id, node := range sec.States {
		spec.States[id] = machine.State{
			ID:         id,
			Final:      node.Final,
			Invariants: node.Invariants,
		}
	}

	if !spec.HasState(spec.Initial) {
		return nil, parseErrorf("machine.initial", "initial state %q is not declared in states", spec.Initial)
	}

	// Transition IDs must be unique; duplicates are a parse error, not a
	// validation issue, because later stages key transitions by ID.
	seen := make(map[string]bool, len(sec.Transitions))
	for i, t := range sec.Transitions {
		if t.ID == "" {
			return nil, parseErrorf(fmt.Sprintf("machine.transitions[%d].id", i), "transition id is required")
		}
		if seen[t.ID] {
			return nil, parseErrorf(fmt.Sprintf("machine.transitions[%d].id", i), "duplicate transition id %q", t.ID)
		}
		seen[t.ID] = true
		if t.From == "" || t.To == "" {
			return nil, parseErrorf(fmt.Sprintf("machine.transitions[%d]", i), "transition %q requires from and to", t.ID)
		}
		if t.Event == "" {
			return nil, parseErrorf(fmt.Sprintf("machine.transitions[%d].event", i), "transition %q requires an event", t.ID)
		}
		if err := validateActions(fmt.Sprintf("machine.transitions[%d].actions", i), t.Actions); err != nil {
			return nil, err
		}
		if err := validateAssertions(fmt.Sprintf("machine.transitions[%d].assertions", i), t.Assertions); err != nil {
			return nil, err
		}
	}
	spec.Transitions = sec.Transitions
	return spec, nil
}

func validatePlaybook(pb *machine.Playbook) error {
	if err := validateActions("playbook.setup", pb.Setup); err != nil {
		return err
	}
	if err := validateActions("playbook.teardown", pb.Teardown); err != nil {
		return err
	}

	for i, step := range pb.Steps {
		field := fmt.Sprintf("playbook.steps[%d]", i)
		if step.Name == "" {
			return parseErrorf(field+".name", "step name is required")
		}
		if len(step.Transitions) == 0 {
			return parseErrorf(field+".transitions", "step %q must reference at least one transition", step.Name)
		}
		for j, id := range step.Transitions {
			if _, ok := pb.Machine.TransitionByID(id); !ok {
				return parseErrorf(fmt.Sprintf("%s.transitions[%d]", field, j),
					"step %q references unknown transition %q", step.Name, id)
			}
		}
		for j, cap := range step.Capture {
			if cap.Var == "" {
				return parseErrorf(fmt.Sprintf("%s.capture[%d].var", field, j), "capture variable name is required")
			}
			if err := validateCaptureSource(cap.Source); err != nil {
				return parseErrorf(fmt.Sprintf("%s.capture[%d].source", field, j), "%v", err)
			}
		}
		if step.TimeoutMS < 0 {
			return parseErrorf(field+".timeout_ms", "timeout must be non-negative")
		}
	}

	for i, out := range pb.Output {
		field := fmt.Sprintf("assertions.output[%d]", i)
		if out.Var == "" {
			return parseErrorf(field+".var", "output assertion requires a variable name")
		}
		switch out.Kind {
		case machine.OutputNotEmpty:
		case machine.OutputEquals, machine.OutputMatches, machine.OutputLessThan, machine.OutputGreaterThan:
			if out.Value == "" {
				return parseErrorf(field+".value", "%s assertion requires a value", out.Kind)
			}
		default:
			return parseErrorf(field+".check", "unknown output assertion kind %q", out.Kind)
		}
	}

	return nil
}

func validateActions(field string, actions []machine.Action) error {
	for i, a := range actions {
		f := fmt.Sprintf("%s[%d]", field, i)
		switch a.Kind {
		case machine.ActionClick:
			if a.Selector == "" {
				return parseErrorf(f, "click requires a selector")
			}
		case machine.ActionTypeText:
			if a.Selector == "" {
				return parseErrorf(f, "type_text requires a selector")
			}
		case machine.ActionWait:
			if a.Condition == "" {
				return parseErrorf(f, "wait requires a condition")
			}
		case machine.ActionNavigate:
			if a.URL == "" {
				return parseErrorf(f, "navigate requires a url")
			}
		case machine.ActionExecuteScript:
			if a.Script == "" {
				return parseErrorf(f, "execute_script requires a script")
			}
		case machine.ActionScreenshot:
			if a.Name == "" {
				return parseErrorf(f, "screenshot requires a name")
			}
		default:
			return parseErrorf(f, "unknown action kind %q", a.Kind)
		}
	}
	return nil
}

func validateAssertions(field string, asserts []machine.Assertion) error {
	for i, a := range asserts {
		f := fmt.Sprintf("%s[%d]", field, i)
		switch a.Kind {
		case machine.AssertElementExists, machine.AssertElementMissing:
			if a.Selector == "" {
				return parseErrorf(f, "%s requires a selector", a.Kind)
			}
		case machine.AssertTextEquals:
			if a.Selector == "" {
				return parseErrorf(f, "text_equals requires a selector")
			}
		case machine.AssertAttribute:
			if a.Selector == "" || a.Attribute == "" {
				return parseErrorf(f, "attribute_equals requires a selector and an attribute")
			}
		case machine.AssertURLEquals:
			if a.Expected == "" {
				return parseErrorf(f, "url_equals requires an expected value")
			}
		case machine.AssertEvaluate:
			if a.Expression == "" {
				return parseErrorf(f, "evaluate requires an expression")
			}
		default:
			return parseErrorf(f, "unknown assertion kind %q", a.Kind)
		}
	}
	return nil
}

// validateCaptureSource checks a capture source expression.
// Accepted forms: text:<selector>, attribute:<selector>:<attr>, url,
// script:<code>.
func validateCaptureSource(source string) error {
	switch {
	case source == "url":
		return nil
	case strings.HasPrefix(source, "text:"):
		if source == "text:" {
			return fmt.Errorf("text capture requires a selector")
		}
		return nil
	case strings.HasPrefix(source, "attribute:"):
		rest := strings.TrimPrefix(source, "attribute:")
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("attribute capture requires attribute:<selector>:<attr>")
		}
		return nil
	case strings.HasPrefix(source, "script:"):
		if source == "script:" {
			return fmt.Errorf("script capture requires code")
		}
		return nil
	case source == "":
		return fmt.Errorf("capture source is required")
	default:
		return fmt.Errorf("unknown capture source %q", source)
	}
}
