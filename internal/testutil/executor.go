// Package testutil provides deterministic test doubles: a scripted
// ActionExecutor stub and a fixed run-ID generator. Both exist so runner
// and mutation tests produce identical output across runs.
package testutil

import (
	"fmt"

	"github.com/paiml/probar/internal/runner"
)

// StubExecutor is a scripted ActionExecutor. The zero value (via
// NewStubExecutor) succeeds on every call: every element exists, every
// expression evaluates true, lookups return empty strings. Tests script
// failures and return values through the exported maps.
//
// Every call is appended to Calls in "op target" form so tests can assert
// on the exact driver interaction sequence.
type StubExecutor struct {
	// Calls records each executor call in order.
	Calls []string

	// FailOn maps an op name ("click", "get_text") to the error every call
	// of that op returns.
	FailOn map[string]error

	// Eval maps expressions to evaluate results. Unmapped expressions
	// evaluate true.
	Eval map[string]bool

	// Texts maps selectors to get_text results.
	Texts map[string]string

	// Attributes maps "selector/attr" keys to get_attribute results.
	Attributes map[string]string

	// Scripts maps code to execute_script results.
	Scripts map[string]string

	// Missing marks selectors element_exists reports absent.
	Missing map[string]bool

	// URL is returned by get_url.
	URL string
}

// NewStubExecutor returns a stub that succeeds on every call.
func NewStubExecutor() *StubExecutor {
	return &StubExecutor{
		FailOn:     make(map[string]error),
		Eval:       make(map[string]bool),
		Texts:      make(map[string]string),
		Attributes: make(map[string]string),
		Scripts:    make(map[string]string),
		Missing:    make(map[string]bool),
	}
}

func (s *StubExecutor) call(op, target string) error {
	s.Calls = append(s.Calls, fmt.Sprintf("%s %s", op, target))
	return s.FailOn[op]
}

func (s *StubExecutor) Click(selector string) error { return s.call("click", selector) }

func (s *StubExecutor) TypeText(selector, text string) error {
	return s.call("type_text", selector)
}

func (s *StubExecutor) Wait(condition string) error { return s.call("wait", condition) }

func (s *StubExecutor) Navigate(url string) error { return s.call("navigate", url) }

func (s *StubExecutor) ExecuteScript(code string) (string, error) {
	if err := s.call("execute_script", code); err != nil {
		return "", err
	}
	return s.Scripts[code], nil
}

func (s *StubExecutor) Screenshot(name string) error { return s.call("screenshot", name) }

func (s *StubExecutor) ElementExists(selector string) (bool, error) {
	if err := s.call("element_exists", selector); err != nil {
		return false, err
	}
	return !s.Missing[selector], nil
}

func (s *StubExecutor) GetText(selector string) (string, error) {
	if err := s.call("get_text", selector); err != nil {
		return "", err
	}
	return s.Texts[selector], nil
}

func (s *StubExecutor) GetAttribute(selector, attr string) (string, error) {
	if err := s.call("get_attribute", selector+"/"+attr); err != nil {
		return "", err
	}
	return s.Attributes[selector+"/"+attr], nil
}

func (s *StubExecutor) GetURL() (string, error) {
	if err := s.call("get_url", ""); err != nil {
		return "", err
	}
	return s.URL, nil
}

func (s *StubExecutor) Evaluate(expression string) (bool, error) {
	if err := s.call("evaluate", expression); err != nil {
		return false, err
	}
	if result, scripted := s.Eval[expression]; scripted {
		return result, nil
	}
	return true, nil
}

// interface guard
var _ runner.ActionExecutor = (*StubExecutor)(nil)

// FixedRunID is a RunIDGenerator returning the same ID every time,
// for golden comparison of run results.
type FixedRunID string

// Generate returns the fixed ID.
func (f FixedRunID) Generate() string { return string(f) }
