package runner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/paiml/probar/internal/machine"
)

// checkAssertion evaluates one inline transition assertion against the
// executor. The failure, if any, is recorded; the return value only feeds
// FailFast handling.
func (r *Runner) checkAssertion(transitionID string, a machine.Assertion) bool {
	target := transitionID
	if a.Description != "" {
		target = fmt.Sprintf("%s (%s)", transitionID, a.Description)
	}

	switch a.Kind {
	case machine.AssertElementExists:
		exists, err := r.exec.ElementExists(a.Selector)
		if err != nil {
			r.record("transition", target, fmt.Sprintf("element %q exists", a.Selector), fmt.Sprintf("error: %v", err))
			return false
		}
		if !exists {
			r.record("transition", target, fmt.Sprintf("element %q exists", a.Selector), "not present")
			return false
		}

	case machine.AssertElementMissing:
		exists, err := r.exec.ElementExists(a.Selector)
		if err != nil {
			r.record("transition", target, fmt.Sprintf("element %q absent", a.Selector), fmt.Sprintf("error: %v", err))
			return false
		}
		if exists {
			r.record("transition", target, fmt.Sprintf("element %q absent", a.Selector), "present")
			return false
		}

	case machine.AssertTextEquals:
		text, err := r.exec.GetText(a.Selector)
		if err != nil {
			r.record("transition", target, fmt.Sprintf("text of %q", a.Selector), fmt.Sprintf("error: %v", err))
			return false
		}
		if text != a.Expected {
			r.record("transition", target, fmt.Sprintf("text %q", a.Expected), fmt.Sprintf("text %q", text))
			return false
		}

	case machine.AssertAttribute:
		value, err := r.exec.GetAttribute(a.Selector, a.Attribute)
		if err != nil {
			r.record("transition", target, fmt.Sprintf("attribute %s of %q", a.Attribute, a.Selector), fmt.Sprintf("error: %v", err))
			return false
		}
		if value != a.Expected {
			r.record("transition", target, fmt.Sprintf("%s=%q", a.Attribute, a.Expected), fmt.Sprintf("%s=%q", a.Attribute, value))
			return false
		}

	case machine.AssertURLEquals:
		url, err := r.exec.GetURL()
		if err != nil {
			r.record("transition", target, fmt.Sprintf("url %q", a.Expected), fmt.Sprintf("error: %v", err))
			return false
		}
		if url != a.Expected {
			r.record("transition", target, fmt.Sprintf("url %q", a.Expected), fmt.Sprintf("url %q", url))
			return false
		}

	case machine.AssertEvaluate:
		ok, err := r.exec.Evaluate(a.Expression)
		if err != nil {
			r.record("transition", target, fmt.Sprintf("%q true", a.Expression), fmt.Sprintf("error: %v", err))
			return false
		}
		if !ok {
			r.record("transition", target, fmt.Sprintf("%q true", a.Expression), "false")
			return false
		}

	default:
		// Parser rejects unknown kinds; reaching here is a bug.
		r.record("transition", target, "known assertion kind", a.Kind)
		return false
	}

	return true
}

// capture resolves one capture source via the executor.
func (r *Runner) capture(source string) (string, error) {
	switch {
	case source == "url":
		return r.exec.GetURL()
	case strings.HasPrefix(source, "text:"):
		return r.exec.GetText(strings.TrimPrefix(source, "text:"))
	case strings.HasPrefix(source, "attribute:"):
		rest := strings.TrimPrefix(source, "attribute:")
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			return "", fmt.Errorf("malformed attribute capture %q", source)
		}
		return r.exec.GetAttribute(parts[0], parts[1])
	case strings.HasPrefix(source, "script:"):
		return r.exec.ExecuteScript(strings.TrimPrefix(source, "script:"))
	default:
		return "", fmt.Errorf("unknown capture source %q", source)
	}
}

// checkPathAssertions judges the recorded state path against the
// playbook's path constraints after teardown.
func (r *Runner) checkPathAssertions() {
	pa := r.pb.Path
	if pa.Empty() {
		return
	}

	visited := make(map[machine.StateID]bool, len(r.result.StatePath))
	for _, id := range r.result.StatePath {
		visited[id] = true
	}

	for _, id := range pa.MustVisit {
		if !visited[id] {
			r.record("path", string(id), "state visited", "never entered")
		}
	}
	for _, id := range pa.MustNotVisit {
		if visited[id] {
			r.record("path", string(id), "state never visited", "entered")
		}
	}
	if pa.EndsAt != "" {
		if len(r.result.StatePath) == 0 {
			r.record("path", string(pa.EndsAt), "path ends at state", "empty path")
		} else if last := r.result.StatePath[len(r.result.StatePath)-1]; last != pa.EndsAt {
			r.record("path", string(pa.EndsAt), fmt.Sprintf("path ends at %q", pa.EndsAt), fmt.Sprintf("ended at %q", last))
		}
	}
}

// checkOutputAssertions judges captured variables after teardown.
// Every assertion is evaluated; nothing aborts.
func (r *Runner) checkOutputAssertions() {
	for _, out := range r.pb.Output {
		value, captured := r.result.Variables[out.Var]
		if !captured {
			r.record("output", out.Var, "variable captured", "never captured")
			continue
		}

		switch out.Kind {
		case machine.OutputNotEmpty:
			if value == "" {
				r.record("output", out.Var, "non-empty value", "empty")
			}

		case machine.OutputEquals:
			if value != out.Value {
				r.record("output", out.Var, fmt.Sprintf("%q", out.Value), fmt.Sprintf("%q", value))
			}

		case machine.OutputMatches:
			re, err := regexp.Compile(out.Value)
			if err != nil {
				r.record("output", out.Var, fmt.Sprintf("match /%s/", out.Value), fmt.Sprintf("invalid pattern: %v", err))
				continue
			}
			if !re.MatchString(value) {
				r.record("output", out.Var, fmt.Sprintf("match /%s/", out.Value), fmt.Sprintf("%q", value))
			}

		case machine.OutputLessThan:
			r.compareNumeric(out, value, func(a, b float64) bool { return a < b }, "<")

		case machine.OutputGreaterThan:
			r.compareNumeric(out, value, func(a, b float64) bool { return a > b }, ">")
		}
	}
}

func (r *Runner) compareNumeric(out machine.OutputAssertion, value string, cmp func(a, b float64) bool, op string) {
	actual, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		r.record("output", out.Var, fmt.Sprintf("numeric value %s %s", op, out.Value), fmt.Sprintf("non-numeric %q", value))
		return
	}
	bound, err := strconv.ParseFloat(out.Value, 64)
	if err != nil {
		r.record("output", out.Var, fmt.Sprintf("numeric bound %q", out.Value), fmt.Sprintf("invalid bound: %v", err))
		return
	}
	if !cmp(actual, bound) {
		r.record("output", out.Var, fmt.Sprintf("%v %s %v", actual, op, bound), "comparison false")
	}
}
