// Package report aggregates the engine's outputs into one structured
// result: validation issues, mutation score, and execution outcome.
// Serialization beyond JSON and plain text (JUnit, HTML) is an external
// reporting concern.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/paiml/probar/internal/mutate"
	"github.com/paiml/probar/internal/runner"
	"github.com/paiml/probar/internal/validate"
)

// Outcome is the user-visible verdict. The three values are deliberately
// distinct: a machine that could not be validated was never executed.
type Outcome string

const (
	OutcomeInvalid Outcome = "could_not_validate"
	OutcomeFailed  Outcome = "validated_but_failed"
	OutcomePassed  Outcome = "validated_and_passed"
)

// Report is the structured result of a full engine pass over one playbook.
type Report struct {
	Playbook string  `json:"playbook"`
	Outcome  Outcome `json:"outcome"`

	Valid  bool             `json:"is_valid"`
	Issues []validate.Issue `json:"issues,omitempty"`

	// Mutation holds per-class counts, the full mutant list, and the
	// mutation score. Nil when mutation analysis was not requested.
	Mutation *mutate.ScoreResult `json:"mutation,omitempty"`

	// Execution is the playbook run result. Nil when the machine was
	// invalid or execution was not requested.
	Execution *runner.Result `json:"execution,omitempty"`
}

// Build assembles a report and computes the outcome. score and result may
// be nil for stages that did not run.
func Build(playbook string, issues []validate.Issue, score *mutate.ScoreResult, result *runner.Result) *Report {
	r := &Report{
		Playbook:  playbook,
		Valid:     validate.IsValid(issues),
		Issues:    issues,
		Mutation:  score,
		Execution: result,
	}
	switch {
	case !r.Valid:
		r.Outcome = OutcomeInvalid
	case result != nil && !result.Passed:
		r.Outcome = OutcomeFailed
	default:
		r.Outcome = OutcomePassed
	}
	return r
}

// Invalid builds a report for a machine that failed validation.
func Invalid(playbook string, issues []validate.Issue) *Report {
	return Build(playbook, issues, nil, nil)
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText renders the report for terminals.
func (r *Report) WriteText(w io.Writer) {
	switch r.Outcome {
	case OutcomeInvalid:
		fmt.Fprintf(w, "✗ %s: could not validate\n", r.Playbook)
	case OutcomeFailed:
		fmt.Fprintf(w, "✗ %s: validated but failed\n", r.Playbook)
	case OutcomePassed:
		fmt.Fprintf(w, "✓ %s: validated and passed\n", r.Playbook)
	}

	for _, issue := range r.Issues {
		fmt.Fprintf(w, "  %s [%s/%s] %s: %s\n",
			issue.Code, issue.Severity, issue.Category, issue.Target, issue.Message)
	}

	if r.Mutation != nil {
		fmt.Fprintf(w, "\nMutation score: %.2f (%d/%d killed)\n",
			r.Mutation.Score, r.Mutation.Killed, r.Mutation.Total)
		for _, class := range mutate.Classes {
			cc := r.Mutation.ByClass[class]
			if cc.Total == 0 {
				continue
			}
			fmt.Fprintf(w, "  %s: %d/%d\n", class, cc.Killed, cc.Total)
		}
		for _, mr := range r.Mutation.Results {
			if mr.Killed {
				continue
			}
			fmt.Fprintf(w, "  survived: %s — %s\n", mr.ID, mr.Description)
		}
	}

	if r.Execution != nil {
		fmt.Fprintf(w, "\nState path: %v\n", r.Execution.StatePath)
		for _, name := range sortedKeys(r.Execution.Variables) {
			fmt.Fprintf(w, "  %s = %q\n", name, r.Execution.Variables[name])
		}
		for _, f := range r.Execution.AssertionFailures {
			fmt.Fprintf(w, "  assertion failed: %s\n", f)
		}
		for _, v := range r.Execution.ForbiddenViolations {
			fmt.Fprintf(w, "  FORBIDDEN: %s -> %s via %q\n", v.From, v.To, v.Transition)
		}
		if r.Execution.FailureCause != "" {
			fmt.Fprintf(w, "  cause: %s\n", r.Execution.FailureCause)
		}
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
