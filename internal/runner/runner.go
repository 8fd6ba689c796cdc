// Package runner executes the nominal state machine of a playbook against
// an ActionExecutor, recording the state path taken, captured variables,
// assertion failures, and forbidden-transition violations.
//
// A run is single-threaded and cooperative: one step at a time, one
// executor call at a time, with the executor call as the sole suspension
// point. The runner never cancels an in-flight executor call; step
// timeouts are advisory and polled between calls.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paiml/probar/internal/machine"
)

// Phase tracks runner progress through a run.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseSetup      Phase = "setup"
	PhaseRunning    Phase = "running"
	PhaseTeardown   Phase = "teardown"
	PhaseCompleted  Phase = "completed"
)

// RunIDGenerator produces run identifiers.
// Implemented by UUIDGenerator (production) and testutil.FixedRunID (tests).
type RunIDGenerator interface {
	Generate() string
}

// UUIDGenerator issues random UUID run identifiers.
type UUIDGenerator struct{}

// Generate returns a new UUID string.
func (UUIDGenerator) Generate() string { return uuid.NewString() }

// Config controls failure handling for a run.
type Config struct {
	// FailFast aborts to teardown on the first recorded assertion failure.
	// It has no effect on the forbidden-transition check, which always
	// aborts.
	FailFast bool

	// ContinueOnError keeps the run going past executor errors that the
	// action itself did not mark ignore_errors.
	ContinueOnError bool

	// PollInterval is how often the advisory step deadline is checked
	// between executor calls. Zero means DefaultPollInterval.
	PollInterval time.Duration

	// Logger receives structured progress events. Nil discards them.
	Logger *slog.Logger

	// IDGen overrides run ID generation. Nil means UUIDGenerator.
	IDGen RunIDGenerator
}

// DefaultPollInterval is the advisory timeout polling interval.
const DefaultPollInterval = 50 * time.Millisecond

// AssertionFailure is one recorded, non-aborting check failure.
type AssertionFailure struct {
	// Kind is the check family: "transition", "invariant", "path",
	// "output", or "timeout".
	Kind string `json:"kind"`

	// Target names what was checked: a transition or state ID, a path
	// constraint, or a variable.
	Target string `json:"target"`

	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// String renders the failure for logs and reports.
func (f AssertionFailure) String() string {
	return fmt.Sprintf("%s %s: expected %s, got %s", f.Kind, f.Target, f.Expected, f.Actual)
}

// ForbiddenViolation records an observed forbidden transition.
// Any violation is fatal and fails the run; no configuration suppresses it.
type ForbiddenViolation struct {
	From       machine.StateID `json:"from"`
	To         machine.StateID `json:"to"`
	Transition string          `json:"transition"`
	Reason     string          `json:"reason,omitempty"`
}

// Result is the outcome of one playbook run.
type Result struct {
	RunID    string `json:"run_id"`
	Playbook string `json:"playbook"`

	// Passed is true iff no assertion failure, no forbidden violation, and
	// no fatal failure occurred.
	Passed bool `json:"passed"`

	// StatePath is the ordered sequence of states the run occupied,
	// starting at the machine's initial state.
	StatePath []machine.StateID `json:"state_path"`

	// Variables holds the values captured by step capture directives.
	Variables map[string]string `json:"variables,omitempty"`

	AssertionFailures   []AssertionFailure   `json:"assertion_failures,omitempty"`
	ForbiddenViolations []ForbiddenViolation `json:"forbidden_violations,omitempty"`

	// FailureCause is the primary fatal cause, empty on success. Teardown
	// failures never overwrite it; they land in Errors.
	FailureCause string `json:"failure_cause,omitempty"`

	// Errors collects recorded executor errors, including ignored ones and
	// teardown failures.
	Errors []string `json:"errors,omitempty"`
}

// Runner executes one playbook against one owned executor, producing one
// Result. A Runner is single-use; Run returns an error if called twice.
type Runner struct {
	pb     *machine.Playbook
	exec   ActionExecutor
	cfg    Config
	logger *slog.Logger

	phase   Phase
	current machine.StateID
	result  *Result
}

// New creates a runner owning exec for the duration of one run.
func New(pb *machine.Playbook, exec ActionExecutor, cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.IDGen == nil {
		cfg.IDGen = UUIDGenerator{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Runner{pb: pb, exec: exec, cfg: cfg, logger: logger, phase: PhaseNotStarted}
}

// Phase returns the runner's current phase.
func (r *Runner) Phase() Phase { return r.phase }

// Run executes setup, steps, and teardown, then judges path and output
// assertions. Playbook failures are reported through the Result; the error
// return is reserved for misuse (running twice) and context cancellation.
//
// Teardown always runs, even after a fatal failure, and its own failures
// never mask the original cause.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.phase != PhaseNotStarted {
		return nil, fmt.Errorf("runner already used (phase %s)", r.phase)
	}

	r.result = &Result{
		RunID:     r.cfg.IDGen.Generate(),
		Playbook:  r.pb.Name,
		Variables: make(map[string]string),
	}
	r.logger.Info("run starting", "run_id", r.result.RunID, "playbook", r.pb.Name)

	r.phase = PhaseSetup
	if r.runSetup(ctx) {
		r.phase = PhaseRunning
		r.current = r.pb.Machine.Initial
		r.result.StatePath = append(r.result.StatePath, r.current)
		r.checkInvariants(r.current)
		r.runSteps(ctx)
	}

	r.phase = PhaseTeardown
	r.runTeardown(ctx)

	if err := ctx.Err(); err != nil {
		r.phase = PhaseCompleted
		return nil, fmt.Errorf("run cancelled: %w", err)
	}

	r.checkPathAssertions()
	r.checkOutputAssertions()

	r.result.Passed = len(r.result.AssertionFailures) == 0 &&
		len(r.result.ForbiddenViolations) == 0 &&
		r.result.FailureCause == ""

	r.phase = PhaseCompleted
	r.logger.Info("run completed",
		"run_id", r.result.RunID,
		"passed", r.result.Passed,
		"path_len", len(r.result.StatePath),
	)
	return r.result, nil
}

// fatal records the primary failure cause. The first cause wins.
func (r *Runner) fatal(format string, args ...any) {
	if r.result.FailureCause == "" {
		r.result.FailureCause = fmt.Sprintf(format, args...)
	}
}

// runSetup executes setup actions in order. Returns false when a failure
// aborted the run to teardown.
func (r *Runner) runSetup(ctx context.Context) bool {
	for i, action := range r.pb.Setup {
		if ctx.Err() != nil {
			return false
		}
		if err := r.doAction(action); err != nil {
			r.result.Errors = append(r.result.Errors, fmt.Sprintf("setup[%d]: %v", i, err))
			if action.IgnoreErrors {
				r.logger.Warn("setup action failed, ignored", "index", i, "error", err)
				continue
			}
			r.fatal("setup[%d] %s failed: %v", i, action.Kind, err)
			return false
		}
	}
	return true
}

// runSteps executes the playbook's main flow.
func (r *Runner) runSteps(ctx context.Context) {
	for _, step := range r.pb.Steps {
		if ctx.Err() != nil {
			return
		}
		if !r.runStep(ctx, step) {
			return
		}
	}
}

// runStep fires the step's transitions, processes captures, and enforces
// the advisory timeout. Returns false when the run must abort to teardown.
func (r *Runner) runStep(ctx context.Context, step machine.Step) bool {
	var deadline time.Time
	if step.TimeoutMS > 0 {
		deadline = time.Now().Add(time.Duration(step.TimeoutMS) * time.Millisecond)
	}

	r.logger.Debug("step starting", "step", step.Name, "state", r.current)

	for _, id := range step.Transitions {
		if ctx.Err() != nil {
			return false
		}
		if r.deadlineExceeded(deadline) {
			r.record("timeout", step.Name,
				fmt.Sprintf("step within %dms", step.TimeoutMS), "deadline exceeded")
			break
		}
		if !r.fireTransition(step.Name, id) {
			return false
		}
	}

	for _, cap := range step.Capture {
		value, err := r.capture(cap.Source)
		if err != nil {
			r.result.Errors = append(r.result.Errors, fmt.Sprintf("step %s capture %s: %v", step.Name, cap.Var, err))
			if !r.cfg.ContinueOnError {
				r.fatal("step %s: capture %s failed: %v", step.Name, cap.Var, err)
				return false
			}
			continue
		}
		r.result.Variables[cap.Var] = value
	}

	return true
}

// deadlineExceeded polls the advisory step deadline. It sleeps at most one
// poll interval so a deadline between executor calls is noticed promptly
// without busy-waiting; it never interrupts a call in progress.
func (r *Runner) deadlineExceeded(deadline time.Time) bool {
	if deadline.IsZero() {
		return false
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return true
	}
	if remaining < r.cfg.PollInterval {
		time.Sleep(remaining)
		return true
	}
	return false
}

// fireTransition runs one transition: guard, actions, inline assertions,
// state change, invariants, and the forbidden-pair safety check.
// Returns false when the run must abort to teardown.
func (r *Runner) fireTransition(stepName, id string) bool {
	t, ok := r.pb.Machine.TransitionByID(id)
	if !ok {
		// Parser guarantees referenced IDs exist; guard anyway.
		r.fatal("step %s: unknown transition %q", stepName, id)
		return false
	}
	if t.From != r.current {
		r.fatal("step %s: transition %q fires from state %q but machine is in %q",
			stepName, id, t.From, r.current)
		return false
	}

	if t.Guard != "" {
		ok, err := r.exec.Evaluate(t.Guard)
		if err != nil {
			r.result.Errors = append(r.result.Errors, fmt.Sprintf("guard %s: %v", id, err))
			r.fatal("transition %q: guard evaluation failed: %v", id, err)
			return false
		}
		if !ok {
			r.fatal("transition %q: guard %q evaluated false", id, t.Guard)
			return false
		}
	}

	for i, action := range t.Actions {
		if err := r.doAction(action); err != nil {
			r.result.Errors = append(r.result.Errors, fmt.Sprintf("transition %s action[%d]: %v", id, i, err))
			if action.IgnoreErrors {
				continue
			}
			if r.cfg.ContinueOnError {
				continue
			}
			r.fatal("transition %q: action %s failed: %v", id, action.Kind, err)
			return false
		}
	}

	failed := false
	for _, assert := range t.Assertions {
		if !r.checkAssertion(id, assert) {
			failed = true
		}
	}
	if failed && r.cfg.FailFast {
		r.fatal("transition %q: assertion failed with fail_fast enabled", id)
		return false
	}

	previous := r.current
	r.current = t.To
	r.result.StatePath = append(r.result.StatePath, r.current)
	r.logger.Debug("transition fired", "transition", id, "from", previous, "to", r.current)

	r.checkInvariants(r.current)

	// Hard safety contract: an observed forbidden pair aborts immediately,
	// regardless of FailFast or ContinueOnError.
	if f, forbidden := r.pb.Machine.IsForbidden(previous, r.current); forbidden {
		r.result.ForbiddenViolations = append(r.result.ForbiddenViolations, ForbiddenViolation{
			From:       previous,
			To:         r.current,
			Transition: id,
			Reason:     f.Reason,
		})
		r.fatal("forbidden transition %s -> %s observed via %q", previous, r.current, id)
		r.logger.Error("forbidden transition observed",
			"from", previous, "to", r.current, "transition", id)
		return false
	}

	return true
}

// checkInvariants evaluates the invariants of the state just entered.
// Failures are recorded, never aborting.
func (r *Runner) checkInvariants(id machine.StateID) {
	st := r.pb.Machine.States[id]
	for _, inv := range st.Invariants {
		ok, err := r.exec.Evaluate(inv.Condition)
		if err != nil {
			r.result.Errors = append(r.result.Errors, fmt.Sprintf("invariant on %s: %v", id, err))
			r.record("invariant", string(id), inv.Condition, fmt.Sprintf("evaluation error: %v", err))
			continue
		}
		if !ok {
			r.record("invariant", string(id), inv.Condition, "false")
		}
	}
}

// record appends a non-aborting assertion failure.
func (r *Runner) record(kind, target, expected, actual string) {
	r.result.AssertionFailures = append(r.result.AssertionFailures, AssertionFailure{
		Kind:     kind,
		Target:   target,
		Expected: expected,
		Actual:   actual,
	})
}

// runTeardown executes teardown actions. Failures are appended to Errors
// and never overwrite the primary failure cause.
func (r *Runner) runTeardown(ctx context.Context) {
	for i, action := range r.pb.Teardown {
		if ctx.Err() != nil {
			return
		}
		if err := r.doAction(action); err != nil {
			r.result.Errors = append(r.result.Errors, fmt.Sprintf("teardown[%d]: %v", i, err))
			r.logger.Warn("teardown action failed", "index", i, "error", err)
		}
	}
}

// doAction dispatches one tagged action to the executor. The action set is
// closed; an unrecognized kind can only come from a code bug, not input.
func (r *Runner) doAction(a machine.Action) error {
	switch a.Kind {
	case machine.ActionClick:
		return r.exec.Click(a.Selector)
	case machine.ActionTypeText:
		return r.exec.TypeText(a.Selector, a.Text)
	case machine.ActionWait:
		return r.exec.Wait(a.Condition)
	case machine.ActionNavigate:
		return r.exec.Navigate(a.URL)
	case machine.ActionExecuteScript:
		_, err := r.exec.ExecuteScript(a.Script)
		return err
	case machine.ActionScreenshot:
		return r.exec.Screenshot(a.Name)
	default:
		return NewExecutorError(ErrKindUnsupported, a.Kind, "", "unknown action kind")
	}
}
