package runner

import (
	"errors"
	"fmt"
)

// ActionExecutor is the capability interface a concrete automation driver
// implements. The runner is the sole caller; it owns exactly one executor
// for the lifetime of a run and awaits every call to completion before
// proceeding.
//
// All methods are synchronous and blocking from the runner's point of view.
// A driver that is naturally asynchronous must bridge to blocking calls
// internally so the runner's control flow stays a sequential loop.
type ActionExecutor interface {
	Click(selector string) error
	TypeText(selector, text string) error
	Wait(condition string) error
	Navigate(url string) error
	ExecuteScript(code string) (string, error)
	Screenshot(name string) error
	ElementExists(selector string) (bool, error)
	GetText(selector string) (string, error)
	GetAttribute(selector, attr string) (string, error)
	GetURL() (string, error)

	// Evaluate resolves a boolean condition expression. Guards and state
	// invariants go through this call.
	Evaluate(expression string) (bool, error)
}

// ExecutorErrorKind categorizes driver failures.
type ExecutorErrorKind string

const (
	// ErrKindNotFound means a selector matched nothing.
	ErrKindNotFound ExecutorErrorKind = "NOT_FOUND"

	// ErrKindTimeout means a wait condition or driver call timed out.
	ErrKindTimeout ExecutorErrorKind = "TIMEOUT"

	// ErrKindScript means an executed script or expression raised.
	ErrKindScript ExecutorErrorKind = "SCRIPT_ERROR"

	// ErrKindUnsupported means the driver does not implement the capability.
	ErrKindUnsupported ExecutorErrorKind = "UNSUPPORTED"
)

// ExecutorError is a recoverable driver failure. Whether it aborts the run
// is the runner's decision, controlled by ignore_errors on the action and
// the runner's ContinueOnError setting.
type ExecutorError struct {
	Kind ExecutorErrorKind

	// Op names the executor call that failed ("click", "get_text").
	Op string

	// Target is the selector, URL, or expression the call was given.
	Target string

	Message string
}

// Error implements the error interface.
func (e *ExecutorError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s: %s %q: %s", e.Kind, e.Op, e.Target, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Message)
}

// NewExecutorError constructs an ExecutorError.
func NewExecutorError(kind ExecutorErrorKind, op, target, message string) *ExecutorError {
	return &ExecutorError{Kind: kind, Op: op, Target: target, Message: message}
}

// IsNotFound reports whether err is a NOT_FOUND executor error.
func IsNotFound(err error) bool {
	var ee *ExecutorError
	return errors.As(err, &ee) && ee.Kind == ErrKindNotFound
}

// IsTimeout reports whether err is a TIMEOUT executor error.
func IsTimeout(err error) bool {
	var ee *ExecutorError
	return errors.As(err, &ee) && ee.Kind == ErrKindTimeout
}

// IsUnsupported reports whether err is an UNSUPPORTED executor error.
func IsUnsupported(err error) bool {
	var ee *ExecutorError
	return errors.As(err, &ee) && ee.Kind == ErrKindUnsupported
}
