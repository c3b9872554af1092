package api

import (
	"errors"
	"fmt"
	"strings"
)

// UnknownStepKindError is returned when a step document carries a kind tag
// that no decoder has been registered for.
type UnknownStepKindError struct {
	Kind string
}

func (e *UnknownStepKindError) Error() string {
	return fmt.Sprintf("unknown step kind %q", e.Kind)
}

// UnresolvedInputError is returned when a required workflow input has no
// value at invocation time.
type UnresolvedInputError struct {
	Input string
}

func (e *UnresolvedInputError) Error() string {
	return fmt.Sprintf("workflow input %q has no value", e.Input)
}

// UnresolvedReferenceError is returned when a port reference does not name
// an existing step output or declared workflow input. During validation it
// indicates a malformed definition; during execution it indicates a
// dependency-ordering bug and is treated as fatal.
type UnresolvedReferenceError struct {
	Port string
	Ref  string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("port %q references %q which cannot be resolved", e.Port, e.Ref)
}

// CyclicDependencyError is returned when the dependency graph induced by
// port references contains a cycle, or when nested workflow resources form
// a reference cycle. Cycle holds the step ids (or resource locators) on
// the cycle, in order.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(e.Cycle, " -> "))
}

// UnknownOperationError is returned when an operation qualified name is not
// present in the registry.
type UnknownOperationError struct {
	QualifiedName string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation %q", e.QualifiedName)
}

// InvalidInputError is returned when a resolved input value does not
// satisfy the operation's declared input metadata.
type InvalidInputError struct {
	Port   string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid value for input %q: %s", e.Port, e.Reason)
}

// OutputArityError is returned when a step's return value cannot be
// distributed over its declared output ports.
type OutputArityError struct {
	StepID string
	Reason string
}

func (e *OutputArityError) Error() string {
	return fmt.Sprintf("step %q: cannot map result to declared outputs: %s", e.StepID, e.Reason)
}

// ExpressionError is returned when an expression step fails to evaluate.
type ExpressionError struct {
	Expression string
	Err        error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("expression %q: %v", e.Expression, e.Err)
}

func (e *ExpressionError) Unwrap() error { return e.Err }

// SubProcessError is returned when a child process exits with a non-zero
// exit code. Stderr holds the captured error stream.
type SubProcessError struct {
	ExitCode int
	Stderr   string
}

func (e *SubProcessError) Error() string {
	msg := fmt.Sprintf("subprocess exited with code %d", e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

// CancelledError indicates that an invocation was cancelled by the caller.
// Cancellation is an expected outcome, not a failure; callers should test
// for it with IsCancelled before treating an error as a bug.
type CancelledError struct {
	Reason string
}

func (e *CancelledError) Error() string {
	if e.Reason == "" {
		return "invocation cancelled"
	}
	return "invocation cancelled: " + e.Reason
}

// IsCancelled reports whether err indicates caller-initiated cancellation.
func IsCancelled(err error) bool {
	var c *CancelledError
	return errors.As(err, &c)
}

// WorkflowExecutionError wraps a failing step's underlying error together
// with the step's id.
type WorkflowExecutionError struct {
	StepID string
	Err    error
}

func (e *WorkflowExecutionError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.StepID, e.Err)
}

func (e *WorkflowExecutionError) Unwrap() error { return e.Err }
