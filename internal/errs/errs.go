// Package errs defines the error taxonomy shared by graph construction, kernel
// compilation, network allocation and execution.
package errs

import (
	"errors"
	"fmt"
)

// Common causes wrapped by the typed errors below.
var (
	ErrOutOfMemory     = errors.New("device out of memory")
	ErrInputNotBound   = errors.New("input not bound")
	ErrUnknownInput    = errors.New("no input node with that name")
	ErrLayoutMismatch  = errors.New("layout mismatch")
	ErrFrozen          = errors.New("program is frozen")
	ErrNotCompiled     = errors.New("program has no kernels assigned")
	ErrNetworkClosed   = errors.New("network is closed")
	ErrCycle           = errors.New("graph contains a cycle")
	ErrUnsupportedKind = errors.New("unsupported operation kind")
)

// ValidationError reports a malformed topology: wrong arity, unknown references,
// incompatible types or shapes. It is raised while building a program, never while
// executing one.
type ValidationError struct {
	Node   string // Node the problem was found on (may be empty)
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	if e.Node != "" {
		return fmt.Sprintf("validation: node %q: %s", e.Node, msg)
	}
	return "validation: " + msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// CompilationError reports that no kernel implementation matches a node's kind,
// layouts and fused operations. There is no fallback once fusion has committed.
type CompilationError struct {
	Node      string
	Kind      string
	Signature string
	Err       error
}

func (e *CompilationError) Error() string {
	msg := fmt.Sprintf("compilation: node %q (%s): no kernel for %s", e.Node, e.Kind, e.Signature)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompilationError) Unwrap() error { return e.Err }

// AllocationError reports that the engine could not provide memory for a node.
type AllocationError struct {
	Node  string
	Bytes int
	Err   error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocation: node %q (%d bytes): %v", e.Node, e.Bytes, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }

// ExecutionError reports a failure while running a network. The program is not
// affected; the caller may retry.
type ExecutionError struct {
	Node string
	Err  error
}

func (e *ExecutionError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("execution: %v", e.Err)
	}
	return fmt.Sprintf("execution: node %q: %v", e.Node, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ReferenceError reports a node reference that does not resolve while loading a
// serialized model.
type ReferenceError struct {
	Field string // Attribute or input slot holding the reference
	Ref   string // The unresolved id
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("reference: %s: node %q is not registered", e.Field, e.Ref)
}

// IsValidation reports whether err (or any error in its chain) is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsCompilation reports whether err (or any error in its chain) is a CompilationError.
func IsCompilation(err error) bool {
	var ce *CompilationError
	return errors.As(err, &ce)
}

// IsAllocation reports whether err (or any error in its chain) is an AllocationError.
func IsAllocation(err error) bool {
	var ae *AllocationError
	return errors.As(err, &ae)
}

// IsExecution reports whether err (or any error in its chain) is an ExecutionError.
func IsExecution(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// IsReference reports whether err (or any error in its chain) is a ReferenceError.
func IsReference(err error) bool {
	var re *ReferenceError
	return errors.As(err, &re)
}

// Validationf builds a ValidationError for node.
func Validationf(node, format string, a ...any) error {
	return &ValidationError{Node: node, Reason: fmt.Sprintf(format, a...)}
}
