// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package inference

import "github.com/born-ml/graphc/internal/errs"

// Errors wrapped by the typed errors below.
var (
	ErrOutOfMemory    = errs.ErrOutOfMemory
	ErrInputNotBound  = errs.ErrInputNotBound
	ErrUnknownInput   = errs.ErrUnknownInput
	ErrLayoutMismatch = errs.ErrLayoutMismatch
	ErrNetworkClosed  = errs.ErrNetworkClosed
)

// Typed errors.
type (
	ValidationError  = errs.ValidationError
	CompilationError = errs.CompilationError
	AllocationError  = errs.AllocationError
	ExecutionError   = errs.ExecutionError
	ReferenceError   = errs.ReferenceError
)

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool { return errs.IsValidation(err) }

// IsCompilation reports whether err is a CompilationError.
func IsCompilation(err error) bool { return errs.IsCompilation(err) }

// IsAllocation reports whether err is an AllocationError.
func IsAllocation(err error) bool { return errs.IsAllocation(err) }

// IsExecution reports whether err is an ExecutionError.
func IsExecution(err error) bool { return errs.IsExecution(err) }

// IsReference reports whether err is a ReferenceError.
func IsReference(err error) bool { return errs.IsReference(err) }
