// Package errors provides standardized error types for engine operations.
// This package defines EngineError for consistent error handling across
// all public APIs, with an error kind taxonomy that lets callers present
// distinct user-facing messages for invalid queries, oversized inputs and
// corrupt files.
package errors

import (
	"fmt"
)

// Kind classifies engine errors into caller-distinguishable categories.
type Kind int

const (
	// KindValidation covers unknown columns, unknown operation types,
	// missing required parameters and invalid metadata.
	KindValidation Kind = iota
	// KindResourceLimit covers the operation-count ceiling, buffer-size
	// ceiling and decompression-ratio guard.
	KindResourceLimit
	// KindCyclicDependency covers compute alias cycles and keyless joins.
	KindCyclicDependency
	// KindFormat covers bad magic bytes, truncated buffers and corrupt
	// file metadata.
	KindFormat
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindResourceLimit:
		return "resource limit"
	case KindCyclicDependency:
		return "cyclic dependency"
	case KindFormat:
		return "format"
	default:
		return "unknown"
	}
}

// EngineError represents standardized errors across all engine operations
type EngineError struct {
	Kind    Kind   // Error category for caller dispatch
	Op      string // Operation name (e.g., "Sort", "Optimize", "ParseParquet")
	Column  string // Column name if applicable
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: %s failed on column '%s': %s", e.Kind, e.Op, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s failed: %s", e.Kind, e.Op, e.Message)
}

// Unwrap returns the underlying cause for error wrapping support
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is matches on kind alone when the target carries no message, so callers
// can write errors.Is(err, &EngineError{Kind: KindFormat}).
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	if t.Op == "" && t.Column == "" && t.Message == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Op == t.Op && e.Column == t.Column && e.Message == t.Message
}

// Common error constructors for consistent error creation

// NewValidation creates an error for invalid operation inputs
func NewValidation(op, message string) *EngineError {
	return &EngineError{Kind: KindValidation, Op: op, Message: message}
}

// NewColumnNotFound creates an error for operations on non-existent columns
func NewColumnNotFound(op, column string) *EngineError {
	return &EngineError{
		Kind:    KindValidation,
		Op:      op,
		Column:  column,
		Message: "column does not exist",
	}
}

// NewResourceLimit creates an error for exceeded resource ceilings
func NewResourceLimit(op, message string) *EngineError {
	return &EngineError{Kind: KindResourceLimit, Op: op, Message: message}
}

// NewCyclicDependency creates an error for dependency cycles in plans
func NewCyclicDependency(op, message string) *EngineError {
	return &EngineError{Kind: KindCyclicDependency, Op: op, Message: message}
}

// NewFormat creates an error for malformed input buffers
func NewFormat(op, message string) *EngineError {
	return &EngineError{Kind: KindFormat, Op: op, Message: message}
}

// NewFormatCause wraps a decoder error as a format error
func NewFormatCause(op, message string, cause error) *EngineError {
	return &EngineError{Kind: KindFormat, Op: op, Message: message, Cause: cause}
}

// Kind predicates for caller dispatch

// IsValidation reports whether err is an EngineError of kind validation.
func IsValidation(err error) bool { return hasKind(err, KindValidation) }

// IsResourceLimit reports whether err is an EngineError of kind resource limit.
func IsResourceLimit(err error) bool { return hasKind(err, KindResourceLimit) }

// IsCyclicDependency reports whether err is an EngineError of kind cyclic dependency.
func IsCyclicDependency(err error) bool { return hasKind(err, KindCyclicDependency) }

// IsFormat reports whether err is an EngineError of kind format.
func IsFormat(err error) bool { return hasKind(err, KindFormat) }

func hasKind(err error, k Kind) bool {
	for err != nil {
		if e, ok := err.(*EngineError); ok {
			return e.Kind == k
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Predefined error variables for common cases
var (
	// ErrTooManyOperations indicates a plan above the operation-count ceiling
	ErrTooManyOperations = &EngineError{
		Kind:    KindResourceLimit,
		Op:      "Optimize",
		Message: "operation count exceeds ceiling",
	}

	// ErrBufferTooLarge indicates an input buffer above the size ceiling
	ErrBufferTooLarge = &EngineError{
		Kind:    KindResourceLimit,
		Op:      "Parse",
		Message: "input buffer exceeds size ceiling",
	}

	// ErrMismatchedLength indicates column length mismatches in a table
	ErrMismatchedLength = &EngineError{
		Kind:    KindValidation,
		Op:      "NewTable",
		Message: "columns must have the same length",
	}
)
