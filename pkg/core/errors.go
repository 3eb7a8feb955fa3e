package core

import (
	"fmt"
)

// ErrorCategory classifies the type of error for logging and recovery policy.
type ErrorCategory int

const (
	ErrCategoryNone      ErrorCategory = iota // No error
	ErrCategoryCache                          // Disk unreadable, corrupt entry (always recovered locally)
	ErrCategoryCapture                        // UI tree or screenshot unavailable
	ErrCategoryStability                      // Frame counter command failed
	ErrCategoryDevice                         // adb/device connection problem
	ErrCategoryContract                       // Missing required parameter, invalid configuration
)

// String returns the string representation of ErrorCategory.
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryCache:
		return "cache"
	case ErrCategoryCapture:
		return "capture"
	case ErrCategoryStability:
		return "stability"
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryContract:
		return "contract"
	default:
		return "unknown"
	}
}

// ExecutionError represents a structured error with category and details.
type ExecutionError struct {
	Category ErrorCategory
	Code     string // Machine-readable code: dump_failed, no_device, etc.
	Message  string // Human-readable message
	Cause    error  // Underlying error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy of the error with the given cause.
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Cause:    cause,
	}
}

// Predefined errors
var (
	ErrHierarchyDump = &ExecutionError{
		Category: ErrCategoryCapture,
		Code:     "dump_failed",
		Message:  "could not capture UI hierarchy",
	}
	ErrScreenshot = &ExecutionError{
		Category: ErrCategoryCapture,
		Code:     "screenshot_failed",
		Message:  "could not capture screenshot",
	}
	ErrNoDevice = &ExecutionError{
		Category: ErrCategoryDevice,
		Code:     "no_device",
		Message:  "no connected device found",
	}
	ErrMissingSelector = &ExecutionError{
		Category: ErrCategoryContract,
		Code:     "missing_selector",
		Message:  "action requires a text, id or point parameter",
	}
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryContract,
		Code:     "element_not_found",
		Message:  "no element matched the selector",
	}
)
