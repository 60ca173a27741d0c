package graph

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a household or workspace has no graph at all.
// An empty graph is not an error.
var ErrNotFound = errors.New("graph not found")

// ValidationError describes a graph change that violates an invariant.
// Validation errors block the change; they never reach history or storage.
type ValidationError struct {
	// Code identifies the violated invariant.
	Code ValidationCode

	// Message is shown next to the offending control.
	Message string

	// NodeID is the node the error is attached to, if any.
	NodeID string
}

// ValidationCode categorizes validation errors.
type ValidationCode string

const (
	// ErrCodeAllocationSum indicates the percentages do not add up for the source kind.
	ErrCodeAllocationSum ValidationCode = "ALLOCATION_SUM"

	// ErrCodeAllocationRange indicates a percentage outside [0, 100].
	ErrCodeAllocationRange ValidationCode = "ALLOCATION_RANGE"

	// ErrCodeAllocationTarget indicates a non-zero allocation without a target.
	ErrCodeAllocationTarget ValidationCode = "ALLOCATION_TARGET"

	// ErrCodeIllegalTarget indicates a self, parent or child-pod target.
	ErrCodeIllegalTarget ValidationCode = "ILLEGAL_TARGET"

	// ErrCodeUnknownNode indicates a reference to a node that does not exist.
	ErrCodeUnknownNode ValidationCode = "UNKNOWN_NODE"

	// ErrCodeInvalidNumber indicates non-numeric text in a numeric field.
	ErrCodeInvalidNumber ValidationCode = "INVALID_NUMBER"

	// ErrCodeInvalidParent indicates a bad pod ownership link.
	ErrCodeInvalidParent ValidationCode = "INVALID_PARENT"

	// ErrCodeDuplicateRule indicates two rules for the same source node.
	ErrCodeDuplicateRule ValidationCode = "DUPLICATE_RULE"
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.NodeID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// HasCode reports whether err is a ValidationError with the given code.
func HasCode(err error, code ValidationCode) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code == code
	}
	return false
}

func newValidationError(code ValidationCode, nodeID, format string, args ...any) *ValidationError {
	return &ValidationError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		NodeID:  nodeID,
	}
}
