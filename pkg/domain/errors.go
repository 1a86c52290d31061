package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced element, link or property is absent.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on duplicate ids and redundant moves.
	ErrConflict = errors.New("conflict")

	// ErrInvalidOperation is returned when a precondition of an operation is violated.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInvalidState is returned when a malformed merged graph is found during traversal.
	ErrInvalidState = errors.New("invalid state")
)

// ErrPipelineNotFound is returned by stores when a pipeline document cannot be found.
var ErrPipelineNotFound = fmt.Errorf("pipeline %w", ErrNotFound)

// Error codes returned by Kind.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeInvalidOperation = "INVALID_OPERATION"
	CodeInvalidState     = "INVALID_STATE"
	CodeInternal         = "INTERNAL"
)

// Kind maps an error to a stable machine readable code.
// Conflict wins over InvalidOperation when an error wraps both.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidOperation):
		return CodeNotFound
	case errors.Is(err, ErrInvalidOperation):
		return CodeInvalidOperation
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	default:
		return CodeInternal
	}
}
