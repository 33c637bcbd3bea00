package task

import "errors"

// Sentinel errors the HTTP layer maps to status codes. Wrap with
// fmt.Errorf("%w: ...", ErrX) to attach context while preserving
// errors.Is matchability.
var (
	ErrNotFound     = errors.New("task not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidState = errors.New("invalid state for requested operation")
)
