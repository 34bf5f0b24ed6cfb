package models

import "errors"

// Failure kinds returned by the core. Callers wrap them with detail via
// fmt.Errorf("%w: ...") and match with errors.Is.
var (
	// Malformed or missing input.
	ErrValidation = errors.New("validation error")
	// Referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// Operation is invalid for the current state, including a lost concurrent update.
	ErrConflict = errors.New("conflict")
	// Caller lacks the required role or ownership.
	ErrAuthorization = errors.New("not authorized")
)
