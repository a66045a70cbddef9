package sessions

import "errors"

var (
	// ErrValidation is returned when a request is malformed or violates a field constraint
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when no session matches the given id or code
	ErrNotFound = errors.New("session not found")

	// ErrConflict is returned when a transition is not allowed from the current state
	ErrConflict = errors.New("session state conflict")

	// ErrTransientStore is returned by a repository when the operation may succeed if retried
	ErrTransientStore = errors.New("transient store failure")

	// ErrCodeTaken is returned by a repository when the session code is already in use
	ErrCodeTaken = errors.New("session code already taken")
)
