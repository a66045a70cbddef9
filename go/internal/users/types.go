package users

import "errors"

var (
	// ErrNotFound is returned when no user matches the lookup
	ErrNotFound = errors.New("user not found")

	// ErrAlreadyExists is returned when a username or external ID is already taken
	ErrAlreadyExists = errors.New("user already exists")
)

// DemoUsername is the account anonymous callers act as in demo mode
const DemoUsername = "demo"

// GetUserRequest identifies a user by ID
type GetUserRequest struct {
	ID string `json:"id" validate:"required,uuid"`
}

// CreateAnonymousUserRequest has no fields; the username is generated
type CreateAnonymousUserRequest struct{}
