// Package exitcode defines exit codes for the CLI.
package exitcode

import (
	"errors"

	"taskdeck/internal/identity"
	"taskdeck/internal/store"
	"taskdeck/internal/task"
)

// Exit codes.
const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, invalid input, not found, ambiguous).
	UserError = 1

	// AuthError indicates an auth/config error.
	AuthError = 2

	// BackendError indicates a store/API/network error.
	BackendError = 3
)

// FromError maps an error to an exit code.
func FromError(err error) int {
	switch {
	case err == nil:
		return Success
	case task.IsValidation(err),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrAmbiguous):
		return UserError
	case errors.Is(err, store.ErrUnauthorized),
		errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, identity.ErrExpiredToken),
		errors.Is(err, identity.ErrNoSecret):
		return AuthError
	case task.IsOperation(err):
		return BackendError
	default:
		return UserError
	}
}
