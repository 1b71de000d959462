package auth

import (
	"errors"
	"fmt"
)

// ErrProfileNotFound is reported when a session has no matching profile row.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileResolutionError means a session could not be turned into an identity.
// It is logged and collapses the session to Unauthenticated.
type ProfileResolutionError struct {
	UserID string
	Err    error
}

func (e *ProfileResolutionError) Error() string {
	return fmt.Sprintf("resolve profile for user %s: %v", e.UserID, e.Err)
}

func (e *ProfileResolutionError) Unwrap() error {
	return e.Err
}

// CredentialError is an opaque sign-in rejection. It never alters an existing session.
type CredentialError struct {
	Err error
}

func (e *CredentialError) Error() string {
	return "invalid email or password"
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// IsCredentialError reports whether err is a sign-in rejection.
func IsCredentialError(err error) bool {
	var ce *CredentialError
	return errors.As(err, &ce)
}
