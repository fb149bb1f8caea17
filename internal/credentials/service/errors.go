package service

import (
	"errors"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountExists      = errors.New("account already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrHashingFailure     = errors.New("password hashing failed")
	ErrDeliveryFailed     = errors.New("message delivery failed")
	ErrNoDeliveryAddress  = errors.New("no delivery address on file")
	ErrAlreadyVerified    = errors.New("already verified")
	ErrTooManyAttempts    = errors.New("too many wrong codes, request a new one")
)

// decisionLabel is the metrics label for a gate outcome.
func decisionLabel(err error) string {
	switch {
	case err == nil:
		return "allow"
	case errors.Is(err, authz.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, authz.ErrInvalidRole):
		return "invalid_role"
	default:
		return "deny"
	}
}
