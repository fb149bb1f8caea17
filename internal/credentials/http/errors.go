package http

import (
	"errors"
	"net/http"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/codestore"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/service"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/credsdk"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/slogx"
)

// errorTable maps domain errors to their wire form. Order matters only for
// errors that wrap more than one sentinel.
var errorTable = []struct {
	err error
	api *credsdk.APIError
}{
	{authz.ErrUnauthenticated, credsdk.ErrUnauthenticated},
	{authz.ErrInvalidRole, credsdk.ErrInvalidRole},
	{authz.ErrInsufficientPrivilege, credsdk.ErrInsufficientPrivilege},

	{codestore.ErrRecordNotFound, credsdk.ErrCodeNotFound},
	{codestore.ErrRecordExpired, credsdk.ErrCodeExpired},
	{codestore.ErrRecordAlreadyUsed, credsdk.ErrCodeAlreadyUsed},
	{codestore.ErrSecretMismatch, credsdk.ErrCodeMismatch},

	{service.ErrInvalidCredentials, credsdk.ErrInvalidCredentials},
	{service.ErrAccountExists, credsdk.ErrAccountExists},
	{service.ErrAccountNotFound, credsdk.ErrAccountNotFound},
	{service.ErrAlreadyVerified, credsdk.ErrAlreadyVerified},
	{service.ErrTooManyAttempts, credsdk.ErrTooManyAttempts},
	{service.ErrNoDeliveryAddress, credsdk.ErrNoDeliveryAddress},
	{service.ErrDeliveryFailed, credsdk.ErrDeliveryFailed},
	{service.ErrHashingFailure, credsdk.ErrServerError},
}

// apiError resolves err to the response it should produce. Unknown errors
// become server_error.
func apiError(err error) *credsdk.APIError {
	if errors.Is(err, service.ErrInvalidInput) {
		return credsdk.ErrInvalidRequest.WithDescription(err.Error())
	}
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.api
		}
	}
	return credsdk.ErrServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	api := apiError(err)
	log := slogx.FromContext(r.Context())
	if api.StatusCode >= http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	} else {
		log.Debug("request rejected", "code", api.Code, "error", err)
	}
	api.WriteError(w)
}

func badRequest(w http.ResponseWriter, desc string) {
	credsdk.ErrInvalidRequest.WithDescription(desc).WriteError(w)
}
