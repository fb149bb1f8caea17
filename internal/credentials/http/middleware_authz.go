package http

import (
	"errors"
	"net/http"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/credsdk"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/httpx"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/slogx"
)

// RequireMinimumRole admits requests whose verified role claim is at least
// minimum. It must run after httpx.AuthnMiddleware. Missing claims or an
// unrecognised role give 401; a recognised but lower role gives 403.
func RequireMinimumRole(gate *authz.Gate, minimum any) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := httpx.ClaimsFromContext(r.Context())
			if !ok {
				httpx.WriteBearerError(w, "authentication required")
				return
			}

			err := gate.RequireMinimum(claims.Role, minimum)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, authz.ErrUnauthenticated):
				httpx.WriteBearerError(w, "role claim missing or unrecognised")
			default:
				slogx.FromContext(r.Context()).Info("role gate denied", "role", claims.Role, "error", err)
				credsdk.ErrInsufficientPrivilege.WriteError(w)
			}
		})
	}
}
