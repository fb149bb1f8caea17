package httpx

import (
	"net/http"
	"strings"

	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/jwtx"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/slogx"
)

// AuthnMiddleware requires a valid bearer token and stores its claims in the
// request context. Expiry is enforced by the verifier.
func AuthnMiddleware(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, raw, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				WriteBearerError(w, "missing bearer token")
				return
			}

			claims, err := v.Verify(strings.TrimSpace(raw))
			if err != nil {
				slogx.FromContext(r.Context()).Warn("jwt verify failed", "error", err)
				WriteBearerError(w, "token verification failed")
				return
			}

			ctx := ContextWithClaims(r.Context(), &claims)
			ctx = slogx.With(ctx, "account_id", claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteBearerError answers 401 with an RFC 6750 style challenge and a JSON
// body.
func WriteBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "unauthenticated", desc)
}
