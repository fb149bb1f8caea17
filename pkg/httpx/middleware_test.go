package httpx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/httpx"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler, mw("a"), nil, mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"a", "b"}, order)
}

func newKeys(t *testing.T) *jwtx.KeyManager {
	t.Helper()
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: "httpx-test"})
	require.NoError(t, err)
	return km
}

func bearer(t *testing.T, km *jwtx.KeyManager, role any) string {
	t.Helper()
	token, err := km.Signer().Sign(jwtx.NewAccessClaims(jwtx.AccessClaimsParams{
		Subject: "7",
		Role:    role,
		Issuer:  "httpx-test",
		TTL:     time.Minute,
	}))
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthnMiddleware(t *testing.T) {
	km := newKeys(t)

	var seen string
	h := httpx.AuthnMiddleware(km.Verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = httpx.SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := serve(h, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Bearer"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "unauthenticated", body["error"])

	require.Equal(t, http.StatusUnauthorized, serve(h, "Bearer garbage").Code)
	require.Equal(t, http.StatusUnauthorized, serve(h, "Basic abc").Code)

	rec = serve(h, bearer(t, km, 1))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "7", seen)
}
