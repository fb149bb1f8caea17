package httpx

import (
	"context"

	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/jwtx"
)

type ctxKey int

const (
	ctxKeyClaims ctxKey = iota
)

// ContextWithClaims stores verified token claims for downstream handlers.
func ContextWithClaims(ctx context.Context, c *jwtx.Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, c)
}

// ClaimsFromContext returns the claims placed by AuthnMiddleware, if any.
func ClaimsFromContext(ctx context.Context) (*jwtx.Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(*jwtx.Claims)
	return c, ok && c != nil
}

// SubjectFromContext returns the authenticated account id, or "" when the
// request is anonymous.
func SubjectFromContext(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.Subject
	}
	return ""
}
