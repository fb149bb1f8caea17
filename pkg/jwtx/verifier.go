package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a JWT and returns its claims.
type Verifier interface {
	Verify(token string) (Claims, error)
}

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrUnknownKID   = errors.New("jwtx: unknown kid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// VerifyOptions configures a KeySetVerifier.
type VerifyOptions struct {
	Algorithm string
	Issuer    string // empty: not enforced
	Audience  string // empty: not enforced
	Leeway    time.Duration
}

// KeySetVerifier verifies tokens against the public keys held in a KeySet.
type KeySetVerifier struct {
	keys *KeySet
	opts VerifyOptions
}

func NewVerifier(keys *KeySet, opts VerifyOptions) *KeySetVerifier {
	return &KeySetVerifier{keys: keys, opts: opts}
}

func (v *KeySetVerifier) Verify(raw string) (Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.opts.Algorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.opts.Leeway),
	}
	if v.opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.opts.Issuer))
	}
	if v.opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.opts.Audience))
	}

	var claims Claims
	token, err := jwt.NewParser(parserOpts...).ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid", ErrMalformed)
		}
		pub, err := v.keys.Get(kid)
		if err != nil {
			return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
		}
		return pub, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("jwtx: verify: %w", err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidClaim
	}
	return claims, nil
}
