package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultAccessTokenTTL = 15 * time.Minute

// Claims are the access-token claims issued by the credentials service.
type Claims struct {
	jwt.RegisteredClaims

	// Role is the caller's role. Tokens minted here carry the numeric rank,
	// but older tokens and other issuers may use the symbolic name, so it is
	// decoded as whatever JSON type arrived (float64 or string).
	Role any `json:"role,omitempty"`

	Username      string `json:"username,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
}

// AccessClaimsParams groups the inputs for NewAccessClaims.
type AccessClaimsParams struct {
	Subject       string
	Role          any
	Username      string
	Email         string
	EmailVerified bool
	Issuer        string
	Audience      []string
	TTL           time.Duration
	Now           time.Time
}

func NewAccessClaims(p AccessClaimsParams) Claims {
	ttl := p.TTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.Issuer,
			Subject:   p.Subject,
			Audience:  jwt.ClaimStrings(p.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Role:          p.Role,
		Username:      p.Username,
		Email:         p.Email,
		EmailVerified: p.EmailVerified,
	}
}

// NewJTI returns a random URL-safe token identifier.
func NewJTI() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// SubjectID parses the subject claim as a numeric account ID.
func (c *Claims) SubjectID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidClaim
	}
	return id, nil
}
