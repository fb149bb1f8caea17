package service

import (
	"errors"
	"strconv"
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/domain"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/jwtx"
)

const TokenTypeBearer = "Bearer"

type AccessToken struct {
	Token     string
	TokenType string
	ExpiresAt time.Time
	ExpiresIn int // seconds
}

// TokenService mints access tokens. The role claim carries the numeric rank;
// readers normalise it with Hierarchy.Rank so symbolic claims also work.
type TokenService struct {
	KeyManager *jwtx.KeyManager
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	Clock      func() time.Time
}

func (s *TokenService) Issue(a domain.Account) (AccessToken, error) {
	if s.KeyManager == nil {
		return AccessToken{}, errors.New("token service has no keys")
	}
	now := time.Now()
	if s.Clock != nil {
		now = s.Clock()
	}
	ttl := s.AccessTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultAccessTokenTTL
	}

	var aud []string
	if s.Audience != "" {
		aud = []string{s.Audience}
	}
	claims := jwtx.NewAccessClaims(jwtx.AccessClaimsParams{
		Subject:       strconv.FormatInt(a.ID, 10),
		Role:          int(a.Role),
		Username:      a.Username,
		Email:         a.Email,
		EmailVerified: a.EmailVerified,
		Issuer:        s.Issuer,
		Audience:      aud,
		TTL:           ttl,
		Now:           now,
	})
	raw, err := s.KeyManager.Signer().Sign(claims)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{
		Token:     raw,
		TokenType: TokenTypeBearer,
		ExpiresAt: claims.ExpiresAt.Time,
		ExpiresIn: int(ttl / time.Second),
	}, nil
}
