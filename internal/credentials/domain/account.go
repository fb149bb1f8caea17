package domain

import (
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
)

type Account struct {
	ID            int64
	Username      string
	Email         string
	Phone         string // E.164, may be empty
	FirstName     string
	LastName      string
	Role          authz.Role
	EmailVerified bool
	PhoneVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Credential is the single live password hash for an account.
type Credential struct {
	AccountID    int64
	PasswordHash string // argon2id PHC string
	UpdatedAt    time.Time
}
