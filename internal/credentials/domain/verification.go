package domain

import (
	"fmt"
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/idx"
)

// Purpose namespaces verification records. A subject holds at most one live
// record per purpose.
type Purpose string

const (
	PurposeEmailVerify   Purpose = "email_verify"
	PurposePhoneVerify   Purpose = "phone_verify"
	PurposePasswordReset Purpose = "password_reset"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeEmailVerify, PurposePhoneVerify, PurposePasswordReset:
		return true
	}
	return false
}

// ParseChannel maps the URL channel segment to its verification purpose.
func ParseChannel(channel string) (Purpose, error) {
	switch channel {
	case "email":
		return PurposeEmailVerify, nil
	case "phone", "sms":
		return PurposePhoneVerify, nil
	}
	return "", fmt.Errorf("unknown verification channel %q", channel)
}

// VerificationRecord is a time-bound, single-use secret. Only the SHA-256
// fingerprint of the secret is kept.
type VerificationRecord struct {
	ID         idx.ID
	SubjectID  int64
	Purpose    Purpose
	SecretHash string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Attempts   int
	ConsumedAt *time.Time
}

func (r VerificationRecord) Consumed() bool { return r.ConsumedAt != nil }

// ExpiredAt reports whether the record has lapsed at now. The boundary
// instant itself is still valid.
func (r VerificationRecord) ExpiredAt(now time.Time) bool { return now.After(r.ExpiresAt) }
