package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/store"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/slogx"
)

// Hasher turns a password into an encoded hash and checks candidates
// against it. cryptox.Argon2Hasher is the production implementation.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) error
}

// CredentialUpdater owns the single live password hash per account.
type CredentialUpdater struct {
	Store  store.Store
	Hasher Hasher
}

func NewCredentialUpdater(s store.Store, h Hasher) *CredentialUpdater {
	return &CredentialUpdater{Store: s, Hasher: h}
}

// WithStore returns a copy bound to s, typically a store.Tx.
func (c *CredentialUpdater) WithStore(s store.Store) *CredentialUpdater {
	cp := *c
	cp.Store = s
	return &cp
}

// Hash validates and hashes pw without writing anything.
func (c *CredentialUpdater) Hash(ctx context.Context, pw string) (string, error) {
	if err := ValidatePassword(pw); err != nil {
		return "", err
	}
	h, err := c.Hasher.Hash(pw)
	if err != nil {
		slogx.FromContext(ctx).Error("password hashing failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}
	return h, nil
}

// Replace stores a new hash for subjectID. On hashing failure nothing is
// written and the previous hash stays live.
func (c *CredentialUpdater) Replace(ctx context.Context, subjectID int64, newPassword string) error {
	h, err := c.Hash(ctx, newPassword)
	if err != nil {
		return err
	}
	if err := c.Store.Credentials().UpsertCredential(ctx, subjectID, h); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("store credential: %w", err)
	}
	slogx.FromContext(ctx).Info("password replaced", "account_id", subjectID)
	return nil
}

// Verify reports ErrInvalidCredentials for a wrong password and for an
// account that has no credential row.
func (c *CredentialUpdater) Verify(ctx context.Context, subjectID int64, password string) error {
	cred, err := c.Store.Credentials().GetCredential(ctx, subjectID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if err := c.Hasher.Verify(password, cred.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
