package store

import (
	"context"
	"errors"
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/domain"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/idx"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface implemented by the sqlite and
// postgres drivers. Sub-repositories are reached through methods so that a
// Tx-scoped Store hands out repos bound to the same transaction.
type Store interface {
	Accounts() Accounts
	Credentials() Credentials
	Verifications() Verifications

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, rolling back if fn returns an error.
	// Inside fn only the tx argument may be used.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// Create inserts a, ignoring a.ID, and returns the stored row.
	// Duplicate username or email gives ErrAlreadyExists.
	Create(ctx context.Context, a domain.Account) (domain.Account, error)

	GetByID(ctx context.Context, id int64) (domain.Account, error)

	// GetByUsername and GetByEmail match case-insensitively.
	GetByUsername(ctx context.Context, username string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)

	// List returns a page ordered by id plus the total row count.
	List(ctx context.Context, limit, offset int) ([]domain.Account, int, error)

	UpdateRole(ctx context.Context, id int64, role authz.Role) error
	MarkEmailVerified(ctx context.Context, id int64) error
	MarkPhoneVerified(ctx context.Context, id int64) error

	// Delete cascades to credentials and verification records.
	Delete(ctx context.Context, id int64) error

	IsEmpty(ctx context.Context) (bool, error)
}

type Credentials interface {
	// UpsertCredential replaces the hash for the account, keeping one row.
	UpsertCredential(ctx context.Context, accountID int64, hash string) error
	GetCredential(ctx context.Context, accountID int64) (domain.Credential, error)
}

type Verifications interface {
	// Upsert writes r keyed on (SubjectID, Purpose), replacing any previous
	// record for that pair in full.
	Upsert(ctx context.Context, r domain.VerificationRecord) error

	Get(ctx context.Context, subjectID int64, purpose domain.Purpose) (domain.VerificationRecord, error)
	GetBySecretHash(ctx context.Context, purpose domain.Purpose, hash string) (domain.VerificationRecord, error)

	IncrementAttempts(ctx context.Context, id idx.ID) error

	// MarkConsumed sets consumed_at only if it is still NULL. It reports
	// whether this call performed the transition.
	MarkConsumed(ctx context.Context, id idx.ID, at time.Time) (bool, error)

	// DeleteStale removes records that expired or were consumed before the
	// cutoff, returning how many rows went.
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}
