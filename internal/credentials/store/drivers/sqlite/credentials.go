package sqlite

import (
	"context"
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/domain"
)

type credentialsRepo struct {
	db dbtx
}

func (r *credentialsRepo) UpsertCredential(ctx context.Context, accountID int64, hash string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO credentials (account_id, password_hash, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (account_id) DO UPDATE SET
	password_hash = excluded.password_hash,
	updated_at    = excluded.updated_at`,
		accountID, hash, toNanos(time.Now()))
	return mapWriteErr(err)
}

func (r *credentialsRepo) GetCredential(ctx context.Context, accountID int64) (domain.Credential, error) {
	var (
		c         domain.Credential
		updatedAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT account_id, password_hash, updated_at FROM credentials WHERE account_id = ?`,
		accountID).Scan(&c.AccountID, &c.PasswordHash, &updatedAt)
	if err != nil {
		return domain.Credential{}, mapNotFound(err)
	}
	c.UpdatedAt = fromNanos(updatedAt)
	return c, nil
}
