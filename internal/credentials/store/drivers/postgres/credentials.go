package postgres

import (
	"context"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/domain"
)

type credentialsRepo struct {
	db querier
}

func (r *credentialsRepo) UpsertCredential(ctx context.Context, accountID int64, hash string) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO credentials (account_id, password_hash, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (account_id) DO UPDATE SET
	password_hash = EXCLUDED.password_hash,
	updated_at    = EXCLUDED.updated_at`, accountID, hash)
	return mapWriteErr(err)
}

func (r *credentialsRepo) GetCredential(ctx context.Context, accountID int64) (domain.Credential, error) {
	var c domain.Credential
	err := r.db.QueryRow(ctx,
		`SELECT account_id, password_hash, updated_at FROM credentials WHERE account_id = $1`,
		accountID).Scan(&c.AccountID, &c.PasswordHash, &c.UpdatedAt)
	if err != nil {
		return domain.Credential{}, mapNotFound(err)
	}
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}
