package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/domain"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/idx"
)

type verificationsRepo struct {
	db querier
}

const verificationColumns = `id, subject_id, purpose, secret_hash, issued_at, expires_at, attempts, consumed_at`

func scanVerification(row pgx.Row) (domain.VerificationRecord, error) {
	var (
		v           domain.VerificationRecord
		id, purpose string
		attempts    int32
	)
	err := row.Scan(&id, &v.SubjectID, &purpose, &v.SecretHash, &v.IssuedAt, &v.ExpiresAt, &attempts, &v.ConsumedAt)
	if err != nil {
		return domain.VerificationRecord{}, err
	}
	v.ID = idx.ID(id)
	v.Purpose = domain.Purpose(purpose)
	v.Attempts = int(attempts)
	v.IssuedAt = v.IssuedAt.UTC()
	v.ExpiresAt = v.ExpiresAt.UTC()
	if v.ConsumedAt != nil {
		t := v.ConsumedAt.UTC()
		v.ConsumedAt = &t
	}
	return v, nil
}

func (r *verificationsRepo) Upsert(ctx context.Context, v domain.VerificationRecord) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO verification_records (`+verificationColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (subject_id, purpose) DO UPDATE SET
	id          = EXCLUDED.id,
	secret_hash = EXCLUDED.secret_hash,
	issued_at   = EXCLUDED.issued_at,
	expires_at  = EXCLUDED.expires_at,
	attempts    = EXCLUDED.attempts,
	consumed_at = EXCLUDED.consumed_at`,
		v.ID.String(), v.SubjectID, string(v.Purpose), v.SecretHash,
		v.IssuedAt, v.ExpiresAt, int32(v.Attempts), v.ConsumedAt) // #nosec G115 -- attempts stay small
	return mapWriteErr(err)
}

func (r *verificationsRepo) Get(ctx context.Context, subjectID int64, purpose domain.Purpose) (domain.VerificationRecord, error) {
	v, err := scanVerification(r.db.QueryRow(ctx,
		`SELECT `+verificationColumns+` FROM verification_records WHERE subject_id = $1 AND purpose = $2`,
		subjectID, string(purpose)))
	return v, mapNotFound(err)
}

func (r *verificationsRepo) GetBySecretHash(ctx context.Context, purpose domain.Purpose, hash string) (domain.VerificationRecord, error) {
	v, err := scanVerification(r.db.QueryRow(ctx,
		`SELECT `+verificationColumns+` FROM verification_records WHERE purpose = $1 AND secret_hash = $2 LIMIT 1`,
		string(purpose), hash))
	return v, mapNotFound(err)
}

func (r *verificationsRepo) IncrementAttempts(ctx context.Context, id idx.ID) error {
	return mustAffect(r.db.Exec(ctx,
		`UPDATE verification_records SET attempts = attempts + 1 WHERE id = $1`, id.String()))
}

func (r *verificationsRepo) MarkConsumed(ctx context.Context, id idx.ID, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE verification_records SET consumed_at = $1 WHERE id = $2 AND consumed_at IS NULL`,
		at, id.String())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *verificationsRepo) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
DELETE FROM verification_records
WHERE expires_at < $1 OR (consumed_at IS NOT NULL AND consumed_at < $1)`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
