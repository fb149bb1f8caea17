package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/domain"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/idx"
)

type verificationsRepo struct {
	db dbtx
}

const verificationColumns = `id, subject_id, purpose, secret_hash, issued_at, expires_at, attempts, consumed_at`

func scanVerification(row rowScanner) (domain.VerificationRecord, error) {
	var (
		r                   domain.VerificationRecord
		id, purpose         string
		issuedAt, expiresAt int64
		consumedAt          sql.NullInt64
	)
	err := row.Scan(&id, &r.SubjectID, &purpose, &r.SecretHash, &issuedAt, &expiresAt, &r.Attempts, &consumedAt)
	if err != nil {
		return domain.VerificationRecord{}, err
	}
	r.ID = idx.ID(id)
	r.Purpose = domain.Purpose(purpose)
	r.IssuedAt = fromNanos(issuedAt)
	r.ExpiresAt = fromNanos(expiresAt)
	r.ConsumedAt = fromNullNanos(consumedAt)
	return r, nil
}

func (r *verificationsRepo) Upsert(ctx context.Context, v domain.VerificationRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO verification_records (`+verificationColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (subject_id, purpose) DO UPDATE SET
	id          = excluded.id,
	secret_hash = excluded.secret_hash,
	issued_at   = excluded.issued_at,
	expires_at  = excluded.expires_at,
	attempts    = excluded.attempts,
	consumed_at = excluded.consumed_at`,
		v.ID.String(), v.SubjectID, string(v.Purpose), v.SecretHash,
		toNanos(v.IssuedAt), toNanos(v.ExpiresAt), v.Attempts, toNullNanos(v.ConsumedAt))
	return mapWriteErr(err)
}

func (r *verificationsRepo) Get(ctx context.Context, subjectID int64, purpose domain.Purpose) (domain.VerificationRecord, error) {
	v, err := scanVerification(r.db.QueryRowContext(ctx,
		`SELECT `+verificationColumns+` FROM verification_records WHERE subject_id = ? AND purpose = ?`,
		subjectID, string(purpose)))
	return v, mapNotFound(err)
}

func (r *verificationsRepo) GetBySecretHash(ctx context.Context, purpose domain.Purpose, hash string) (domain.VerificationRecord, error) {
	v, err := scanVerification(r.db.QueryRowContext(ctx,
		`SELECT `+verificationColumns+` FROM verification_records WHERE purpose = ? AND secret_hash = ? LIMIT 1`,
		string(purpose), hash))
	return v, mapNotFound(err)
}

func (r *verificationsRepo) IncrementAttempts(ctx context.Context, id idx.ID) error {
	return mustAffect(r.db.ExecContext(ctx,
		`UPDATE verification_records SET attempts = attempts + 1 WHERE id = ?`, id.String()))
}

func (r *verificationsRepo) MarkConsumed(ctx context.Context, id idx.ID, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE verification_records SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL`,
		toNanos(at), id.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *verificationsRepo) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	cutoff := toNanos(before)
	res, err := r.db.ExecContext(ctx, `
DELETE FROM verification_records
WHERE expires_at < ? OR (consumed_at IS NOT NULL AND consumed_at < ?)`, cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
