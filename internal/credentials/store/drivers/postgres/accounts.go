package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/domain"
)

type accountsRepo struct {
	db querier
}

const accountColumns = `id, username, email, phone, first_name, last_name, role,
	email_verified, phone_verified, created_at, updated_at`

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		a    domain.Account
		role int16
	)
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.Phone, &a.FirstName, &a.LastName,
		&role, &a.EmailVerified, &a.PhoneVerified, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return domain.Account{}, err
	}
	a.Role = authz.Role(role)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func (r *accountsRepo) Create(ctx context.Context, a domain.Account) (domain.Account, error) {
	const q = `
INSERT INTO accounts (username, email, phone, first_name, last_name, role, email_verified, phone_verified)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + accountColumns
	out, err := scanAccount(r.db.QueryRow(ctx, q,
		a.Username, a.Email, a.Phone, a.FirstName, a.LastName, int16(a.Role),
		a.EmailVerified, a.PhoneVerified))
	if err != nil {
		return domain.Account{}, mapWriteErr(err)
	}
	return out, nil
}

func (r *accountsRepo) GetByID(ctx context.Context, id int64) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	return a, mapNotFound(err)
}

func (r *accountsRepo) GetByUsername(ctx context.Context, username string) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(username) = lower($1)`, username))
	return a, mapNotFound(err)
}

func (r *accountsRepo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email))
	return a, mapNotFound(err)
}

func (r *accountsRepo) List(ctx context.Context, limit, offset int) ([]domain.Account, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]domain.Account, 0, limit)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *accountsRepo) UpdateRole(ctx context.Context, id int64, role authz.Role) error {
	return mustAffect(r.db.Exec(ctx,
		`UPDATE accounts SET role = $1, updated_at = now() WHERE id = $2`, int16(role), id))
}

func (r *accountsRepo) MarkEmailVerified(ctx context.Context, id int64) error {
	return mustAffect(r.db.Exec(ctx,
		`UPDATE accounts SET email_verified = TRUE, updated_at = now() WHERE id = $1`, id))
}

func (r *accountsRepo) MarkPhoneVerified(ctx context.Context, id int64) error {
	return mustAffect(r.db.Exec(ctx,
		`UPDATE accounts SET phone_verified = TRUE, updated_at = now() WHERE id = $1`, id))
}

func (r *accountsRepo) Delete(ctx context.Context, id int64) error {
	return mustAffect(r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id))
}

func (r *accountsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts)`).Scan(&exists)
	return !exists, err
}
