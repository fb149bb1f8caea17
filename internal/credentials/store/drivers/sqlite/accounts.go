package sqlite

import (
	"context"
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/domain"
)

type accountsRepo struct {
	db dbtx
}

const accountColumns = `id, username, email, phone, first_name, last_name, role,
	email_verified, phone_verified, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		a                    domain.Account
		role                 int64
		createdAt, updatedAt int64
	)
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.Phone, &a.FirstName, &a.LastName,
		&role, &a.EmailVerified, &a.PhoneVerified, &createdAt, &updatedAt)
	if err != nil {
		return domain.Account{}, err
	}
	a.Role = authz.Role(role)
	a.CreatedAt = fromNanos(createdAt)
	a.UpdatedAt = fromNanos(updatedAt)
	return a, nil
}

func (r *accountsRepo) Create(ctx context.Context, a domain.Account) (domain.Account, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
INSERT INTO accounts (username, email, phone, first_name, last_name, role,
	email_verified, phone_verified, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Username, a.Email, a.Phone, a.FirstName, a.LastName, int64(a.Role),
		a.EmailVerified, a.PhoneVerified, toNanos(now), toNanos(now))
	if err != nil {
		return domain.Account{}, mapWriteErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Account{}, err
	}
	a.ID = id
	a.CreatedAt = fromNanos(toNanos(now))
	a.UpdatedAt = a.CreatedAt
	return a, nil
}

func (r *accountsRepo) GetByID(ctx context.Context, id int64) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	return a, mapNotFound(err)
}

func (r *accountsRepo) GetByUsername(ctx context.Context, username string) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username))
	return a, mapNotFound(err)
}

func (r *accountsRepo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email))
	return a, mapNotFound(err)
}

func (r *accountsRepo) List(ctx context.Context, limit, offset int) ([]domain.Account, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
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
	return mustAffect(r.db.ExecContext(ctx,
		`UPDATE accounts SET role = ?, updated_at = ? WHERE id = ?`,
		int64(role), toNanos(time.Now()), id))
}

func (r *accountsRepo) MarkEmailVerified(ctx context.Context, id int64) error {
	return mustAffect(r.db.ExecContext(ctx,
		`UPDATE accounts SET email_verified = 1, updated_at = ? WHERE id = ?`,
		toNanos(time.Now()), id))
}

func (r *accountsRepo) MarkPhoneVerified(ctx context.Context, id int64) error {
	return mustAffect(r.db.ExecContext(ctx,
		`UPDATE accounts SET phone_verified = 1, updated_at = ? WHERE id = ?`,
		toNanos(time.Now()), id))
}

func (r *accountsRepo) Delete(ctx context.Context, id int64) error {
	return mustAffect(r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id))
}

func (r *accountsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts)`).Scan(&exists)
	return !exists, err
}
