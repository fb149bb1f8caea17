package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/store"
)

var errNestedTx = errors.New("postgres: nested transactions are not supported")

type txStore struct {
	tx  pgx.Tx
	ctx context.Context
}

func (t *txStore) Commit() error { return t.tx.Commit(t.ctx) }

// Rollback after Commit is a no-op.
func (t *txStore) Rollback() error {
	err := t.tx.Rollback(context.Background())
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func (t *txStore) Close() error                   { return nil }
func (t *txStore) Ping(ctx context.Context) error { return nil }
func (t *txStore) ApplyMigrations() error         { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) { return nil, errNestedTx }

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return errNestedTx
}

func (t *txStore) Accounts() store.Accounts           { return &accountsRepo{db: t.tx} }
func (t *txStore) Credentials() store.Credentials     { return &credentialsRepo{db: t.tx} }
func (t *txStore) Verifications() store.Verifications { return &verificationsRepo{db: t.tx} }
