package sqlite

import (
	"context"
	"database/sql"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/store"
)

type txStore struct {
	tx *sql.Tx
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Close is a no-op; the outer Store owns the connection.
func (t *txStore) Close() error { return nil }

func (t *txStore) Ping(ctx context.Context) error { return nil }

// Nested transactions are not supported.
func (t *txStore) Tx(ctx context.Context) (store.Tx, error) { return nil, sql.ErrTxDone }

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Accounts() store.Accounts           { return &accountsRepo{db: t.tx} }
func (t *txStore) Credentials() store.Credentials     { return &credentialsRepo{db: t.tx} }
func (t *txStore) Verifications() store.Verifications { return &verificationsRepo{db: t.tx} }

func (t *txStore) ApplyMigrations() error { return nil } // apply before starting a tx
