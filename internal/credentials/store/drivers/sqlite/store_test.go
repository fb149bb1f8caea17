package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/domain"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/store"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/store/drivers/sqlite"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createAccount(t *testing.T, s store.Store, username string) domain.Account {
	t.Helper()
	a, err := s.Accounts().Create(context.Background(), domain.Account{
		Username: username,
		Email:    username + "@example.com",
		Role:     authz.User,
	})
	require.NoError(t, err)
	return a
}

func TestMigrationsAreIdempotent(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.ApplyMigrations())
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	empty, err := s.Accounts().IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	alice := createAccount(t, s, "alice")
	require.NotZero(t, alice.ID)
	require.False(t, alice.CreatedAt.IsZero())

	t.Run("duplicate username is rejected case-insensitively", func(t *testing.T) {
		_, err := s.Accounts().Create(ctx, domain.Account{Username: "ALICE", Email: "other@example.com", Role: authz.User})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("lookups", func(t *testing.T) {
		got, err := s.Accounts().GetByEmail(ctx, "Alice@Example.com")
		require.NoError(t, err)
		require.Equal(t, alice.ID, got.ID)

		got, err = s.Accounts().GetByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, authz.User, got.Role)

		_, err = s.Accounts().GetByID(ctx, 999)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("mutations", func(t *testing.T) {
		require.NoError(t, s.Accounts().UpdateRole(ctx, alice.ID, authz.Admin))
		require.NoError(t, s.Accounts().MarkEmailVerified(ctx, alice.ID))

		got, err := s.Accounts().GetByID(ctx, alice.ID)
		require.NoError(t, err)
		require.Equal(t, authz.Admin, got.Role)
		require.True(t, got.EmailVerified)
		require.False(t, got.PhoneVerified)

		require.ErrorIs(t, s.Accounts().UpdateRole(ctx, 999, authz.User), store.ErrNotFound)
	})

	t.Run("list pages by id", func(t *testing.T) {
		createAccount(t, s, "bob")
		createAccount(t, s, "carol")

		page, total, err := s.Accounts().List(ctx, 2, 1)
		require.NoError(t, err)
		require.Equal(t, 3, total)
		require.Len(t, page, 2)
		require.Equal(t, "bob", page[0].Username)
		require.Equal(t, "carol", page[1].Username)
	})
}

func TestCredentialUpsertKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a := createAccount(t, s, "dave")

	_, err := s.Credentials().GetCredential(ctx, a.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Credentials().UpsertCredential(ctx, a.ID, "hash-1"))
	require.NoError(t, s.Credentials().UpsertCredential(ctx, a.ID, "hash-2"))

	c, err := s.Credentials().GetCredential(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "hash-2", c.PasswordHash)

	require.ErrorIs(t, s.Credentials().UpsertCredential(ctx, 12345, "x"), store.ErrNotFound)
}

func TestVerificationRecords(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a := createAccount(t, s, "erin")
	now := time.Now().UTC().Truncate(time.Microsecond)

	rec := domain.VerificationRecord{
		ID:         idx.New(),
		SubjectID:  a.ID,
		Purpose:    domain.PurposeEmailVerify,
		SecretHash: "fp-1",
		IssuedAt:   now,
		ExpiresAt:  now.Add(15 * time.Minute),
	}
	require.NoError(t, s.Verifications().Upsert(ctx, rec))

	got, err := s.Verifications().Get(ctx, a.ID, domain.PurposeEmailVerify)
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
	require.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))
	require.Nil(t, got.ConsumedAt)

	t.Run("attempts and consume", func(t *testing.T) {
		require.NoError(t, s.Verifications().IncrementAttempts(ctx, rec.ID))
		ok, err := s.Verifications().MarkConsumed(ctx, rec.ID, now)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.Verifications().MarkConsumed(ctx, rec.ID, now)
		require.NoError(t, err)
		require.False(t, ok)

		got, err := s.Verifications().Get(ctx, a.ID, domain.PurposeEmailVerify)
		require.NoError(t, err)
		require.Equal(t, 1, got.Attempts)
		require.NotNil(t, got.ConsumedAt)
	})

	t.Run("upsert replaces the pair in full", func(t *testing.T) {
		fresh := rec
		fresh.ID = idx.New()
		fresh.SecretHash = "fp-2"
		require.NoError(t, s.Verifications().Upsert(ctx, fresh))

		got, err := s.Verifications().Get(ctx, a.ID, domain.PurposeEmailVerify)
		require.NoError(t, err)
		require.Equal(t, fresh.ID, got.ID)
		require.Zero(t, got.Attempts)
		require.Nil(t, got.ConsumedAt)

		_, err = s.Verifications().GetBySecretHash(ctx, domain.PurposeEmailVerify, "fp-1")
		require.ErrorIs(t, err, store.ErrNotFound)
		byHash, err := s.Verifications().GetBySecretHash(ctx, domain.PurposeEmailVerify, "fp-2")
		require.NoError(t, err)
		require.Equal(t, fresh.ID, byHash.ID)
	})

	t.Run("delete stale", func(t *testing.T) {
		old := domain.VerificationRecord{
			ID:         idx.New(),
			SubjectID:  a.ID,
			Purpose:    domain.PurposePhoneVerify,
			SecretHash: "fp-old",
			IssuedAt:   now.Add(-48 * time.Hour),
			ExpiresAt:  now.Add(-47 * time.Hour),
		}
		require.NoError(t, s.Verifications().Upsert(ctx, old))

		n, err := s.Verifications().DeleteStale(ctx, now.Add(-24*time.Hour))
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		_, err = s.Verifications().Get(ctx, a.ID, domain.PurposePhoneVerify)
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.Verifications().Get(ctx, a.ID, domain.PurposeEmailVerify)
		require.NoError(t, err)
	})

	t.Run("deleting the account cascades", func(t *testing.T) {
		require.NoError(t, s.Accounts().Delete(ctx, a.ID))
		_, err := s.Verifications().Get(ctx, a.ID, domain.PurposeEmailVerify)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a := createAccount(t, s, "frank")

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Credentials().UpsertCredential(ctx, a.ID, "in-tx"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Credentials().GetCredential(ctx, a.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.Credentials().UpsertCredential(ctx, a.ID, "committed")
	}))
	c, err := s.Credentials().GetCredential(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "committed", c.PasswordHash)
}
