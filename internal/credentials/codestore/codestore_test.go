package codestore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/codestore"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/domain"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/store"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/store/drivers/sqlite"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/cryptox"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/idx"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setup(t *testing.T) (*codestore.CodeStore, *fakeClock, int64) {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })

	a, err := s.Accounts().Create(context.Background(), domain.Account{
		Username: "subject", Email: "subject@example.com", Role: authz.User,
	})
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	cs := codestore.New(s)
	cs.Clock = clock.Now
	return cs, clock, a.ID
}

func TestIssueRejectsBadInput(t *testing.T) {
	cs, _, subject := setup(t)
	ctx := context.Background()

	_, err := cs.Issue(ctx, subject, domain.PurposeEmailVerify, "123456", 0)
	require.ErrorIs(t, err, codestore.ErrInvalidTTL)
	_, err = cs.Issue(ctx, subject, domain.PurposeEmailVerify, "123456", -time.Second)
	require.ErrorIs(t, err, codestore.ErrInvalidTTL)
	_, err = cs.Issue(ctx, subject, "bogus", "123456", time.Minute)
	require.Error(t, err)
}

func TestIssueStoresFingerprintOnly(t *testing.T) {
	cs, clock, subject := setup(t)
	ctx := context.Background()

	rec, err := cs.Issue(ctx, subject, domain.PurposeEmailVerify, "123456", 15*time.Minute)
	require.NoError(t, err)
	require.Equal(t, cryptox.FingerprintToken("123456"), rec.SecretHash)
	require.NotContains(t, rec.SecretHash, "123456")
	require.True(t, rec.ExpiresAt.Equal(clock.Now().Add(15*time.Minute)))

	got, err := cs.Lookup(ctx, subject, domain.PurposeEmailVerify)
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
	require.Zero(t, got.Attempts)
}

func TestConsumeOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		cs, _, subject := setup(t)
		res, err := cs.Consume(ctx, subject, domain.PurposeEmailVerify, "000000")
		require.NoError(t, err)
		require.Equal(t, codestore.NotFound, res)
		require.ErrorIs(t, res.Err(), codestore.ErrRecordNotFound)
	})

	t.Run("success then already used", func(t *testing.T) {
		cs, _, subject := setup(t)
		_, err := cs.Issue(ctx, subject, domain.PurposeEmailVerify, "654321", time.Minute)
		require.NoError(t, err)

		res, err := cs.Consume(ctx, subject, domain.PurposeEmailVerify, "654321")
		require.NoError(t, err)
		require.Equal(t, codestore.Success, res)
		require.NoError(t, res.Err())

		res, err = cs.Consume(ctx, subject, domain.PurposeEmailVerify, "654321")
		require.NoError(t, err)
		require.Equal(t, codestore.AlreadyUsed, res)
	})

	t.Run("expired with correct secret", func(t *testing.T) {
		cs, clock, subject := setup(t)
		_, err := cs.Issue(ctx, subject, domain.PurposeEmailVerify, "111111", time.Minute)
		require.NoError(t, err)

		clock.Advance(time.Minute)
		res, err := cs.Consume(ctx, subject, domain.PurposeEmailVerify, "222222")
		require.NoError(t, err)
		require.Equal(t, codestore.Mismatch, res, "boundary instant is still live")

		clock.Advance(time.Nanosecond)
		res, err = cs.Consume(ctx, subject, domain.PurposeEmailVerify, "111111")
		require.NoError(t, err)
		require.Equal(t, codestore.Expired, res)
		require.ErrorIs(t, res.Err(), codestore.ErrRecordExpired)
	})

	t.Run("consumed beats expired", func(t *testing.T) {
		cs, clock, subject := setup(t)
		_, err := cs.Issue(ctx, subject, domain.PurposeEmailVerify, "111111", time.Minute)
		require.NoError(t, err)
		res, err := cs.Consume(ctx, subject, domain.PurposeEmailVerify, "111111")
		require.NoError(t, err)
		require.Equal(t, codestore.Success, res)

		clock.Advance(time.Hour)
		res, err = cs.Consume(ctx, subject, domain.PurposeEmailVerify, "111111")
		require.NoError(t, err)
		require.Equal(t, codestore.AlreadyUsed, res)
	})

	t.Run("mismatches count without lockout", func(t *testing.T) {
		cs, _, subject := setup(t)
		_, err := cs.Issue(ctx, subject, domain.PurposePhoneVerify, "424242", time.Minute)
		require.NoError(t, err)

		for range 3 {
			res, err := cs.Consume(ctx, subject, domain.PurposePhoneVerify, "000000")
			require.NoError(t, err)
			require.Equal(t, codestore.Mismatch, res)
		}
		rec, err := cs.Lookup(ctx, subject, domain.PurposePhoneVerify)
		require.NoError(t, err)
		require.Equal(t, 3, rec.Attempts)

		res, err := cs.Consume(ctx, subject, domain.PurposePhoneVerify, "424242")
		require.NoError(t, err)
		require.Equal(t, codestore.Success, res)
	})
}

func TestReissueInvalidatesOnlySamePurpose(t *testing.T) {
	cs, _, subject := setup(t)
	ctx := context.Background()

	_, err := cs.Issue(ctx, subject, domain.PurposeEmailVerify, "111111", time.Minute)
	require.NoError(t, err)
	phone, err := cs.Issue(ctx, subject, domain.PurposePhoneVerify, "333333", time.Minute)
	require.NoError(t, err)

	// Consume-then-reissue resets the consumed marker too.
	res, err := cs.Consume(ctx, subject, domain.PurposeEmailVerify, "111111")
	require.NoError(t, err)
	require.Equal(t, codestore.Success, res)
	_, err = cs.Issue(ctx, subject, domain.PurposeEmailVerify, "222222", time.Minute)
	require.NoError(t, err)

	res, err = cs.Consume(ctx, subject, domain.PurposeEmailVerify, "111111")
	require.NoError(t, err)
	require.Equal(t, codestore.Mismatch, res)

	got, err := cs.Lookup(ctx, subject, domain.PurposePhoneVerify)
	require.NoError(t, err)
	require.Equal(t, phone.ID, got.ID)
	require.Nil(t, got.ConsumedAt)

	res, err = cs.Consume(ctx, subject, domain.PurposeEmailVerify, "222222")
	require.NoError(t, err)
	require.Equal(t, codestore.Success, res)
}

func TestConsumeSecret(t *testing.T) {
	cs, _, subject := setup(t)
	ctx := context.Background()

	first, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	_, err = cs.Issue(ctx, subject, domain.PurposePasswordReset, first, 30*time.Minute)
	require.NoError(t, err)

	second, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	_, err = cs.Issue(ctx, subject, domain.PurposePasswordReset, second, 30*time.Minute)
	require.NoError(t, err)

	res, _, err := cs.ConsumeSecret(ctx, domain.PurposePasswordReset, first)
	require.NoError(t, err)
	require.Equal(t, codestore.NotFound, res, "overwritten token")

	res, rec, err := cs.ConsumeSecret(ctx, domain.PurposePasswordReset, second)
	require.NoError(t, err)
	require.Equal(t, codestore.Success, res)
	require.Equal(t, subject, rec.SubjectID)
	require.NotNil(t, rec.ConsumedAt)

	res, _, err = cs.ConsumeSecret(ctx, domain.PurposePasswordReset, second)
	require.NoError(t, err)
	require.Equal(t, codestore.AlreadyUsed, res)

	res, _, err = cs.ConsumeSecret(ctx, domain.PurposeEmailVerify, second)
	require.NoError(t, err)
	require.Equal(t, codestore.NotFound, res, "purposes are separate namespaces")
}

// SQLite runs on one connection, so these consumes serialise. The
// interleaving tests below and the postgres driver tests cover real races.
func TestConcurrentConsumeHasOneWinner(t *testing.T) {
	cs, _, subject := setup(t)
	ctx := context.Background()

	_, err := cs.Issue(ctx, subject, domain.PurposeEmailVerify, "777777", time.Minute)
	require.NoError(t, err)

	const workers = 16
	results := make([]codestore.Result, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := cs.Consume(ctx, subject, domain.PurposeEmailVerify, "777777")
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	var wins, used int
	for _, r := range results {
		switch r {
		case codestore.Success:
			wins++
		case codestore.AlreadyUsed:
			used++
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, workers-1, used)
}

// hookedStore runs a callback once just before the named repository call, so
// a test can interleave a rival writer at exactly that point.
type hookedStore struct {
	store.Store
	verifs *hookedVerifications
}

func (s hookedStore) Verifications() store.Verifications { return s.verifs }

type hookedVerifications struct {
	store.Verifications
	beforeMark  func()
	beforeCount func()
	neverMark   bool
}

func (v *hookedVerifications) MarkConsumed(ctx context.Context, id idx.ID, at time.Time) (bool, error) {
	if f := v.beforeMark; f != nil {
		v.beforeMark = nil
		f()
	}
	if v.neverMark {
		return false, nil
	}
	return v.Verifications.MarkConsumed(ctx, id, at)
}

func (v *hookedVerifications) IncrementAttempts(ctx context.Context, id idx.ID) error {
	if f := v.beforeCount; f != nil {
		v.beforeCount = nil
		f()
	}
	return v.Verifications.IncrementAttempts(ctx, id)
}

func hooked(cs *codestore.CodeStore) (*codestore.CodeStore, *hookedVerifications) {
	v := &hookedVerifications{Verifications: cs.Store.Verifications()}
	return cs.WithStore(hookedStore{Store: cs.Store, verifs: v}), v
}

func TestConsumeLosingRaceIsAlreadyUsed(t *testing.T) {
	cs, _, subject := setup(t)
	ctx := context.Background()

	_, err := cs.Issue(ctx, subject, domain.PurposeEmailVerify, "777777", time.Minute)
	require.NoError(t, err)

	racing, v := hooked(cs)
	v.beforeMark = func() {
		res, err := cs.Consume(ctx, subject, domain.PurposeEmailVerify, "777777")
		require.NoError(t, err)
		require.Equal(t, codestore.Success, res)
	}

	res, err := racing.Consume(ctx, subject, domain.PurposeEmailVerify, "777777")
	require.NoError(t, err)
	require.Equal(t, codestore.AlreadyUsed, res)
}

func TestConsumeAfterReissueBeforeCount(t *testing.T) {
	ctx := context.Background()

	t.Run("candidate matches the new code", func(t *testing.T) {
		cs, _, subject := setup(t)
		_, err := cs.Issue(ctx, subject, domain.PurposeEmailVerify, "111111", time.Minute)
		require.NoError(t, err)

		racing, v := hooked(cs)
		v.beforeCount = func() {
			_, err := cs.Issue(ctx, subject, domain.PurposeEmailVerify, "222222", time.Minute)
			require.NoError(t, err)
		}

		res, err := racing.Consume(ctx, subject, domain.PurposeEmailVerify, "222222")
		require.NoError(t, err)
		require.Equal(t, codestore.Success, res)
	})

	t.Run("candidate matches neither", func(t *testing.T) {
		cs, _, subject := setup(t)
		_, err := cs.Issue(ctx, subject, domain.PurposeEmailVerify, "111111", time.Minute)
		require.NoError(t, err)

		var fresh domain.VerificationRecord
		racing, v := hooked(cs)
		v.beforeCount = func() {
			fresh, err = cs.Issue(ctx, subject, domain.PurposeEmailVerify, "222222", time.Minute)
			require.NoError(t, err)
		}

		res, err := racing.Consume(ctx, subject, domain.PurposeEmailVerify, "333333")
		require.NoError(t, err)
		require.Equal(t, codestore.Mismatch, res)

		got, err := cs.Lookup(ctx, subject, domain.PurposeEmailVerify)
		require.NoError(t, err)
		require.Equal(t, fresh.ID, got.ID)
		require.Equal(t, 1, got.Attempts, "the attempt lands on the live record")
	})
}

func TestConsumeThatNeverSettlesFails(t *testing.T) {
	cs, _, subject := setup(t)
	ctx := context.Background()

	_, err := cs.Issue(ctx, subject, domain.PurposeEmailVerify, "777777", time.Minute)
	require.NoError(t, err)

	racing, v := hooked(cs)
	v.neverMark = true
	_, err = racing.Consume(ctx, subject, domain.PurposeEmailVerify, "777777")
	require.Error(t, err)

	got, err := cs.Lookup(ctx, subject, domain.PurposeEmailVerify)
	require.NoError(t, err)
	require.Nil(t, got.ConsumedAt)
}

func TestResultLabels(t *testing.T) {
	require.Equal(t, "success", codestore.Success.String())
	require.Equal(t, "mismatch", codestore.Mismatch.String())
	require.Equal(t, "unknown", codestore.Result(0).String())
	require.ErrorIs(t, codestore.AlreadyUsed.Err(), codestore.ErrRecordAlreadyUsed)
	require.ErrorIs(t, codestore.Mismatch.Err(), codestore.ErrSecretMismatch)
}
