package service_test

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/codestore"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/domain"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/notify"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/service"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/store/drivers/sqlite"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/cryptox"
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

type outbox struct {
	mu   sync.Mutex
	msgs []notify.Message
	fail error
}

func (o *outbox) Send(_ context.Context, m notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.msgs = append(o.msgs, m)
	return nil
}

func (o *outbox) last(t *testing.T) notify.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs, "no message sent")
	return o.msgs[len(o.msgs)-1]
}

var (
	codeRE  = regexp.MustCompile(`\b(\d{6})\b`)
	tokenRE = regexp.MustCompile(`token=(\S+)`)
)

func codeFrom(t *testing.T, m notify.Message) string {
	t.Helper()
	match := codeRE.FindStringSubmatch(m.Text)
	require.Len(t, match, 2, "no code in %q", m.Text)
	return match[1]
}

func tokenFrom(t *testing.T, m notify.Message) string {
	t.Helper()
	match := tokenRE.FindStringSubmatch(m.Text)
	require.Len(t, match, 2, "no token in %q", m.Text)
	tok, err := url.QueryUnescape(match[1])
	require.NoError(t, err)
	return tok
}

type failingHasher struct{ service.Hasher }

func (failingHasher) Hash(string) (string, error) { return "", errors.New("out of memory") }

type fixture struct {
	store    *sqlite.Store
	clock    *fakeClock
	outbox   *outbox
	creds    *service.CredentialUpdater
	accounts *service.AccountService
	verify   *service.VerificationService
}

// fastHasher keeps argon2id but with tiny parameters.
func fastHasher() *cryptox.Argon2Hasher {
	return &cryptox.Argon2Hasher{
		Params: cryptox.Argon2Params{Memory: 64, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16},
		Pepper: "test-pepper",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })

	tmpl, err := notify.LoadTemplates("")
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codes := codestore.New(s)
	codes.Clock = clock.Now

	box := &outbox{}
	creds := service.NewCredentialUpdater(s, fastHasher())
	return &fixture{
		store:  s,
		clock:  clock,
		outbox: box,
		creds:  creds,
		accounts: &service.AccountService{
			Store:       s,
			Gate:        authz.NewGate(authz.DefaultHierarchy()),
			Credentials: creds,
		},
		verify: &service.VerificationService{
			Store:            s,
			Codes:            codes,
			Credentials:      creds,
			Sender:           box,
			Templates:        tmpl,
			PasswordResetURL: "https://app.example.com/reset",
		},
	}
}

func (f *fixture) register(t *testing.T, username, phone string) domain.Account {
	t.Helper()
	a, err := f.accounts.Register(context.Background(), service.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Phone:    phone,
		Password: "correct horse",
	})
	require.NoError(t, err)
	return a
}

func TestRegisterAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.register(t, "alice", "")
	require.Equal(t, authz.User, alice.Role)

	_, err := f.accounts.Register(ctx, service.RegisterInput{Username: "ALICE", Email: "x@example.com", Password: "long enough"})
	require.ErrorIs(t, err, service.ErrAccountExists)

	bad := []service.RegisterInput{
		{Username: "a", Email: "a@example.com", Password: "long enough"},
		{Username: "bob", Email: "not-an-email", Password: "long enough"},
		{Username: "bob", Email: "bob@example.com", Password: "short"},
		{Username: "bob", Email: "bob@example.com", Phone: "555-1234", Password: "long enough"},
	}
	for _, in := range bad {
		_, err := f.accounts.Register(ctx, in)
		require.ErrorIs(t, err, service.ErrInvalidInput, "%+v", in)
	}

	got, err := f.accounts.Authenticate(ctx, "alice", "correct horse")
	require.NoError(t, err)
	require.Equal(t, alice.ID, got.ID)

	got, err = f.accounts.Authenticate(ctx, "ALICE@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, alice.ID, got.ID)

	_, err = f.accounts.Authenticate(ctx, "alice", "wrong horse")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = f.accounts.Authenticate(ctx, "nobody", "correct horse")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestBootstrap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := service.BootstrapInput{Username: "root", Email: "root@example.com", Password: "bootstrap-pass"}

	owner, created, err := f.accounts.Bootstrap(ctx, in)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, authz.Owner, owner.Role)

	_, created, err = f.accounts.Bootstrap(ctx, in)
	require.NoError(t, err)
	require.False(t, created)
}

func TestAdminOperationsFollowHierarchy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mk := func(actor any, username string, role any) domain.Account {
		t.Helper()
		a, err := f.accounts.CreateAccount(ctx, actor, service.CreateAccountInput{
			RegisterInput: service.RegisterInput{Username: username, Email: username + "@example.com", Password: "initial-pass"},
			Role:          role,
		})
		require.NoError(t, err)
		return a
	}
	super := mk(authz.Owner, "super", "SuperAdmin")
	mod := mk(authz.Owner, "mod", authz.Moderator)
	user := mk(authz.Owner, "user", 1)
	require.Equal(t, authz.SuperAdmin, super.Role)

	admin := authz.Admin

	t.Run("create above own rank", func(t *testing.T) {
		_, err := f.accounts.CreateAccount(ctx, admin, service.CreateAccountInput{
			RegisterInput: service.RegisterInput{Username: "boss", Email: "boss@example.com", Password: "initial-pass"},
			Role:          authz.SuperAdmin,
		})
		require.ErrorIs(t, err, authz.ErrInsufficientPrivilege)
		_, err = f.store.Accounts().GetByUsername(ctx, "boss")
		require.Error(t, err)
	})

	t.Run("change role", func(t *testing.T) {
		_, err := f.accounts.ChangeRole(ctx, admin, super.ID, authz.User)
		require.ErrorIs(t, err, authz.ErrInsufficientPrivilege, "cannot demote a higher rank")

		_, err = f.accounts.ChangeRole(ctx, admin, mod.ID, "Owner")
		require.ErrorIs(t, err, authz.ErrInsufficientPrivilege)

		_, err = f.accounts.ChangeRole(ctx, admin, mod.ID, "Wizard")
		require.ErrorIs(t, err, authz.ErrInvalidRole)

		got, err := f.accounts.ChangeRole(ctx, admin, mod.ID, "admin")
		require.NoError(t, err)
		require.Equal(t, authz.Admin, got.Role)

		_, err = f.accounts.ChangeRole(ctx, admin, 424242, authz.User)
		require.ErrorIs(t, err, service.ErrAccountNotFound)
	})

	t.Run("gate runs before storage", func(t *testing.T) {
		err := f.accounts.DeleteAccount(ctx, nil, 424242)
		require.ErrorIs(t, err, authz.ErrUnauthenticated)
		err = f.accounts.ResetPassword(ctx, "intern", user.ID, "whatever-pass")
		require.ErrorIs(t, err, authz.ErrUnauthenticated)
	})

	t.Run("reset password", func(t *testing.T) {
		require.ErrorIs(t, f.accounts.ResetPassword(ctx, admin, super.ID, "new-password"), authz.ErrInsufficientPrivilege)

		require.NoError(t, f.accounts.ResetPassword(ctx, admin, user.ID, "reset-by-admin"))
		_, err := f.accounts.Authenticate(ctx, "user", "reset-by-admin")
		require.NoError(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		require.ErrorIs(t, f.accounts.DeleteAccount(ctx, admin, super.ID), authz.ErrInsufficientPrivilege)

		require.NoError(t, f.accounts.DeleteAccount(ctx, admin, user.ID))
		_, err := f.accounts.GetAccount(ctx, user.ID)
		require.ErrorIs(t, err, service.ErrAccountNotFound)
	})

	t.Run("list", func(t *testing.T) {
		page, total, err := f.accounts.ListAccounts(ctx, 0, 0)
		require.NoError(t, err)
		require.Equal(t, 2, total)
		require.Len(t, page, 2)
	})
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "carol", "")

	require.ErrorIs(t, f.accounts.ChangePassword(ctx, a.ID, "wrong", "new-password"), service.ErrInvalidCredentials)
	require.ErrorIs(t, f.accounts.ChangePassword(ctx, a.ID, "correct horse", "tiny"), service.ErrInvalidInput)
	require.NoError(t, f.accounts.ChangePassword(ctx, a.ID, "correct horse", "new-password"))

	_, err := f.accounts.Authenticate(ctx, "carol", "new-password")
	require.NoError(t, err)
}

func TestEmailVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "dora", "")

	issued, err := f.verify.StartVerification(ctx, a.ID, domain.PurposeEmailVerify)
	require.NoError(t, err)
	require.True(t, issued.Delivered)
	require.True(t, issued.ExpiresAt.Equal(f.clock.Now().Add(service.DefaultVerificationCodeTTL)))

	msg := f.outbox.last(t)
	require.Equal(t, notify.ChannelEmail, msg.Channel)
	require.Equal(t, "dora@example.com", msg.To)
	require.Contains(t, msg.Text, "15 minutes")
	code := codeFrom(t, msg)

	res, err := f.verify.ConfirmVerification(ctx, a.ID, domain.PurposeEmailVerify, "not-it")
	require.NoError(t, err)
	require.Equal(t, codestore.Mismatch, res)
	got, err := f.accounts.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, got.EmailVerified)

	res, err = f.verify.ConfirmVerification(ctx, a.ID, domain.PurposeEmailVerify, code)
	require.NoError(t, err)
	require.Equal(t, codestore.Success, res)
	got, err = f.accounts.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, got.EmailVerified)
	require.False(t, got.PhoneVerified)

	res, err = f.verify.ConfirmVerification(ctx, a.ID, domain.PurposeEmailVerify, code)
	require.NoError(t, err)
	require.Equal(t, codestore.AlreadyUsed, res)

	_, err = f.verify.StartVerification(ctx, a.ID, domain.PurposeEmailVerify)
	require.ErrorIs(t, err, service.ErrAlreadyVerified)

	_, err = f.verify.StartVerification(ctx, a.ID, domain.PurposePhoneVerify)
	require.ErrorIs(t, err, service.ErrNoDeliveryAddress)

	_, err = f.verify.StartVerification(ctx, a.ID, domain.PurposePasswordReset)
	require.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestConfirmLocksAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "mallory", "")
	f.verify.MaxConfirmAttempts = 3

	_, err := f.verify.StartVerification(ctx, a.ID, domain.PurposeEmailVerify)
	require.NoError(t, err)
	code := codeFrom(t, f.outbox.last(t))
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for range 3 {
		res, err := f.verify.ConfirmVerification(ctx, a.ID, domain.PurposeEmailVerify, wrong)
		require.NoError(t, err)
		require.Equal(t, codestore.Mismatch, res)
	}

	// The right code is refused too, and the record is left unconsumed.
	_, err = f.verify.ConfirmVerification(ctx, a.ID, domain.PurposeEmailVerify, code)
	require.ErrorIs(t, err, service.ErrTooManyAttempts)
	st, err := f.verify.VerificationStatus(ctx, a.ID, domain.PurposeEmailVerify)
	require.NoError(t, err)
	require.True(t, st.Pending)
	require.False(t, st.Verified)
	require.Equal(t, 3, st.Attempts)

	_, err = f.verify.ConfirmVerification(ctx, a.ID, domain.PurposeEmailVerify, wrong)
	require.ErrorIs(t, err, service.ErrTooManyAttempts)
	st, err = f.verify.VerificationStatus(ctx, a.ID, domain.PurposeEmailVerify)
	require.NoError(t, err)
	require.Equal(t, 3, st.Attempts, "refused attempts are not counted")

	// A fresh code starts a fresh count.
	_, err = f.verify.StartVerification(ctx, a.ID, domain.PurposeEmailVerify)
	require.NoError(t, err)
	res, err := f.verify.ConfirmVerification(ctx, a.ID, domain.PurposeEmailVerify, codeFrom(t, f.outbox.last(t)))
	require.NoError(t, err)
	require.Equal(t, codestore.Success, res)
}

func TestLockoutDoesNotMaskExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "oscar", "")
	f.verify.MaxConfirmAttempts = 1

	_, err := f.verify.StartVerification(ctx, a.ID, domain.PurposeEmailVerify)
	require.NoError(t, err)
	code := codeFrom(t, f.outbox.last(t))
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	res, err := f.verify.ConfirmVerification(ctx, a.ID, domain.PurposeEmailVerify, wrong)
	require.NoError(t, err)
	require.Equal(t, codestore.Mismatch, res)

	f.clock.Advance(service.DefaultVerificationCodeTTL + time.Second)
	res, err = f.verify.ConfirmVerification(ctx, a.ID, domain.PurposeEmailVerify, code)
	require.NoError(t, err)
	require.Equal(t, codestore.Expired, res)
}

func TestPhoneAndEmailAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "eve", "+12065550100")

	_, err := f.verify.StartVerification(ctx, a.ID, domain.PurposeEmailVerify)
	require.NoError(t, err)
	emailCode := codeFrom(t, f.outbox.last(t))

	_, err = f.verify.StartVerification(ctx, a.ID, domain.PurposePhoneVerify)
	require.NoError(t, err)
	sms := f.outbox.last(t)
	require.Equal(t, notify.ChannelSMS, sms.Channel)
	require.Equal(t, "+12065550100", sms.To)

	res, err := f.verify.ConfirmVerification(ctx, a.ID, domain.PurposeEmailVerify, emailCode)
	require.NoError(t, err)
	require.Equal(t, codestore.Success, res)

	st, err := f.verify.VerificationStatus(ctx, a.ID, domain.PurposePhoneVerify)
	require.NoError(t, err)
	require.False(t, st.Verified)
	require.True(t, st.Pending)

	st, err = f.verify.VerificationStatus(ctx, a.ID, domain.PurposeEmailVerify)
	require.NoError(t, err)
	require.True(t, st.Verified)
	require.False(t, st.Pending)
}

func TestDeliveryFailureKeepsCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "fay", "")

	f.outbox.fail = errors.New("smtp down")
	issued, err := f.verify.StartVerification(ctx, a.ID, domain.PurposeEmailVerify)
	require.ErrorIs(t, err, service.ErrDeliveryFailed)
	require.False(t, issued.Delivered)

	st, err := f.verify.VerificationStatus(ctx, a.ID, domain.PurposeEmailVerify)
	require.NoError(t, err)
	require.True(t, st.Pending)
}

func TestPasswordResetEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "gus", "")
	start := f.clock.Now()

	require.NoError(t, f.verify.RequestPasswordReset(ctx, "GUS@example.com"))
	msg := f.outbox.last(t)
	require.Contains(t, msg.Text, "https://app.example.com/reset?token=")
	require.Contains(t, msg.Text, "30 minutes")
	token := tokenFrom(t, msg)

	rec, err := f.verify.Codes.Lookup(ctx, a.ID, domain.PurposePasswordReset)
	require.NoError(t, err)
	require.True(t, rec.ExpiresAt.Equal(start.Add(30*time.Minute)))

	before, err := f.store.Credentials().GetCredential(ctx, a.ID)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	res, err := f.verify.CompletePasswordReset(ctx, token, "a-brand-new-pass")
	require.NoError(t, err)
	require.Equal(t, codestore.Success, res)

	after, err := f.store.Credentials().GetCredential(ctx, a.ID)
	require.NoError(t, err)
	require.NotEqual(t, before.PasswordHash, after.PasswordHash)

	_, err = f.accounts.Authenticate(ctx, "gus", "a-brand-new-pass")
	require.NoError(t, err)
	_, err = f.accounts.Authenticate(ctx, "gus", "correct horse")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	res, err = f.verify.CompletePasswordReset(ctx, token, "yet-another-pass")
	require.NoError(t, err)
	require.Equal(t, codestore.AlreadyUsed, res)
}

func TestPasswordResetOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t)
		a := f.register(t, "hal", "")
		_, err := f.verify.StartPasswordReset(ctx, a.ID)
		require.NoError(t, err)
		token := tokenFrom(t, f.outbox.last(t))

		f.clock.Advance(31 * time.Minute)
		res, err := f.verify.CompletePasswordReset(ctx, token, "a-brand-new-pass")
		require.NoError(t, err)
		require.Equal(t, codestore.Expired, res)
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.verify.CompletePasswordReset(ctx, "made-up", "a-brand-new-pass")
		require.NoError(t, err)
		require.Equal(t, codestore.NotFound, res)
	})

	t.Run("unknown email reveals nothing", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.verify.RequestPasswordReset(ctx, "ghost@example.com"))
		require.Empty(t, f.outbox.msgs)
	})

	t.Run("hashing failure leaves token and hash", func(t *testing.T) {
		f := newFixture(t)
		a := f.register(t, "ivy", "")
		_, err := f.verify.StartPasswordReset(ctx, a.ID)
		require.NoError(t, err)
		token := tokenFrom(t, f.outbox.last(t))
		before, err := f.store.Credentials().GetCredential(ctx, a.ID)
		require.NoError(t, err)

		good := f.creds.Hasher
		f.creds.Hasher = failingHasher{good}
		_, err = f.verify.CompletePasswordReset(ctx, token, "a-brand-new-pass")
		require.ErrorIs(t, err, service.ErrHashingFailure)

		still, err := f.store.Credentials().GetCredential(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, before.PasswordHash, still.PasswordHash)

		f.creds.Hasher = good
		res, err := f.verify.CompletePasswordReset(ctx, token, "a-brand-new-pass")
		require.NoError(t, err)
		require.Equal(t, codestore.Success, res)
	})

	t.Run("weak password does not burn the token", func(t *testing.T) {
		f := newFixture(t)
		a := f.register(t, "jon", "")
		_, err := f.verify.StartPasswordReset(ctx, a.ID)
		require.NoError(t, err)
		token := tokenFrom(t, f.outbox.last(t))

		_, err = f.verify.CompletePasswordReset(ctx, token, "short")
		require.ErrorIs(t, err, service.ErrInvalidInput)

		res, err := f.verify.CompletePasswordReset(ctx, token, "long-enough-now")
		require.NoError(t, err)
		require.Equal(t, codestore.Success, res)
	})
}

func TestHousekeepingRemovesOnlyStaleRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "kim", "+12065550111")

	_, err := f.verify.StartVerification(ctx, a.ID, domain.PurposeEmailVerify)
	require.NoError(t, err)

	hk := service.NewHousekeepingService(f.store, nil, time.Minute, 24*time.Hour)
	hk.Clock = f.clock.Now

	n, err := hk.Cleanup(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	f.clock.Advance(25 * time.Hour)
	_, err = f.verify.StartVerification(ctx, a.ID, domain.PurposePhoneVerify)
	require.NoError(t, err)

	n, err = hk.Cleanup(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	st, err := f.verify.VerificationStatus(ctx, a.ID, domain.PurposePhoneVerify)
	require.NoError(t, err)
	require.True(t, st.Pending)
}
