package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/codestore"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/domain"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/metrics"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/notify"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/store"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/cryptox"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/slogx"
)

const (
	DefaultVerificationCodeTTL = 15 * time.Minute
	DefaultPasswordResetTTL    = 30 * time.Minute
	DefaultMaxConfirmAttempts  = 5

	verificationCodeDigits = 6
)

// Issued describes a freshly issued code or reset token. The secret itself
// only ever leaves through the notify.Sender.
type Issued struct {
	Purpose   domain.Purpose
	Channel   notify.Channel
	ExpiresAt time.Time
	Delivered bool
}

// Status is the verification state of one purpose for an account.
type Status struct {
	Purpose   domain.Purpose
	Verified  bool
	Pending   bool
	ExpiresAt *time.Time
	Attempts  int
}

type VerificationService struct {
	Store       store.Store
	Codes       *codestore.CodeStore
	Credentials *CredentialUpdater
	Sender      notify.Sender
	Templates   *notify.Templates
	Metrics     *metrics.Metrics

	VerificationCodeTTL time.Duration
	PasswordResetTTL    time.Duration

	// MaxConfirmAttempts is how many wrong codes a live record tolerates
	// before ConfirmVerification refuses it. A new code resets the count.
	MaxConfirmAttempts int

	// PasswordResetURL is the page that accepts ?token=... and posts it back
	// to the reset endpoint.
	PasswordResetURL string
}

func (s *VerificationService) codeTTL() time.Duration {
	if s.VerificationCodeTTL > 0 {
		return s.VerificationCodeTTL
	}
	return DefaultVerificationCodeTTL
}

func (s *VerificationService) maxAttempts() int {
	if s.MaxConfirmAttempts > 0 {
		return s.MaxConfirmAttempts
	}
	return DefaultMaxConfirmAttempts
}

func (s *VerificationService) resetTTL() time.Duration {
	if s.PasswordResetTTL > 0 {
		return s.PasswordResetTTL
	}
	return DefaultPasswordResetTTL
}

// target resolves where a code for purpose goes.
func target(a domain.Account, purpose domain.Purpose) (ch notify.Channel, to, tmpl string, verified bool, err error) {
	switch purpose {
	case domain.PurposeEmailVerify:
		return notify.ChannelEmail, a.Email, notify.TemplateVerifyEmail, a.EmailVerified, nil
	case domain.PurposePhoneVerify:
		return notify.ChannelSMS, a.Phone, notify.TemplateVerifyPhone, a.PhoneVerified, nil
	default:
		return "", "", "", false, invalid("purpose %q is not a verification channel", purpose)
	}
}

func (s *VerificationService) account(ctx context.Context, id int64) (domain.Account, error) {
	a, err := s.Store.Accounts().GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, ErrAccountNotFound
	}
	return a, err
}

// StartVerification issues a six digit code for an email or phone purpose
// and sends it. A delivery failure returns Issued{Delivered: false} with an
// error wrapping ErrDeliveryFailed; the code stays valid either way.
func (s *VerificationService) StartVerification(ctx context.Context, subjectID int64, purpose domain.Purpose) (Issued, error) {
	a, err := s.account(ctx, subjectID)
	if err != nil {
		return Issued{}, err
	}
	ch, to, tmpl, verified, err := target(a, purpose)
	if err != nil {
		return Issued{}, err
	}
	if verified {
		return Issued{}, ErrAlreadyVerified
	}
	if to == "" {
		return Issued{}, ErrNoDeliveryAddress
	}

	code, err := cryptox.GenerateNumericCode(verificationCodeDigits)
	if err != nil {
		return Issued{}, fmt.Errorf("generate code: %w", err)
	}
	ttl := s.codeTTL()
	rec, err := s.Codes.Issue(ctx, subjectID, purpose, code, ttl)
	if err != nil {
		return Issued{}, err
	}
	s.Metrics.CodeIssued(string(purpose))

	issued := Issued{Purpose: purpose, Channel: ch, ExpiresAt: rec.ExpiresAt}
	err = s.deliver(ctx, ch, to, tmpl, notify.Vars{Username: a.Username, Code: code, TTL: humanDuration(ttl)})
	if err != nil {
		return issued, err
	}
	issued.Delivered = true
	return issued, nil
}

// ConfirmVerification consumes code and, only on Success, marks the
// matching contact verified. Every other result leaves the account as is.
// A live record that has already seen MaxConfirmAttempts wrong codes is
// refused with ErrTooManyAttempts and is not consumed, even for the right
// code.
func (s *VerificationService) ConfirmVerification(ctx context.Context, subjectID int64, purpose domain.Purpose, code string) (codestore.Result, error) {
	if _, _, _, _, err := target(domain.Account{}, purpose); err != nil {
		return 0, err
	}
	code = strings.TrimSpace(code)

	var res codestore.Result
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		codes := s.Codes.WithStore(tx)
		if err := s.checkLockout(ctx, codes, subjectID, purpose); err != nil {
			return err
		}

		var err error
		res, err = codes.Consume(ctx, subjectID, purpose, code)
		if err != nil || res != codestore.Success {
			return err
		}
		if purpose == domain.PurposeEmailVerify {
			err = tx.Accounts().MarkEmailVerified(ctx, subjectID)
		} else {
			err = tx.Accounts().MarkPhoneVerified(ctx, subjectID)
		}
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	})
	if errors.Is(err, ErrTooManyAttempts) {
		s.Metrics.CodeConsumed(string(purpose), "locked")
		slogx.FromContext(ctx).Warn("verification confirm refused, too many attempts",
			"account_id", subjectID, "purpose", purpose)
		return 0, err
	}
	if err != nil {
		return 0, err
	}

	s.Metrics.CodeConsumed(string(purpose), res.String())
	slogx.FromContext(ctx).Info("verification confirm", "account_id", subjectID, "purpose", purpose, "result", res)
	return res, nil
}

// checkLockout refuses a live record whose wrong-code count has reached the
// limit. Consumed and expired records fall through so Consume reports them.
func (s *VerificationService) checkLockout(ctx context.Context, codes *codestore.CodeStore, subjectID int64, purpose domain.Purpose) error {
	rec, err := codes.Lookup(ctx, subjectID, purpose)
	switch {
	case errors.Is(err, codestore.ErrRecordNotFound):
		return nil
	case err != nil:
		return err
	}
	if rec.Consumed() || rec.ExpiredAt(codes.Now()) {
		return nil
	}
	if rec.Attempts >= s.maxAttempts() {
		return ErrTooManyAttempts
	}
	return nil
}

// VerificationStatus reports whether purpose is verified for subjectID and
// whether a code is outstanding.
func (s *VerificationService) VerificationStatus(ctx context.Context, subjectID int64, purpose domain.Purpose) (Status, error) {
	a, err := s.account(ctx, subjectID)
	if err != nil {
		return Status{}, err
	}
	_, _, _, verified, err := target(a, purpose)
	if err != nil {
		return Status{}, err
	}
	st := Status{Purpose: purpose, Verified: verified}

	rec, err := s.Codes.Lookup(ctx, subjectID, purpose)
	switch {
	case errors.Is(err, codestore.ErrRecordNotFound):
		return st, nil
	case err != nil:
		return Status{}, err
	}
	st.Attempts = rec.Attempts
	if !rec.Consumed() && !rec.ExpiredAt(s.Codes.Now()) {
		st.Pending = true
		exp := rec.ExpiresAt
		st.ExpiresAt = &exp
	}
	return st, nil
}

// StartPasswordReset issues a single-use reset token for subjectID and emails
// a link carrying it.
func (s *VerificationService) StartPasswordReset(ctx context.Context, subjectID int64) (Issued, error) {
	a, err := s.account(ctx, subjectID)
	if err != nil {
		return Issued{}, err
	}
	if a.Email == "" {
		return Issued{}, ErrNoDeliveryAddress
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return Issued{}, fmt.Errorf("generate reset token: %w", err)
	}
	ttl := s.resetTTL()
	rec, err := s.Codes.Issue(ctx, subjectID, domain.PurposePasswordReset, token, ttl)
	if err != nil {
		return Issued{}, err
	}
	s.Metrics.CodeIssued(string(domain.PurposePasswordReset))

	issued := Issued{Purpose: domain.PurposePasswordReset, Channel: notify.ChannelEmail, ExpiresAt: rec.ExpiresAt}
	vars := notify.Vars{Username: a.Username, Link: s.resetLink(token), TTL: humanDuration(ttl)}
	if err := s.deliver(ctx, notify.ChannelEmail, a.Email, notify.TemplateResetPassword, vars); err != nil {
		return issued, err
	}
	issued.Delivered = true
	return issued, nil
}

// RequestPasswordReset starts a reset for the account owning email. Unknown
// addresses and delivery failures are logged and reported as success so the
// endpoint does not reveal which addresses have accounts.
func (s *VerificationService) RequestPasswordReset(ctx context.Context, email string) error {
	logger := slogx.FromContext(ctx)

	a, err := s.Store.Accounts().GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		logger.Info("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.StartPasswordReset(ctx, a.ID)
	if errors.Is(err, ErrDeliveryFailed) || errors.Is(err, ErrNoDeliveryAddress) {
		logger.Warn("password reset not delivered", "account_id", a.ID, "error", err)
		return nil
	}
	return err
}

// CompletePasswordReset consumes token and replaces the password in one
// transaction. If hashing fails the transaction rolls back, leaving the token
// live and the old hash in place.
func (s *VerificationService) CompletePasswordReset(ctx context.Context, token, newPassword string) (codestore.Result, error) {
	if err := ValidatePassword(newPassword); err != nil {
		return 0, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return codestore.NotFound, nil
	}

	var (
		res       codestore.Result
		subjectID int64
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var (
			rec domain.VerificationRecord
			err error
		)
		res, rec, err = s.Codes.WithStore(tx).ConsumeSecret(ctx, domain.PurposePasswordReset, token)
		if err != nil || res != codestore.Success {
			return err
		}
		subjectID = rec.SubjectID
		return s.Credentials.WithStore(tx).Replace(ctx, rec.SubjectID, newPassword)
	})
	if err != nil {
		return 0, err
	}

	s.Metrics.CodeConsumed(string(domain.PurposePasswordReset), res.String())
	if res == codestore.Success {
		slogx.FromContext(ctx).Info("password reset completed", "account_id", subjectID)
	}
	return res, nil
}

func (s *VerificationService) deliver(ctx context.Context, ch notify.Channel, to, tmpl string, vars notify.Vars) error {
	msg, err := s.Templates.Render(tmpl, vars)
	if err != nil {
		return fmt.Errorf("render %s: %w", tmpl, err)
	}
	msg.Channel = ch
	msg.To = to

	err = s.Sender.Send(ctx, msg)
	s.Metrics.Delivery(string(ch), err)
	if err != nil {
		slogx.FromContext(ctx).Warn("delivery failed", "channel", ch, "template", tmpl, "error", err)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

func (s *VerificationService) resetLink(token string) string {
	sep := "?"
	if strings.Contains(s.PasswordResetURL, "?") {
		sep = "&"
	}
	return s.PasswordResetURL + sep + "token=" + url.QueryEscape(token)
}

// humanDuration renders whole minutes and hours for message bodies.
func humanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return d.String()
	}
}
