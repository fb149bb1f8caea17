package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/domain"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/metrics"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/store"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/slogx"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

type RegisterInput struct {
	Username  string
	Email     string
	Phone     string
	FirstName string
	LastName  string
	Password  string
}

// CreateAccountInput is an admin-created account. Role may be a rank or a
// role name.
type CreateAccountInput struct {
	RegisterInput
	Role any
}

// BootstrapInput describes the Owner account created on an empty store.
type BootstrapInput struct {
	Username string
	Email    string
	Password string
}

type AccountService struct {
	Store       store.Store
	Gate        *authz.Gate
	Credentials *CredentialUpdater
	Metrics     *metrics.Metrics
}

// authorize runs the gate for actor against target and records the decision.
func (s *AccountService) authorize(ctx context.Context, op string, actor, target any) error {
	err := s.Gate.AuthorizeTarget(actor, target)
	s.Metrics.AuthzDecision(decisionLabel(err))
	if err != nil {
		slogx.FromContext(ctx).Info("authorization refused", "op", op, "actor_role", actor, "target_role", target, "error", err)
	}
	return err
}

// Register creates a User account with its credential in one transaction.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (domain.Account, error) {
	return s.create(ctx, in, authz.User)
}

func (s *AccountService) create(ctx context.Context, in RegisterInput, role authz.Role) (domain.Account, error) {
	normalize(&in)
	if err := in.validate(); err != nil {
		return domain.Account{}, err
	}
	hash, err := s.Credentials.Hash(ctx, in.Password)
	if err != nil {
		return domain.Account{}, err
	}

	var created domain.Account
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		created, err = tx.Accounts().Create(ctx, domain.Account{
			Username:  in.Username,
			Email:     in.Email,
			Phone:     in.Phone,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Role:      role,
		})
		if err != nil {
			return err
		}
		return tx.Credentials().UpsertCredential(ctx, created.ID, hash)
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return domain.Account{}, ErrAccountExists
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}

	slogx.FromContext(ctx).Info("account created", "account_id", created.ID, "role", s.Gate.Hierarchy().Name(role))
	return created, nil
}

// Authenticate checks a username or email plus password. Unknown logins and
// wrong passwords both give ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, login, password string) (domain.Account, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return domain.Account{}, ErrInvalidCredentials
	}

	var (
		a   domain.Account
		err error
	)
	if strings.Contains(login, "@") {
		a, err = s.Store.Accounts().GetByEmail(ctx, login)
	} else {
		a, err = s.Store.Accounts().GetByUsername(ctx, login)
	}
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Account{}, err
	}

	if err := s.Credentials.Verify(ctx, a.ID, password); err != nil {
		slogx.FromContext(ctx).Info("login failed", "account_id", a.ID)
		return domain.Account{}, err
	}
	return a, nil
}

// Bootstrap creates the Owner account when the store holds no accounts. It
// reports false without error when accounts already exist.
func (s *AccountService) Bootstrap(ctx context.Context, in BootstrapInput) (domain.Account, bool, error) {
	l := slogx.FromContext(ctx)

	empty, err := s.Store.Accounts().IsEmpty(ctx)
	if err != nil {
		return domain.Account{}, false, err
	}
	if !empty {
		l.Debug("bootstrap skipped, accounts exist")
		return domain.Account{}, false, nil
	}

	owner := s.Gate.Hierarchy().Highest()
	a, err := s.create(ctx, RegisterInput{Username: in.Username, Email: in.Email, Password: in.Password}, owner)
	if err != nil {
		l.Error("bootstrap failed", "error", err)
		return domain.Account{}, false, err
	}
	l.Info("bootstrapped owner account", "account_id", a.ID, "username", a.Username)
	return a, true, nil
}

// CreateAccount lets actor create an account at or below its own rank.
func (s *AccountService) CreateAccount(ctx context.Context, actor any, in CreateAccountInput) (domain.Account, error) {
	if err := s.authorize(ctx, "create_account", actor, in.Role); err != nil {
		return domain.Account{}, err
	}
	return s.create(ctx, in.RegisterInput, s.Gate.Hierarchy().Rank(in.Role))
}

// target loads an account after confirming actor holds a usable role, so an
// unauthenticated caller never reaches storage.
func (s *AccountService) target(ctx context.Context, actor any, id int64) (domain.Account, error) {
	if err := s.Gate.RequireMinimum(actor, authz.User); err != nil {
		s.Metrics.AuthzDecision(decisionLabel(err))
		return domain.Account{}, err
	}
	a, err := s.Store.Accounts().GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, ErrAccountNotFound
	}
	return a, err
}

// ChangeRole moves targetID to newRole. The actor must outrank or equal both
// the new role and the target's current role.
func (s *AccountService) ChangeRole(ctx context.Context, actor any, targetID int64, newRole any) (domain.Account, error) {
	if err := s.authorize(ctx, "change_role", actor, newRole); err != nil {
		return domain.Account{}, err
	}
	t, err := s.target(ctx, actor, targetID)
	if err != nil {
		return domain.Account{}, err
	}
	if err := s.authorize(ctx, "change_role", actor, t.Role); err != nil {
		return domain.Account{}, err
	}

	role := s.Gate.Hierarchy().Rank(newRole)
	if err := s.Store.Accounts().UpdateRole(ctx, targetID, role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, err
	}
	slogx.FromContext(ctx).Info("role changed", "account_id", targetID,
		"from", s.Gate.Hierarchy().Name(t.Role), "to", s.Gate.Hierarchy().Name(role))
	t.Role = role
	return t, nil
}

func (s *AccountService) DeleteAccount(ctx context.Context, actor any, targetID int64) error {
	t, err := s.target(ctx, actor, targetID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, "delete_account", actor, t.Role); err != nil {
		return err
	}
	if err := s.Store.Accounts().Delete(ctx, targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	slogx.FromContext(ctx).Info("account deleted", "account_id", targetID)
	return nil
}

// ResetPassword sets targetID's password on an admin's behalf.
func (s *AccountService) ResetPassword(ctx context.Context, actor any, targetID int64, newPassword string) error {
	t, err := s.target(ctx, actor, targetID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, "reset_password", actor, t.Role); err != nil {
		return err
	}
	return s.Credentials.Replace(ctx, targetID, newPassword)
}

func (s *AccountService) ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, int, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)
	offset = max(offset, 0)
	return s.Store.Accounts().List(ctx, limit, offset)
}

func (s *AccountService) GetAccount(ctx context.Context, id int64) (domain.Account, error) {
	a, err := s.Store.Accounts().GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, ErrAccountNotFound
	}
	return a, err
}

// ChangePassword replaces the caller's own password after checking the
// current one.
func (s *AccountService) ChangePassword(ctx context.Context, subjectID int64, oldPassword, newPassword string) error {
	if err := s.Credentials.Verify(ctx, subjectID, oldPassword); err != nil {
		return err
	}
	return s.Credentials.Replace(ctx, subjectID, newPassword)
}
