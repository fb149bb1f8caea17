package http

import (
	"net/http"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/service"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/credsdk"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/httpx"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/slogx"
)

// AuthHandler serves registration, login and the caller's own account.
type AuthHandler struct {
	Accounts  *service.AccountService
	Tokens    *service.TokenService
	Hierarchy *authz.Hierarchy
}

// HandleRegister handles POST /v1/auth/register
//
//	@Summary		Register an account
//	@Description	Creates a User-role account. Username and email are unique ignoring case.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		credsdk.RegisterRequest		true	"New account"
//	@Success		201		{object}	credsdk.AccountResponse
//	@Failure		400		{object}	credsdk.ErrorResponse	"invalid_request"
//	@Failure		409		{object}	credsdk.ErrorResponse	"account_exists"
//	@Failure		429		{object}	credsdk.ErrorResponse	"rate_limit_exceeded"
//	@Router			/v1/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	a, err := h.Accounts.Register(r.Context(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Phone:     req.Phone,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAccountResponse(a, h.Hierarchy))
}

// HandleLogin handles POST /v1/auth/login
//
//	@Summary		Log in
//	@Description	Exchanges a username or email plus password for a signed access token.
//	@Description	The token's role claim carries the numeric rank.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		credsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	credsdk.TokenResponse
//	@Failure		400		{object}	credsdk.ErrorResponse	"invalid_request"
//	@Failure		401		{object}	credsdk.ErrorResponse	"invalid_credentials"
//	@Failure		429		{object}	credsdk.ErrorResponse	"rate_limit_exceeded"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	a, err := h.Accounts.Authenticate(r.Context(), req.Login, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tok, err := h.Tokens.Issue(a)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slogx.FromContext(r.Context()).Info("login succeeded", "account_id", a.ID)
	httpx.WriteJSON(w, http.StatusOK, credsdk.TokenResponse{
		AccessToken: tok.Token,
		TokenType:   tok.TokenType,
		ExpiresIn:   tok.ExpiresIn,
		Account:     toAccountResponse(a, h.Hierarchy),
	})
}

// HandleMe handles GET /v1/auth/me
//
//	@Summary		Current account
//	@Tags			Auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	credsdk.AccountResponse
//	@Failure		401	{object}	credsdk.ErrorResponse	"unauthenticated"
//	@Failure		404	{object}	credsdk.ErrorResponse	"account_not_found"
//	@Router			/v1/auth/me [get].
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, _, ok := caller(r)
	if !ok {
		credsdk.ErrUnauthenticated.WriteError(w)
		return
	}
	a, err := h.Accounts.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAccountResponse(a, h.Hierarchy))
}

// HandleChangePassword handles POST /v1/auth/password/change
//
//	@Summary		Change own password
//	@Tags			Auth
//	@Accept			json
//	@Security		BearerAuth
//	@Param			request	body	credsdk.ChangePasswordRequest	true	"Current and new password"
//	@Success		204
//	@Failure		400	{object}	credsdk.ErrorResponse	"invalid_request"
//	@Failure		401	{object}	credsdk.ErrorResponse	"invalid_credentials or unauthenticated"
//	@Router			/v1/auth/password/change [post].
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, _, ok := caller(r)
	if !ok {
		credsdk.ErrUnauthenticated.WriteError(w)
		return
	}
	var req credsdk.ChangePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if err := h.Accounts.ChangePassword(r.Context(), id, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
