package http

import (
	"net/http"
	"strconv"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/service"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/credsdk"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/httpx"
)

// AdminUsersHandler serves /v1/admin/users. The router already requires
// Admin; every per-target rank check happens in AccountService.
type AdminUsersHandler struct {
	Accounts  *service.AccountService
	Hierarchy *authz.Hierarchy
}

// actor returns the caller's role claim or writes 401.
func actor(w http.ResponseWriter, r *http.Request) (any, bool) {
	_, role, ok := caller(r)
	if !ok {
		credsdk.ErrUnauthenticated.WriteError(w)
	}
	return role, ok
}

func queryInt(r *http.Request, key string) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil && n >= 0
}

// HandleList handles GET /v1/admin/users
//
//	@Summary		List accounts
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			limit	query		int	false	"Page size (default 50, max 200)"
//	@Param			offset	query		int	false	"Rows to skip"
//	@Success		200		{object}	credsdk.ListAccountsResponse
//	@Failure		400		{object}	credsdk.ErrorResponse	"invalid_request"
//	@Failure		401		{object}	credsdk.ErrorResponse	"unauthenticated"
//	@Failure		403		{object}	credsdk.ErrorResponse	"insufficient_privilege"
//	@Router			/v1/admin/users [get].
func (h *AdminUsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, ok1 := queryInt(r, "limit")
	offset, ok2 := queryInt(r, "offset")
	if !ok1 || !ok2 {
		badRequest(w, "limit and offset must be non-negative integers")
		return
	}
	if limit <= 0 {
		limit = service.DefaultPageSize
	}
	limit = min(limit, service.MaxPageSize)

	accounts, total, err := h.Accounts.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := credsdk.ListAccountsResponse{
		Accounts: make([]credsdk.AccountResponse, len(accounts)),
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}
	for i, a := range accounts {
		resp.Accounts[i] = toAccountResponse(a, h.Hierarchy)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleCreate handles POST /v1/admin/users
//
//	@Summary		Create an account
//	@Description	Creates an account with the given role. The role may not outrank the caller.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		credsdk.CreateAccountRequest	true	"Account and role"
//	@Success		201		{object}	credsdk.AccountResponse
//	@Failure		400		{object}	credsdk.ErrorResponse	"invalid_request or invalid_role"
//	@Failure		401		{object}	credsdk.ErrorResponse	"unauthenticated"
//	@Failure		403		{object}	credsdk.ErrorResponse	"insufficient_privilege"
//	@Failure		409		{object}	credsdk.ErrorResponse	"account_exists"
//	@Router			/v1/admin/users [post].
func (h *AdminUsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	role, ok := actor(w, r)
	if !ok {
		return
	}
	var req credsdk.CreateAccountRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	a, err := h.Accounts.CreateAccount(r.Context(), role, service.CreateAccountInput{
		RegisterInput: service.RegisterInput{
			Username:  req.Username,
			Email:     req.Email,
			Phone:     req.Phone,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Password:  req.Password,
		},
		Role: req.Role,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAccountResponse(a, h.Hierarchy))
}

// HandleGet handles GET /v1/admin/users/{id}
//
//	@Summary		Get an account
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Account ID"
//	@Success		200	{object}	credsdk.AccountResponse
//	@Failure		401	{object}	credsdk.ErrorResponse	"unauthenticated"
//	@Failure		403	{object}	credsdk.ErrorResponse	"insufficient_privilege"
//	@Failure		404	{object}	credsdk.ErrorResponse	"account_not_found"
//	@Router			/v1/admin/users/{id} [get].
func (h *AdminUsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "id must be a positive integer")
		return
	}
	a, err := h.Accounts.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAccountResponse(a, h.Hierarchy))
}

// HandleDelete handles DELETE /v1/admin/users/{id}
//
//	@Summary		Delete an account
//	@Description	Deletes the account with its credential and verification records.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Param			id	path	int	true	"Account ID"
//	@Success		204
//	@Failure		401	{object}	credsdk.ErrorResponse	"unauthenticated"
//	@Failure		403	{object}	credsdk.ErrorResponse	"insufficient_privilege"
//	@Failure		404	{object}	credsdk.ErrorResponse	"account_not_found"
//	@Router			/v1/admin/users/{id} [delete].
func (h *AdminUsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	role, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "id must be a positive integer")
		return
	}
	if err := h.Accounts.DeleteAccount(r.Context(), role, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleChangeRole handles PUT /v1/admin/users/{id}/role
//
//	@Summary		Change an account's role
//	@Description	The caller must rank at or above both the target's current role and the new role.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int							true	"Account ID"
//	@Param			request	body		credsdk.ChangeRoleRequest	true	"Rank or role name"
//	@Success		200		{object}	credsdk.AccountResponse
//	@Failure		400		{object}	credsdk.ErrorResponse	"invalid_role"
//	@Failure		401		{object}	credsdk.ErrorResponse	"unauthenticated"
//	@Failure		403		{object}	credsdk.ErrorResponse	"insufficient_privilege"
//	@Failure		404		{object}	credsdk.ErrorResponse	"account_not_found"
//	@Router			/v1/admin/users/{id}/role [put].
func (h *AdminUsersHandler) HandleChangeRole(w http.ResponseWriter, r *http.Request) {
	role, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "id must be a positive integer")
		return
	}
	var req credsdk.ChangeRoleRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	a, err := h.Accounts.ChangeRole(r.Context(), role, id, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAccountResponse(a, h.Hierarchy))
}

// HandleSetPassword handles PUT /v1/admin/users/{id}/password
//
//	@Summary		Set an account's password
//	@Tags			Admin
//	@Accept			json
//	@Security		BearerAuth
//	@Param			id		path	int							true	"Account ID"
//	@Param			request	body	credsdk.SetPasswordRequest	true	"New password"
//	@Success		204
//	@Failure		400	{object}	credsdk.ErrorResponse	"invalid_request"
//	@Failure		401	{object}	credsdk.ErrorResponse	"unauthenticated"
//	@Failure		403	{object}	credsdk.ErrorResponse	"insufficient_privilege"
//	@Failure		404	{object}	credsdk.ErrorResponse	"account_not_found"
//	@Router			/v1/admin/users/{id}/password [put].
func (h *AdminUsersHandler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	role, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "id must be a positive integer")
		return
	}
	var req credsdk.SetPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if err := h.Accounts.ResetPassword(r.Context(), role, id, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
