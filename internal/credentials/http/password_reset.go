package http

import (
	"net/http"
	"strings"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/codestore"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/service"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/credsdk"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/httpx"
)

type PasswordResetHandler struct {
	Verification *service.VerificationService
}

// HandleRequest handles POST /v1/auth/password/reset-request
//
//	@Summary		Request a password reset
//	@Description	Emails a single-use reset link when the address has an account.
//	@Description	The response is the same whether or not it does.
//	@Tags			Password reset
//	@Accept			json
//	@Param			request	body	credsdk.PasswordResetRequest	true	"Account email"
//	@Success		202
//	@Failure		400	{object}	credsdk.ErrorResponse	"invalid_request"
//	@Failure		429	{object}	credsdk.ErrorResponse	"rate_limit_exceeded"
//	@Router			/v1/auth/password/reset-request [post].
func (h *PasswordResetHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	var req credsdk.PasswordResetRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		badRequest(w, "email is required")
		return
	}
	if err := h.Verification.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleComplete handles POST /v1/auth/password/reset
//
//	@Summary		Complete a password reset
//	@Description	Consumes the reset token and sets the new password atomically.
//	@Tags			Password reset
//	@Accept			json
//	@Param			request	body	credsdk.PasswordResetCompleteRequest	true	"Token and new password"
//	@Success		204
//	@Failure		400	{object}	credsdk.ErrorResponse	"invalid_request, code_expired or code_already_used"
//	@Failure		404	{object}	credsdk.ErrorResponse	"code_not_found"
//	@Failure		500	{object}	credsdk.ErrorResponse	"server_error"
//	@Router			/v1/auth/password/reset [post].
func (h *PasswordResetHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	var req credsdk.PasswordResetCompleteRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	res, err := h.Verification.CompletePasswordReset(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res != codestore.Success {
		writeError(w, r, res.Err())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
