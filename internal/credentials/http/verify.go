package http

import (
	"net/http"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/codestore"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/domain"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/service"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/credsdk"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/httpx"
)

// VerifyHandler serves the email and phone verification flows for the
// authenticated caller.
type VerifyHandler struct {
	Verification *service.VerificationService
}

// target resolves the caller and the {channel} wildcard, writing the error
// response itself when either is missing.
func (h *VerifyHandler) target(w http.ResponseWriter, r *http.Request) (int64, domain.Purpose, bool) {
	id, _, ok := caller(r)
	if !ok {
		credsdk.ErrUnauthenticated.WriteError(w)
		return 0, "", false
	}
	purpose, err := domain.ParseChannel(r.PathValue("channel"))
	if err != nil {
		badRequest(w, "channel must be email or phone")
		return 0, "", false
	}
	return id, purpose, true
}

// HandleSend handles POST /v1/auth/verify/{channel}/send
//
//	@Summary		Send a verification code
//	@Description	Issues a six digit code valid for 15 minutes and sends it by email or SMS.
//	@Description	Any earlier code for the same channel stops working. On 502 the code was
//	@Description	still issued; asking again replaces it.
//	@Tags			Verification
//	@Produce		json
//	@Security		BearerAuth
//	@Param			channel	path		string	true	"email or phone"
//	@Success		202		{object}	credsdk.VerificationSendResponse
//	@Failure		400		{object}	credsdk.ErrorResponse	"invalid_request or no_delivery_address"
//	@Failure		401		{object}	credsdk.ErrorResponse	"unauthenticated"
//	@Failure		409		{object}	credsdk.ErrorResponse	"already_verified"
//	@Failure		502		{object}	credsdk.ErrorResponse	"delivery_failed"
//	@Router			/v1/auth/verify/{channel}/send [post].
func (h *VerifyHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	id, purpose, ok := h.target(w, r)
	if !ok {
		return
	}
	issued, err := h.Verification.StartVerification(r.Context(), id, purpose)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, credsdk.VerificationSendResponse{
		Channel:   r.PathValue("channel"),
		ExpiresAt: issued.ExpiresAt,
		Delivered: issued.Delivered,
	})
}

// HandleConfirm handles POST /v1/auth/verify/{channel}/confirm
//
//	@Summary		Confirm a verification code
//	@Description	A matching, unexpired, unused code marks the channel verified. Wrong
//	@Description	codes are counted; past VERIFICATION_MAX_ATTEMPTS (default 5) the code is refused
//	@Description	and a new one must be sent.
//	@Tags			Verification
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			channel	path		string								true	"email or phone"
//	@Param			request	body		credsdk.VerificationConfirmRequest	true	"Code"
//	@Success		200		{object}	credsdk.VerificationConfirmResponse
//	@Failure		400		{object}	credsdk.ErrorResponse	"code_mismatch, code_expired or code_already_used"
//	@Failure		401		{object}	credsdk.ErrorResponse	"unauthenticated"
//	@Failure		404		{object}	credsdk.ErrorResponse	"code_not_found"
//	@Failure		429		{object}	credsdk.ErrorResponse	"too_many_attempts or rate_limit_exceeded"
//	@Router			/v1/auth/verify/{channel}/confirm [post].
func (h *VerifyHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	id, purpose, ok := h.target(w, r)
	if !ok {
		return
	}
	var req credsdk.VerificationConfirmRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	res, err := h.Verification.ConfirmVerification(r.Context(), id, purpose, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res != codestore.Success {
		writeError(w, r, res.Err())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, credsdk.VerificationConfirmResponse{
		Channel:  r.PathValue("channel"),
		Result:   res.String(),
		Verified: true,
	})
}

// HandleStatus handles GET /v1/auth/verify/{channel}
//
//	@Summary		Verification status
//	@Tags			Verification
//	@Produce		json
//	@Security		BearerAuth
//	@Param			channel	path		string	true	"email or phone"
//	@Success		200		{object}	credsdk.VerificationStatusResponse
//	@Failure		400		{object}	credsdk.ErrorResponse	"invalid_request"
//	@Failure		401		{object}	credsdk.ErrorResponse	"unauthenticated"
//	@Router			/v1/auth/verify/{channel} [get].
func (h *VerifyHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id, purpose, ok := h.target(w, r)
	if !ok {
		return
	}
	st, err := h.Verification.VerificationStatus(r.Context(), id, purpose)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, credsdk.VerificationStatusResponse{
		Channel:   r.PathValue("channel"),
		Verified:  st.Verified,
		Pending:   st.Pending,
		ExpiresAt: st.ExpiresAt,
		Attempts:  st.Attempts,
	})
}
