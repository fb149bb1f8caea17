package http

import (
	"net/http"
	"strconv"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/domain"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/credsdk"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/httpx"
)

func toAccountResponse(a domain.Account, h *authz.Hierarchy) credsdk.AccountResponse {
	return credsdk.AccountResponse{
		ID:            a.ID,
		Username:      a.Username,
		Email:         a.Email,
		Phone:         a.Phone,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		Role:          int(a.Role),
		RoleName:      h.Name(a.Role),
		EmailVerified: a.EmailVerified,
		PhoneVerified: a.PhoneVerified,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// pathID parses the {id} wildcard.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// caller returns the verified claims placed by AuthnMiddleware.
func caller(r *http.Request) (subjectID int64, role any, ok bool) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		return 0, nil, false
	}
	id, err := claims.SubjectID()
	if err != nil {
		return 0, nil, false
	}
	return id, claims.Role, true
}
