package http

import (
	"net/http"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/credsdk"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/httpx"
)

// RolesHandler lists the role hierarchy, lowest rank first.
//
//	@Summary		List roles
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	credsdk.ListRolesResponse
//	@Failure		401	{object}	credsdk.ErrorResponse	"unauthenticated"
//	@Failure		403	{object}	credsdk.ErrorResponse	"insufficient_privilege"
//	@Router			/v1/admin/roles [get].
func RolesHandler(h *authz.Hierarchy) http.HandlerFunc {
	roles := h.Roles()
	resp := credsdk.ListRolesResponse{Roles: make([]credsdk.RoleInfo, len(roles))}
	for i, def := range roles {
		resp.Roles[i] = credsdk.RoleInfo{Name: def.Name, Rank: int(def.Rank)}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}
