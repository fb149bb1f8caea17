package credsdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

func (s *Session) Me(ctx context.Context) (*AccountResponse, error) {
	return getJSON[AccountResponse](ctx, s.client, s.accessToken, "/v1/auth/me")
}

func (s *Session) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	resp, err := s.client.do(ctx, http.MethodPost, "/v1/auth/password/change", s.accessToken,
		ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// SendVerification asks for a code on channel ("email" or "phone").
func (s *Session) SendVerification(ctx context.Context, channel string) (*VerificationSendResponse, error) {
	resp, err := s.client.do(ctx, http.MethodPost, "/v1/auth/verify/"+url.PathEscape(channel)+"/send", s.accessToken, nil)
	if err != nil {
		return nil, err
	}
	var out VerificationSendResponse
	if err := decodeJSON(resp, &out, http.StatusAccepted); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) ConfirmVerification(ctx context.Context, channel, code string) (*VerificationConfirmResponse, error) {
	resp, err := s.client.do(ctx, http.MethodPost, "/v1/auth/verify/"+url.PathEscape(channel)+"/confirm", s.accessToken,
		VerificationConfirmRequest{Code: code})
	if err != nil {
		return nil, err
	}
	var out VerificationConfirmResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) VerificationStatus(ctx context.Context, channel string) (*VerificationStatusResponse, error) {
	return getJSON[VerificationStatusResponse](ctx, s.client, s.accessToken, "/v1/auth/verify/"+url.PathEscape(channel))
}

// ============================================================================
// Admin
// ============================================================================

func (s *Session) ListRoles(ctx context.Context) (*ListRolesResponse, error) {
	return getJSON[ListRolesResponse](ctx, s.client, s.accessToken, "/v1/admin/roles")
}

func (s *Session) ListAccounts(ctx context.Context, limit, offset int) (*ListAccountsResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/v1/admin/users"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return getJSON[ListAccountsResponse](ctx, s.client, s.accessToken, path)
}

func (s *Session) GetAccount(ctx context.Context, id int64) (*AccountResponse, error) {
	return getJSON[AccountResponse](ctx, s.client, s.accessToken, userPath(id))
}

func (s *Session) CreateAccount(ctx context.Context, req CreateAccountRequest) (*AccountResponse, error) {
	resp, err := s.client.do(ctx, http.MethodPost, "/v1/admin/users", s.accessToken, req)
	if err != nil {
		return nil, err
	}
	var out AccountResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) DeleteAccount(ctx context.Context, id int64) error {
	resp, err := s.client.do(ctx, http.MethodDelete, userPath(id), s.accessToken, nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// ChangeRole accepts a rank or a role name.
func (s *Session) ChangeRole(ctx context.Context, id int64, role any) (*AccountResponse, error) {
	resp, err := s.client.do(ctx, http.MethodPut, userPath(id)+"/role", s.accessToken, ChangeRoleRequest{Role: role})
	if err != nil {
		return nil, err
	}
	var out AccountResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) SetPassword(ctx context.Context, id int64, newPassword string) error {
	resp, err := s.client.do(ctx, http.MethodPut, userPath(id)+"/password", s.accessToken, SetPasswordRequest{NewPassword: newPassword})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

func userPath(id int64) string {
	return fmt.Sprintf("/v1/admin/users/%d", id)
}
