package credsdk

import (
	"context"
	"net/http"
)

func (c *Client) Livez(ctx context.Context) (*HealthResponse, error) {
	return getJSON[HealthResponse](ctx, c, "", "/livez")
}

func (c *Client) Readyz(ctx context.Context) (*HealthResponse, error) {
	return getJSON[HealthResponse](ctx, c, "", "/readyz")
}

func (c *Client) JWKS(ctx context.Context) (*JWKSResponse, error) {
	return getJSON[JWKSResponse](ctx, c, "", "/.well-known/jwks.json")
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AccountResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/auth/register", "", req)
	if err != nil {
		return nil, err
	}
	var out AccountResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/auth/login", "", req)
	if err != nil {
		return nil, err
	}
	var out TokenResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestPasswordReset always succeeds for well-formed input, whether or not
// the address has an account.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	resp, err := c.do(ctx, http.MethodPost, "/v1/auth/password/reset-request", "", PasswordResetRequest{Email: email})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusAccepted)
}

func (c *Client) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	resp, err := c.do(ctx, http.MethodPost, "/v1/auth/password/reset", "",
		PasswordResetCompleteRequest{Token: token, NewPassword: newPassword})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

func getJSON[T any](ctx context.Context, c *Client, token, path string) (*T, error) {
	resp, err := c.do(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}
	var out T
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
