package credsdk

import (
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/jwtx"
)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Health
// ============================================================================

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// JWKSResponse is the public key set for verifying access tokens.
type JWKSResponse jwtx.JWKS

// ============================================================================
// Authentication
// ============================================================================

type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"` // E.164
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Password  string `json:"password"`
}

// LoginRequest accepts either a username or an email in Login.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int             `json:"expires_in"`
	Account     AccountResponse `json:"account"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type PasswordResetCompleteRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ============================================================================
// Verification
// ============================================================================

type VerificationSendResponse struct {
	Channel   string    `json:"channel"`
	ExpiresAt time.Time `json:"expires_at"`
	Delivered bool      `json:"delivered"`
}

type VerificationConfirmRequest struct {
	Code string `json:"code"`
}

type VerificationConfirmResponse struct {
	Channel  string `json:"channel"`
	Result   string `json:"result"`
	Verified bool   `json:"verified"`
}

type VerificationStatusResponse struct {
	Channel   string     `json:"channel"`
	Verified  bool       `json:"verified"`
	Pending   bool       `json:"pending"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Attempts  int        `json:"attempts"`
}

// ============================================================================
// Accounts
// ============================================================================

type AccountResponse struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	Role          int       `json:"role"`
	RoleName      string    `json:"role_name"`
	EmailVerified bool      `json:"email_verified"`
	PhoneVerified bool      `json:"phone_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ListAccountsResponse struct {
	Accounts []AccountResponse `json:"accounts"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// CreateAccountRequest is the admin form of RegisterRequest. Role takes a
// rank (3) or a name ("Admin").
type CreateAccountRequest struct {
	RegisterRequest
	Role any `json:"role" swaggertype:"string" example:"Moderator"`
}

type ChangeRoleRequest struct {
	Role any `json:"role" swaggertype:"string" example:"Admin"`
}

type SetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// ============================================================================
// Roles
// ============================================================================

type RoleInfo struct {
	Name string `json:"name"`
	Rank int    `json:"rank"`
}

type ListRolesResponse struct {
	Roles []RoleInfo `json:"roles"`
}
