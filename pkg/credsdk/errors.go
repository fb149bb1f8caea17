package credsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/httpx"
)

const (
	ErrorCodeInvalidRequest        = "invalid_request"
	ErrorCodeInvalidCredentials    = "invalid_credentials"
	ErrorCodeUnauthenticated       = "unauthenticated"
	ErrorCodeInvalidRole           = "invalid_role"
	ErrorCodeInsufficientPrivilege = "insufficient_privilege"
	ErrorCodeAccountExists         = "account_exists"
	ErrorCodeAccountNotFound       = "account_not_found"
	ErrorCodeAlreadyVerified       = "already_verified"
	ErrorCodeNoDeliveryAddress     = "no_delivery_address"
	ErrorCodeCodeNotFound          = "code_not_found"
	ErrorCodeCodeExpired           = "code_expired"
	ErrorCodeCodeAlreadyUsed       = "code_already_used"
	ErrorCodeCodeMismatch          = "code_mismatch"
	ErrorCodeTooManyAttempts       = "too_many_attempts"
	ErrorCodeDeliveryFailed        = "delivery_failed"
	ErrorCodeRateLimited           = "rate_limit_exceeded"
	ErrorCodeServerError           = "server_error"
)

// APIError is the error envelope of every endpoint. Handlers write it with
// WriteError; the client returns it for non-2xx responses.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteError(w, e.StatusCode, e.Code, e.Description)
}

// WithDescription returns a copy with a request-specific description.
func (e *APIError) WithDescription(desc string) *APIError {
	cp := *e
	cp.Description = desc
	return &cp
}

func NewAPIError(statusCode int, code, description string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Description: description}
}

var (
	ErrInvalidRequest        = NewAPIError(http.StatusBadRequest, ErrorCodeInvalidRequest, "the request is malformed or missing required fields")
	ErrInvalidCredentials    = NewAPIError(http.StatusUnauthorized, ErrorCodeInvalidCredentials, "invalid login or password")
	ErrUnauthenticated       = NewAPIError(http.StatusUnauthorized, ErrorCodeUnauthenticated, "authentication required")
	ErrInvalidRole           = NewAPIError(http.StatusBadRequest, ErrorCodeInvalidRole, "unknown role")
	ErrInsufficientPrivilege = NewAPIError(http.StatusForbidden, ErrorCodeInsufficientPrivilege, "role does not permit this operation")
	ErrAccountExists         = NewAPIError(http.StatusConflict, ErrorCodeAccountExists, "username or email already registered")
	ErrAccountNotFound       = NewAPIError(http.StatusNotFound, ErrorCodeAccountNotFound, "account not found")
	ErrAlreadyVerified       = NewAPIError(http.StatusConflict, ErrorCodeAlreadyVerified, "already verified")
	ErrNoDeliveryAddress     = NewAPIError(http.StatusBadRequest, ErrorCodeNoDeliveryAddress, "no address on file for this channel")
	ErrCodeNotFound          = NewAPIError(http.StatusNotFound, ErrorCodeCodeNotFound, "no such code or token")
	ErrCodeExpired           = NewAPIError(http.StatusBadRequest, ErrorCodeCodeExpired, "code or token has expired")
	ErrCodeAlreadyUsed       = NewAPIError(http.StatusBadRequest, ErrorCodeCodeAlreadyUsed, "code or token was already used")
	ErrCodeMismatch          = NewAPIError(http.StatusBadRequest, ErrorCodeCodeMismatch, "code does not match")
	ErrTooManyAttempts       = NewAPIError(http.StatusTooManyRequests, ErrorCodeTooManyAttempts, "too many wrong codes; request a new code")
	ErrDeliveryFailed        = NewAPIError(http.StatusBadGateway, ErrorCodeDeliveryFailed, "message could not be delivered; the code remains valid")
	ErrServerError           = NewAPIError(http.StatusInternalServerError, ErrorCodeServerError, "internal server error")
)

// parseErrorResponse turns a non-2xx response body into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}
	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
