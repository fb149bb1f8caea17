/*
Package credsdk is the client SDK and wire types for the credentials service.

The server uses the same types to encode its responses, so a field added here
shows up on both sides.

# Client vs Session

Client covers the public endpoints. Session wraps an access token and covers
everything behind AuthnMiddleware:

	c := credsdk.NewClient("https://creds.example.com")

	tok, err := c.Login(ctx, credsdk.LoginRequest{Login: "alice", Password: pw})
	if err != nil {
		return err
	}

	s := c.NewSession(tok.AccessToken)
	me, err := s.Me(ctx)

Access tokens are not refreshed; log in again once ExpiresIn has elapsed.

# Errors

Every non-2xx response is returned as *APIError carrying the HTTP status and
the {"error", "error_description"} body:

	var apiErr *credsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == credsdk.ErrorCodeInsufficientPrivilege {
		// the caller's role is too low for this target
	}
*/
package credsdk
