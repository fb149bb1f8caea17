package credsdk

import (
	"net/http"
	"strings"
	"time"
)

// Client talks to the public endpoints and hands out Sessions.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Session carries an access token for authenticated calls. It is safe for
// concurrent use.
type Session struct {
	client      *Client
	accessToken string
}

func (c *Client) NewSession(accessToken string) *Session {
	return &Session{client: c, accessToken: accessToken}
}

func (s *Session) AccessToken() string { return s.accessToken }
