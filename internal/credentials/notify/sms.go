package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/slogx"
)

// WebhookSMSSender hands SMS messages to an HTTP gateway as
// {"to": "...", "body": "..."}. Any 2xx response counts as accepted.
type WebhookSMSSender struct {
	URL    string
	Token  string // sent as a bearer token when set
	Client *http.Client
}

func NewWebhookSMSSender(url, token string) *WebhookSMSSender {
	return &WebhookSMSSender{
		URL:    url,
		Token:  token,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

type smsPayload struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func (s *WebhookSMSSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(smsPayload{To: msg.To, Body: msg.Text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sms webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sms webhook: unexpected status %d", resp.StatusCode)
	}
	slogx.FromContext(ctx).Info("sms sent", "to", msg.To)
	return nil
}
