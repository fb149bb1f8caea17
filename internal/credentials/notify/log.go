package notify

import (
	"context"

	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/slogx"
)

// LogSender writes messages to the log instead of delivering them. It is the
// fallback when no SMTP host or SMS webhook is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	slogx.FromContext(ctx).Warn("notification not delivered (log sender)",
		"channel", msg.Channel, "to", msg.To, "subject", msg.Subject, "text", msg.Text)
	return nil
}
