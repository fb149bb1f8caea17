// Package notify delivers verification codes and reset links over email and
// SMS.
package notify

import (
	"context"
	"fmt"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type Message struct {
	Channel Channel
	To      string // email address or E.164 number
	Subject string // email only
	Text    string
	HTML    string // email only, optional
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Mux routes each message to the sender registered for its channel.
type Mux struct {
	Email Sender
	SMS   Sender
}

func (m *Mux) Send(ctx context.Context, msg Message) error {
	var s Sender
	switch msg.Channel {
	case ChannelEmail:
		s = m.Email
	case ChannelSMS:
		s = m.SMS
	}
	if s == nil {
		return fmt.Errorf("notify: no sender for channel %q", msg.Channel)
	}
	return s.Send(ctx, msg)
}
