// Package channels delivers assistant replies back to customers over
// WhatsApp and email.
package channels

import (
	"context"
)

// OutboundMessage is one reply to deliver. To is the channel-native
// address: a whatsapp:+E164 number or an email address. Subject applies to
// email only.
type OutboundMessage struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message on one channel. Implementations return errors
// that the retry layer can classify; delivery is not assumed idempotent.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}
