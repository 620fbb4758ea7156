// Package messaging provides pluggable message delivery and the responder
// loop that connects a channel to the conversation engine.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/menuflow/menuflow/internal/models"
)

// Constants for messaging service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for receipt and response channels
	DefaultChannelBufferSize = 100
)

// ErrServiceStopped is returned when a send is attempted on a stopped service.
var ErrServiceStopped = errors.New("messaging service stopped")

// phoneNumberRegex strips everything that is not a digit from a recipient.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable message delivery abstraction.
// It supports sending engine replies, and provides channels for receipt and
// incoming-message events.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier. Returns the canonicalized recipient and an error if
	// validation fails.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendReply delivers an engine reply to a recipient, translating its
	// kind, text, and options into the channel's wire format.
	SendReply(ctx context.Context, to string, reply models.Reply) error

	// Start begins any background processing (e.g., polling for events).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Receipts returns a channel of receipt events (sent, delivered, read).
	Receipts() <-chan models.Receipt

	// Responses returns a channel of incoming user messages.
	Responses() <-chan models.Response
}

// ResponseInjector is implemented by services whose inbound messages arrive
// over HTTP (webhooks) rather than a live socket.
type ResponseInjector interface {
	InjectResponse(resp models.Response) error
}

// ReplyOptionFormat is the format string for rendering one selectable option
// on plain-text channels.
const ReplyOptionFormat = "\n%d. %s: %s"

// FormatReply renders a reply as plain text, listing any options numbered
// with their ids so the user can answer with the id.
func FormatReply(reply models.Reply) string {
	body := reply.Text
	for i, opt := range reply.Options {
		body += fmt.Sprintf(ReplyOptionFormat, i+1, opt.ID, opt.Label)
	}
	return body
}

// canonicalizePhoneNumber validates and canonicalizes a phone-number style
// recipient identifier shared by the WhatsApp and Twilio services.
func canonicalizePhoneNumber(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	return canonical, nil
}
