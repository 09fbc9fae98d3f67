// Package mailx sends plain email. Only what one-time code delivery needs
// is covered: a single text or HTML body to a handful of recipients.
package mailx

import (
	"context"
	"io"
)

// Message is a provider-agnostic email.
type Message struct {
	From     string // falls back to the sender's default
	To       []string
	Subject  string
	TextBody string
	HTMLBody string // sent as multipart/alternative when TextBody is also set
}

// Mail is an email provider.
type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}
