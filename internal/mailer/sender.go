// Package mailer sends transactional email (sign-in codes).
package mailer

import "context"

// Sender delivers one email and returns the provider's message ID.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) (string, error)
}
