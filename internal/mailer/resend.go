package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v3"
)

// ResendSender sends mail through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender returns a Sender using apiKey, sending as from.
func NewResendSender(apiKey, from string) (*ResendSender, error) {
	if apiKey == "" {
		return nil, errors.New("mailer: resend api key is required")
	}
	if from == "" {
		return nil, errors.New("mailer: from address is required")
	}
	return &ResendSender{client: resend.NewClient(apiKey), from: from}, nil
}

// Send delivers a plain-text + HTML message to a single recipient.
func (s *ResendSender) Send(ctx context.Context, to, subject, text, html string) (string, error) {
	resp, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Text:    text,
		Html:    html,
	})
	if err != nil {
		return "", fmt.Errorf("resend send: %w", err)
	}
	return resp.Id, nil
}
