package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/aussiebroadwan/otpauth/pkg/mailx"
	"github.com/sethvargo/go-retry"
)

var htmlBody = template.Must(template.New("otp").Parse(`<!doctype html>
<html><body>
<p>Your {{.Product}} sign-in code is:</p>
<p style="font-size:24px;letter-spacing:4px"><strong>{{.Code}}</strong></p>
<p>It expires in {{.Expires}}. If you did not try to sign in, ignore this email.</p>
</body></html>`))

type EmailConfig struct {
	Product string        // shown in the subject and body
	TTL     time.Duration // how long the code lives, for the body text
	Retries uint64        // extra attempts after the first send
	Backoff time.Duration // base Fibonacci delay between attempts
}

// Email sends codes through a mailx.Mail, retrying transient failures.
type Email struct {
	mail mailx.Mail
	cfg  EmailConfig
}

var _ Notifier = (*Email)(nil)

func NewEmail(mail mailx.Mail, cfg EmailConfig) *Email {
	if cfg.Product == "" {
		cfg.Product = "account"
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	return &Email{mail: mail, cfg: cfg}
}

func (e *Email) Deliver(ctx context.Context, address, code string) error {
	msg, err := e.message(address, code)
	if err != nil {
		return err
	}

	b := retry.NewFibonacci(e.cfg.Backoff)
	b = retry.WithCappedDuration(2*time.Second, b)
	b = retry.WithMaxRetries(e.cfg.Retries, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := e.mail.Send(ctx, msg)
		switch {
		case err == nil:
			return nil
		case permanent(err):
			return err
		default:
			return retry.RetryableError(err)
		}
	})
}

func (e *Email) message(address, code string) (mailx.Message, error) {
	expires := e.cfg.TTL.Round(time.Second).String()

	var html bytes.Buffer
	err := htmlBody.Execute(&html, struct{ Product, Code, Expires string }{e.cfg.Product, code, expires})
	if err != nil {
		return mailx.Message{}, fmt.Errorf("notify: render email: %w", err)
	}

	return mailx.Message{
		To:       []string{address},
		Subject:  fmt.Sprintf("Your %s sign-in code", e.cfg.Product),
		TextBody: fmt.Sprintf("Your %s sign-in code is %s. It expires in %s.", e.cfg.Product, code, expires),
		HTMLBody: html.String(),
	}, nil
}

// permanent errors fail the same way on every attempt.
func permanent(err error) bool {
	return errors.Is(err, mailx.ErrNoRecipients) ||
		errors.Is(err, mailx.ErrNoSender) ||
		errors.Is(err, mailx.ErrHeaderInjection) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
