package notify

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/otpauth/pkg/slogx"
)

// Log writes codes to the logger instead of delivering them. Development
// only: anyone with log access can sign in as anyone.
type Log struct{}

var _ Notifier = Log{}

func (Log) Deliver(ctx context.Context, address, code string) error {
	slogx.FromContext(ctx).LogAttrs(ctx, slog.LevelWarn, "otp_delivered_to_log",
		slog.String("address", address),
		slog.String("code", code),
	)
	return nil
}
