// Package notify delivers one-time codes to users out of band.
package notify

import "context"

// Notifier delivers code to address. Implementations must honour ctx and
// must not log the code unless they exist for local development.
type Notifier interface {
	Deliver(ctx context.Context, address, code string) error
}

// Func adapts a plain function to a Notifier.
type Func func(ctx context.Context, address, code string) error

func (f Func) Deliver(ctx context.Context, address, code string) error {
	return f(ctx, address, code)
}
