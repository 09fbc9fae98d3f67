package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aussiebroadwan/otpauth/pkg/clock"
	"github.com/nats-io/nats.go"
)

const DefaultSubject = "auth.otp.deliver"

// Publisher is the part of *nats.Conn the notifier needs.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

// Delivery is the message body published for an external mailer.
type Delivery struct {
	Address  string    `json:"address"`
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issued_at"`
}

// NATS hands codes to another service over a subject. Delivery only counts
// once the server has acknowledged the flush.
type NATS struct {
	pub     Publisher
	subject string
	clock   clock.Clocker
}

var _ Notifier = (*NATS)(nil)

func NewNATS(pub Publisher, subject string, clk clock.Clocker) *NATS {
	if subject == "" {
		subject = DefaultSubject
	}
	if clk == nil {
		clk = clock.New()
	}
	return &NATS{pub: pub, subject: subject, clock: clk}
}

func (n *NATS) Deliver(ctx context.Context, address, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(Delivery{Address: address, Code: code, IssuedAt: n.clock.Now()})
	if err != nil {
		return fmt.Errorf("notify: encode delivery: %w", err)
	}

	msg := nats.NewMsg(n.subject)
	msg.Data = body
	msg.Header.Set("Content-Type", "application/json")

	if err := n.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("notify: nats publish: %w", err)
	}
	if err := n.pub.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("notify: nats flush: %w", err)
	}
	return nil
}
