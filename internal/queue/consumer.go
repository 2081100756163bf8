package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"servicehub/internal/domain"
	"servicehub/internal/modules/ledger"
)

type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, ev ledger.PaymentConfirmation) (*domain.Payment, error)
}

// PaymentConsumer drains the payment-confirmed queue into the ledger.
type PaymentConsumer struct {
	url       string
	queue     string
	confirmer PaymentConfirmer
	loggerf   func(format string, args ...interface{})
}

func NewPaymentConsumer(url, queue string, confirmer PaymentConfirmer, loggerf func(format string, args ...interface{})) *PaymentConsumer {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &PaymentConsumer{url: url, queue: queue, confirmer: confirmer, loggerf: loggerf}
}

// Run keeps a consumer attached until ctx is cancelled, redialling with
// exponential backoff capped at 30s.
func (c *PaymentConsumer) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.loggerf("level=warn msg=payment_consumer_dial_failed retry_in=%s err=%v", backoff, err)
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.loggerf("level=warn msg=payment_consumer_reconnecting err=%v", err)
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func (c *PaymentConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		c.loggerf("level=warn msg=payment_consumer_qos_failed err=%v", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.loggerf("level=info msg=payment_consumer_started queue=%s", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			requeue, err := c.handleMessage(ctx, d.Body)
			if err != nil {
				c.loggerf("level=error msg=payment_confirmation_rejected requeue=%t err=%v", requeue, err)
				_ = d.Nack(false, requeue && !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handleMessage applies one confirmation. requeue reports whether a retry could
// succeed; malformed or semantically invalid messages are dropped.
func (c *PaymentConsumer) handleMessage(ctx context.Context, body []byte) (requeue bool, err error) {
	var ev ledger.PaymentConfirmation
	if err := json.Unmarshal(body, &ev); err != nil {
		return false, fmt.Errorf("unmarshal: %w", err)
	}

	p, err := c.confirmer.ConfirmPayment(ctx, ev)
	if err != nil {
		permanent := errors.Is(err, domain.ErrValidation) ||
			errors.Is(err, domain.ErrNotFound) ||
			errors.Is(err, domain.ErrInvalidState)
		return !permanent, fmt.Errorf("confirm payment for request %s: %w", ev.RequestID, err)
	}
	if p != nil {
		c.loggerf("level=info msg=payment_confirmed request_id=%s payment_id=%s external_id=%s", ev.RequestID, p.ID, ev.ExternalID)
	}
	return false, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
