package queue

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"servicehub/internal/domain"
)

const (
	publishBuffer  = 256
	publishTimeout = 5 * time.Second
	dialTimeout    = 3 * time.Second
	maxRedialDelay = 30 * time.Second
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends lifecycle events to a durable topic exchange. Publish only
// enqueues; Run owns the broker connection and drains the queue. While the
// broker is down events are dropped and logged, and redials back off up to 30s.
type Publisher struct {
	url      string
	exchange string
	loggerf  func(format string, args ...interface{})

	events chan domain.RequestEvent

	// owned by Run
	conn       *amqp.Connection
	channel    amqpChannel
	dial       func() (amqpChannel, error)
	now        func() time.Time
	redialAt   time.Time
	redialWait time.Duration
}

func NewPublisher(url, exchange string, loggerf func(format string, args ...interface{})) *Publisher {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	p := &Publisher{
		url:      url,
		exchange: exchange,
		loggerf:  loggerf,
		events:   make(chan domain.RequestEvent, publishBuffer),
		now:      time.Now,
	}
	p.dial = p.dialBroker
	return p
}

func (p *Publisher) dialBroker() (amqpChannel, error) {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("exchange declare: %w", err)
	}
	p.conn = conn
	return ch, nil
}

// Publish queues the event without blocking. A full queue drops the event.
func (p *Publisher) Publish(_ context.Context, ev domain.RequestEvent) {
	select {
	case p.events <- ev:
	default:
		p.loggerf("level=warn msg=event_dropped reason=queue_full request_id=%s type=%s", ev.RequestID, ev.Type)
	}
}

// Run publishes queued events until ctx is cancelled, then flushes what is
// already queued and closes the connection.
func (p *Publisher) Run(ctx context.Context) {
	defer p.reset()
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case ev := <-p.events:
			p.send(ctx, ev)
		}
	}
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	for {
		select {
		case ev := <-p.events:
			p.send(ctx, ev)
		default:
			return
		}
	}
}

func (p *Publisher) send(ctx context.Context, ev domain.RequestEvent) {
	msg, err := encode(ev)
	if err != nil {
		p.loggerf("level=error msg=event_encode_failed request_id=%s err=%v", ev.RequestID, err)
		return
	}

	if p.channel == nil {
		if p.now().Before(p.redialAt) {
			p.loggerf("level=warn msg=event_dropped reason=broker_unavailable request_id=%s type=%s", ev.RequestID, ev.Type)
			return
		}
		ch, err := p.dial()
		if err != nil {
			p.backoff()
			p.loggerf("level=error msg=event_publish_failed request_id=%s type=%s retry_in=%s err=%v", ev.RequestID, ev.Type, p.redialWait, err)
			return
		}
		p.channel = ch
		p.redialWait = 0
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.channel.PublishWithContext(pubCtx, p.exchange, ev.Type, false, false, msg); err != nil {
		p.loggerf("level=error msg=event_publish_failed request_id=%s type=%s err=%v", ev.RequestID, ev.Type, err)
		p.reset()
	}
}

func (p *Publisher) backoff() {
	switch {
	case p.redialWait == 0:
		p.redialWait = time.Second
	case p.redialWait < maxRedialDelay:
		p.redialWait *= 2
		if p.redialWait > maxRedialDelay {
			p.redialWait = maxRedialDelay
		}
	}
	p.redialAt = p.now().Add(p.redialWait)
}

func (p *Publisher) reset() {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
