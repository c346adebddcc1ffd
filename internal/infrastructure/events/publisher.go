package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"habinest-backend/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Publisher ships committed listing events to other systems. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, ev domain.ListingEvent) error
	Close() error
}

// Nop discards events. Used when AMQP_URL is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, domain.ListingEvent) error { return nil }
func (Nop) Close() error                                       { return nil }

// AMQP publishes events as persistent JSON messages on a durable queue via the default exchange.
// The connection is opened lazily and reopened after a failure.
type AMQP struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQP(url, queue string) *AMQP {
	return &AMQP{url: url, queue: queue}
}

func (p *AMQP) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQP) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *AMQP) Publish(ctx context.Context, ev domain.ListingEvent) error {
	msg, err := Encode(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.reset()
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (p *AMQP) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// Encode builds the wire message for ev.
func Encode(ev domain.ListingEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	ts := ev.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID.String(),
		Type:         ev.EventType,
		Timestamp:    ts.UTC(),
		Body:         body,
	}, nil
}

// PublishAll sends events in order and logs failures without returning them.
func PublishAll(ctx context.Context, p Publisher, evs ...domain.ListingEvent) {
	if p == nil {
		return
	}
	for _, ev := range evs {
		if err := p.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).
				Str("event_id", ev.EventID.String()).
				Str("event_type", ev.EventType).
				Msg("event publish failed")
		}
	}
}
