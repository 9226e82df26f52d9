// Package event publishes session lifecycle events to a RabbitMQ topic
// exchange. Routing keys are the event types (session.started, ...).
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/mind-engage/mindengage-prep/internal/assessment"
)

// channel is the part of *amqp091.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

type Publisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	ch       channel
	exchange string
	enabled  bool
}

// NewPublisher dials uri and declares a durable topic exchange. An empty
// uri yields a disabled publisher that drops events.
func NewPublisher(uri, exchange string) (*Publisher, error) {
	if uri == "" {
		log.Warn().Msg("RabbitMQ URI is empty, event publishing is disabled")
		return &Publisher{enabled: false}, nil
	}
	conn, err := amqp091.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange, enabled: true}, nil
}

func newWithChannel(ch channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, enabled: true}
}

// Emit implements assessment.EventSink.
func (p *Publisher) Emit(ctx context.Context, ev assessment.Event) error {
	if !p.enabled {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(pubCtx, p.exchange, ev.Type, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    fmt.Sprintf("%s:%s:%d", ev.SessionID, ev.Type, ev.At.UnixMilli()),
		Timestamp:    ev.At,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	log.Debug().Str("routing_key", ev.Type).Str("session_id", ev.SessionID).Msg("event published")
	return nil
}

func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
