package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange events are published to. The event
// type is used as the routing key.
const DefaultExchange = "taskmart.events"

// RabbitMQ publishes events to a durable topic exchange.
type RabbitMQ struct {
	log      *slog.Logger
	exchange string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

type RabbitMQOption func(p *RabbitMQ)

func WithRabbitMQLogger(logger *slog.Logger) RabbitMQOption {
	return func(p *RabbitMQ) {
		p.log = logger
	}
}

func WithExchange(exchange string) RabbitMQOption {
	return func(p *RabbitMQ) {
		p.exchange = exchange
	}
}

func NewRabbitMQ(amqpURL string, opts ...RabbitMQOption) (*RabbitMQ, error) {
	p := &RabbitMQ{
		log:      slog.Default(),
		exchange: DefaultExchange,
	}

	for _, opt := range opts {
		opt(p)
	}

	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("sanitizeAMQPURL: %w", err)
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("amqp.DialConfig: %w", err)
	}

	p.conn = conn

	if err := p.openChannel(); err != nil {
		conn.Close()

		return nil, err
	}

	return p, nil
}

func (p *RabbitMQ) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("conn.Channel: %w", err)
	}

	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()

		return fmt.Errorf("ch.ExchangeDeclare: %w", err)
	}

	p.channel = ch

	return nil
}

func (p *RabbitMQ) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.OccurredAt,
		Type:         event.Type.String(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, event.Type.String(), false, false, msg)
	if err == nil {
		return nil
	}

	p.log.Warn("publish failed; reopening channel",
		slog.String("exchange", p.exchange), slog.String("routing_key", event.Type.String()),
		slog.String("error", err.Error()))

	// One retry on a fresh channel.
	if chErr := p.openChannel(); chErr != nil {
		return errors.Join(err, chErr)
	}

	if err := p.channel.PublishWithContext(ctx, p.exchange, event.Type.String(), false, false, msg); err != nil {
		return fmt.Errorf("channel.PublishWithContext: %w", err)
	}

	return nil
}

func (p *RabbitMQ) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error

	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}

	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}

	return errors.Join(errs...)
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")

	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("url.Parse: %w", err)
	}

	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}

	return clean, nil
}
