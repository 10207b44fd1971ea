// Package broker publishes outbox messages to RabbitMQ.
package broker

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/attendify/pos-event-sync/internal/outbox"
)

// channel is the part of *amqp091.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher sends messages to durable direct exchanges. Exchanges are
// declared on first use.
type Publisher struct {
	conn       *amqp091.Connection
	ch         channel
	exchange   string
	routingKey string
	timeout    time.Duration
	log        zerolog.Logger

	// mu guards ch and declared.
	mu       sync.Mutex
	declared map[string]bool
}

// Dial connects to RabbitMQ and declares the default exchange.
func Dial(url, exchange, routingKey string, log zerolog.Logger) (*Publisher, error) {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	conn, err := amqp091.DialConfig(url, amqp091.Config{
		Dial: func(network, addr string) (net.Conn, error) {
			return dialer.DialContext(context.Background(), network, addr)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		if cerr := conn.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("close connection after channel error")
		}
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	p := newPublisher(ch, exchange, routingKey, log)
	p.conn = conn

	p.mu.Lock()
	err = p.declare(exchange)
	p.mu.Unlock()
	if err != nil {
		if cerr := p.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("close connection after exchange declaration error")
		}
		return nil, err
	}

	log.Info().Str("exchange", exchange).Msg("connected to RabbitMQ")
	return p, nil
}

func newPublisher(ch channel, exchange, routingKey string, log zerolog.Logger) *Publisher {
	return &Publisher{
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		timeout:    5 * time.Second,
		log:        log,
		declared:   make(map[string]bool),
	}
}

// declare must be called with mu held.
func (p *Publisher) declare(exchange string) error {
	if p.declared[exchange] {
		return nil
	}
	err := p.ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	p.declared[exchange] = true
	return nil
}

// Bind declares a durable queue and binds it to exchange for each key.
func (p *Publisher) Bind(queue, exchange string, keys ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.declare(exchange); err != nil {
		return err
	}
	if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	for _, key := range keys {
		if err := p.ch.QueueBind(queue, key, exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s to %s/%s: %w", queue, exchange, key, err)
		}
	}
	p.log.Info().Str("queue", queue).Str("exchange", exchange).Strs("routing_keys", keys).Msg("queue bound")
	return nil
}

// Publish sends body as a persistent message to the default exchange.
func (p *Publisher) Publish(ctx context.Context, messageID, contentType string, body []byte) error {
	return p.PublishTo(ctx, p.exchange, p.routingKey, messageID, contentType, body)
}

// PublishTo sends body as a persistent message to exchange with key.
func (p *Publisher) PublishTo(ctx context.Context, exchange, key, messageID, contentType string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.declare(exchange); err != nil {
		return err
	}
	err := p.ch.PublishWithContext(
		ctx,
		exchange, // exchange
		key,      // routing key
		false,    // mandatory
		false,    // immediate
		amqp091.Publishing{
			ContentType:  contentType,
			DeliveryMode: amqp091.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.log.Debug().Str("exchange", exchange).Str("routing_key", key).Str("message_id", messageID).Msg("published message")
	return nil
}

// Handle is an outbox.Handler that publishes the message body to the
// message's target, falling back to the default exchange and key.
func (p *Publisher) Handle(ctx context.Context, m *outbox.Message) error {
	exchange, key := p.exchange, p.routingKey
	if m.Exchange != "" {
		exchange = m.Exchange
	}
	if m.RoutingKey != "" {
		key = m.RoutingKey
	}
	return p.PublishTo(ctx, exchange, key, m.ID, m.ContentType, m.Body)
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	var firstErr error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
