// Package amqp publishes and consumes transaction mirror messages over RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

var errDeliveriesClosed = errors.New("message channel closed")

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex // guards conn and channel
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	breakerMu    sync.Mutex
	lastFailure  time.Time
}

// NewClient connects to the broker and declares the exchange, queue and binding.
func NewClient(url, exchangeName, queueName string) (*Client, error) {
	c := &Client{url: url, exchangeName: exchangeName, queueName: queueName}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := setup(ch, c.exchangeName, c.queueName); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	c.conn, c.channel = conn, ch
	return nil
}

func setup(ch *amqp091.Channel, exchange, queue string) error {
	// name, kind, durable, autoDelete, internal, noWait, args
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	// name, durable, autoDelete, exclusive, noWait, args
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// routing key is the queue name
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// openChannel returns a usable channel, reconnecting when the previous one closed.
func (c *Client) openChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil && !c.channel.IsClosed() && c.conn != nil && !c.conn.IsClosed() {
		return c.channel, nil
	}
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	return c.channel, nil
}

// PublishTransactionSync announces that version of transaction id needs mirroring.
func (c *Client) PublishTransactionSync(ctx context.Context, id string, version int64) error {
	body, err := NewTransactionSyncMessage(id, version).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, MessageTypeSync, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published transaction sync message",
		"id", id,
		"version", version,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishTransactionDelete announces that transaction id was deleted.
func (c *Client) PublishTransactionDelete(ctx context.Context, id, owner string) error {
	body, err := NewTransactionDeleteMessage(id, owner).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, MessageTypeDelete, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published transaction delete message",
		"id", id,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

func (c *Client) publish(ctx context.Context, msgType string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", msgType, ErrCircuitOpen)
	}

	ch, err := c.openChannel()
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish %s: %w", msgType, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Type:         msgType,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.mu.Lock()
			c.closeLocked()
			c.mu.Unlock()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// Handlers receive decoded messages. A nil handler acks and drops its message type.
type Handlers struct {
	Sync   func(ctx context.Context, msg *TransactionSyncMessage) error
	Delete func(ctx context.Context, msg *TransactionDeleteMessage) error
}

// Consume processes messages until ctx is done, reconnecting with exponential
// backoff when the broker connection drops.
func (c *Client) Consume(ctx context.Context, h Handlers) error {
	attempt := 0
	for {
		err := c.consumeOnce(ctx, h, func() { attempt = 0 })
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, errDeliveriesClosed) && !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "AMQP connection lost, reconnecting",
			"error", err,
			"attempt", attempt,
			"backoff", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		c.mu.Lock()
		c.closeLocked()
		c.mu.Unlock()
	}
}

func (c *Client) consumeOnce(ctx context.Context, h Handlers, connected func()) error {
	ch, err := c.openChannel()
	if err != nil {
		return err
	}
	// one unacked message at a time keeps mirror writes ordered
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	// queue, consumer, autoAck, exclusive, noLocal, noWait, args
	msgs, err := ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	connected()
	slog.InfoContext(ctx, "Started consuming transaction messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}
			dispatch(ctx, d, h)
		}
	}
}

// dispatch decodes d, runs the matching handler and acks or nacks it.
// Failed messages are requeued once; a second failure drops them and leaves
// recovery to the reconciliation pass.
func dispatch(ctx context.Context, d amqp091.Delivery, h Handlers) {
	var err error
	switch d.Type {
	case MessageTypeDelete:
		msg, decErr := TransactionDeleteMessageFromJSON(d.Body)
		if decErr != nil {
			reject(ctx, d, decErr)
			return
		}
		if h.Delete != nil {
			err = h.Delete(ctx, msg)
		}
	case MessageTypeSync, "":
		msg, decErr := TransactionSyncMessageFromJSON(d.Body)
		if decErr != nil {
			reject(ctx, d, decErr)
			return
		}
		if h.Sync != nil {
			err = h.Sync(ctx, msg)
		}
	default:
		reject(ctx, d, fmt.Errorf("unknown message type %q", d.Type))
		return
	}

	if err != nil {
		requeue := !d.Redelivered
		slog.ErrorContext(ctx, "Failed to handle message",
			"error", err,
			"type", d.Type,
			"requeue", requeue)
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}

func reject(ctx context.Context, d amqp091.Delivery, err error) {
	slog.ErrorContext(ctx, "Failed to decode message", "error", err, "type", d.Type)
	_ = d.Nack(false, false)
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Close shuts the channel and connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}
