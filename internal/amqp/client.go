package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"

	"profitcalc/internal/resilience"
)

const (
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
	// maxFailures consecutive publish failures open the breaker for openTimeout.
	maxFailures = 5
	openTimeout = 30 * time.Second
)

var errMissingMonth = errors.New("message has no month")

type dialFunc func(url string) (*amqp091.Connection, error)

type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *slog.Logger
	dial         dialFunc
	breaker      *gobreaker.CircuitBreaker

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func newClient(url, exchangeName, queueName string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger,
		dial:         amqp091.Dial,
		breaker: resilience.NewCircuitBreaker(resilience.BreakerSettings{
			Name:                "amqp-publish",
			ConsecutiveFailures: maxFailures,
			OpenTimeout:         openTimeout,
			Logger:              logger,
		}),
	}
}

// NewClient dials the broker and declares the exchange, queue and binding.
func NewClient(url, exchangeName, queueName string, logger *slog.Logger) (*Client, error) {
	c := newClient(url, exchangeName, queueName, logger)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connectLocked() error {
	conn, err := c.dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn, c.channel = conn, channel
	if err := c.setup(); err != nil {
		c.closeLocked()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// routing key is the queue name
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// ensureChannelLocked reconnects when the channel or connection went away.
func (c *Client) ensureChannelLocked() error {
	if c.channel != nil && !c.channel.IsClosed() && c.conn != nil && !c.conn.IsClosed() {
		return nil
	}
	c.closeLocked()
	return c.connectLocked()
}

// PublishReportSync publishes a persistent sync message for month.
// Publishing goes through a circuit breaker; a broken connection is
// re-dialled once before the attempt counts as failed.
func (c *Client) PublishReportSync(ctx context.Context, month, batchID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := NewReportSyncMessage(month, batchID).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.publish(ctx, body)
	})
	if err != nil {
		return fmt.Errorf("publish report sync: %w", err)
	}

	c.logger.InfoContext(ctx, "Published report sync message",
		"month", month,
		"batch_id", batchID,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.publishLocked(ctx, body)
	if err != nil && isConnectionError(err) {
		c.logger.WarnContext(ctx, "AMQP connection lost, reconnecting", "error", err)
		c.closeLocked()
		err = c.publishLocked(ctx, body)
	}
	return err
}

func (c *Client) publishLocked(ctx context.Context, body []byte) error {
	if err := c.ensureChannelLocked(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// ReportSyncHandler processes one decoded message.
type ReportSyncHandler func(ctx context.Context, msg *ReportSyncMessage) error

// ConsumeReportSync consumes sync messages until ctx is cancelled. Lost
// connections are re-established with exponential backoff.
func (c *Client) ConsumeReportSync(ctx context.Context, handler ReportSyncHandler) error {
	attempt := 0
	for {
		err := c.consumeOnce(ctx, handler, func() { attempt = 0 })
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) && !errors.Is(err, errDeliveriesClosed) {
			return err
		}

		wait := exponentialBackoff(attempt)
		attempt++
		c.logger.WarnContext(ctx, "AMQP consumer disconnected, retrying",
			"error", err, "attempt", attempt, "backoff", wait)
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

var errDeliveriesClosed = errors.New("message channel closed")

func (c *Client) consumeOnce(ctx context.Context, handler ReportSyncHandler, connected func()) error {
	c.mu.Lock()
	if err := c.ensureChannelLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	connected()

	c.logger.InfoContext(ctx, "Started consuming report sync messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

// handleDelivery acks on success, drops undecodable messages and requeues
// messages whose handler failed.
func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler ReportSyncHandler) {
	msg, err := ReportSyncMessageFromJSON(delivery.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
		delivery.Nack(false, false)
		return
	}

	c.logger.InfoContext(ctx, "Processing report sync message", "month", msg.Month, "batch_id", msg.BatchID)

	if err := handler(ctx, msg); err != nil {
		c.logger.ErrorContext(ctx, "Failed to handle message",
			"error", err,
			"month", msg.Month,
			"batch_id", msg.BatchID)
		delivery.Nack(false, true)
		return
	}

	delivery.Ack(false)
	c.logger.InfoContext(ctx, "Successfully processed report sync message", "month", msg.Month)
}

// exponentialBackoff doubles from 1s and caps at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << uint(attempt)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused",
		"connection closed",
		"connection reset",
		"channel/connection is not open",
		"eof",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}
