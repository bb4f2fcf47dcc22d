package mq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrPermanent marks a message that can never succeed. Such messages are
// rejected without requeue.
var ErrPermanent = errors.New("permanent message failure")

// HandlerFunc processes one message body.
type HandlerFunc func(ctx context.Context, body []byte) error

// Consumer reads a durable queue bound to a topic exchange, reconnecting with
// backoff when the broker goes away.
type Consumer struct {
	url      string
	exchange string
	queue    string
	keys     []string
	prefetch int
	logger   *zap.Logger
}

func NewConsumer(url, exchange, queue string, keys []string, logger *zap.Logger) *Consumer {
	return &Consumer{
		url:      url,
		exchange: exchange,
		queue:    queue,
		keys:     keys,
		prefetch: 50,
		logger:   logger.Named("mq").With(zap.String("queue", queue)),
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("dial broker failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn, handle)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection, handle HandlerFunc) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.logger.Warn("set QoS failed", zap.Error(err))
	}
	if err := ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(c.queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	for _, rk := range c.keys {
		if err := ch.QueueBind(q.Name, rk, c.exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", rk, err)
		}
	}

	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for d := range msgs {
		c.dispatch(ctx, d, handle)
	}
	return errors.New("deliveries channel closed")
}

// Acknowledger is the part of amqp.Delivery that dispatch needs.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery, handle HandlerFunc) {
	Settle(ctx, c.logger, d.Body, d.Redelivered, d, handle)
}

// Settle runs handle and acknowledges the delivery. Permanent failures are
// dropped. Transient failures are requeued once; a redelivered message that
// fails again is dropped.
func Settle(ctx context.Context, logger *zap.Logger, body []byte, redelivered bool, ack Acknowledger, handle HandlerFunc) {
	err := handle(ctx, body)
	switch {
	case err == nil:
		_ = ack.Ack(false)
	case errors.Is(err, ErrPermanent):
		logger.Warn("dropping malformed message", zap.Error(err))
		_ = ack.Nack(false, false)
	case redelivered:
		logger.Error("dropping message after redelivery", zap.Error(err))
		_ = ack.Nack(false, false)
	default:
		logger.Warn("requeueing message", zap.Error(err))
		_ = ack.Nack(false, true)
	}
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
