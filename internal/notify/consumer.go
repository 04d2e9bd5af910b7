package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eventhon/eventhon/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const consumerPrefetch = 8

// Consumer drains queued mail into a Sender.
type Consumer struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	sender Sender
	logger *logrus.Logger
}

func NewConsumer(cfg *config.AMQPConfig, sender Sender, logger *logrus.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	closeAll := func() {
		_ = ch.Close()
		_ = conn.Close()
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		closeAll()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		closeAll()
		return nil, fmt.Errorf("bind %s: %w", cfg.RoutingKey, err)
	}
	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		closeAll()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &Consumer{conn: conn, ch: ch, queue: q.Name, sender: sender, logger: logger}, nil
}

// Run consumes until ctx is cancelled or the channel is closed.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return c.drain(ctx, deliveries)
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks delivered mail, drops malformed messages and requeues a failed
// send once.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.To == "" {
		c.logger.WithError(err).Warn("Dropping malformed email message")
		_ = d.Nack(false, false)
		return
	}

	if err := c.sender.Send(ctx, msg.To, msg.Subject, msg.Body); err != nil {
		requeue := !d.Redelivered
		c.logger.WithError(err).WithFields(logrus.Fields{
			"to":      msg.To,
			"requeue": requeue,
		}).Error("Failed to deliver queued email")
		_ = d.Nack(false, requeue)
		return
	}

	_ = d.Ack(false)
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
