package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/eventhon/eventhon/internal/config"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type confirmPublisher interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
}

// AMQPSender queues mail on a topic exchange for cmd/mailer to deliver. Send
// returns once the broker has confirmed the publish. Publishes are mandatory,
// so mail the broker cannot route to a queue fails instead of being dropped.
type AMQPSender struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	publisher  confirmPublisher
	returns    <-chan amqp.Return
	exchange   string
	routingKey string
	logger     *logrus.Logger

	// mu serialises publishes so a return seen after a confirm belongs to
	// the message just sent.
	mu sync.Mutex
}

func NewAMQPSender(cfg *config.AMQPConfig, logger *logrus.Logger) (*AMQPSender, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("bind %s: %w", cfg.RoutingKey, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	// The broker sends basic.return before the ack of the same publish, so a
	// one-slot buffer holds it until Send looks.
	returns := ch.NotifyReturn(make(chan amqp.Return, 1))

	return &AMQPSender{
		conn:       conn,
		ch:         ch,
		publisher:  ch,
		returns:    returns,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

func (s *AMQPSender) Send(ctx context.Context, to, subject, body string) error {
	b, err := json.Marshal(Message{To: to, Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	confirm, err := s.publisher.PublishWithDeferredConfirmWithContext(ctx, s.exchange, s.routingKey, true, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Body:         b,
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to publish email")
		return fmt.Errorf("failed to publish email: %w", err)
	}

	if confirm != nil {
		acked, err := confirm.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("failed waiting for publish confirm: %w", err)
		}
		if !acked {
			return errors.New("broker rejected email message")
		}
	}

	return s.checkReturned(id)
}

// checkReturned reports whether the broker handed message id back as
// unroutable. Returns left over from earlier publishes are discarded.
func (s *AMQPSender) checkReturned(id string) error {
	for {
		select {
		case ret, ok := <-s.returns:
			if !ok {
				s.returns = nil
				return nil
			}
			if ret.MessageId != id {
				s.logger.WithField("message_id", ret.MessageId).Warn("Discarding stale returned email message")
				continue
			}
			s.logger.WithFields(logrus.Fields{
				"exchange":    ret.Exchange,
				"routing_key": ret.RoutingKey,
				"reply_code":  ret.ReplyCode,
			}).Error("Email message was not routed to any queue")
			return fmt.Errorf("email message unroutable: %d %s", ret.ReplyCode, ret.ReplyText)
		default:
			return nil
		}
	}
}

func (s *AMQPSender) Close() error {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
