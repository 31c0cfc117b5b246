package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// channel is the subset of *amqp.Channel used by the publisher.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes lock events as JSON to a durable topic exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	log      *zap.Logger
}

// DialAMQP connects to the broker at rawURL and declares exchange.
func DialAMQP(rawURL, exchange string, log *zap.Logger) (*AMQPPublisher, error) {
	clean, err := sanitizeAMQPURL(rawURL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp.DialConfig(clean, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	p, err := newAMQPPublisher(ch, exchange, log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch channel, exchange string, log *zap.Logger) (*AMQPPublisher, error) {
	if exchange == "" {
		return nil, errors.New("amqp: empty exchange name")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("amqp declare exchange %q: %w", exchange, err)
	}
	return &AMQPPublisher{ch: ch, exchange: exchange, log: log}, nil
}

// PublishLocked sends ev with routing key RoutingKeyLocked.
func (p *AMQPPublisher) PublishLocked(ctx context.Context, ev LockEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, RoutingKeyLocked, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	p.log.Debug("published lock event", zap.String("exchange", p.exchange), zap.String("user_id", ev.UserID))
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// sanitizeAMQPURL trims quotes and whitespace and checks the scheme.
func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}
