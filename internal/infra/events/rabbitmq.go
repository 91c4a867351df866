package events

import (
	"context"
	"fmt"
	"io"

	"storefront/internal/domain/event"
	"storefront/internal/tracing"

	amqp "github.com/rabbitmq/amqp091-go"
)

// *amqp.Channel のうち使う分（テストで差し替える）
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitMQPublisher struct {
	conn  io.Closer
	ch    amqpChannel
	queue string
}

// 接続してキューを宣言する（durable）
func NewRabbitMQPublisher(uri, queue string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	return &RabbitMQPublisher{conn: conn, ch: ch, queue: q.Name}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, e event.Event) error {
	body, err := encode(e)
	if err != nil {
		return err
	}

	headers := amqp.Table{"type": e.Type()}
	for k, v := range tracing.InjectMap(ctx) {
		headers[k] = v
	}

	return p.ch.PublishWithContext(ctx,
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.Key(),
			Headers:      headers,
			Body:         body,
		},
	)
}

func (p *RabbitMQPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
