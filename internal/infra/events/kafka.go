package events

import (
	"context"

	"storefront/internal/domain/event"
	"storefront/internal/tracing"

	"github.com/segmentio/kafka-go"
)

// kafka.Writer の差し替え用
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	w     messageWriter
	topic string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		topic: topic,
	}
}

// 同じ注文のイベントは同じパーティションに載る（Key=order-<id>）
func (p *KafkaPublisher) Publish(ctx context.Context, e event.Event) error {
	body, err := encode(e)
	if err != nil {
		return err
	}

	headers := []kafka.Header{{Key: "type", Value: []byte(e.Type())}}
	headers = tracing.InjectKafkaHeaders(ctx, headers)

	return p.w.WriteMessages(ctx, kafka.Message{
		Topic:   p.topic,
		Key:     []byte(e.Key()),
		Value:   body,
		Headers: headers,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
