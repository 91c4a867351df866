// Package events は注文イベントをブローカーへ送る。
package events

import (
	"context"
	"encoding/json"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/event"

	"go.uber.org/zap"
)

// 送信先ごとの実装
type Publisher interface {
	Publish(ctx context.Context, e event.Event) error
	Close() error
}

// 設定に合わせて Publisher を作る
func New(cfg config.Config, logger *zap.Logger) (Publisher, error) {
	switch cfg.EventBroker {
	case config.BrokerKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case config.BrokerRabbitMQ:
		return NewRabbitMQPublisher(cfg.RabbitMQURI, cfg.RabbitMQQueue)
	default:
		return NewLogPublisher(logger), nil
	}
}

func encode(e event.Event) ([]byte, error) {
	return json.Marshal(event.Wrap(e, time.Now().UTC()))
}

// ブローカー無しのときはログに出すだけ
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e event.Event) error {
	p.logger.Debug("event", zap.String("type", e.Type()), zap.String("key", e.Key()))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
