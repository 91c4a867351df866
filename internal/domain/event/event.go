// Package event は注文まわりのドメインイベント。
// コミット後にブローカー（Kafka / RabbitMQ）へ流す。
package event

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeOrderPlaced        = "order.placed"
	TypeOrderStatusChanged = "order.status_changed"
)

// 発行できるイベント
type Event interface {
	// イベント種別
	Type() string
	// パーティションキー（同じ注文は同じ順序で届く）
	Key() string
}

type OrderPlacedItem struct {
	ProductID    int64           `json:"product_id"`
	Quantity     int64           `json:"quantity"`
	SpecialPrice decimal.Decimal `json:"special_price"`
}

type OrderPlaced struct {
	OrderID     int64             `json:"order_id"`
	UserID      int64             `json:"user_id"`
	Email       string            `json:"email"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Items       []OrderPlacedItem `json:"items"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

func (e OrderPlaced) Type() string { return TypeOrderPlaced }
func (e OrderPlaced) Key() string  { return orderKey(e.OrderID) }

type OrderStatusChanged struct {
	OrderID     int64     `json:"order_id"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	ActorUserID int64     `json:"actor_user_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (e OrderStatusChanged) Type() string { return TypeOrderStatusChanged }
func (e OrderStatusChanged) Key() string  { return orderKey(e.OrderID) }

// ブローカーに載せる形
type Envelope struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    Event     `json:"payload"`
}

func Wrap(e Event, now time.Time) Envelope {
	return Envelope{Type: e.Type(), Key: e.Key(), OccurredAt: now, Payload: e}
}

func orderKey(orderID int64) string {
	return "order-" + strconv.FormatInt(orderID, 10)
}
