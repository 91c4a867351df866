package model

type OrderStatus string

const (
	OrderStatusAccepted   OrderStatus = "Order Accepted"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

// 許可する遷移
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusAccepted:   {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// 既知のステータスか
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusAccepted, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// これ以上変更できない
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// s から next へ変えてよいか（同じステータスは呼び出し側で no-op 扱い）
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, to := range orderTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}
