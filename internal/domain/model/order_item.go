package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文明細。作成後に再計算しない
type OrderItem struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64  `gorm:"not null;index" json:"order_id"`
	ProductID   int64  `gorm:"not null;index" json:"product_id"`
	ProductName string `gorm:"type:varchar(255);not null" json:"product_name"`
	Quantity    int64  `gorm:"not null" json:"quantity"`

	OrderedProductPrice decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"ordered_product_price"`
	Discount            decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"discount"`
	SpecialPrice        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"special_price"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
