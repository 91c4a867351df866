package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// カートの明細
// 価格は追加（または価格変更の同期）時点のスナップショット。
type CartItem struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID    int64 `gorm:"not null;uniqueIndex:idx_cart_items_cart_product" json:"cart_id"`
	ProductID int64 `gorm:"not null;uniqueIndex:idx_cart_items_cart_product;index" json:"product_id"`
	Quantity  int64 `gorm:"not null" json:"quantity"`

	UnitPrice    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	Discount     decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"discount"`
	SpecialPrice decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"special_price"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 商品の現在価格をスナップショットとして写す
func (i *CartItem) Snapshot(p Product) {
	i.UnitPrice = p.Price
	i.Discount = p.Discount
	i.SpecialPrice = p.SpecialPrice
}

// スナップショットが商品の現在価格と一致するか
func (i CartItem) SnapshotMatches(p Product) bool {
	return i.UnitPrice.Equal(p.Price) &&
		i.Discount.Equal(p.Discount) &&
		i.SpecialPrice.Equal(p.SpecialPrice)
}
