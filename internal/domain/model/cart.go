package model

import (
	"time"

	"storefront/internal/domain/pricing"

	"github.com/shopspring/decimal"
)

// 1ユーザーにつきカートは1つ（初回アクセス時に作成）
// TotalPriceは明細から必ず再計算する。
type Cart struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64           `gorm:"not null;uniqueIndex" json:"user_id"`
	TotalPrice decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_price"`
	Items      []CartItem      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt  time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 商品IDで明細を探す
func (c *Cart) Line(productID int64) (*CartItem, bool) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i], true
		}
	}
	return nil, false
}

// 同一商品なら数量加算（スナップショットはそのまま）、無ければ新規明細
func (c *Cart) AddOrIncrement(p Product, qty int64) CartItem {
	defer c.Recalculate()

	if line, ok := c.Line(p.ID); ok {
		line.Quantity += qty
		return *line
	}

	item := CartItem{
		CartID:    c.ID,
		ProductID: p.ID,
		Quantity:  qty,
	}
	item.Snapshot(p)
	c.Items = append(c.Items, item)
	return item
}

// 数量を delta だけ変える。1未満になったら明細ごと消す。
// 戻り値は変更後の数量と、明細が存在したか。
func (c *Cart) AdjustQuantity(productID int64, delta int64) (int64, bool) {
	line, ok := c.Line(productID)
	if !ok {
		return 0, false
	}

	newQty := line.Quantity + delta
	if newQty < 1 {
		c.RemoveLine(productID)
		return newQty, true
	}

	line.Quantity = newQty
	c.Recalculate()
	return newQty, true
}

// 明細を削除（無ければfalse）
func (c *Cart) RemoveLine(productID int64) bool {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.Recalculate()
			return true
		}
	}
	return false
}

// 明細を全部消す
func (c *Cart) ClearLines() {
	c.Items = []CartItem{}
	c.Recalculate()
}

// 商品の現在価格で明細を取り直す（価格変更の反映）
func (c *Cart) Resnapshot(p Product) bool {
	line, ok := c.Line(p.ID)
	if !ok {
		return false
	}
	line.Snapshot(p)
	c.Recalculate()
	return true
}

// TotalPrice = Σ quantity × special_price
func (c *Cart) Recalculate() {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(pricing.LineTotal(it.SpecialPrice, it.Quantity))
	}
	c.TotalPrice = total.Round(pricing.Scale)
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
