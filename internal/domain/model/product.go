package model

import (
	"time"

	"storefront/internal/domain/pricing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	//定価
	Price decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"price"`
	//割引率（%）
	Discount decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"discount"`
	//割引後価格。Price/Discountから導出するので直接書き換えない
	SpecialPrice decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"special_price"`

	Stock      int64  `gorm:"not null" json:"stock"`
	CategoryID *int64 `gorm:"index" json:"category_id,omitempty"`
	SellerID   *int64 `gorm:"index" json:"seller_id,omitempty"`
	IsActive   bool   `gorm:"not null;default:false" json:"is_active"`

	//外部キー制約のためだけに持つ（読み込みはしない）
	Category *Category `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`

	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// 割引後価格を再計算
func (p *Product) ApplyPricing() {
	p.SpecialPrice = pricing.SpecialPrice(p.Price, p.Discount)
}

// 価格か割引率が変わったか
func (p Product) PricingChanged(other Product) bool {
	return !p.Price.Equal(other.Price) || !p.Discount.Equal(other.Discount)
}
