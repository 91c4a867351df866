package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文は確定後 Status 以外を変更しない
type Order struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"not null;index;uniqueIndex:idx_orders_user_idem" json:"user_id"`
	Email     string    `gorm:"type:varchar(255);not null" json:"email"`
	OrderDate time.Time `gorm:"not null" json:"order_date"`

	TotalAmount decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_amount"`
	Status      OrderStatus     `gorm:"type:varchar(30);not null;index" json:"status"`

	AddressID int64    `gorm:"not null" json:"address_id"`
	PaymentID int64    `gorm:"not null;uniqueIndex" json:"payment_id"`
	Payment   *Payment `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`

	//同じキーでの再送は同じ注文を返す（ユーザー単位で一意）
	IdempotencyKey string `gorm:"type:varchar(255);not null;uniqueIndex:idx_orders_user_idem" json:"-"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
