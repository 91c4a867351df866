package model

import "time"

// 決済記録。注文と1対1で、注文と同じトランザクションで作る
type Payment struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentMethod     string    `gorm:"type:varchar(50);not null" json:"payment_method"`
	PgPaymentID       string    `gorm:"type:varchar(255)" json:"pg_payment_id"`
	PgStatus          string    `gorm:"type:varchar(50)" json:"pg_status"`
	PgResponseMessage string    `gorm:"type:text" json:"pg_response_message"`
	PgName            string    `gorm:"type:varchar(100)" json:"pg_name"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
