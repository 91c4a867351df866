package model

import "time"

// 配送先住所
type Address struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index" json:"user_id"`

	//宛名
	RecipientName string `gorm:"type:varchar(255);not null" json:"recipient_name"`

	//番地など
	Street string `gorm:"type:varchar(255);not null" json:"street"`

	//建物名など
	BuildingName string `gorm:"type:varchar(255)" json:"building_name"`

	City    string `gorm:"type:varchar(255);not null" json:"city"`
	State   string `gorm:"type:varchar(100);not null" json:"state"`
	Country string `gorm:"type:varchar(100);not null" json:"country"`

	//郵便番号
	PostalCode string `gorm:"type:varchar(20);not null" json:"postal_code"`

	//電話番号
	Phone string `gorm:"type:varchar(30)" json:"phone"`

	//このユーザーのデフォルト住所か
	IsDefault bool `gorm:"not null;default:false" json:"is_default"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
