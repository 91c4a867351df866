package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 住所(Address)を保存・取得する窓口
type AddressRepository interface {
	//作成後はaddress（IDなどが埋まったもの）を返す
	Create(ctx context.Context, address model.Address) (model.Address, error)

	ListByUserID(ctx context.Context, userID int64) ([]model.Address, error)

	// 本人の住所だけ返す。他人の住所は ErrNotFound
	FindByIDForUser(ctx context.Context, addressID, userID int64) (model.Address, error)

	Update(ctx context.Context, address model.Address) error

	Delete(ctx context.Context, addressID int64) error

	//デフォルト住所の切り替え
	SetDefault(ctx context.Context, userID, addressID int64) error
}
