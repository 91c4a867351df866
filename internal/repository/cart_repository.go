package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// カート本体（明細込み）の保存・取得
type CartRepository interface {
	// 無ければ作る。同時に呼ばれても1ユーザー1カートに収束する
	GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindByID(ctx context.Context, cartID int64) (model.Cart, error)
	FindByUserID(ctx context.Context, userID int64) (model.Cart, error)

	// 行ロック（FOR UPDATE）を取ってから明細込みで読む。WithinTxの中でだけ使う
	LockByID(ctx context.Context, cartID int64) (model.Cart, error)

	// 合計と明細一式をまとめて保存（消えた明細は削除、新しい明細は作成）
	Save(ctx context.Context, cart *model.Cart) error

	// 管理者用
	ListAll(ctx context.Context) ([]model.Cart, error)
}
