package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 在庫の増減は必ず調整履歴とセットで残す
type InventoryRepository interface {
	// 商品行をロックして在庫を置き換え、変更前の在庫を返す
	SetStock(ctx context.Context, productID int64, newStock int64) (before int64, err error)

	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error

	// 新しい順
	ListAdjustments(ctx context.Context, productID int64, limit int) ([]model.InventoryAdjustment, error)
}
