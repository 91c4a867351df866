package repository

import "context"

type CartItemRepository interface {
	// 商品→カートの逆引き（価格変更・商品削除の反映先）
	ListCartIDsByProductID(ctx context.Context, productID int64) ([]int64, error)
}
