package repository

import (
	"context"

	"storefront/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 一覧検索
type ProductListQuery struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string

	CategoryID *int64
}

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	ListPublic(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)
	// FOR SHARE で読む。WithinTxの中でだけ使う
	FindByIDForShare(ctx context.Context, id int64) (model.Product, error)
	// 論理削除済みも含めて取得（注文明細の商品名スナップショット用）
	ListByIDsUnscoped(ctx context.Context, ids []int64) ([]model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) error
	SoftDelete(ctx context.Context, id int64) error

	// 出品者の商品（非公開も含む）
	ListBySeller(ctx context.Context, sellerID int64, page, limit int) ([]model.Product, int64, error)
	// カテゴリを参照している商品数（論理削除済みも外部キーで参照しているので数える）
	CountByCategory(ctx context.Context, categoryID int64) (int64, error)
}
