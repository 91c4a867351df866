package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type CategoryRepository interface {
	List(ctx context.Context, page, limit int) ([]model.Category, int64, error)
	FindByID(ctx context.Context, id int64) (model.Category, error)

	// 名前の重複は ErrDuplicate
	Create(ctx context.Context, c *model.Category) error
	Update(ctx context.Context, c model.Category) error
	Delete(ctx context.Context, id int64) error
}
