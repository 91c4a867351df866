package repository

import (
	"context"

	"storefront/internal/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// SELECT ... FOR UPDATE で読んでから書く（差分がずれない）
func (r *InventoryGormRepository) SetStock(ctx context.Context, productID int64, newStock int64) (int64, error) {
	var p model.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "stock").
		First(&p, productID).Error
	if err != nil {
		return 0, translate(err)
	}

	if p.Stock == newStock {
		return p.Stock, nil
	}
	if err := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID).
		Update("stock", newStock).Error; err != nil {
		return 0, translate(err)
	}
	return p.Stock, nil
}

func (r *InventoryGormRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	return translate(r.db.WithContext(ctx).Create(&adj).Error)
}

func (r *InventoryGormRepository) ListAdjustments(ctx context.Context, productID int64, limit int) ([]model.InventoryAdjustment, error) {
	var out []model.InventoryAdjustment
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}
