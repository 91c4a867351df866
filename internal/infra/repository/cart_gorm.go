package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// 明細はid順で読む
func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("id asc")
}

// ユーザーのカートを取得し、無ければ作成
func (r *CartGormRepository) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	newCart := model.Cart{
		UserID:     userID,
		TotalPrice: decimal.Zero,
	}

	//user_idのユニーク制約で、同時に作られても1件だけ残る
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Omit(clause.Associations).
		Create(&newCart).Error
	if err != nil {
		return model.Cart{}, translate(err)
	}

	return r.FindByUserID(ctx, userID)
}

func (r *CartGormRepository) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return model.Cart{}, translate(err)
	}
	return cart, nil
}

func (r *CartGormRepository) FindByID(ctx context.Context, cartID int64) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("id = ?", cartID).
		First(&cart).Error
	if err != nil {
		return model.Cart{}, translate(err)
	}
	return cart, nil
}

// cartsの行をFOR UPDATEで押さえてから明細を読む
func (r *CartGormRepository) LockByID(ctx context.Context, cartID int64) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", cartID).
		First(&cart).Error
	if err != nil {
		return model.Cart{}, translate(err)
	}

	items, err := r.listItems(ctx, cartID)
	if err != nil {
		return model.Cart{}, err
	}
	cart.Items = items
	return cart, nil
}

func (r *CartGormRepository) listItems(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	var items []model.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, translate(err)
	}
	return items, nil
}

// 合計と明細を1単位で保存
func (r *CartGormRepository) Save(ctx context.Context, cart *model.Cart) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		keep := make([]int64, 0, len(cart.Items))
		for i := range cart.Items {
			cart.Items[i].CartID = cart.ID
			if cart.Items[i].ID != 0 {
				keep = append(keep, cart.Items[i].ID)
			}
		}

		//カートから消えた明細を削除
		del := tx.Where("cart_id = ?", cart.ID)
		if len(keep) > 0 {
			del = del.Where("id NOT IN ?", keep)
		}
		if err := del.Delete(&model.CartItem{}).Error; err != nil {
			return err
		}

		for i := range cart.Items {
			it := &cart.Items[i]

			//新規明細
			if it.ID == 0 {
				if err := tx.Create(it).Error; err != nil {
					return err
				}
				continue
			}

			//既存明細は数量とスナップショットを更新
			res := tx.Model(&model.CartItem{}).
				Where("id = ? AND cart_id = ?", it.ID, cart.ID).
				Updates(map[string]interface{}{
					"quantity":      it.Quantity,
					"unit_price":    it.UnitPrice,
					"discount":      it.Discount,
					"special_price": it.SpecialPrice,
					"updated_at":    now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return repo.ErrNotFound
			}
		}

		res := tx.Model(&model.Cart{}).
			Where("id = ?", cart.ID).
			Updates(map[string]interface{}{
				"total_price": cart.TotalPrice,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}
		cart.UpdatedAt = now
		return nil
	})
	return translate(err)
}

// 全カート（管理者用）
func (r *CartGormRepository) ListAll(ctx context.Context) ([]model.Cart, error) {
	var carts []model.Cart

	if err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Order("id asc").
		Find(&carts).Error; err != nil {
		return []model.Cart{}, translate(err)
	}
	return carts, nil
}

// その商品を含むカートのID一覧
func (r *CartGormRepository) ListCartIDsByProductID(ctx context.Context, productID int64) ([]int64, error) {
	var ids []int64

	if err := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("product_id = ?", productID).
		Distinct("cart_id").
		Order("cart_id asc").
		Pluck("cart_id", &ids).Error; err != nil {
		return []int64{}, translate(err)
	}
	return ids, nil
}
