package repository

import (
	"context"
	"fmt"
	"time"

	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	tx *gorm.DB
}

func (r *txReposGorm) Carts() repo.CartRepository           { return NewCartGormRepository(r.tx) }
func (r *txReposGorm) Products() repo.ProductRepository     { return NewProductGormRepository(r.tx) }
func (r *txReposGorm) Categories() repo.CategoryRepository  { return NewCategoryGormRepository(r.tx) }
func (r *txReposGorm) Inventory() repo.InventoryRepository  { return NewInventoryGormRepository(r.tx) }
func (r *txReposGorm) Orders() repo.OrderRepository         { return NewOrderGormRepository(r.tx) }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository { return NewOrderItemGormRepository(r.tx) }
func (r *txReposGorm) Payments() repo.PaymentRepository     { return NewPaymentGormRepository(r.tx) }
func (r *txReposGorm) Addresses() repo.AddressRepository    { return NewAddressGormRepository(r.tx) }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository   { return NewAuditLogGormRepository(r.tx) }
func (r *txReposGorm) Users() repo.UserRepository           { return NewUserGormRepository(r.tx) }

type TxManagerGorm struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// lockTimeoutが0以下ならロック待ちはPostgresの設定のまま
func NewTxManagerGorm(db *gorm.DB, lockTimeout time.Duration) *TxManagerGorm {
	return &TxManagerGorm{db: db, lockTimeout: lockTimeout}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	err := tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//行ロックを待ちすぎない（超えたら55P03→ErrLocked）
		if tm.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", tm.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}

		//repoはtxを持ったDBで作り直す
		return fn(&txReposGorm{tx: tx})
	})
	return translate(err)
}
