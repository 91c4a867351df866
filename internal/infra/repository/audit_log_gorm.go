package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type auditLogGormRepository struct {
	db *gorm.DB
}

func NewAuditLogGormRepository(db *gorm.DB) repo.AuditLogRepository {
	return &auditLogGormRepository{db: db}
}

// 監査対象と同じTxで呼ばれる（r.dbはTx）
func (r *auditLogGormRepository) Create(ctx context.Context, log model.AuditLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	return translate(r.db.WithContext(ctx).Create(&log).Error)
}

// 件数と一覧で同じ条件を使う
func auditLogScope(f repo.AuditLogFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.ActorUserID != nil {
			db = db.Where("actor_user_id = ?", *f.ActorUserID)
		}
		if f.Action != nil {
			db = db.Where("action = ?", *f.Action)
		}
		if f.ResourceType != nil {
			db = db.Where("resource_type = ?", *f.ResourceType)
		}
		if f.ResourceID != nil {
			db = db.Where("resource_id = ?", *f.ResourceID)
		}
		if f.CreatedFrom != nil {
			db = db.Where("created_at >= ?", *f.CreatedFrom)
		}
		if f.CreatedTo != nil {
			db = db.Where("created_at <= ?", *f.CreatedTo)
		}
		return db
	}
}

func (r *auditLogGormRepository) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.AuditLog{}).Scopes(auditLogScope(f)).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	limit, offset := f.Limit, f.Offset
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	logs := []model.AuditLog{}
	if total == 0 {
		return logs, 0, nil
	}
	err := r.db.WithContext(ctx).
		Scopes(auditLogScope(f)).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return logs, total, nil
}
