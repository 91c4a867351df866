package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

// 監査ログの絞り込み条件（nilは条件なし）
type AuditLogFilter struct {
	ActorUserID  *int64
	Action       *model.AuditAction
	ResourceType *model.AuditResourceType
	ResourceID   *int64
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// 監査ログの保存・一覧取得の約束。
type AuditLogRepository interface {
	// 監査対象の変更と同じトランザクションで呼ぶ
	Create(ctx context.Context, log model.AuditLog) error

	// 新しい順。totalはLimit/Offsetを掛ける前の件数
	List(ctx context.Context, filter AuditLogFilter) (logs []model.AuditLog, total int64, err error)
}
