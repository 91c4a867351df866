package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

type ForceLogoutOutput struct {
	UserID          int64 `json:"user_id"`
	NewTokenVersion int   `json:"new_token_version"`
}

type AdminUserUsecase struct {
	tx     repo.TransactionManager
	audits repo.AuditLogRepository
	logger *zap.Logger
}

func NewAdminUserUsecase(tx repo.TransactionManager, audits repo.AuditLogRepository, logger *zap.Logger) *AdminUserUsecase {
	return &AdminUserUsecase{tx: tx, audits: audits, logger: logger}
}

// token_versionを上げて発行済みJWTを無効化する
func (u *AdminUserUsecase) ForceLogout(ctx context.Context, actorUserID, targetUserID int64) (ForceLogoutOutput, error) {
	if actorUserID <= 0 {
		return ForceLogoutOutput{}, ErrUnauthorized
	}
	if targetUserID <= 0 {
		return ForceLogoutOutput{}, newError(ErrInvalidArgument, "invalid user id")
	}

	var out ForceLogoutOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Users().FindByID(ctx, targetUserID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrNotFound, "user %d", targetUserID)
		}
		if err != nil {
			return storeError(err)
		}

		if err := r.Users().IncrementTokenVersion(ctx, targetUserID); err != nil {
			return storeError(err)
		}

		out = ForceLogoutOutput{UserID: targetUserID, NewTokenVersion: before.TokenVersion + 1}

		return storeError(r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorUserID,
			Action:       model.AuditActionForceLogout,
			ResourceType: model.AuditResourceUser,
			ResourceID:   targetUserID,
			BeforeJSON:   fmt.Sprintf(`{"token_version":%d}`, before.TokenVersion),
			AfterJSON:    fmt.Sprintf(`{"token_version":%d}`, out.NewTokenVersion),
			CreatedAt:    time.Now(),
		}))
	})
	if err != nil {
		return ForceLogoutOutput{}, storeError(err)
	}

	u.logger.Info("force logout", zap.Int64("actor_user_id", actorUserID), zap.Int64("user_id", targetUserID))
	return out, nil
}

type ChangeRoleOutput struct {
	UserID          int64      `json:"user_id"`
	Role            model.Role `json:"role"`
	NewTokenVersion int        `json:"new_token_version"`
}

// ロール変更。JWTにロールが入っているので token_version も上げる
func (u *AdminUserUsecase) ChangeRole(ctx context.Context, actorUserID, targetUserID int64, role string) (ChangeRoleOutput, error) {
	if actorUserID <= 0 {
		return ChangeRoleOutput{}, ErrUnauthorized
	}
	if targetUserID <= 0 {
		return ChangeRoleOutput{}, newError(ErrInvalidArgument, "invalid user id")
	}
	newRole := model.Role(strings.ToUpper(strings.TrimSpace(role)))
	if !newRole.Valid() {
		return ChangeRoleOutput{}, newError(ErrInvalidArgument, "unknown role %q", role)
	}
	//自分のADMIN権限は外せない
	if actorUserID == targetUserID {
		return ChangeRoleOutput{}, newError(ErrForbidden, "cannot change own role")
	}

	var out ChangeRoleOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		user, err := r.Users().FindByID(ctx, targetUserID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrNotFound, "user %d", targetUserID)
		}
		if err != nil {
			return storeError(err)
		}

		before := user.Role
		out = ChangeRoleOutput{UserID: targetUserID, Role: newRole, NewTokenVersion: user.TokenVersion}
		if before == newRole {
			return nil
		}

		user.Role = newRole
		if err := r.Users().Update(ctx, user); err != nil {
			return storeError(err)
		}
		if err := r.Users().IncrementTokenVersion(ctx, targetUserID); err != nil {
			return storeError(err)
		}
		out.NewTokenVersion++

		return storeError(r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorUserID,
			Action:       model.AuditActionUpdateUserRole,
			ResourceType: model.AuditResourceUser,
			ResourceID:   targetUserID,
			BeforeJSON:   fmt.Sprintf(`{"role":%q}`, before),
			AfterJSON:    fmt.Sprintf(`{"role":%q}`, newRole),
			CreatedAt:    time.Now(),
		}))
	})
	if err != nil {
		return ChangeRoleOutput{}, storeError(err)
	}

	u.logger.Info("user role changed",
		zap.Int64("actor_user_id", actorUserID),
		zap.Int64("user_id", targetUserID),
		zap.String("role", string(newRole)),
	)
	return out, nil
}

// 監査ログ一覧の入力（文字列はhandlerからそのまま）
type AuditLogListInput struct {
	Action       string
	ResourceType string
	ResourceID   *int64
	ActorUserID  *int64
	From         string
	To           string
	Limit        int
	Offset       int
}

type AuditLogListOutput struct {
	Items  []model.AuditLog `json:"items"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

func (u *AdminUserUsecase) ListAuditLogs(ctx context.Context, in AuditLogListInput) (AuditLogListOutput, error) {
	if in.Limit == 0 {
		in.Limit = 50
	}
	if in.Limit < 1 || in.Limit > 200 {
		return AuditLogListOutput{}, newError(ErrInvalidArgument, "invalid limit")
	}
	if in.Offset < 0 {
		return AuditLogListOutput{}, newError(ErrInvalidArgument, "invalid offset")
	}

	f := repo.AuditLogFilter{
		ActorUserID: in.ActorUserID,
		ResourceID:  in.ResourceID,
		Limit:       in.Limit,
		Offset:      in.Offset,
	}
	if in.Action != "" {
		a := model.AuditAction(in.Action)
		f.Action = &a
	}
	if in.ResourceType != "" {
		rt := model.AuditResourceType(in.ResourceType)
		f.ResourceType = &rt
	}

	var err error
	if f.CreatedFrom, err = ParseDateTimeRFC3339(in.From); err != nil {
		return AuditLogListOutput{}, newError(ErrInvalidArgument, "invalid from")
	}
	if f.CreatedTo, err = ParseDateTimeRFC3339(in.To); err != nil {
		return AuditLogListOutput{}, newError(ErrInvalidArgument, "invalid to")
	}

	logs, total, err := u.audits.List(ctx, f)
	if err != nil {
		return AuditLogListOutput{}, storeError(err)
	}
	return AuditLogListOutput{Items: logs, Total: total, Limit: in.Limit, Offset: in.Offset}, nil
}
