package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain/event"
	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

type AdminOrderUsecase struct {
	tx     repo.TransactionManager
	events EventPublisher
	clock  Clock
	logger *zap.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, events EventPublisher, logger *zap.Logger) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, events: events, clock: systemClock{}, logger: logger}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return OrderListOutput{}, newError(ErrInvalidArgument, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return OrderListOutput{}, newError(ErrInvalidArgument, "invalid limit")
	}
	if f.Status != "" && !model.OrderStatus(f.Status).Valid() {
		return OrderListOutput{}, newError(ErrInvalidArgument, "invalid status")
	}

	var out OrderListOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return storeError(err)
		}

		items := make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items = append(items, toOrderOutput(o))
		}
		out = OrderListOutput{Items: items, Total: total, Page: f.Page, Limit: f.Limit}
		return nil
	})
	if err != nil {
		return OrderListOutput{}, storeError(err)
	}
	return out, nil
}

// ステータス更新。遷移表にない変更は ErrInvalidTransition。
// 変更と監査ログは同じトランザクションで書く。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) (OrderOutput, error) {
	if actorAdminUserID <= 0 {
		return OrderOutput{}, ErrUnauthorized
	}
	if orderID <= 0 {
		return OrderOutput{}, newError(ErrInvalidArgument, "invalid id")
	}

	newStatus := model.OrderStatus(strings.TrimSpace(in.Status))
	if !newStatus.Valid() {
		return OrderOutput{}, newError(ErrInvalidArgument, "invalid status %q", in.Status)
	}

	var out OrderOutput
	var changed *event.OrderStatusChanged

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrNotFound, "order %d", orderID)
		}
		if err != nil {
			return storeError(err)
		}

		// すでに同じなら何もしない
		if o.Status == newStatus {
			out = toOrderOutput(o)
			return nil
		}
		if !o.Status.CanTransitionTo(newStatus) {
			return newError(ErrInvalidTransition, "%s -> %s", o.Status, newStatus)
		}

		if err := r.Orders().UpdateStatus(ctx, orderID, newStatus); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return newError(ErrNotFound, "order %d", orderID)
			}
			return storeError(err)
		}

		now := u.clock.Now()
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   fmt.Sprintf(`{"status":%q}`, o.Status),
			AfterJSON:    fmt.Sprintf(`{"status":%q}`, newStatus),
			CreatedAt:    now,
		}); err != nil {
			return storeError(err)
		}

		changed = &event.OrderStatusChanged{
			OrderID:     orderID,
			From:        string(o.Status),
			To:          string(newStatus),
			ActorUserID: actorAdminUserID,
			OccurredAt:  now,
		}
		o.Status = newStatus
		out = toOrderOutput(o)
		return nil
	})
	if err != nil {
		return OrderOutput{}, storeError(err)
	}

	if changed != nil {
		u.logger.Info("order status changed",
			zap.Int64("order_id", orderID),
			zap.String("from", changed.From),
			zap.String("to", changed.To),
			zap.Int64("actor", actorAdminUserID),
		)
		if err := u.events.Publish(ctx, *changed); err != nil {
			u.logger.Warn("event publish failed", zap.String("type", changed.Type()), zap.Error(err))
		}
	}
	return out, nil
}

// 期間パラメータ（RFC3339）。空ならnil
func ParseDateTimeRFC3339(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, newError(ErrInvalidArgument, "invalid datetime %q", s)
	}
	return &t, nil
}
