package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/domain/event"
	"storefront/internal/domain/model"
	"storefront/internal/domain/pricing"
	repo "storefront/internal/repository"
	"storefront/internal/tracing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxIdempotencyKeyLen = 255

type OrderUsecase struct {
	tx     repo.TransactionManager
	guard  CheckoutGuard
	events EventPublisher
	clock  Clock
	logger *zap.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, guard CheckoutGuard, events EventPublisher, logger *zap.Logger) *OrderUsecase {
	return &OrderUsecase{
		tx:     tx,
		guard:  guard,
		events: events,
		clock:  systemClock{},
		logger: logger,
	}
}

// 決済ゲートウェイの結果
type PaymentInput struct {
	Method            string
	PgPaymentID       string
	PgStatus          string
	PgResponseMessage string
	PgName            string
}

type CheckoutInput struct {
	AddressID int64
	// 空なら毎回新しい注文になる
	IdempotencyKey string
	Payment        PaymentInput
}

type OrderItemOutput struct {
	ProductID           int64           `json:"product_id"`
	Name                string          `json:"name"`
	Quantity            int64           `json:"quantity"`
	OrderedProductPrice decimal.Decimal `json:"ordered_product_price"`
	Discount            decimal.Decimal `json:"discount"`
	SpecialPrice        decimal.Decimal `json:"special_price"`
	LineTotal           decimal.Decimal `json:"line_total"`
}

type PaymentOutput struct {
	ID                int64  `json:"id"`
	PaymentMethod     string `json:"payment_method"`
	PgPaymentID       string `json:"pg_payment_id"`
	PgStatus          string `json:"pg_status"`
	PgResponseMessage string `json:"pg_response_message"`
	PgName            string `json:"pg_name"`
}

type OrderOutput struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Email       string            `json:"email"`
	OrderDate   time.Time         `json:"order_date"`
	Status      string            `json:"status"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	AddressID   int64             `json:"address_id"`
	Payment     *PaymentOutput    `json:"payment,omitempty"`
	Items       []OrderItemOutput `json:"items"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// カートを注文＋決済記録に変換する。
// 全部成功するか、何も変わらないかのどちらか。
func (u *OrderUsecase) Checkout(ctx context.Context, userID int64, email string, in CheckoutInput) (out OrderOutput, err error) {
	ctx, span := tracing.Start(ctx, "order.Checkout", trace.WithAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("address_id", in.AddressID),
	))
	defer func() { tracing.End(span, err) }()

	if userID <= 0 {
		return OrderOutput{}, ErrUnauthorized
	}
	if in.AddressID <= 0 {
		return OrderOutput{}, newError(ErrInvalidArgument, "invalid address_id")
	}
	if len(strings.TrimSpace(in.Payment.Method)) < 4 {
		return OrderOutput{}, newError(ErrInvalidArgument, "payment method must be at least 4 characters")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return OrderOutput{}, newError(ErrInvalidArgument, "invalid idempotency_key")
	}
	if key == "" {
		key = uuid.NewString()
	}

	//同じキーで処理中のリクエストがあればはじく
	release, ok, err := u.guard.Acquire(ctx, userID, key)
	if err != nil {
		//ガードが使えなくてもDBの一意制約で二重作成は防げる
		u.logger.Warn("checkout guard unavailable", zap.Int64("user_id", userID), zap.Error(err))
	} else if !ok {
		return OrderOutput{}, newError(ErrConflict, "checkout already in progress")
	} else {
		defer release()
	}

	var placed *model.Order

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//同じキーなら同じ結果
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return storeError(err)
		}
		if found {
			out = toOrderOutput(existing)
			return nil
		}

		//カートをロック
		c, err := r.Carts().FindByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return storeError(err)
		}
		cart, err := r.Carts().LockByID(ctx, c.ID)
		if err != nil {
			return storeError(err)
		}

		//ロック待ちの間に同じキーの注文がコミットされていたらそれを返す
		existing, found, err = r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return storeError(err)
		}
		if found {
			out = toOrderOutput(existing)
			return nil
		}

		if cart.IsEmpty() {
			return ErrEmptyCart
		}

		//本人の住所か
		addr, err := r.Addresses().FindByIDForUser(ctx, in.AddressID, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrAddressNotFound, "address %d", in.AddressID)
		}
		if err != nil {
			return storeError(err)
		}

		//明細はカートのスナップショットから作る（商品の現在価格は見ない）
		items, total, err := u.buildOrderItems(ctx, r.Products(), cart)
		if err != nil {
			return err
		}
		if !total.Equal(cart.TotalPrice) {
			u.logger.Error("cart total drift",
				zap.Int64("cart_id", cart.ID),
				zap.String("stored", cart.TotalPrice.String()),
				zap.String("computed", total.String()),
			)
			return newError(ErrInconsistent, "cart %d", cart.ID)
		}

		now := u.clock.Now()

		payment := &model.Payment{
			PaymentMethod:     strings.TrimSpace(in.Payment.Method),
			PgPaymentID:       in.Payment.PgPaymentID,
			PgStatus:          in.Payment.PgStatus,
			PgResponseMessage: in.Payment.PgResponseMessage,
			PgName:            in.Payment.PgName,
		}
		if err := r.Payments().Create(ctx, payment); err != nil {
			return storeError(err)
		}

		order := &model.Order{
			UserID:         userID,
			Email:          email,
			OrderDate:      now,
			TotalAmount:    total,
			Status:         model.OrderStatusAccepted,
			AddressID:      addr.ID,
			PaymentID:      payment.ID,
			IdempotencyKey: key,
		}
		if err := r.Orders().Create(ctx, order); err != nil {
			//同じキーの注文が先にコミットされた
			if errors.Is(err, repo.ErrDuplicate) {
				return newError(ErrConflict, "order with the same idempotency key already exists")
			}
			return storeError(err)
		}

		if err := r.OrderItems().CreateBulk(ctx, order.ID, items); err != nil {
			return storeError(err)
		}

		//カートは空にして残す
		cart.ClearLines()
		if err := r.Carts().Save(ctx, &cart); err != nil {
			return storeError(err)
		}

		order.Items = items
		order.Payment = payment
		placed = order
		out = toOrderOutput(*order)
		return nil
	})
	if err != nil {
		return OrderOutput{}, storeError(err)
	}

	if placed != nil {
		u.logger.Info("order placed",
			zap.Int64("order_id", placed.ID),
			zap.Int64("user_id", userID),
			zap.String("total", placed.TotalAmount.String()),
			zap.Int("items", len(placed.Items)),
		)
		u.publish(ctx, orderPlacedEvent(*placed))
	}
	return out, nil
}

func (u *OrderUsecase) buildOrderItems(ctx context.Context, products repo.ProductRepository, cart model.Cart) ([]model.OrderItem, decimal.Decimal, error) {
	ids := make([]int64, 0, len(cart.Items))
	for _, ci := range cart.Items {
		ids = append(ids, ci.ProductID)
	}
	ps, err := products.ListByIDsUnscoped(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, storeError(err)
	}
	names := make(map[int64]string, len(ps))
	for _, p := range ps {
		names[p.ID] = p.Name
	}

	items := make([]model.OrderItem, 0, len(cart.Items))
	total := decimal.Zero
	for _, ci := range cart.Items {
		items = append(items, model.OrderItem{
			ProductID:           ci.ProductID,
			ProductName:         names[ci.ProductID],
			Quantity:            ci.Quantity,
			OrderedProductPrice: ci.UnitPrice,
			Discount:            ci.Discount,
			SpecialPrice:        ci.SpecialPrice,
		})
		total = total.Add(pricing.LineTotal(ci.SpecialPrice, ci.Quantity))
	}
	return items, total.Round(pricing.Scale), nil
}

func (u *OrderUsecase) publish(ctx context.Context, e event.Event) {
	if err := u.events.Publish(ctx, e); err != nil {
		u.logger.Warn("event publish failed", zap.String("type", e.Type()), zap.String("key", e.Key()), zap.Error(err))
	}
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page, limit int) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, ErrUnauthorized
	}
	if page < 1 {
		return OrderListOutput{}, newError(ErrInvalidArgument, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return OrderListOutput{}, newError(ErrInvalidArgument, "invalid limit")
	}

	var out OrderListOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByUserID(ctx, userID, page, limit)
		if err != nil {
			return storeError(err)
		}

		items := make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items = append(items, toOrderOutput(o))
		}
		out = OrderListOutput{Items: items, Total: total, Page: page, Limit: limit}
		return nil
	})
	if err != nil {
		return OrderListOutput{}, storeError(err)
	}
	return out, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, ErrUnauthorized
	}
	if orderID <= 0 {
		return OrderOutput{}, newError(ErrInvalidArgument, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrNotFound, "order %d", orderID)
		}
		if err != nil {
			return storeError(err)
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return newError(ErrNotFound, "order %d", orderID)
		}

		out = toOrderOutput(o)
		return nil
	})
	if err != nil {
		return OrderOutput{}, storeError(err)
	}
	return out, nil
}

func toOrderOutput(o model.Order) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(o.Items))
	for _, it := range o.Items {
		outItems = append(outItems, OrderItemOutput{
			ProductID:           it.ProductID,
			Name:                it.ProductName,
			Quantity:            it.Quantity,
			OrderedProductPrice: it.OrderedProductPrice,
			Discount:            it.Discount,
			SpecialPrice:        it.SpecialPrice,
			LineTotal:           pricing.LineTotal(it.SpecialPrice, it.Quantity),
		})
	}

	out := OrderOutput{
		ID:          o.ID,
		UserID:      o.UserID,
		Email:       o.Email,
		OrderDate:   o.OrderDate,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount,
		AddressID:   o.AddressID,
		Items:       outItems,
	}
	if o.Payment != nil {
		out.Payment = &PaymentOutput{
			ID:                o.Payment.ID,
			PaymentMethod:     o.Payment.PaymentMethod,
			PgPaymentID:       o.Payment.PgPaymentID,
			PgStatus:          o.Payment.PgStatus,
			PgResponseMessage: o.Payment.PgResponseMessage,
			PgName:            o.Payment.PgName,
		}
	}
	return out
}

func orderPlacedEvent(o model.Order) event.OrderPlaced {
	items := make([]event.OrderPlacedItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, event.OrderPlacedItem{
			ProductID:    it.ProductID,
			Quantity:     it.Quantity,
			SpecialPrice: it.SpecialPrice,
		})
	}
	return event.OrderPlaced{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Email:       o.Email,
		TotalAmount: o.TotalAmount,
		Items:       items,
		OccurredAt:  o.OrderDate,
	}
}
