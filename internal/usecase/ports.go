package usecase

import (
	"context"
	"time"

	"storefront/internal/domain/event"

	"github.com/shopspring/decimal"
)

// イベント送信（コミット後に呼ぶ。失敗しても注文は取り消さない）
type EventPublisher interface {
	Publish(ctx context.Context, e event.Event) error
}

// 注文確定の二重送信ガード
type CheckoutGuard interface {
	Acquire(ctx context.Context, userID int64, idemKey string) (release func(), ok bool, err error)
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// 商品の価格変更・削除をカートへ伝える
type ProductChangeListener interface {
	OnProductPriceChanged(ctx context.Context, productID int64, price, discount decimal.Decimal) (int, error)
	OnProductRemoved(ctx context.Context, productID int64) (int, error)
}
