package usecase

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain/model"
	"storefront/internal/domain/pricing"
	repo "storefront/internal/repository"
	"storefront/internal/tracing"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CartUsecase はカート操作の業務ロジックです。
// 更新系はすべて1トランザクションでカート行をロックしてから読み・変更・保存する。
type CartUsecase struct {
	tx        repo.TransactionManager
	carts     repo.CartRepository
	cartItems repo.CartItemRepository
	products  repo.ProductRepository
	logger    *zap.Logger
}

func NewCartUsecase(
	tx repo.TransactionManager,
	carts repo.CartRepository,
	cartItems repo.CartItemRepository,
	products repo.ProductRepository,
	logger *zap.Logger,
) *CartUsecase {
	return &CartUsecase{
		tx:        tx,
		carts:     carts,
		cartItems: cartItems,
		products:  products,
		logger:    logger,
	}
}

// 価格は明細のスナップショット
type CartItemResponse struct {
	ProductID    int64           `json:"product_id"`
	Name         string          `json:"name"`
	Quantity     int64           `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Discount     decimal.Decimal `json:"discount"`
	SpecialPrice decimal.Decimal `json:"special_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

type CartResponse struct {
	ID         int64              `json:"id"`
	UserID     int64              `json:"user_id"`
	Items      []CartItemResponse `json:"items"`
	TotalPrice decimal.Decimal    `json:"total_price"`
}

// カートの丸ごと置き換え用
type CartLineInput struct {
	ProductID int64
	Quantity  int64
}

// GetCart はカート取得（無ければ作って空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, ErrUnauthorized
	}

	cart, err := u.carts.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, storeError(err)
	}
	return buildCartResponse(ctx, u.products, cart)
}

// 同一商品なら数量加算、無ければ現在価格で新規明細
func (u *CartUsecase) AddOrIncrement(ctx context.Context, userID, productID, quantity int64) (out CartResponse, err error) {
	ctx, span := tracing.Start(ctx, "cart.AddOrIncrement", trace.WithAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("product_id", productID),
		attribute.Int64("quantity", quantity),
	))
	defer func() { tracing.End(span, err) }()

	if userID <= 0 {
		return CartResponse{}, ErrUnauthorized
	}
	if productID <= 0 {
		return CartResponse{}, newError(ErrInvalidArgument, "invalid product_id")
	}
	if quantity <= 0 {
		return CartResponse{}, newError(ErrInvalidArgument, "quantity must be positive")
	}

	out, err = u.mutate(ctx, userID, func(r repo.TxRepos, cart *model.Cart) error {
		p, err := findSellable(ctx, r.Products(), productID)
		if err != nil {
			return err
		}

		//在庫を超える数量は入れない
		newQty := quantity
		if line, ok := cart.Line(productID); ok {
			newQty += line.Quantity
		}
		if newQty > p.Stock {
			return newError(ErrInvalidArgument, "only %d of product %d in stock", p.Stock, productID)
		}

		cart.AddOrIncrement(p, quantity)
		return nil
	})
	if err != nil {
		return CartResponse{}, err
	}

	u.logger.Debug("cart line added",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", productID),
		zap.Int64("quantity", quantity),
	)
	return out, nil
}

// +1 / -1 だけ受け付ける。1未満になった明細は消える
func (u *CartUsecase) AdjustQuantity(ctx context.Context, userID, productID, delta int64) (out CartResponse, err error) {
	ctx, span := tracing.Start(ctx, "cart.AdjustQuantity", trace.WithAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("product_id", productID),
		attribute.Int64("delta", delta),
	))
	defer func() { tracing.End(span, err) }()

	if userID <= 0 {
		return CartResponse{}, ErrUnauthorized
	}
	if delta != 1 && delta != -1 {
		return CartResponse{}, newError(ErrInvalidArgument, "delta must be +1 or -1")
	}

	return u.mutate(ctx, userID, func(r repo.TxRepos, cart *model.Cart) error {
		line, ok := cart.Line(productID)
		if !ok {
			return newError(ErrLineNotFound, "product %d is not in the cart", productID)
		}

		if delta > 0 {
			p, err := findSellable(ctx, r.Products(), productID)
			if err != nil {
				return err
			}
			if line.Quantity+delta > p.Stock {
				return newError(ErrInvalidArgument, "only %d of product %d in stock", p.Stock, productID)
			}
		}

		cart.AdjustQuantity(productID, delta)
		return nil
	})
}

// 明細削除。無い明細の削除はエラーにしない
func (u *CartUsecase) RemoveLine(ctx context.Context, userID, cartID, productID int64) (out CartResponse, err error) {
	ctx, span := tracing.Start(ctx, "cart.RemoveLine", trace.WithAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("cart_id", cartID),
		attribute.Int64("product_id", productID),
	))
	defer func() { tracing.End(span, err) }()

	if userID <= 0 {
		return CartResponse{}, ErrUnauthorized
	}
	if cartID <= 0 || productID <= 0 {
		return CartResponse{}, newError(ErrInvalidArgument, "invalid id")
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().LockByID(ctx, cartID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrNotFound, "cart %d", cartID)
		}
		if err != nil {
			return storeError(err)
		}
		//他人のカートは存在しない扱い
		if cart.UserID != userID {
			return newError(ErrNotFound, "cart %d", cartID)
		}

		if !cart.RemoveLine(productID) {
			out, err = buildCartResponse(ctx, r.Products(), cart)
			return err
		}
		if err := r.Carts().Save(ctx, &cart); err != nil {
			return storeError(err)
		}
		out, err = buildCartResponse(ctx, r.Products(), cart)
		return err
	})
	if err != nil {
		return CartResponse{}, storeError(err)
	}
	return out, nil
}

// カートを丸ごと置き換える（マージではない）。
// 全明細を先に検証してから、既存明細を消して現在価格で入れ直す。
func (u *CartUsecase) ReplaceCart(ctx context.Context, userID int64, lines []CartLineInput) (out CartResponse, err error) {
	ctx, span := tracing.Start(ctx, "cart.ReplaceCart", trace.WithAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int("lines", len(lines)),
	))
	defer func() { tracing.End(span, err) }()

	if userID <= 0 {
		return CartResponse{}, ErrUnauthorized
	}

	//同じ商品はまとめる（順序は最初に出た順）
	order := make([]int64, 0, len(lines))
	merged := make(map[int64]int64, len(lines))
	for _, l := range lines {
		if l.ProductID <= 0 {
			return CartResponse{}, newError(ErrInvalidArgument, "invalid product_id")
		}
		if l.Quantity <= 0 {
			return CartResponse{}, newError(ErrInvalidArgument, "quantity must be positive")
		}
		if _, seen := merged[l.ProductID]; !seen {
			order = append(order, l.ProductID)
		}
		merged[l.ProductID] += l.Quantity
	}

	return u.mutate(ctx, userID, func(r repo.TxRepos, cart *model.Cart) error {
		products := make([]model.Product, 0, len(order))
		for _, id := range order {
			p, err := findSellable(ctx, r.Products(), id)
			if err != nil {
				return err
			}
			if merged[id] > p.Stock {
				return newError(ErrInvalidArgument, "only %d of product %d in stock", p.Stock, id)
			}
			products = append(products, p)
		}

		cart.ClearLines()
		for _, p := range products {
			cart.AddOrIncrement(p, merged[p.ID])
		}
		return nil
	})
}

// 価格変更を、その商品を含む全カートへ反映する。
// カートごとに別トランザクション。失敗したカートがあっても残りは続ける。
// price/discountは呼び出し時点の値。各カートには、ロック後に読み直した商品の現在値を入れる。
func (u *CartUsecase) OnProductPriceChanged(ctx context.Context, productID int64, price, discount decimal.Decimal) (updated int, err error) {
	ctx, span := tracing.Start(ctx, "cart.OnProductPriceChanged", trace.WithAttributes(
		attribute.Int64("product_id", productID),
		attribute.String("price", price.String()),
		attribute.String("discount", discount.String()),
	))
	defer func() { tracing.End(span, err) }()

	return u.fanOut(ctx, productID, "price", func(r repo.TxRepos, cart *model.Cart) (bool, error) {
		current, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			//削除済みならOnProductRemovedが明細を外す
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if !current.Price.Equal(price) || !current.Discount.Equal(discount) {
			u.logger.Debug("newer product price found during cart sync",
				zap.Int64("product_id", productID),
				zap.Int64("cart_id", cart.ID),
				zap.String("price", current.Price.String()),
				zap.String("discount", current.Discount.String()),
			)
		}
		return cart.Resnapshot(current), nil
	})
}

// 削除された商品の明細を全カートから消す
func (u *CartUsecase) OnProductRemoved(ctx context.Context, productID int64) (updated int, err error) {
	ctx, span := tracing.Start(ctx, "cart.OnProductRemoved", trace.WithAttributes(
		attribute.Int64("product_id", productID),
	))
	defer func() { tracing.End(span, err) }()

	return u.fanOut(ctx, productID, "remove", func(r repo.TxRepos, cart *model.Cart) (bool, error) {
		return cart.RemoveLine(productID), nil
	})
}

// カートIDで1件（管理者用）
func (u *CartUsecase) GetCartByID(ctx context.Context, cartID int64) (CartResponse, error) {
	if cartID <= 0 {
		return CartResponse{}, newError(ErrInvalidArgument, "invalid cart id")
	}
	cart, err := u.carts.FindByID(ctx, cartID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, newError(ErrNotFound, "cart %d", cartID)
	}
	if err != nil {
		return CartResponse{}, storeError(err)
	}
	return buildCartResponse(ctx, u.products, cart)
}

// 全カート（管理者用）
func (u *CartUsecase) ListAllCarts(ctx context.Context) ([]CartResponse, error) {
	carts, err := u.carts.ListAll(ctx)
	if err != nil {
		return []CartResponse{}, storeError(err)
	}

	outs := make([]CartResponse, 0, len(carts))
	for _, c := range carts {
		out, err := buildCartResponse(ctx, u.products, c)
		if err != nil {
			return []CartResponse{}, err
		}
		outs = append(outs, out)
	}
	return outs, nil
}

// カート取得（無ければ作成）→行ロック→変更→合計再計算→保存 を1トランザクションで
func (u *CartUsecase) mutate(ctx context.Context, userID int64, fn func(r repo.TxRepos, cart *model.Cart) error) (CartResponse, error) {
	var out CartResponse

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		c, err := r.Carts().GetOrCreateByUserID(ctx, userID)
		if err != nil {
			return storeError(err)
		}

		cart, err := r.Carts().LockByID(ctx, c.ID)
		if err != nil {
			return storeError(err)
		}

		if err := fn(r, &cart); err != nil {
			return err
		}

		cart.Recalculate()
		if err := r.Carts().Save(ctx, &cart); err != nil {
			return storeError(err)
		}

		out, err = buildCartResponse(ctx, r.Products(), cart)
		return err
	})
	if err != nil {
		return CartResponse{}, storeError(err)
	}
	return out, nil
}

func (u *CartUsecase) fanOut(ctx context.Context, productID int64, reason string, apply func(r repo.TxRepos, cart *model.Cart) (bool, error)) (int, error) {
	ids, err := u.cartItems.ListCartIDsByProductID(ctx, productID)
	if err != nil {
		return 0, storeError(err)
	}

	updated := 0
	var errs []error

	for _, cartID := range ids {
		changed := false

		err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			cart, err := r.Carts().LockByID(ctx, cartID)
			if errors.Is(err, repo.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}

			ok, err := apply(r, &cart)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := r.Carts().Save(ctx, &cart); err != nil {
				return err
			}
			changed = true
			return nil
		})
		if err != nil {
			u.logger.Warn("cart sync failed",
				zap.String("reason", reason),
				zap.Int64("product_id", productID),
				zap.Int64("cart_id", cartID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("cart %d: %w", cartID, storeError(err)))
			continue
		}
		if changed {
			updated++
		}
	}

	u.logger.Info("carts synced with product",
		zap.String("reason", reason),
		zap.Int64("product_id", productID),
		zap.Int("carts", len(ids)),
		zap.Int("updated", updated),
	)
	return updated, errors.Join(errs...)
}

// 公開中の商品だけカートに入れられる。
// 商品行は共有ロックで読む。価格更新はこのカートのコミットを待ってから反映先を探す
func findSellable(ctx context.Context, products repo.ProductRepository, productID int64) (model.Product, error) {
	p, err := products.FindByIDForShare(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, newError(ErrProductNotFound, "product %d", productID)
	}
	if err != nil {
		return model.Product{}, storeError(err)
	}
	if !p.IsActive {
		return model.Product{}, newError(ErrProductNotFound, "product %d", productID)
	}
	return p, nil
}

// 明細とスナップショット価格からレスポンスを作る（商品名だけ商品から引く）
func buildCartResponse(ctx context.Context, products repo.ProductRepository, cart model.Cart) (CartResponse, error) {
	ids := make([]int64, 0, len(cart.Items))
	for _, it := range cart.Items {
		ids = append(ids, it.ProductID)
	}

	names := make(map[int64]string, len(ids))
	if len(ids) > 0 {
		ps, err := products.ListByIDsUnscoped(ctx, ids)
		if err != nil {
			return CartResponse{}, storeError(err)
		}
		for _, p := range ps {
			names[p.ID] = p.Name
		}
	}

	items := make([]CartItemResponse, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, CartItemResponse{
			ProductID:    it.ProductID,
			Name:         names[it.ProductID],
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			Discount:     it.Discount,
			SpecialPrice: it.SpecialPrice,
			LineTotal:    pricing.LineTotal(it.SpecialPrice, it.Quantity),
		})
	}

	return CartResponse{
		ID:         cart.ID,
		UserID:     cart.UserID,
		Items:      items,
		TotalPrice: cart.TotalPrice,
	}, nil
}
