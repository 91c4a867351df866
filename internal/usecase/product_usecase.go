package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/domain/pricing"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductUsecase struct {
	tx       repo.TransactionManager
	products repo.ProductRepository
	carts    ProductChangeListener
	logger   *zap.Logger
}

// DI
func NewProductUsecase(
	tx repo.TransactionManager,
	products repo.ProductRepository,
	carts ProductChangeListener,
	logger *zap.Logger,
) *ProductUsecase {
	return &ProductUsecase{
		tx:       tx,
		products: products,
		carts:    carts,
		logger:   logger,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string

	CategoryID *int64
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, newError(ErrInvalidArgument, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, newError(ErrInvalidArgument, "invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, newError(ErrInvalidArgument, "q too long")
	}
	if in.MinPrice != nil && in.MinPrice.IsNegative() {
		return ProductListOutput{}, newError(ErrInvalidArgument, "min_price must be >= 0")
	}
	if in.MaxPrice != nil && in.MaxPrice.IsNegative() {
		return ProductListOutput{}, newError(ErrInvalidArgument, "max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return ProductListOutput{}, newError(ErrInvalidArgument, "min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc":
	default:
		return ProductListOutput{}, newError(ErrInvalidArgument, "invalid sort")
	}
	if in.CategoryID != nil && *in.CategoryID <= 0 {
		return ProductListOutput{}, newError(ErrInvalidArgument, "invalid category_id")
	}

	items, total, err := u.products.ListPublic(ctx, repo.ProductListQuery{
		Page:     in.Page,
		Limit:    in.Limit,
		Q:        strings.TrimSpace(in.Q),
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		Sort:     in.Sort,

		CategoryID: in.CategoryID,
	})
	if err != nil {
		return ProductListOutput{}, storeError(err)
	}

	return ProductListOutput{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, newError(ErrInvalidArgument, "invalid product id")
	}

	p, err := u.products.FindByID(ctx, productID)
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

type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Discount    decimal.Decimal
	Stock       int64
	CategoryID  *int64
	IsActive    bool
}

type ProductUpdateOutput struct {
	Product model.Product `json:"product"`
	// 価格変更を反映したカート数
	CartsUpdated int `json:"carts_updated"`
}

func validateProductInput(in ProductInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return newError(ErrInvalidArgument, "name required")
	}
	if !pricing.ValidPrice(in.Price) {
		return newError(ErrInvalidArgument, "price must be >= 0")
	}
	if !pricing.ValidDiscount(in.Discount) {
		return newError(ErrInvalidArgument, "discount must be between 0 and 100")
	}
	if in.Stock < 0 {
		return newError(ErrInvalidArgument, "stock must be >= 0")
	}
	return nil
}

// 更新・削除の対象を絞る。sellerIDが0なら誰の商品でもよい（管理者）
type productScope struct {
	actorID  int64
	sellerID int64
}

func (sc productScope) owns(p model.Product) bool {
	if sc.sellerID == 0 {
		return true
	}
	return p.SellerID != nil && *p.SellerID == sc.sellerID
}

func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, adminUserID int64, in ProductInput) (model.Product, error) {
	return u.createProduct(ctx, adminUserID, in)
}

func (u *ProductUsecase) AdminUpdateProduct(ctx context.Context, adminUserID int64, productID int64, in ProductInput) (ProductUpdateOutput, error) {
	return u.updateProduct(ctx, productScope{actorID: adminUserID}, productID, in)
}

func (u *ProductUsecase) AdminDeleteProduct(ctx context.Context, adminUserID int64, productID int64) error {
	return u.deleteProduct(ctx, productScope{actorID: adminUserID}, productID)
}

// 出品者の商品一覧（非公開も含む）
func (u *ProductUsecase) SellerListProducts(ctx context.Context, sellerID int64, page, limit int) (ProductListOutput, error) {
	if sellerID <= 0 {
		return ProductListOutput{}, ErrUnauthorized
	}
	if page < 1 {
		return ProductListOutput{}, newError(ErrInvalidArgument, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return ProductListOutput{}, newError(ErrInvalidArgument, "invalid limit")
	}

	items, total, err := u.products.ListBySeller(ctx, sellerID, page, limit)
	if err != nil {
		return ProductListOutput{}, storeError(err)
	}
	return ProductListOutput{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (u *ProductUsecase) SellerCreateProduct(ctx context.Context, sellerID int64, in ProductInput) (model.Product, error) {
	return u.createProduct(ctx, sellerID, in)
}

// 他の出品者の商品は存在しない扱い
func (u *ProductUsecase) SellerUpdateProduct(ctx context.Context, sellerID int64, productID int64, in ProductInput) (ProductUpdateOutput, error) {
	return u.updateProduct(ctx, productScope{actorID: sellerID, sellerID: sellerID}, productID, in)
}

func (u *ProductUsecase) SellerDeleteProduct(ctx context.Context, sellerID int64, productID int64) error {
	return u.deleteProduct(ctx, productScope{actorID: sellerID, sellerID: sellerID}, productID)
}

// 作成者が出品者になる
func (u *ProductUsecase) createProduct(ctx context.Context, actorID int64, in ProductInput) (model.Product, error) {
	if actorID <= 0 {
		return model.Product{}, ErrUnauthorized
	}
	if err := validateProductInput(in); err != nil {
		return model.Product{}, err
	}

	var created model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := checkCategory(ctx, r.Categories(), in.CategoryID); err != nil {
			return err
		}

		p, err := r.Products().Create(ctx, model.Product{
			Name:        strings.TrimSpace(in.Name),
			Description: in.Description,
			Price:       in.Price.Round(pricing.Scale),
			Discount:    in.Discount.Round(pricing.Scale),
			Stock:       in.Stock,
			CategoryID:  in.CategoryID,
			SellerID:    &actorID,
			IsActive:    in.IsActive,
		})
		if err != nil {
			return storeError(err)
		}
		created = p
		return nil
	})
	if err != nil {
		return model.Product{}, storeError(err)
	}
	return created, nil
}

// 商品更新。価格か割引率が変わったら、コミット後にカートへ反映する
func (u *ProductUsecase) updateProduct(ctx context.Context, sc productScope, productID int64, in ProductInput) (ProductUpdateOutput, error) {
	if sc.actorID <= 0 {
		return ProductUpdateOutput{}, ErrUnauthorized
	}
	if productID <= 0 {
		return ProductUpdateOutput{}, newError(ErrInvalidArgument, "invalid product id")
	}
	if err := validateProductInput(in); err != nil {
		return ProductUpdateOutput{}, err
	}

	var updated model.Product
	var priceChanged bool

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrProductNotFound, "product %d", productID)
		}
		if err != nil {
			return storeError(err)
		}
		if !sc.owns(before) {
			return newError(ErrProductNotFound, "product %d", productID)
		}
		if err := checkCategory(ctx, r.Categories(), in.CategoryID); err != nil {
			return err
		}

		updated = before
		updated.Name = strings.TrimSpace(in.Name)
		updated.Description = in.Description
		updated.Price = in.Price.Round(pricing.Scale)
		updated.Discount = in.Discount.Round(pricing.Scale)
		updated.Stock = in.Stock
		updated.CategoryID = in.CategoryID
		updated.IsActive = in.IsActive
		updated.ApplyPricing()

		if err := r.Products().Update(ctx, updated); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return newError(ErrProductNotFound, "product %d", productID)
			}
			return storeError(err)
		}

		priceChanged = before.PricingChanged(updated)
		if !priceChanged {
			return nil
		}

		//監査ログ（価格変更）
		return storeError(r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  sc.actorID,
			Action:       model.AuditActionUpdatePrice,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   fmt.Sprintf(`{"price":"%s","discount":"%s"}`, before.Price, before.Discount),
			AfterJSON:    fmt.Sprintf(`{"price":"%s","discount":"%s"}`, updated.Price, updated.Discount),
			CreatedAt:    time.Now(),
		}))
	})
	if err != nil {
		return ProductUpdateOutput{}, storeError(err)
	}

	out := ProductUpdateOutput{Product: updated}
	if priceChanged {
		n, err := u.carts.OnProductPriceChanged(ctx, productID, updated.Price, updated.Discount)
		if err != nil {
			//商品の更新自体は確定済み。失敗したカートはログに残す
			u.logger.Warn("price propagation incomplete", zap.Int64("product_id", productID), zap.Error(err))
		}
		out.CartsUpdated = n
	}
	return out, nil
}

// 論理削除して、カートから明細を外す
func (u *ProductUsecase) deleteProduct(ctx context.Context, sc productScope, productID int64) error {
	if sc.actorID <= 0 {
		return ErrUnauthorized
	}
	if productID <= 0 {
		return newError(ErrInvalidArgument, "invalid product id")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && !sc.owns(p)) {
			return newError(ErrProductNotFound, "product %d", productID)
		}
		if err != nil {
			return storeError(err)
		}

		err = r.Products().SoftDelete(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrProductNotFound, "product %d", productID)
		}
		return storeError(err)
	})
	if err != nil {
		return storeError(err)
	}

	if _, err := u.carts.OnProductRemoved(ctx, productID); err != nil {
		u.logger.Warn("cart cleanup incomplete", zap.Int64("product_id", productID), zap.Error(err))
	}
	return nil
}

// 在庫の現在値を設定。調整履歴と監査ログを同じトランザクションで残す
func (u *ProductUsecase) AdminUpdateInventory(ctx context.Context, adminUserID int64, productID int64, newStock int64, reason string) error {
	if adminUserID <= 0 {
		return ErrUnauthorized
	}
	if productID <= 0 {
		return newError(ErrInvalidArgument, "invalid product id")
	}
	if newStock < 0 {
		return newError(ErrInvalidArgument, "stock must be >= 0")
	}
	if strings.TrimSpace(reason) == "" {
		return newError(ErrInvalidArgument, "reason required")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Inventory().SetStock(ctx, productID, newStock)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrProductNotFound, "product %d", productID)
		}
		if err != nil {
			return storeError(err)
		}
		//変わっていなければ履歴も残さない
		if before == newStock {
			return nil
		}

		now := time.Now()
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   productID,
			AdminUserID: adminUserID,
			Delta:       newStock - before,
			Reason:      strings.TrimSpace(reason),
			CreatedAt:   now,
		}); err != nil {
			return storeError(err)
		}

		//「誰が」「何を」「どの対象に」「どう変えたか」を残す
		return storeError(r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   fmt.Sprintf(`{"stock":%d}`, before),
			AfterJSON:    fmt.Sprintf(`{"stock":%d}`, newStock),
			CreatedAt:    now,
		}))
	})
	return storeError(err)
}

// 在庫の調整履歴（新しい順）
func (u *ProductUsecase) AdminListAdjustments(ctx context.Context, productID int64, limit int) ([]model.InventoryAdjustment, error) {
	if productID <= 0 {
		return nil, newError(ErrInvalidArgument, "invalid product id")
	}
	if limit == 0 {
		limit = 50
	}
	if limit < 1 || limit > 200 {
		return nil, newError(ErrInvalidArgument, "invalid limit")
	}

	var out []model.InventoryAdjustment
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Products().FindByID(ctx, productID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return newError(ErrProductNotFound, "product %d", productID)
			}
			return storeError(err)
		}
		items, err := r.Inventory().ListAdjustments(ctx, productID, limit)
		if err != nil {
			return storeError(err)
		}
		out = items
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	if out == nil {
		out = []model.InventoryAdjustment{}
	}
	return out, nil
}
