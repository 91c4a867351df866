package usecase_test

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID = int64(900)

func productInput(p model.Product) usecase.ProductInput {
	return usecase.ProductInput{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Discount:    p.Discount,
		Stock:       p.Stock,
		CategoryID:  p.CategoryID,
		IsActive:    p.IsActive,
	}
}

func TestProductUsecase_ListPublicProducts_Validation(t *testing.T) {
	f := newFixture(t)
	neg := dec("-1")
	lo, hi := dec("50"), dec("10")

	cases := map[string]usecase.ListProductsInput{
		"page 0":        {Page: 0, Limit: 10},
		"limit 0":       {Page: 1, Limit: 0},
		"limit 101":     {Page: 1, Limit: 101},
		"negative min":  {Page: 1, Limit: 10, MinPrice: &neg},
		"min above max": {Page: 1, Limit: 10, MinPrice: &lo, MaxPrice: &hi},
		"unknown sort":  {Page: 1, Limit: 10, Sort: "random"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.products.ListPublicProducts(context.Background(), in)
			assert.ErrorIs(t, err, usecase.ErrInvalidArgument)
		})
	}
}

func TestProductUsecase_ListPublicProducts_OnlyActive(t *testing.T) {
	f := newFixture(t)
	f.product("Mug", "10", "0", 5)
	hidden := f.store.seedProduct(model.Product{Name: "Hidden mug", Price: dec("10"), Discount: decimal.Zero})

	out, err := f.products.ListPublicProducts(context.Background(), usecase.ListProductsInput{Page: 1, Limit: 10, Q: "mug"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)
	require.Len(t, out.Items, 1)
	assert.NotEqual(t, hidden.ID, out.Items[0].ID)

	_, err = f.products.GetProductDetail(context.Background(), hidden.ID)
	assert.ErrorIs(t, err, usecase.ErrProductNotFound)
}

func TestProductUsecase_AdminCreateProduct(t *testing.T) {
	f := newFixture(t)

	p, err := f.products.AdminCreateProduct(context.Background(), adminID, usecase.ProductInput{
		Name:     " Lamp ",
		Price:    dec("40"),
		Discount: dec("25"),
		Stock:    3,
		IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Lamp", p.Name)
	assertDecimal(t, "30", p.SpecialPrice)
	require.NotNil(t, p.SellerID)
	assert.Equal(t, adminID, *p.SellerID)

	bad := []usecase.ProductInput{
		{Name: "", Price: dec("1"), Discount: decimal.Zero},
		{Name: "x", Price: dec("-1"), Discount: decimal.Zero},
		{Name: "x", Price: dec("1"), Discount: dec("101")},
		{Name: "x", Price: dec("1"), Discount: decimal.Zero, Stock: -1},
	}
	for _, in := range bad {
		_, err := f.products.AdminCreateProduct(context.Background(), adminID, in)
		assert.ErrorIs(t, err, usecase.ErrInvalidArgument)
	}
}

func TestProductUsecase_AdminUpdateProduct_PropagatesPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product("A", "100", "0", 10)

	_, err := f.carts.AddOrIncrement(ctx, 1, p.ID, 2)
	require.NoError(t, err)

	in := productInput(p)
	in.Price = dec("80")
	out, err := f.products.AdminUpdateProduct(ctx, adminID, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 1, out.CartsUpdated)
	assertDecimal(t, "80", out.Product.SpecialPrice)

	c, _ := f.store.cartOf(1)
	assertDecimal(t, "160", c.TotalPrice)
	assertDecimal(t, "80", c.Items[0].SpecialPrice)

	logs := f.store.auditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionUpdatePrice, logs[0].Action)
	assert.Equal(t, p.ID, logs[0].ResourceID)
	assert.Equal(t, adminID, logs[0].ActorUserID)
}

func TestProductUsecase_AdminUpdateProduct_NonPriceChangeLeavesCarts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product("A", "100", "0", 10)

	_, err := f.carts.AddOrIncrement(ctx, 1, p.ID, 1)
	require.NoError(t, err)

	in := productInput(p)
	in.Name = "A (new)"
	in.Stock = 20
	out, err := f.products.AdminUpdateProduct(ctx, adminID, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 0, out.CartsUpdated)
	assert.Empty(t, f.store.auditLogs())
	assert.Equal(t, "A (new)", f.store.product(p.ID).Name)
}

func TestProductUsecase_AdminUpdateProduct_AuditFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product("A", "100", "0", 10)
	_, err := f.carts.AddOrIncrement(ctx, 1, p.ID, 1)
	require.NoError(t, err)

	f.store.failOn["AuditLogs.Create"] = errors.New("disk full")

	in := productInput(p)
	in.Price = dec("10")
	_, err = f.products.AdminUpdateProduct(ctx, adminID, p.ID, in)
	assert.ErrorIs(t, err, usecase.ErrInternal)

	assertDecimal(t, "100", f.store.product(p.ID).Price)
	c, _ := f.store.cartOf(1)
	assertDecimal(t, "100", c.TotalPrice)
}

func TestProductUsecase_AdminUpdateProduct_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.products.AdminUpdateProduct(context.Background(), adminID, 12345, usecase.ProductInput{
		Name: "x", Price: dec("1"), Discount: decimal.Zero,
	})
	assert.ErrorIs(t, err, usecase.ErrProductNotFound)
}

func TestProductUsecase_AdminDeleteProduct_RemovesFromCarts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.product("A", "10", "0", 10)
	b := f.product("B", "5", "0", 10)

	_, err := f.carts.AddOrIncrement(ctx, 1, a.ID, 1)
	require.NoError(t, err)
	_, err = f.carts.AddOrIncrement(ctx, 1, b.ID, 2)
	require.NoError(t, err)

	require.NoError(t, f.products.AdminDeleteProduct(ctx, adminID, a.ID))

	c, _ := f.store.cartOf(1)
	require.Len(t, c.Items, 1)
	assert.Equal(t, b.ID, c.Items[0].ProductID)
	assertDecimal(t, "10", c.TotalPrice)

	_, err = f.products.GetProductDetail(ctx, a.ID)
	assert.ErrorIs(t, err, usecase.ErrProductNotFound)

	err = f.products.AdminDeleteProduct(ctx, adminID, a.ID)
	assert.ErrorIs(t, err, usecase.ErrProductNotFound)
}

func TestProductUsecase_AdminUpdateInventory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product("A", "10", "0", 10)

	require.NoError(t, f.products.AdminUpdateInventory(ctx, adminID, p.ID, 4, "stocktake"))

	assert.Equal(t, int64(4), f.store.product(p.ID).Stock)

	f.store.mu.Lock()
	adjustments := append([]model.InventoryAdjustment(nil), f.store.adjustments...)
	f.store.mu.Unlock()
	require.Len(t, adjustments, 1)
	assert.Equal(t, int64(-6), adjustments[0].Delta)
	assert.Equal(t, "stocktake", adjustments[0].Reason)

	logs := f.store.auditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionUpdateStock, logs[0].Action)
	assert.Equal(t, `{"stock":10}`, logs[0].BeforeJSON)
	assert.Equal(t, `{"stock":4}`, logs[0].AfterJSON)
}

func TestProductUsecase_AdminUpdateInventory_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product("A", "10", "0", 10)

	err := f.products.AdminUpdateInventory(ctx, adminID, p.ID, 5, "  ")
	assert.ErrorIs(t, err, usecase.ErrInvalidArgument)

	err = f.products.AdminUpdateInventory(ctx, adminID, p.ID, -1, "x")
	assert.ErrorIs(t, err, usecase.ErrInvalidArgument)

	err = f.products.AdminUpdateInventory(ctx, adminID, 9999, 1, "x")
	assert.ErrorIs(t, err, usecase.ErrProductNotFound)

	//履歴が書けなければ在庫も戻る
	f.store.failOn["Inventory.CreateAdjustment"] = errors.New("boom")
	err = f.products.AdminUpdateInventory(ctx, adminID, p.ID, 1, "x")
	assert.ErrorIs(t, err, usecase.ErrInternal)
	assert.Equal(t, int64(10), f.store.product(p.ID).Stock)
	assert.Empty(t, f.store.auditLogs())
}

func TestProductUsecase_CategoryMustExist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cat := f.store.seedCategory("Kitchen")
	missing := int64(9999)
	zero := int64(0)

	_, err := f.products.AdminCreateProduct(ctx, adminID, usecase.ProductInput{
		Name: "Pan", Price: dec("30"), Discount: dec("0"), CategoryID: &missing,
	})
	assert.ErrorIs(t, err, usecase.ErrInvalidArgument)

	_, err = f.products.AdminCreateProduct(ctx, adminID, usecase.ProductInput{
		Name: "Pan", Price: dec("30"), Discount: dec("0"), CategoryID: &zero,
	})
	assert.ErrorIs(t, err, usecase.ErrInvalidArgument)

	p, err := f.products.AdminCreateProduct(ctx, adminID, usecase.ProductInput{
		Name: "Pan", Price: dec("30"), Discount: dec("0"), CategoryID: &cat.ID, IsActive: true,
	})
	require.NoError(t, err)
	require.NotNil(t, p.CategoryID)
	assert.Equal(t, cat.ID, *p.CategoryID)

	in := productInput(p)
	in.CategoryID = &missing
	_, err = f.products.AdminUpdateProduct(ctx, adminID, p.ID, in)
	assert.ErrorIs(t, err, usecase.ErrInvalidArgument)
	assert.Equal(t, cat.ID, *f.store.product(p.ID).CategoryID)
}

func TestProductUsecase_ListPublicProducts_ByCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	kitchen := f.store.seedCategory("Kitchen")
	garden := f.store.seedCategory("Garden")

	pan := f.store.seedProduct(model.Product{Name: "Pan", Price: dec("30"), Discount: decimal.Zero, CategoryID: &kitchen.ID, IsActive: true})
	f.store.seedProduct(model.Product{Name: "Hose", Price: dec("20"), Discount: decimal.Zero, CategoryID: &garden.ID, IsActive: true})
	f.product("Loose", "1", "0", 1)

	out, err := f.products.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 10, CategoryID: &kitchen.ID})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, pan.ID, out.Items[0].ID)

	bad := int64(-3)
	_, err = f.products.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 10, CategoryID: &bad})
	assert.ErrorIs(t, err, usecase.ErrInvalidArgument)
}

func TestProductUsecase_SellerProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const sellerA, sellerB = int64(41), int64(42)

	p, err := f.products.SellerCreateProduct(ctx, sellerA, usecase.ProductInput{
		Name: "Vase", Price: dec("50"), Discount: dec("0"), Stock: 4, IsActive: true,
	})
	require.NoError(t, err)
	require.NotNil(t, p.SellerID)
	assert.Equal(t, sellerA, *p.SellerID)
	f.product("Admin item", "9", "0", 1)

	out, err := f.products.SellerListProducts(ctx, sellerA, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)
	require.Len(t, out.Items, 1)
	assert.Equal(t, p.ID, out.Items[0].ID)

	out, err = f.products.SellerListProducts(ctx, sellerB, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, out.Items)

	_, err = f.products.SellerListProducts(ctx, sellerA, 0, 20)
	assert.ErrorIs(t, err, usecase.ErrInvalidArgument)
	_, err = f.products.SellerListProducts(ctx, 0, 1, 20)
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)
}

func TestProductUsecase_SellerUpdateProduct_PropagatesPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const seller = int64(41)

	p, err := f.products.SellerCreateProduct(ctx, seller, usecase.ProductInput{
		Name: "Vase", Price: dec("50"), Discount: dec("0"), Stock: 4, IsActive: true,
	})
	require.NoError(t, err)

	_, err = f.carts.AddOrIncrement(ctx, 1, p.ID, 2)
	require.NoError(t, err)

	in := productInput(p)
	in.Discount = dec("20")
	out, err := f.products.SellerUpdateProduct(ctx, seller, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 1, out.CartsUpdated)

	c, _ := f.store.cartOf(1)
	assertDecimal(t, "40", c.Items[0].SpecialPrice)
	assertDecimal(t, "80", c.TotalPrice)

	logs := f.store.auditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, seller, logs[0].ActorUserID)
}

func TestProductUsecase_SellerCannotTouchOthersProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const owner, other = int64(41), int64(42)

	p, err := f.products.SellerCreateProduct(ctx, owner, usecase.ProductInput{
		Name: "Vase", Price: dec("50"), Discount: dec("0"), Stock: 4, IsActive: true,
	})
	require.NoError(t, err)

	in := productInput(p)
	in.Price = dec("1")
	_, err = f.products.SellerUpdateProduct(ctx, other, p.ID, in)
	assert.ErrorIs(t, err, usecase.ErrProductNotFound)
	assertDecimal(t, "50", f.store.product(p.ID).Price)

	assert.ErrorIs(t, f.products.SellerDeleteProduct(ctx, other, p.ID), usecase.ErrProductNotFound)

	//管理者は誰の商品でも触れる
	_, err = f.products.AdminUpdateProduct(ctx, adminID, p.ID, in)
	require.NoError(t, err)
}

func TestProductUsecase_SellerDeleteProduct_RemovesCartLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const seller = int64(41)

	p, err := f.products.SellerCreateProduct(ctx, seller, usecase.ProductInput{
		Name: "Vase", Price: dec("50"), Discount: dec("0"), Stock: 4, IsActive: true,
	})
	require.NoError(t, err)
	_, err = f.carts.AddOrIncrement(ctx, 1, p.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.products.SellerDeleteProduct(ctx, seller, p.ID))

	c, _ := f.store.cartOf(1)
	assert.Empty(t, c.Items)
	assertDecimal(t, "0", c.TotalPrice)

	_, err = f.products.GetProductDetail(ctx, p.ID)
	assert.ErrorIs(t, err, usecase.ErrProductNotFound)
}

func TestProductUsecase_AdminUpdateInventory_SameStockLeavesNoHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product("A", "10", "0", 10)

	require.NoError(t, f.products.AdminUpdateInventory(ctx, adminID, p.ID, 10, "recount"))

	adj, err := f.products.AdminListAdjustments(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, adj)
	assert.Empty(t, f.store.auditLogs())
}

func TestProductUsecase_AdminListAdjustments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product("A", "10", "0", 10)
	other := f.product("B", "10", "0", 10)

	require.NoError(t, f.products.AdminUpdateInventory(ctx, adminID, p.ID, 4, "stocktake"))
	require.NoError(t, f.products.AdminUpdateInventory(ctx, adminID, p.ID, 7, "returned"))
	require.NoError(t, f.products.AdminUpdateInventory(ctx, adminID, other.ID, 1, "damaged"))

	adj, err := f.products.AdminListAdjustments(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, adj, 2)
	assert.Equal(t, "returned", adj[0].Reason)
	assert.Equal(t, int64(3), adj[0].Delta)
	assert.Equal(t, int64(-6), adj[1].Delta)

	adj, err = f.products.AdminListAdjustments(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Len(t, adj, 1)

	_, err = f.products.AdminListAdjustments(ctx, 9999, 10)
	assert.ErrorIs(t, err, usecase.ErrProductNotFound)
	_, err = f.products.AdminListAdjustments(ctx, p.ID, 500)
	assert.ErrorIs(t, err, usecase.ErrInvalidArgument)
}
