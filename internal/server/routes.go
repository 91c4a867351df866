package server

import (
	"storefront/internal/handler"
	"storefront/internal/middleware"
	"storefront/internal/repository"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Tokens middleware.TokenParser
	Users  repository.UserRepository

	Auth         *handler.AuthHandler
	Product      *handler.ProductHandler
	Category     *handler.CategoryHandler
	Cart         *handler.CartHandler
	Order        *handler.OrderHandler
	Address      *handler.AddressHandler
	AdminProduct *handler.AdminProductHandler
	AdminOrder   *handler.AdminOrderHandler
	AdminUser    *handler.AdminUserHandler
	Seller       *handler.SellerProductHandler
}

func RegisterRoutes(e *echo.Echo, h Handlers) {
	//公開
	h.Auth.RegisterRoutes(e)
	h.Product.RegisterRoutes(e)
	h.Category.RegisterRoutes(e)

	//JWT必須 + token_version一致
	auth := []echo.MiddlewareFunc{
		middleware.AuthJWT(h.Tokens),
		middleware.TokenVersionGuard(h.Users),
	}
	h.Cart.RegisterRoutes(e, auth...)
	h.Order.RegisterRoutes(e, auth...)
	h.Address.RegisterRoutes(e, auth...)

	// /admin 配下は全部「JWT必須 + token_version一致 + ADMIN限定」
	admin := e.Group("/admin", append(auth, middleware.AdminRoleGuard())...)
	h.AdminProduct.RegisterRoutes(admin)
	h.AdminOrder.RegisterRoutes(admin)
	h.AdminUser.RegisterRoutes(admin)
	h.Cart.RegisterAdminRoutes(admin)
	h.Category.RegisterAdminRoutes(admin)

	// /seller 配下はSELLER限定
	seller := e.Group("/seller", append(auth, middleware.SellerRoleGuard())...)
	h.Seller.RegisterRoutes(seller)
}
