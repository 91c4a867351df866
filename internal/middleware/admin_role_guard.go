package middleware

import (
	"net/http"

	"storefront/internal/domain/model"

	"github.com/labstack/echo/v4"
)

//contextに入っているroleが許可されたものかを確認します。

func RoleGuard(message string, allowed ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || role == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			for _, r := range allowed {
				if model.Role(role) == r {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, errorJSON(message))
		}
	}
}

// ADMINだけ許可
func AdminRoleGuard() echo.MiddlewareFunc {
	return RoleGuard("admin only", model.RoleAdmin)
}

// SELLERだけ許可（自分の商品の管理）
func SellerRoleGuard() echo.MiddlewareFunc {
	return RoleGuard("seller only", model.RoleSeller)
}
