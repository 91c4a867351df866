package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /cartのHTTP
type CartHandler struct {
	uc *usecase.CartUsecase
}

// DI
func NewCartHandler(uc *usecase.CartUsecase) *CartHandler {
	return &CartHandler{uc: uc}
}

type AddCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type CartLineRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type ReplaceCartRequest struct {
	Items []CartLineRequest `json:"items"`
}

// "add"は+1、"delete"は-1
type AdjustCartItemRequest struct {
	Operation string `json:"operation"`
}

// authはJWT必須 + token_version一致のミドルウェア
func (h *CartHandler) RegisterRoutes(e *echo.Echo, auth ...echo.MiddlewareFunc) {
	e.GET("/cart", h.getCart, auth...)
	e.POST("/cart/items", h.addToCart, auth...)
	e.PUT("/cart/items", h.replaceCart, auth...)
	e.PATCH("/cart/items/:product_id", h.adjustItem, auth...)
	e.DELETE("/carts/:cart_id/items/:product_id", h.removeItem, auth...)
}

// 管理者用
func (h *CartHandler) RegisterAdminRoutes(admin *echo.Group) {
	admin.GET("/carts", h.listAll)
	admin.GET("/carts/:cart_id", h.getByID)
}

func (h *CartHandler) getCart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.GetCart(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) addToCart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req AddCartRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.AddOrIncrement(c.Request().Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) replaceCart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req ReplaceCartRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	lines := make([]usecase.CartLineInput, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, usecase.CartLineInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	out, err := h.uc.ReplaceCart(c.Request().Context(), userID, lines)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) adjustItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	productID, ok := pathID(c, "product_id")
	if !ok {
		return badRequest(c, "invalid product_id")
	}

	var req AdjustCartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	var delta int64
	switch req.Operation {
	case "add":
		delta = 1
	case "delete":
		delta = -1
	default:
		return badRequest(c, "operation must be add or delete")
	}

	out, err := h.uc.AdjustQuantity(c.Request().Context(), userID, productID, delta)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) removeItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	cartID, ok := pathID(c, "cart_id")
	if !ok {
		return badRequest(c, "invalid cart_id")
	}
	productID, ok := pathID(c, "product_id")
	if !ok {
		return badRequest(c, "invalid product_id")
	}

	out, err := h.uc.RemoveLine(c.Request().Context(), userID, cartID, productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) listAll(c echo.Context) error {
	out, err := h.uc.ListAllCarts(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) getByID(c echo.Context) error {
	cartID, ok := pathID(c, "cart_id")
	if !ok {
		return badRequest(c, "invalid cart_id")
	}

	out, err := h.uc.GetCartByID(c.Request().Context(), cartID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
