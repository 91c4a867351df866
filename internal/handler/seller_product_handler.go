package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /seller/products は自分の出品だけを扱う
type SellerProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewSellerProductHandler(uc *usecase.ProductUsecase) *SellerProductHandler {
	return &SellerProductHandler{uc: uc}
}

func (h *SellerProductHandler) RegisterRoutes(seller *echo.Group) {
	seller.GET("/products", h.list)
	seller.POST("/products", h.create)
	seller.PUT("/products/:id", h.update)
	seller.DELETE("/products/:id", h.delete)
}

func (h *SellerProductHandler) list(c echo.Context) error {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return badRequest(c, "invalid limit")
	}

	sellerID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.SellerListProducts(c.Request().Context(), sellerID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *SellerProductHandler) create(c echo.Context) error {
	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	sellerID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	p, err := h.uc.SellerCreateProduct(c.Request().Context(), sellerID, req.toInput())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *SellerProductHandler) update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	sellerID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.SellerUpdateProduct(c.Request().Context(), sellerID, id, req.toInput())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *SellerProductHandler) delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	sellerID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.uc.SellerDeleteProduct(c.Request().Context(), sellerID, id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}
