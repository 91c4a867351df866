package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

type PaymentRequest struct {
	Method            string `json:"payment_method"`
	PgPaymentID       string `json:"pg_payment_id"`
	PgStatus          string `json:"pg_status"`
	PgResponseMessage string `json:"pg_response_message"`
	PgName            string `json:"pg_name"`
}

type OrderCreateRequest struct {
	AddressID int64          `json:"address_id"`
	Payment   PaymentRequest `json:"payment"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, auth ...echo.MiddlewareFunc) {
	e.POST("/orders", h.create, auth...)
	e.GET("/orders", h.list, auth...)
	e.GET("/orders/:id", h.detail, auth...)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
	idemKey := c.Request().Header.Get("X-Idempotency-Key")

	out, err := h.uc.Checkout(c.Request().Context(), userID, getUserEmailFromContext(c), usecase.CheckoutInput{
		AddressID:      req.AddressID,
		IdempotencyKey: idemKey,
		Payment: usecase.PaymentInput{
			Method:            req.Payment.Method,
			PgPaymentID:       req.Payment.PgPaymentID,
			PgStatus:          req.Payment.PgStatus,
			PgResponseMessage: req.Payment.PgResponseMessage,
			PgName:            req.Payment.PgName,
		},
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return badRequest(c, "invalid limit")
	}

	out, err := h.uc.ListMyOrders(c.Request().Context(), userID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetMyOrderDetail(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
