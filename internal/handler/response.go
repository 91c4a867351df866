package handler

import (
	"errors"
	"net/http"
	"strconv"

	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// usecaseのエラー種別 → ステータス
var errorStatuses = []struct {
	kind   error
	status int
}{
	{usecase.ErrInvalidArgument, http.StatusBadRequest},
	{usecase.ErrEmptyCart, http.StatusBadRequest},
	{usecase.ErrUnauthorized, http.StatusUnauthorized},
	{usecase.ErrForbidden, http.StatusForbidden},
	{usecase.ErrProductNotFound, http.StatusNotFound},
	{usecase.ErrLineNotFound, http.StatusNotFound},
	{usecase.ErrAddressNotFound, http.StatusNotFound},
	{usecase.ErrNotFound, http.StatusNotFound},
	{usecase.ErrConflict, http.StatusConflict},
	{usecase.ErrInvalidTransition, http.StatusConflict},
	{usecase.ErrInconsistent, http.StatusInternalServerError},
}

// 4xxはメッセージをそのまま返す。5xxは中身を出さない
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	status := http.StatusInternalServerError
	for _, es := range errorStatuses {
		if errors.Is(err, es.kind) {
			status = es.status
			break
		}
	}

	//原因はアクセスログに出す
	c.Set(middleware.CtxErrorKey, err)

	if status >= http.StatusInternalServerError {
		return c.JSON(status, ErrorResponse{Error: "internal error"})
	}
	return c.JSON(status, ErrorResponse{Error: err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
}

// middleware.AuthJWT が c.Set("user_id", int64) した値を取り出す
func getUserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

func getUserEmailFromContext(c echo.Context) string {
	email, _ := c.Get(middleware.CtxUserEmailKey).(string)
	return email
}

// パスパラメータの正のID
func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// 空ならdef
func queryInt(c echo.Context, name string, def int) (int, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func queryInt64Ptr(c echo.Context, name string) (*int64, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, false
	}
	return &n, true
}
