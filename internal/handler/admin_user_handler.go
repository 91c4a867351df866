package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// ロール変更の入力
type ChangeRoleRequest struct {
	Role string `json:"role"`
}

// 強制ログアウト・ロール変更と監査ログ閲覧
type AdminUserHandler struct {
	uc *usecase.AdminUserUsecase
}

func NewAdminUserHandler(uc *usecase.AdminUserUsecase) *AdminUserHandler {
	return &AdminUserHandler{uc: uc}
}

func (h *AdminUserHandler) RegisterRoutes(admin *echo.Group) {
	admin.POST("/users/:id/force-logout", h.ForceLogout)
	admin.PUT("/users/:id/role", h.ChangeRole)
	admin.GET("/audit-logs", h.ListAuditLogs)
}

func (h *AdminUserHandler) ForceLogout(c echo.Context) error {
	targetID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user_id")
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	res, err := h.uc.ForceLogout(c.Request().Context(), adminID, targetID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ロールが変わるとtoken_versionも上がる（古いトークンは401）
func (h *AdminUserHandler) ChangeRole(c echo.Context) error {
	targetID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user_id")
	}

	var req ChangeRoleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	res, err := h.uc.ChangeRole(c.Request().Context(), adminID, targetID, req.Role)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *AdminUserHandler) ListAuditLogs(c echo.Context) error {
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return badRequest(c, "invalid limit")
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return badRequest(c, "invalid offset")
	}
	actorID, ok := queryInt64Ptr(c, "actor_user_id")
	if !ok {
		return badRequest(c, "invalid actor_user_id")
	}
	resourceID, ok := queryInt64Ptr(c, "resource_id")
	if !ok {
		return badRequest(c, "invalid resource_id")
	}

	logs, err := h.uc.ListAuditLogs(c.Request().Context(), usecase.AuditLogListInput{
		Action:       c.QueryParam("action"),
		ResourceType: c.QueryParam("resource_type"),
		ResourceID:   resourceID,
		ActorUserID:  actorID,
		From:         c.QueryParam("from"),
		To:           c.QueryParam("to"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, logs)
}
