package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parley/internal/handler"
)

// GetMe 获取当前用户信息
// @Summary      获取当前用户信息
// @Tags         认证
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  handler.ErrorResponse
// @Failure      404  {object}  handler.ErrorResponse
// @Router       /api/v1/auth/me [get]
func (h *Handler) GetMe(c *gin.Context) {
	user, err := h.authService.Me(c.Request.Context(), handler.UserID(c))
	if err != nil {
		handler.Error(c, err)
		return
	}

	handler.Success(c, http.StatusOK, "success", user)
}
