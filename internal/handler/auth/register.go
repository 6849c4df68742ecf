package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parley/internal/handler"
)

// RegisterRequest 用户注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required"` // 用户名（至少3个字符）
	Email    string `json:"email" binding:"required"`    // 邮箱
	Password string `json:"password" binding:"required"` // 密码（至少6位）
}

// Register 用户注册
// @Summary      用户注册
// @Description  注册成功后直接返回访问令牌
// @Tags         认证
// @Accept       json
// @Produce      json
// @Param        request  body      RegisterRequest  true  "注册请求"
// @Success      201      {object}  map[string]interface{}  "{\"code\":0,\"data\":{\"token\":\"...\",\"user\":{}}}"
// @Failure      400      {object}  handler.ErrorResponse
// @Failure      409      {object}  handler.ErrorResponse
// @Failure      500      {object}  handler.ErrorResponse
// @Router       /api/v1/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	res, err := h.authService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		handler.Error(c, err)
		return
	}

	handler.Success(c, http.StatusCreated, "registered", res)
}
