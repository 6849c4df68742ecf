package auth

import (
	"parley/internal/service"
)

// Handler 认证处理器：注册、登录、当前用户与资料更新
type Handler struct {
	authService *service.AuthService
}

// NewHandler 创建认证处理器
func NewHandler(authService *service.AuthService) *Handler {
	return &Handler{
		authService: authService,
	}
}
