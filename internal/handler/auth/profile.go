package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parley/internal/handler"
	"parley/internal/service"
)

// UpdateProfileRequest 更新资料请求，未传的字段保持不变
type UpdateProfileRequest struct {
	Username     *string `json:"username,omitempty"`
	Theme        *string `json:"theme,omitempty"` // light/dark
	Language     *string `json:"language,omitempty"`
	ProfileImage *string `json:"profileImage,omitempty"`
}

// UpdateProfile 更新当前用户资料
// @Summary      更新用户资料
// @Tags         认证
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      UpdateProfileRequest  true  "资料"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  handler.ErrorResponse
// @Failure      409      {object}  handler.ErrorResponse
// @Router       /api/v1/auth/profile [put]
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), handler.UserID(c), service.UpdateProfileInput{
		Username:     req.Username,
		Theme:        req.Theme,
		Language:     req.Language,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		handler.Error(c, err)
		return
	}

	handler.Success(c, http.StatusOK, "profile updated", user)
}
