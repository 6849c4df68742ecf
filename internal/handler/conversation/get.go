package conversation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parley/internal/handler"
)

// Get 获取会话及全部消息
// @Summary      会话详情
// @Tags         会话
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "会话ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  handler.ErrorResponse
// @Router       /api/v1/conversations/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	detail, err := h.conversationService.Get(c.Request.Context(), handler.UserID(c), c.Param("id"))
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusOK, "success", detail)
}

// GetShared 通过分享令牌读取会话，无需登录
// @Summary      公开读取分享的会话
// @Tags         会话
// @Produce      json
// @Param        shareToken  path      string  true  "分享令牌"
// @Success      200         {object}  map[string]interface{}
// @Failure      404         {object}  handler.ErrorResponse
// @Router       /api/v1/conversations/public/{shareToken} [get]
func (h *Handler) GetShared(c *gin.Context) {
	detail, err := h.conversationService.GetShared(c.Request.Context(), c.Param("shareToken"))
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusOK, "success", detail)
}
