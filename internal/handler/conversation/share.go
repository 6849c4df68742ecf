package conversation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parley/internal/handler"
)

// Share 开启分享
// @Summary      分享会话
// @Description  多次调用返回同一个令牌
// @Tags         会话
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "会话ID"
// @Success      200  {object}  map[string]interface{}  "{\"code\":0,\"data\":{\"shareUrl\":\"...\",\"shareToken\":\"...\"}}"
// @Failure      404  {object}  handler.ErrorResponse
// @Router       /api/v1/conversations/{id}/share [post]
func (h *Handler) Share(c *gin.Context) {
	res, err := h.conversationService.Share(c.Request.Context(), handler.UserID(c), c.Param("id"))
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusOK, "conversation shared", res)
}

// Unshare 关闭分享，令牌保留
// @Summary      取消分享
// @Tags         会话
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "会话ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  handler.ErrorResponse
// @Router       /api/v1/conversations/{id}/unshare [post]
func (h *Handler) Unshare(c *gin.Context) {
	conv, err := h.conversationService.Unshare(c.Request.Context(), handler.UserID(c), c.Param("id"))
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusOK, "conversation unshared", StateResponseData{Success: true, Conversation: conv})
}
