package conversation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parley/internal/handler"
)

// List 列出未归档的会话
// @Summary      会话列表
// @Description  未归档的会话，最近更新的在前
// @Tags         会话
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/conversations [get]
func (h *Handler) List(c *gin.Context) {
	convs, err := h.conversationService.List(c.Request.Context(), handler.UserID(c))
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusOK, "success", convs)
}

// ListArchived 列出已归档的会话
// @Summary      已归档会话列表
// @Tags         会话
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/conversations/archived/list [get]
func (h *Handler) ListArchived(c *gin.Context) {
	convs, err := h.conversationService.ListArchived(c.Request.Context(), handler.UserID(c))
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusOK, "success", convs)
}
