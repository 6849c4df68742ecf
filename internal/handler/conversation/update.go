package conversation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parley/internal/handler"
	"parley/internal/model/chat"
	"parley/internal/service"
)

// UpdateRequest 更新会话请求，未传的字段保持不变
type UpdateRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Model       *string  `json:"model"`
	Temperature *float64 `json:"temperature"`
}

// Update 更新会话
// @Summary      更新会话
// @Tags         会话
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string         true  "会话ID"
// @Param        request  body      UpdateRequest  true  "更新内容"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  handler.ErrorResponse
// @Failure      404      {object}  handler.ErrorResponse
// @Router       /api/v1/conversations/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	conv, err := h.conversationService.Update(c.Request.Context(), handler.UserID(c), c.Param("id"), service.UpdateConversationInput{
		Title:       req.Title,
		Description: req.Description,
		Model:       req.Model,
		Temperature: req.Temperature,
	})
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusOK, "conversation updated", conv)
}

// StateResponseData 归档/恢复/取消分享的响应
type StateResponseData struct {
	Success      bool               `json:"success"`
	Conversation *chat.Conversation `json:"conversation"`
}

// Archive 归档会话
// @Summary      归档会话
// @Tags         会话
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "会话ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  handler.ErrorResponse
// @Router       /api/v1/conversations/{id}/archive [post]
func (h *Handler) Archive(c *gin.Context) {
	conv, err := h.conversationService.Archive(c.Request.Context(), handler.UserID(c), c.Param("id"))
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusOK, "conversation archived", StateResponseData{Success: true, Conversation: conv})
}

// Restore 取消归档
// @Summary      恢复会话
// @Tags         会话
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "会话ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  handler.ErrorResponse
// @Router       /api/v1/conversations/{id}/restore [post]
func (h *Handler) Restore(c *gin.Context) {
	conv, err := h.conversationService.Restore(c.Request.Context(), handler.UserID(c), c.Param("id"))
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusOK, "conversation restored", StateResponseData{Success: true, Conversation: conv})
}

// Delete 删除会话及其消息
// @Summary      删除会话
// @Tags         会话
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "会话ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  handler.ErrorResponse
// @Router       /api/v1/conversations/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if err := h.conversationService.Delete(c.Request.Context(), handler.UserID(c), c.Param("id")); err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusOK, "conversation deleted", gin.H{"success": true})
}
