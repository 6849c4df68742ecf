package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parley/internal/handler"
)

// ListMessages 按顺序列出会话消息
// @Summary      消息列表
// @Tags         对话
// @Produce      json
// @Security     BearerAuth
// @Param        conversationId  path      string  true  "会话ID"
// @Success      200             {object}  map[string]interface{}
// @Failure      404             {object}  handler.ErrorResponse
// @Router       /api/v1/chat/messages/{conversationId} [get]
func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.chatService.ListMessages(c.Request.Context(), handler.UserID(c), c.Param("conversationId"))
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusOK, "success", msgs)
}

// EditMessageRequest 编辑消息请求
type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// EditMessage 编辑自己发送的消息
// @Summary      编辑消息
// @Tags         对话
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string              true  "消息ID"
// @Param        request  body      EditMessageRequest  true  "新内容"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  handler.ErrorResponse
// @Failure      404      {object}  handler.ErrorResponse
// @Router       /api/v1/chat/message/{id} [put]
func (h *Handler) EditMessage(c *gin.Context) {
	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	msg, err := h.chatService.EditMessage(c.Request.Context(), handler.UserID(c), c.Param("id"), req.Content)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusOK, "message updated", msg)
}

// RateMessageRequest 评分请求
type RateMessageRequest struct {
	Rating *int `json:"rating" binding:"required"` // -1/0/1
}

// RateMessage 为消息评分
// @Summary      消息评分
// @Tags         对话
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string              true  "消息ID"
// @Param        request  body      RateMessageRequest  true  "评分"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  handler.ErrorResponse
// @Failure      404      {object}  handler.ErrorResponse
// @Router       /api/v1/chat/message/{id}/rate [post]
func (h *Handler) RateMessage(c *gin.Context) {
	var req RateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	msg, err := h.chatService.RateMessage(c.Request.Context(), handler.UserID(c), c.Param("id"), *req.Rating)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusOK, "message rated", msg)
}

// DeleteMessage 删除消息
// @Summary      删除消息
// @Tags         对话
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "消息ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  handler.ErrorResponse
// @Router       /api/v1/chat/message/{id} [delete]
func (h *Handler) DeleteMessage(c *gin.Context) {
	if err := h.chatService.DeleteMessage(c.Request.Context(), handler.UserID(c), c.Param("id")); err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusOK, "message deleted", gin.H{"success": true})
}
