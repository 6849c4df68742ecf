package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parley/internal/handler"
	"parley/internal/model/chat"
	"parley/internal/service"
)

// PostMessageRequest 发送消息请求，content 与 attachments 至少一个非空
type PostMessageRequest struct {
	ConversationID string   `json:"conversationId" binding:"required"`
	Content        string   `json:"content"`
	Attachments    []string `json:"attachments"` // 文件ID
}

// PostMessageResponseData 发送消息响应
type PostMessageResponseData struct {
	Success     bool          `json:"success"`
	UserMessage *chat.Message `json:"userMessage"`
	AIMessage   *chat.Message `json:"aiMessage"`
}

// PostMessage 发送消息并获取回复
// @Summary      发送消息
// @Description  追加用户消息和助手回复；模型不可用时返回兜底回复
// @Tags         对话
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      PostMessageRequest  true  "消息"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  handler.ErrorResponse
// @Failure      404      {object}  handler.ErrorResponse
// @Router       /api/v1/chat/message [post]
func (h *Handler) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	res, err := h.chatService.PostMessage(c.Request.Context(), service.PostMessageInput{
		UserID:         handler.UserID(c),
		ConversationID: req.ConversationID,
		Content:        req.Content,
		Attachments:    req.Attachments,
	})
	if err != nil {
		handler.Error(c, err)
		return
	}

	handler.Success(c, http.StatusOK, "success", PostMessageResponseData{
		Success:     true,
		UserMessage: res.UserMessage,
		AIMessage:   res.AIMessage,
	})
}
