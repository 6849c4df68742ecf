package conversation

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parley/internal/handler"
	"parley/internal/model/chat"
	"parley/internal/service"
)

// CreateRequest 新建会话请求，字段均可选
type CreateRequest struct {
	Title       string   `json:"title"`
	Model       string   `json:"model"`       // gpt-3.5-turbo/gpt-4/gpt-4-turbo
	Temperature *float64 `json:"temperature"` // 0~2
}

// CreateResponseData 新建会话响应
type CreateResponseData struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Model       chat.Model `json:"model"`
	Temperature float64    `json:"temperature"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Create 新建会话
// @Summary      新建会话
// @Tags         会话
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      CreateRequest  false  "会话参数"
// @Success      201      {object}  map[string]interface{}
// @Failure      400      {object}  handler.ErrorResponse
// @Router       /api/v1/conversations [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	// 允许空请求体
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		handler.BadRequest(c, err)
		return
	}

	conv, err := h.conversationService.Create(c.Request.Context(), handler.UserID(c), service.CreateConversationInput{
		Title:       req.Title,
		Model:       req.Model,
		Temperature: req.Temperature,
	})
	if err != nil {
		handler.Error(c, err)
		return
	}

	handler.Success(c, http.StatusCreated, "conversation created", CreateResponseData{
		ID:          conv.ID,
		Title:       conv.Title,
		Model:       conv.Model,
		Temperature: conv.Temperature,
		CreatedAt:   conv.CreatedAt,
	})
}
