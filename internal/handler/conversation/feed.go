package conversation

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"parley/internal/handler"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 来源限制由 CORS 中间件和令牌校验负责
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Feed 通过 WebSocket 推送会话的消息事件
// 浏览器无法设置请求头时可通过 ?token= 传递访问令牌
// @Summary      会话事件推送
// @Tags         会话
// @Security     BearerAuth
// @Param        id   path  string  true  "会话ID"
// @Success      101
// @Failure      404  {object}  handler.ErrorResponse
// @Router       /api/v1/conversations/{id}/ws [get]
func (h *Handler) Feed(c *gin.Context) {
	conversationID := c.Param("id")
	// 升级前校验归属，失败时仍可返回普通 JSON 错误
	if _, err := h.chatService.ListMessages(c.Request.Context(), handler.UserID(c), conversationID); err != nil {
		handler.Error(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to upgrade connection")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	events, _ := h.broadcaster.Subscribe(ctx, conversationID)

	// 读协程只处理控制帧，连接关闭时退出
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case event, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
