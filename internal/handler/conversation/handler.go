package conversation

import (
	"parley/internal/realtime"
	"parley/internal/service"
)

// Handler 会话处理器
type Handler struct {
	conversationService *service.ConversationService
	chatService         *service.ChatService
	broadcaster         *realtime.Broadcaster
}

// NewHandler 创建会话处理器
func NewHandler(conversationService *service.ConversationService, chatService *service.ChatService, broadcaster *realtime.Broadcaster) *Handler {
	return &Handler{
		conversationService: conversationService,
		chatService:         chatService,
		broadcaster:         broadcaster,
	}
}
