package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"parley/internal/ai"
	"parley/internal/model/chat"
	"parley/internal/model/file"
	"parley/internal/pkg/ctxutil"
	"parley/internal/pkg/id"
	"parley/internal/realtime"
	"parley/internal/repository"
)

// ContextBuilder 为一次补全组装上下文，*ai.Assembler 满足该接口
type ContextBuilder interface {
	Build(ctx context.Context, conversationID string) ([]chat.Turn, error)
}

// ChatService 对话服务：发送消息并生成回复，以及消息的编辑、评分与删除
type ChatService struct {
	store       repository.Store
	assembler   ContextBuilder
	gateway     ai.Gateway
	broadcaster *realtime.Broadcaster
}

// NewChatService 创建对话服务，broadcaster 可以为 nil
func NewChatService(store repository.Store, assembler ContextBuilder, gateway ai.Gateway, broadcaster *realtime.Broadcaster) *ChatService {
	return &ChatService{
		store:       store,
		assembler:   assembler,
		gateway:     gateway,
		broadcaster: broadcaster,
	}
}

// PostMessageInput 发送消息参数
type PostMessageInput struct {
	UserID         string
	ConversationID string
	Content        string
	Attachments    []string // 文件ID
}

// PostMessageResult 一次发送产生的消息对
type PostMessageResult struct {
	UserMessage *chat.Message `json:"userMessage"`
	AIMessage   *chat.Message `json:"aiMessage"`
}

// PostMessage 发送一条用户消息并追加一条助手回复
// 校验失败时不写入任何数据；补全失败时以兜底回复代替，不向调用方报错
func (s *ChatService) PostMessage(ctx context.Context, in PostMessageInput) (*PostMessageResult, error) {
	requestID, _ := ctxutil.GetRequestID(ctx)
	logger := log.With().
		Str("request_id", requestID).
		Str("conversation_id", in.ConversationID).
		Str("user_id", in.UserID).
		Logger()

	content := strings.TrimSpace(in.Content)
	if content == "" && len(in.Attachments) == 0 {
		return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}

	conv, err := s.ownedConversation(ctx, in.UserID, in.ConversationID)
	if err != nil {
		return nil, err
	}

	msgType := chat.MessageTypeText
	if len(in.Attachments) > 0 {
		files, err := s.ownedFiles(ctx, in.UserID, in.Attachments)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, f.OriginalName)
			if f.FileType == file.TypeImage {
				msgType = chat.MessageTypeImage
			}
		}
		if content == "" {
			content = fmt.Sprintf("[Attachments: %s]", strings.Join(names, ", "))
		}
	}

	userMsg := &chat.Message{
		ID:             id.New(),
		ConversationID: conv.ID,
		UserID:         in.UserID,
		Content:        content,
		Role:           chat.RoleUser,
		Type:           msgType,
		Attachments:    in.Attachments,
	}
	if err := s.store.AppendMessage(ctx, userMsg); err != nil {
		logger.Error().Err(err).Msg("failed to append user message")
		return nil, fmt.Errorf("append user message: %w", err)
	}
	s.publish(realtime.EventMessageCreated, userMsg)

	turns, err := s.assembler.Build(ctx, conv.ID)
	if err != nil || len(turns) == 0 {
		logger.Warn().Err(err).Msg("failed to assemble context, using the new message only")
		turns = []chat.Turn{{Role: chat.RoleUser, Content: userMsg.Content}}
	}

	start := time.Now()
	completion := s.gateway.Complete(ctx, turns, conv.Model, conv.Temperature)
	event := logger.Info()
	if completion.Degraded {
		event = logger.Warn()
	}
	event.Str("provider", completion.Provider).
		Bool("degraded", completion.Degraded).
		Int("turns", len(turns)).
		Dur("elapsed", time.Since(start)).
		Msg("completion finished")

	aiMsg := &chat.Message{
		ID:             id.New(),
		ConversationID: conv.ID,
		Content:        completion.Content,
		Role:           chat.RoleAssistant,
		Type:           chat.MessageTypeText,
		Degraded:       completion.Degraded,
	}
	if err := s.store.AppendMessage(ctx, aiMsg); err != nil {
		logger.Error().Err(err).Msg("failed to append assistant message")
		return nil, fmt.Errorf("append assistant message: %w", err)
	}
	s.publish(realtime.EventMessageCreated, aiMsg)

	if err := s.store.TouchConversation(ctx, conv.ID); err != nil {
		logger.Warn().Err(err).Msg("failed to touch conversation")
	}

	return &PostMessageResult{UserMessage: userMsg, AIMessage: aiMsg}, nil
}

// ListMessages 按顺序列出会话消息
func (s *ChatService) ListMessages(ctx context.Context, userID, conversationID string) ([]*chat.Message, error) {
	if _, err := s.ownedConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// EditMessage 编辑用户自己发送的消息
func (s *ChatService) EditMessage(ctx context.Context, userID, messageID, content string) (*chat.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}

	msg, err := s.ownedMessage(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Role != chat.RoleUser || msg.UserID != userID {
		return nil, fmt.Errorf("%w: only your own messages can be edited", ErrInvalidInput)
	}

	updated, err := s.store.UpdateMessage(ctx, messageID, chat.MessageUpdate{Content: &content})
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	s.publish(realtime.EventMessageUpdated, updated)
	return updated, nil
}

// RateMessage 为消息评分，rating 取 -1、0、1
func (s *ChatService) RateMessage(ctx context.Context, userID, messageID string, rating int) (*chat.Message, error) {
	if !chat.ValidRating(rating) {
		return nil, fmt.Errorf("%w: rating must be -1, 0 or 1", ErrInvalidInput)
	}
	if _, err := s.ownedMessage(ctx, userID, messageID); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateMessage(ctx, messageID, chat.MessageUpdate{Rating: &rating})
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	s.publish(realtime.EventMessageUpdated, updated)
	return updated, nil
}

// DeleteMessage 删除消息
func (s *ChatService) DeleteMessage(ctx context.Context, userID, messageID string) error {
	msg, err := s.ownedMessage(ctx, userID, messageID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMessage(ctx, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if s.broadcaster != nil {
		s.broadcaster.Publish(realtime.Event{
			Type:           realtime.EventMessageDeleted,
			ConversationID: msg.ConversationID,
			MessageID:      msg.ID,
		})
	}
	return nil
}

// ownedConversation 查询会话并校验归属，不属于调用者时按不存在处理
func (s *ChatService) ownedConversation(ctx context.Context, userID, conversationID string) (*chat.Conversation, error) {
	return ownedConversation(ctx, s.store, userID, conversationID)
}

// ownedMessage 通过所属会话校验消息归属
func (s *ChatService) ownedMessage(ctx context.Context, userID, messageID string) (*chat.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if _, err := s.ownedConversation(ctx, userID, msg.ConversationID); err != nil {
		return nil, err
	}
	return msg, nil
}

// ownedFiles 校验附件均为调用者上传的文件
func (s *ChatService) ownedFiles(ctx context.Context, userID string, ids []string) ([]*file.File, error) {
	files := make([]*file.File, 0, len(ids))
	for _, fid := range ids {
		f, err := s.store.GetFile(ctx, fid)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && f.UserID != userID) {
			return nil, fmt.Errorf("%w: unknown attachment %s", ErrInvalidInput, fid)
		}
		if err != nil {
			return nil, fmt.Errorf("get file: %w", err)
		}
		files = append(files, f)
	}
	return files, nil
}

func (s *ChatService) publish(t realtime.EventType, msg *chat.Message) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(realtime.Event{
		Type:           t,
		ConversationID: msg.ConversationID,
		Message:        msg,
	})
}

// ownedConversation 查询会话并校验归属
func ownedConversation(ctx context.Context, store repository.ConversationStore, userID, conversationID string) (*chat.Conversation, error) {
	conv, err := store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if !conv.IsOwnedBy(userID) {
		return nil, fmt.Errorf("get conversation: %w", repository.ErrNotFound)
	}
	return conv, nil
}
