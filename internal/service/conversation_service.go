package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"parley/internal/model/chat"
	"parley/internal/pkg/id"
	"parley/internal/repository"
)

// ConversationDefaults 新建会话的默认值
type ConversationDefaults struct {
	Model        chat.Model
	Temperature  float64
	ShareBaseURL string // 分享链接前缀
}

// ConversationService 会话服务
type ConversationService struct {
	store    repository.Store
	defaults ConversationDefaults
	markdown goldmark.Markdown
}

// NewConversationService 创建会话服务
func NewConversationService(store repository.Store, defaults ConversationDefaults) *ConversationService {
	if !defaults.Model.IsValid() {
		defaults.Model = chat.ModelGPT35Turbo
	}
	return &ConversationService{
		store:    store,
		defaults: defaults,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// CreateConversationInput 新建会话参数，零值字段使用默认值
type CreateConversationInput struct {
	Title       string
	Model       string
	Temperature *float64
}

// Create 新建会话
func (s *ConversationService) Create(ctx context.Context, userID string, in CreateConversationInput) (*chat.Conversation, error) {
	conv := &chat.Conversation{
		ID:          id.New(),
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Model:       s.defaults.Model,
		Temperature: s.defaults.Temperature,
		MessageIDs:  []string{},
	}
	if conv.Title == "" {
		conv.Title = chat.DefaultTitle
	}
	if in.Model != "" {
		m, err := chat.ParseModel(in.Model)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		conv.Model = m
	}
	if in.Temperature != nil {
		if !chat.ValidTemperature(*in.Temperature) {
			return nil, fmt.Errorf("%w: temperature must be within [0, 2]", ErrInvalidInput)
		}
		conv.Temperature = *in.Temperature
	}

	if err := s.store.CreateConversation(ctx, conv); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to create conversation")
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// List 列出未归档的会话，最近更新的在前
func (s *ConversationService) List(ctx context.Context, userID string) ([]*chat.Conversation, error) {
	return s.list(ctx, userID, false)
}

// ListArchived 列出已归档的会话
func (s *ConversationService) ListArchived(ctx context.Context, userID string) ([]*chat.Conversation, error) {
	return s.list(ctx, userID, true)
}

func (s *ConversationService) list(ctx context.Context, userID string, archived bool) ([]*chat.Conversation, error) {
	convs, err := s.store.ListConversations(ctx, userID, repository.ListOptions{Archived: archived})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// ConversationDetail 会话及其消息
type ConversationDetail struct {
	*chat.Conversation
	Messages []*chat.Message `json:"messages"`
}

// Get 查询会话及全部消息
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*ConversationDetail, error) {
	conv, err := ownedConversation(ctx, s.store, userID, conversationID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, conv)
}

func (s *ConversationService) detail(ctx context.Context, conv *chat.Conversation) (*ConversationDetail, error) {
	msgs, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return &ConversationDetail{Conversation: conv, Messages: msgs}, nil
}

// UpdateConversationInput 更新会话参数，nil 字段保持不变
type UpdateConversationInput struct {
	Title       *string
	Description *string
	Model       *string
	Temperature *float64
}

// Update 更新会话的标题、描述、模型或温度
func (s *ConversationService) Update(ctx context.Context, userID, conversationID string, in UpdateConversationInput) (*chat.Conversation, error) {
	var update chat.ConversationUpdate
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
		}
		update.Title = &title
	}
	update.Description = in.Description
	if in.Model != nil {
		m, err := chat.ParseModel(*in.Model)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		update.Model = &m
	}
	if in.Temperature != nil {
		if !chat.ValidTemperature(*in.Temperature) {
			return nil, fmt.Errorf("%w: temperature must be within [0, 2]", ErrInvalidInput)
		}
		update.Temperature = in.Temperature
	}

	return s.update(ctx, userID, conversationID, update)
}

// Archive 归档会话
func (s *ConversationService) Archive(ctx context.Context, userID, conversationID string) (*chat.Conversation, error) {
	archived := true
	return s.update(ctx, userID, conversationID, chat.ConversationUpdate{IsArchived: &archived})
}

// Restore 取消归档
func (s *ConversationService) Restore(ctx context.Context, userID, conversationID string) (*chat.Conversation, error) {
	archived := false
	return s.update(ctx, userID, conversationID, chat.ConversationUpdate{IsArchived: &archived})
}

func (s *ConversationService) update(ctx context.Context, userID, conversationID string, update chat.ConversationUpdate) (*chat.Conversation, error) {
	conv, err := ownedConversation(ctx, s.store, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return conv, nil
	}
	updated, err := s.store.UpdateConversation(ctx, conversationID, update)
	if err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	return updated, nil
}

// Delete 删除会话及其全部消息
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID string) error {
	if _, err := ownedConversation(ctx, s.store, userID, conversationID); err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to delete conversation")
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// ShareResult 分享结果
type ShareResult struct {
	ShareURL   string `json:"shareUrl"`
	ShareToken string `json:"shareToken"`
}

// Share 开启分享，令牌只生成一次，重复调用返回同一令牌
func (s *ConversationService) Share(ctx context.Context, userID, conversationID string) (*ShareResult, error) {
	conv, err := ownedConversation(ctx, s.store, userID, conversationID)
	if err != nil {
		return nil, err
	}

	token := ""
	if conv.ShareToken != nil {
		token = *conv.ShareToken
	} else {
		if token, err = id.NewToken(); err != nil {
			log.Error().Err(err).Msg("failed to generate share token")
			return nil, fmt.Errorf("generate share token: %w", err)
		}
	}

	// 并发分享时以先写入的令牌为准
	token, err = s.store.SetShareToken(ctx, conversationID, token)
	if err != nil {
		return nil, fmt.Errorf("set share token: %w", err)
	}

	if !conv.IsShared {
		shared := true
		if _, err := s.store.UpdateConversation(ctx, conversationID, chat.ConversationUpdate{IsShared: &shared}); err != nil {
			return nil, fmt.Errorf("update conversation: %w", err)
		}
	}

	return &ShareResult{
		ShareURL:   strings.TrimSuffix(s.defaults.ShareBaseURL, "/") + "/" + token,
		ShareToken: token,
	}, nil
}

// Unshare 关闭分享，令牌保留，再次分享时复用
func (s *ConversationService) Unshare(ctx context.Context, userID, conversationID string) (*chat.Conversation, error) {
	shared := false
	return s.update(ctx, userID, conversationID, chat.ConversationUpdate{IsShared: &shared})
}

// GetShared 通过分享令牌读取会话，无需登录
func (s *ConversationService) GetShared(ctx context.Context, token string) (*ConversationDetail, error) {
	if token == "" {
		return nil, fmt.Errorf("get shared conversation: %w", repository.ErrNotFound)
	}
	conv, err := s.store.FindConversationByShareToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get shared conversation: %w", err)
	}
	if !conv.SharedWith(token) {
		return nil, fmt.Errorf("get shared conversation: %w", repository.ErrNotFound)
	}
	return s.detail(ctx, conv)
}
