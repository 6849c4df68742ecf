package service

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"parley/internal/model/chat"
	"parley/internal/pkg/id"
)

// ExportDocument 会话导出格式，同时作为导入格式
type ExportDocument struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Model       chat.Model      `json:"model"`
	Temperature float64         `json:"temperature"`
	CreatedAt   time.Time       `json:"createdAt"`
	ExportedAt  time.Time       `json:"exportedAt"`
	Messages    []*chat.Message `json:"messages"`
}

// ExportFilename 导出文件名
func ExportFilename(conversationID, ext string) string {
	return fmt.Sprintf("conversation-%s.%s", conversationID, ext)
}

// Export 导出会话，消息与 ListMessages 的结果一致
func (s *ConversationService) Export(ctx context.Context, userID, conversationID string) (*ExportDocument, error) {
	d, err := s.Get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	return &ExportDocument{
		Title:       d.Title,
		Description: d.Description,
		Model:       d.Model,
		Temperature: d.Temperature,
		CreatedAt:   d.CreatedAt,
		ExportedAt:  time.Now(),
		Messages:    d.Messages,
	}, nil
}

// ExportMarkdown 导出为 Markdown
func (s *ConversationService) ExportMarkdown(ctx context.Context, userID, conversationID string) (string, error) {
	doc, err := s.Export(ctx, userID, conversationID)
	if err != nil {
		return "", err
	}
	return RenderMarkdown(doc), nil
}

// ExportHTML 导出为 HTML，正文由 Markdown 渲染
func (s *ConversationService) ExportHTML(ctx context.Context, userID, conversationID string) (string, error) {
	doc, err := s.Export(ctx, userID, conversationID)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	if err := s.markdown.Convert([]byte(RenderMarkdown(doc)), &body); err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to render markdown")
		return "", fmt.Errorf("render html: %w", err)
	}

	var out strings.Builder
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&out, "<title>%s</title>\n", html.EscapeString(doc.Title))
	out.WriteString("</head>\n<body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.String(), nil
}

// RenderMarkdown 将导出文档渲染为 Markdown
func RenderMarkdown(doc *ExportDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	if doc.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", doc.Description)
	}
	fmt.Fprintf(&b, "- Model: %s\n", doc.Model)
	fmt.Fprintf(&b, "- Temperature: %g\n", doc.Temperature)
	fmt.Fprintf(&b, "- Created: %s\n\n", doc.CreatedAt.UTC().Format(time.RFC3339))

	for _, m := range doc.Messages {
		b.WriteString("---\n\n")
		fmt.Fprintf(&b, "### %s\n\n", roleHeading(m.Role))
		fmt.Fprintf(&b, "%s\n\n", m.Content)
	}
	return b.String()
}

func roleHeading(r chat.Role) string {
	switch r {
	case chat.RoleAssistant:
		return "Assistant"
	case chat.RoleSystem:
		return "System"
	default:
		return "User"
	}
}

// Import 根据导出文档新建会话并按顺序写入消息
// 先整体校验，校验失败不产生任何写入
func (s *ConversationService) Import(ctx context.Context, userID string, doc *ExportDocument) (*chat.Conversation, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidInput)
	}

	model := s.defaults.Model
	if doc.Model != "" {
		if !doc.Model.IsValid() {
			return nil, fmt.Errorf("%w: unsupported model %q", ErrInvalidInput, doc.Model)
		}
		model = doc.Model
	}
	if !chat.ValidTemperature(doc.Temperature) {
		return nil, fmt.Errorf("%w: temperature must be within [0, 2]", ErrInvalidInput)
	}

	msgs := make([]*chat.Message, 0, len(doc.Messages))
	for i, m := range doc.Messages {
		if m == nil || !m.Role.IsValid() {
			return nil, fmt.Errorf("%w: message %d has an invalid role", ErrInvalidInput, i)
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			return nil, fmt.Errorf("%w: message %d is empty", ErrInvalidInput, i)
		}
		msg := &chat.Message{
			ID:       id.New(),
			Content:  content,
			Role:     m.Role,
			Type:     m.Type,
			Degraded: m.Degraded,
		}
		if !msg.Type.IsValid() {
			msg.Type = chat.MessageTypeText
		}
		if chat.ValidRating(m.Rating) {
			msg.Rating = m.Rating
		}
		if msg.Role == chat.RoleUser {
			msg.UserID = userID
		}
		msgs = append(msgs, msg)
	}

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = chat.DefaultTitle
	}
	conv := &chat.Conversation{
		ID:          id.New(),
		UserID:      userID,
		Title:       title,
		Description: doc.Description,
		Model:       model,
		Temperature: doc.Temperature,
		MessageIDs:  []string{},
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	logger := log.With().Str("conversation_id", conv.ID).Str("user_id", userID).Logger()
	for _, msg := range msgs {
		msg.ConversationID = conv.ID
		if err := s.store.AppendMessage(ctx, msg); err != nil {
			logger.Error().Err(err).Msg("failed to import message, rolling back")
			if derr := s.store.DeleteConversation(ctx, conv.ID); derr != nil {
				logger.Error().Err(derr).Msg("failed to remove partially imported conversation")
			}
			return nil, fmt.Errorf("import messages: %w", err)
		}
	}

	imported, err := s.store.GetConversation(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	logger.Info().Int("messages", len(msgs)).Msg("conversation imported")
	return imported, nil
}
