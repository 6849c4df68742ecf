package repository

import (
	"context"
	"errors"

	"parley/internal/model/auth"
	"parley/internal/model/chat"
	"parley/internal/model/file"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrConflict 唯一约束冲突（用户名、邮箱、分享令牌）
	ErrConflict = errors.New("record conflict")
)

// ListOptions 会话列表筛选
type ListOptions struct {
	Archived bool // true 只返回已归档，false 只返回未归档
}

// UserStore 用户存储
type UserStore interface {
	CreateUser(ctx context.Context, user *auth.User) error
	FindUserByID(ctx context.Context, id string) (*auth.User, error)
	FindUserByEmail(ctx context.Context, email string) (*auth.User, error)
	UpdateUser(ctx context.Context, id string, update auth.UserUpdate) (*auth.User, error)
}

// ConversationStore 会话存储
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *chat.Conversation) error
	GetConversation(ctx context.Context, id string) (*chat.Conversation, error)
	// ListConversations 按 UpdatedAt 倒序
	ListConversations(ctx context.Context, userID string, opts ListOptions) ([]*chat.Conversation, error)
	UpdateConversation(ctx context.Context, id string, update chat.ConversationUpdate) (*chat.Conversation, error)
	// TouchConversation 只刷新 UpdatedAt
	TouchConversation(ctx context.Context, id string) error
	// DeleteConversation 级联删除消息
	DeleteConversation(ctx context.Context, id string) error
	// SetShareToken 令牌只设置一次，返回最终生效的令牌
	SetShareToken(ctx context.Context, id, token string) (string, error)
	FindConversationByShareToken(ctx context.Context, token string) (*chat.Conversation, error)
}

// MessageStore 消息存储
type MessageStore interface {
	// AppendMessage 原子分配 Seq 并写入会话的消息列表
	AppendMessage(ctx context.Context, msg *chat.Message) error
	GetMessage(ctx context.Context, id string) (*chat.Message, error)
	// ListMessages 按 Seq 升序，会话不存在返回 ErrNotFound
	ListMessages(ctx context.Context, conversationID string) ([]*chat.Message, error)
	UpdateMessage(ctx context.Context, id string, update chat.MessageUpdate) (*chat.Message, error)
	DeleteMessage(ctx context.Context, id string) error
}

// FileStore 文件记录存储
type FileStore interface {
	CreateFile(ctx context.Context, f *file.File) error
	GetFile(ctx context.Context, id string) (*file.File, error)
	ListFiles(ctx context.Context, userID string) ([]*file.File, error)
	ListFilesByConversation(ctx context.Context, userID, conversationID string) ([]*file.File, error)
	DeleteFile(ctx context.Context, id string) error
}

// Store 全部存储能力
type Store interface {
	UserStore
	ConversationStore
	MessageStore
	FileStore

	// Ping 检查后端是否可用
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
