package gormstore

import (
	"encoding/json"
	"time"

	"parley/internal/model/auth"
	"parley/internal/model/chat"
	"parley/internal/model/file"
)

// UserModel 数据库用户模型
type UserModel struct {
	ID           string `gorm:"primaryKey;size:64"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	ProfileImage string `gorm:"size:512"`
	Theme        string `gorm:"size:16"`
	Language     string `gorm:"size:16"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName 指定表名
func (UserModel) TableName() string {
	return "users"
}

// ConversationModel 数据库会话模型
// 消息列表不落在会话行上，读取时按 seq 从 messages 表查出
type ConversationModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	UserID      string `gorm:"index:idx_user_archived;size:64;not null"`
	Title       string `gorm:"size:255"`
	Description string `gorm:"type:text"`
	Model       string `gorm:"size:32"`
	Temperature float64
	IsArchived  bool    `gorm:"index:idx_user_archived"`
	IsShared    bool
	ShareToken  *string `gorm:"uniqueIndex;size:128"`
	MessageSeq  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName 指定表名
func (ConversationModel) TableName() string {
	return "conversations"
}

// MessageModel 数据库消息模型
type MessageModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	ConversationID string `gorm:"uniqueIndex:idx_conversation_seq;size:64;not null"`
	Seq            int64  `gorm:"uniqueIndex:idx_conversation_seq"`
	UserID         string `gorm:"size:64"`
	Content        string `gorm:"type:text;not null"`
	Role           string `gorm:"size:16;not null"`
	Type           string `gorm:"size:16"`
	Attachments    string `gorm:"type:text"` // JSON encoded file IDs
	IsEdited       bool
	EditedAt       *time.Time
	Rating         int
	Degraded       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName 指定表名
func (MessageModel) TableName() string {
	return "messages"
}

// FileModel 数据库文件模型
type FileModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	UserID         string `gorm:"index;size:64;not null"`
	ConversationID string `gorm:"index;size:64"`
	Filename       string `gorm:"size:255"`
	OriginalName   string `gorm:"size:255"`
	MimeType       string `gorm:"size:128"`
	Size           int64
	StorageKey     string `gorm:"size:512"`
	StorageType    string `gorm:"size:16"`
	FileType       string `gorm:"size:16"`
	ExtractedText  string `gorm:"type:text"`
	AnalysisResult string `gorm:"type:text"` // JSON encoded
	CreatedAt      time.Time
}

// TableName 指定表名
func (FileModel) TableName() string {
	return "files"
}

// 转换方法

func userToModel(u *auth.User) *UserModel {
	return &UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		ProfileImage: u.ProfileImage,
		Theme:        string(u.Theme),
		Language:     u.Language,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userToEntity(m *UserModel) *auth.User {
	return &auth.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		ProfileImage: m.ProfileImage,
		Theme:        auth.Theme(m.Theme),
		Language:     m.Language,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func conversationToModel(c *chat.Conversation) *ConversationModel {
	return &ConversationModel{
		ID:          c.ID,
		UserID:      c.UserID,
		Title:       c.Title,
		Description: c.Description,
		Model:       string(c.Model),
		Temperature: c.Temperature,
		IsArchived:  c.IsArchived,
		IsShared:    c.IsShared,
		ShareToken:  c.ShareToken,
		MessageSeq:  c.MessageSeq,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func conversationToEntity(m *ConversationModel, messageIDs []string) *chat.Conversation {
	if messageIDs == nil {
		messageIDs = []string{}
	}
	return &chat.Conversation{
		ID:          m.ID,
		UserID:      m.UserID,
		Title:       m.Title,
		Description: m.Description,
		Model:       chat.Model(m.Model),
		Temperature: m.Temperature,
		IsArchived:  m.IsArchived,
		IsShared:    m.IsShared,
		ShareToken:  m.ShareToken,
		MessageIDs:  messageIDs,
		MessageSeq:  m.MessageSeq,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func messageToModel(msg *chat.Message) *MessageModel {
	attachments, _ := json.Marshal(msg.Attachments)
	return &MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Seq:            msg.Seq,
		UserID:         msg.UserID,
		Content:        msg.Content,
		Role:           string(msg.Role),
		Type:           string(msg.Type),
		Attachments:    string(attachments),
		IsEdited:       msg.IsEdited,
		EditedAt:       msg.EditedAt,
		Rating:         msg.Rating,
		Degraded:       msg.Degraded,
		CreatedAt:      msg.CreatedAt,
		UpdatedAt:      msg.UpdatedAt,
	}
}

func messageToEntity(m *MessageModel) *chat.Message {
	var attachments []string
	if m.Attachments != "" {
		_ = json.Unmarshal([]byte(m.Attachments), &attachments)
	}
	if attachments == nil {
		attachments = []string{}
	}
	return &chat.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		UserID:         m.UserID,
		Content:        m.Content,
		Role:           chat.Role(m.Role),
		Type:           chat.MessageType(m.Type),
		Attachments:    attachments,
		IsEdited:       m.IsEdited,
		EditedAt:       m.EditedAt,
		Rating:         m.Rating,
		Degraded:       m.Degraded,
		Seq:            m.Seq,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func fileToModel(f *file.File) *FileModel {
	var analysis []byte
	if f.AnalysisResult != nil {
		analysis, _ = json.Marshal(f.AnalysisResult)
	}
	return &FileModel{
		ID:             f.ID,
		UserID:         f.UserID,
		ConversationID: f.ConversationID,
		Filename:       f.Filename,
		OriginalName:   f.OriginalName,
		MimeType:       f.MimeType,
		Size:           f.Size,
		StorageKey:     f.StorageKey,
		StorageType:    f.StorageType,
		FileType:       string(f.FileType),
		ExtractedText:  f.ExtractedText,
		AnalysisResult: string(analysis),
		CreatedAt:      f.CreatedAt,
	}
}

func fileToEntity(m *FileModel) *file.File {
	var analysis map[string]any
	if m.AnalysisResult != "" {
		_ = json.Unmarshal([]byte(m.AnalysisResult), &analysis)
	}
	return &file.File{
		ID:             m.ID,
		UserID:         m.UserID,
		ConversationID: m.ConversationID,
		Filename:       m.Filename,
		OriginalName:   m.OriginalName,
		MimeType:       m.MimeType,
		Size:           m.Size,
		StorageKey:     m.StorageKey,
		StorageType:    m.StorageType,
		FileType:       file.Type(m.FileType),
		ExtractedText:  m.ExtractedText,
		AnalysisResult: analysis,
		CreatedAt:      m.CreatedAt,
	}
}
