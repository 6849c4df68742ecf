package chat

import (
	"time"
)

// Message 消息实体
// 追加后只允许修改内容（编辑）、评分等软字段，顺序由 Seq 决定
type Message struct {
	ID             string      `bson:"_id" json:"id"`
	ConversationID string      `bson:"conversation_id" json:"conversationId"`
	UserID         string      `bson:"user_id,omitempty" json:"userId,omitempty"` // 助手消息为空
	Content        string      `bson:"content" json:"content"`
	Role           Role        `bson:"role" json:"role"`
	Type           MessageType `bson:"type" json:"type"`
	Attachments    []string    `bson:"attachments,omitempty" json:"attachments"` // 文件ID
	IsEdited       bool        `bson:"is_edited" json:"isEdited"`
	EditedAt       *time.Time  `bson:"edited_at,omitempty" json:"editedAt,omitempty"`
	Rating         int         `bson:"rating" json:"rating"`
	Degraded       bool        `bson:"degraded,omitempty" json:"degraded,omitempty"` // 助手回复来自降级兜底
	Seq            int64       `bson:"seq" json:"seq"`                               // 会话内位置，从 1 开始
	CreatedAt      time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time   `bson:"updated_at" json:"updatedAt"`
}

// Collection 返回集合名称
func (m *Message) Collection() string {
	return "messages"
}

// Clone 返回深拷贝
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Attachments = append(make([]string, 0, len(m.Attachments)), m.Attachments...)
	if m.EditedAt != nil {
		t := *m.EditedAt
		cp.EditedAt = &t
	}
	return &cp
}

// MessageUpdate 消息部分更新
type MessageUpdate struct {
	Content *string
	Rating  *int
}

// Apply 将修改应用到消息，内容修改会标记为已编辑
func (u MessageUpdate) Apply(m *Message, now time.Time) {
	if u.Content != nil {
		m.Content = *u.Content
		m.IsEdited = true
		m.EditedAt = &now
	}
	if u.Rating != nil {
		m.Rating = *u.Rating
	}
	m.UpdatedAt = now
}
