package chat

import (
	"time"
)

// DefaultTitle 新建会话的默认标题
const DefaultTitle = "New Conversation"

// Conversation 会话实体
// 所有存储后端统一使用 ID 字段（Mongo 中映射为 _id）
type Conversation struct {
	ID          string    `bson:"_id" json:"id"`                                      // UUID
	UserID      string    `bson:"user_id" json:"userId"`                              // 创建者
	Title       string    `bson:"title" json:"title"`                                 // 标题
	Description string    `bson:"description" json:"description"`                     // 描述
	Model       Model     `bson:"model" json:"model"`                                 // 模型
	Temperature float64   `bson:"temperature" json:"temperature"`                     // 0~2
	IsArchived  bool      `bson:"is_archived" json:"isArchived"`                      // 归档
	IsShared    bool      `bson:"is_shared" json:"isShared"`                          // 公开分享
	ShareToken  *string   `bson:"share_token,omitempty" json:"shareToken,omitempty"` // 首次分享时生成，之后不变
	MessageIDs  []string  `bson:"message_ids" json:"messageIds"`                      // 按追加顺序
	MessageSeq  int64     `bson:"message_seq" json:"-"`                               // 追加计数器，用于分配 Message.Seq
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updatedAt"`
}

// Collection 返回集合名称
func (c *Conversation) Collection() string {
	return "conversations"
}

// IsOwnedBy 会话是否属于该用户
func (c *Conversation) IsOwnedBy(userID string) bool {
	return c != nil && c.UserID == userID
}

// SharedWith 分享令牌是否可以读取该会话
func (c *Conversation) SharedWith(token string) bool {
	return c != nil && c.IsShared && c.ShareToken != nil && token != "" && *c.ShareToken == token
}

// Clone 返回深拷贝，内存存储返回副本避免调用方修改内部状态
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	if c.ShareToken != nil {
		token := *c.ShareToken
		cp.ShareToken = &token
	}
	cp.MessageIDs = append([]string(nil), c.MessageIDs...)
	return &cp
}

// ConversationUpdate 会话部分更新，nil 字段不修改
type ConversationUpdate struct {
	Title       *string
	Description *string
	Model       *Model
	Temperature *float64
	IsArchived  *bool
	IsShared    *bool
}

// IsEmpty 是否没有任何修改
func (u ConversationUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Model == nil &&
		u.Temperature == nil && u.IsArchived == nil && u.IsShared == nil
}

// Apply 将修改应用到会话
func (u ConversationUpdate) Apply(c *Conversation) {
	if u.Title != nil {
		c.Title = *u.Title
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.Model != nil {
		c.Model = *u.Model
	}
	if u.Temperature != nil {
		c.Temperature = *u.Temperature
	}
	if u.IsArchived != nil {
		c.IsArchived = *u.IsArchived
	}
	if u.IsShared != nil {
		c.IsShared = *u.IsShared
	}
}
