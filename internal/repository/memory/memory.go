// Package memory 进程内存储实现，用于测试和本地演示
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"parley/internal/model/auth"
	"parley/internal/model/chat"
	"parley/internal/model/file"
	"parley/internal/repository"
)

// Store 以互斥锁保护的 map 实现 repository.Store
// 所有读取都返回副本
type Store struct {
	mu            sync.RWMutex
	users         map[string]*auth.User
	conversations map[string]*chat.Conversation
	messages      map[string]*chat.Message
	files         map[string]*file.File
}

var _ repository.Store = (*Store)(nil)

// New 创建内存存储
func New() *Store {
	return &Store{
		users:         make(map[string]*auth.User),
		conversations: make(map[string]*chat.Conversation),
		messages:      make(map[string]*chat.Message),
		files:         make(map[string]*file.File),
	}
}

// Ping 内存存储总是可用
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close 无资源需要释放
func (s *Store) Close(ctx context.Context) error {
	return nil
}

// ===== 用户 =====

// CreateUser 创建用户，用户名或邮箱重复返回 ErrConflict
func (s *Store) CreateUser(ctx context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email || u.Username == user.Username {
			return repository.ErrConflict
		}
	}
	if _, ok := s.users[user.ID]; ok {
		return repository.ErrConflict
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// FindUserByID 根据ID查询用户
func (s *Store) FindUserByID(ctx context.Context, id string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// FindUserByEmail 根据邮箱查询用户
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// UpdateUser 更新用户资料
func (s *Store) UpdateUser(ctx context.Context, id string, update auth.UserUpdate) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if update.Username != nil && *update.Username != u.Username {
		for _, other := range s.users {
			if other.ID != id && other.Username == *update.Username {
				return nil, repository.ErrConflict
			}
		}
	}

	update.Apply(u)
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

// ===== 会话 =====

// CreateConversation 创建会话
func (s *Store) CreateConversation(ctx context.Context, conv *chat.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conv.ID]; ok {
		return repository.ErrConflict
	}
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	if conv.MessageIDs == nil {
		conv.MessageIDs = []string{}
	}
	s.conversations[conv.ID] = conv.Clone()
	return nil
}

// GetConversation 根据ID查询会话
func (s *Store) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c.Clone(), nil
}

// ListConversations 查询用户会话列表
func (s *Store) ListConversations(ctx context.Context, userID string, opts repository.ListOptions) ([]*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convs := make([]*chat.Conversation, 0)
	for _, c := range s.conversations {
		if c.UserID == userID && c.IsArchived == opts.Archived {
			convs = append(convs, c.Clone())
		}
	}
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

// UpdateConversation 部分更新会话
func (s *Store) UpdateConversation(ctx context.Context, id string, update chat.ConversationUpdate) (*chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	update.Apply(c)
	c.UpdatedAt = time.Now()
	return c.Clone(), nil
}

// TouchConversation 刷新更新时间
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.UpdatedAt = time.Now()
	return nil
}

// DeleteConversation 删除会话及其消息
// 持有写锁期间不会有并发追加，一次清理即可
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return repository.ErrNotFound
	}
	for mid, m := range s.messages {
		if m.ConversationID == id {
			delete(s.messages, mid)
		}
	}
	delete(s.conversations, id)
	return nil
}

// SetShareToken 设置分享令牌，已有令牌时保持不变
func (s *Store) SetShareToken(ctx context.Context, id, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	if c.ShareToken != nil {
		return *c.ShareToken, nil
	}
	for _, other := range s.conversations {
		if other.ShareToken != nil && *other.ShareToken == token {
			return "", repository.ErrConflict
		}
	}
	t := token
	c.ShareToken = &t
	c.UpdatedAt = time.Now()
	return token, nil
}

// FindConversationByShareToken 根据分享令牌查询会话
func (s *Store) FindConversationByShareToken(ctx context.Context, token string) (*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.conversations {
		if c.ShareToken != nil && *c.ShareToken == token {
			return c.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

// ===== 消息 =====

// AppendMessage 追加消息，分配 Seq 并维护会话的消息列表
func (s *Store) AppendMessage(ctx context.Context, msg *chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[msg.ConversationID]
	if !ok {
		return repository.ErrNotFound
	}
	if _, exists := s.messages[msg.ID]; exists {
		return repository.ErrConflict
	}

	now := time.Now()
	// CreatedAt 沿 Seq 单调不减
	if n := len(c.MessageIDs); n > 0 {
		if last, ok := s.messages[c.MessageIDs[n-1]]; ok && now.Before(last.CreatedAt) {
			now = last.CreatedAt
		}
	}

	if msg.Attachments == nil {
		msg.Attachments = []string{}
	}
	c.MessageSeq++
	msg.Seq = c.MessageSeq
	msg.CreatedAt = now
	msg.UpdatedAt = now
	c.MessageIDs = append(c.MessageIDs, msg.ID)
	c.UpdatedAt = now

	s.messages[msg.ID] = msg.Clone()
	return nil
}

// GetMessage 根据ID查询消息
func (s *Store) GetMessage(ctx context.Context, id string) (*chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.Clone(), nil
}

// ListMessages 查询会话的全部消息，按 Seq 升序
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]*chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return nil, repository.ErrNotFound
	}

	msgs := make([]*chat.Message, 0)
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			msgs = append(msgs, m.Clone())
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].Seq < msgs[j].Seq
	})
	return msgs, nil
}

// UpdateMessage 更新消息内容或评分
func (s *Store) UpdateMessage(ctx context.Context, id string, update chat.MessageUpdate) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	now := time.Now()
	update.Apply(m, now)
	if c, ok := s.conversations[m.ConversationID]; ok {
		c.UpdatedAt = now
	}
	return m.Clone(), nil
}

// DeleteMessage 删除消息并从会话列表中移除
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(s.messages, id)

	if c, ok := s.conversations[m.ConversationID]; ok {
		ids := c.MessageIDs[:0]
		for _, mid := range c.MessageIDs {
			if mid != id {
				ids = append(ids, mid)
			}
		}
		c.MessageIDs = ids
		c.UpdatedAt = time.Now()
	}
	return nil
}

// ===== 文件 =====

// CreateFile 创建文件记录
func (s *Store) CreateFile(ctx context.Context, f *file.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[f.ID]; ok {
		return repository.ErrConflict
	}
	f.CreatedAt = time.Now()
	cp := *f
	s.files[f.ID] = &cp
	return nil
}

// GetFile 根据ID查询文件记录
func (s *Store) GetFile(ctx context.Context, id string) (*file.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

// ListFiles 查询用户的全部文件，最新在前
func (s *Store) ListFiles(ctx context.Context, userID string) ([]*file.File, error) {
	return s.listFiles(func(f *file.File) bool {
		return f.UserID == userID
	}), nil
}

// ListFilesByConversation 查询用户在某会话中的文件
func (s *Store) ListFilesByConversation(ctx context.Context, userID, conversationID string) ([]*file.File, error) {
	return s.listFiles(func(f *file.File) bool {
		return f.UserID == userID && f.ConversationID == conversationID
	}), nil
}

func (s *Store) listFiles(match func(*file.File) bool) []*file.File {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make([]*file.File, 0)
	for _, f := range s.files {
		if match(f) {
			cp := *f
			files = append(files, &cp)
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files
}

// DeleteFile 删除文件记录
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.files, id)
	return nil
}
