// Package gormstore SQLite / PostgreSQL 存储实现
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"parley/internal/model/auth"
	"parley/internal/model/chat"
	"parley/internal/model/file"
	"parley/internal/repository"
)

// Store GORM 实现的存储
type Store struct {
	db *gorm.DB
}

var _ repository.Store = (*Store)(nil)

// Open 根据类型打开数据库并自动迁移
func Open(dbType, dsn string) (*Store, error) {
	var dialector gorm.Dialector

	switch dbType {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite 单写者，串行化连接避免 database is locked
	if dbType == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// autoMigrate 自动迁移数据库结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&ConversationModel{},
		&MessageModel{},
		&FileModel{},
	)
}

// Ping 检查连接
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭连接
func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repository.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return repository.ErrConflict
	default:
		return err
	}
}

// ===== 用户 =====

// CreateUser 创建用户
func (s *Store) CreateUser(ctx context.Context, user *auth.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&UserModel{}).
			Where("email = ? OR username = ?", user.Email, user.Username).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return repository.ErrConflict
		}
		return translate(tx.Create(userToModel(user)).Error)
	})
}

// FindUserByID 根据ID查询用户
func (s *Store) FindUserByID(ctx context.Context, id string) (*auth.User, error) {
	var m UserModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return userToEntity(&m), nil
}

// FindUserByEmail 根据邮箱查询用户
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	var m UserModel
	if err := s.db.WithContext(ctx).First(&m, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return userToEntity(&m), nil
}

// UpdateUser 更新用户资料
func (s *Store) UpdateUser(ctx context.Context, id string, update auth.UserUpdate) (*auth.User, error) {
	var m UserModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&m, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if update.Username != nil && *update.Username != m.Username {
			var count int64
			if err := tx.Model(&UserModel{}).
				Where("username = ? AND id <> ?", *update.Username, id).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return repository.ErrConflict
			}
		}

		user := userToEntity(&m)
		update.Apply(user)
		user.UpdatedAt = time.Now()
		m = *userToModel(user)
		return translate(tx.Save(&m).Error)
	})
	if err != nil {
		return nil, err
	}
	return userToEntity(&m), nil
}

// ===== 会话 =====

// messageIDs 按 seq 查询会话的消息ID列表
func messageIDs(tx *gorm.DB, conversationIDs ...string) (map[string][]string, error) {
	var rows []MessageModel
	err := tx.Model(&MessageModel{}).
		Select("id", "conversation_id", "seq").
		Where("conversation_id IN ?", conversationIDs).
		Order("seq asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	ids := make(map[string][]string, len(conversationIDs))
	for _, r := range rows {
		ids[r.ConversationID] = append(ids[r.ConversationID], r.ID)
	}
	return ids, nil
}

func (s *Store) loadConversation(tx *gorm.DB, query string, arg any) (*chat.Conversation, error) {
	var m ConversationModel
	if err := tx.First(&m, query, arg).Error; err != nil {
		return nil, translate(err)
	}
	ids, err := messageIDs(tx, m.ID)
	if err != nil {
		return nil, err
	}
	return conversationToEntity(&m, ids[m.ID]), nil
}

// CreateConversation 创建会话
func (s *Store) CreateConversation(ctx context.Context, conv *chat.Conversation) error {
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	if conv.MessageIDs == nil {
		conv.MessageIDs = []string{}
	}
	return translate(s.db.WithContext(ctx).Create(conversationToModel(conv)).Error)
}

// GetConversation 根据ID查询会话
func (s *Store) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	return s.loadConversation(s.db.WithContext(ctx), "id = ?", id)
}

// ListConversations 查询用户会话列表，最近更新在前
func (s *Store) ListConversations(ctx context.Context, userID string, opts repository.ListOptions) ([]*chat.Conversation, error) {
	db := s.db.WithContext(ctx)

	var rows []ConversationModel
	err := db.Where("user_id = ? AND is_archived = ?", userID, opts.Archived).
		Order("updated_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	convs := make([]*chat.Conversation, 0, len(rows))
	if len(rows) == 0 {
		return convs, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	msgIDs, err := messageIDs(db, ids...)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		convs = append(convs, conversationToEntity(&rows[i], msgIDs[rows[i].ID]))
	}
	return convs, nil
}

// UpdateConversation 部分更新会话
func (s *Store) UpdateConversation(ctx context.Context, id string, update chat.ConversationUpdate) (*chat.Conversation, error) {
	fields := map[string]any{"updated_at": time.Now()}
	if update.Title != nil {
		fields["title"] = *update.Title
	}
	if update.Description != nil {
		fields["description"] = *update.Description
	}
	if update.Model != nil {
		fields["model"] = string(*update.Model)
	}
	if update.Temperature != nil {
		fields["temperature"] = *update.Temperature
	}
	if update.IsArchived != nil {
		fields["is_archived"] = *update.IsArchived
	}
	if update.IsShared != nil {
		fields["is_shared"] = *update.IsShared
	}

	var conv *chat.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ConversationModel{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		var err error
		conv, err = s.loadConversation(tx, "id = ?", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// TouchConversation 刷新更新时间
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&ConversationModel{}).
		Where("id = ?", id).
		Update("updated_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteConversation 在事务中删除会话及其消息
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&MessageModel{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&ConversationModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		return tx.Where("conversation_id = ?", id).Delete(&MessageModel{}).Error
	})
}

// SetShareToken 设置分享令牌，已有令牌时保持不变
func (s *Store) SetShareToken(ctx context.Context, id, token string) (string, error) {
	var effective string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m ConversationModel
		if err := tx.First(&m, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if m.ShareToken != nil {
			effective = *m.ShareToken
			return nil
		}
		var count int64
		if err := tx.Model(&ConversationModel{}).Where("share_token = ?", token).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return repository.ErrConflict
		}
		err := tx.Model(&ConversationModel{}).Where("id = ?", id).Updates(map[string]any{
			"share_token": token,
			"updated_at":  time.Now(),
		}).Error
		if err != nil {
			return translate(err)
		}
		effective = token
		return nil
	})
	if err != nil {
		return "", err
	}
	return effective, nil
}

// FindConversationByShareToken 根据分享令牌查询会话
func (s *Store) FindConversationByShareToken(ctx context.Context, token string) (*chat.Conversation, error) {
	return s.loadConversation(s.db.WithContext(ctx), "share_token = ?", token)
}

// ===== 消息 =====

// AppendMessage 在事务中递增 message_seq 并写入消息
// 时间在计数器行锁之后取，保证 CreatedAt 沿 Seq 不减
func (s *Store) AppendMessage(ctx context.Context, msg *chat.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ConversationModel{}).
			Where("id = ?", msg.ConversationID).
			UpdateColumn("message_seq", gorm.Expr("message_seq + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}

		var conv ConversationModel
		if err := tx.Select("id", "message_seq").First(&conv, "id = ?", msg.ConversationID).Error; err != nil {
			return translate(err)
		}

		now := time.Now()
		var last MessageModel
		err := tx.Select("created_at").
			Where("conversation_id = ?", msg.ConversationID).
			Order("seq desc").
			Limit(1).
			Find(&last).Error
		if err != nil {
			return err
		}
		if now.Before(last.CreatedAt) {
			now = last.CreatedAt
		}

		if msg.Attachments == nil {
			msg.Attachments = []string{}
		}
		msg.Seq = conv.MessageSeq
		msg.CreatedAt = now
		msg.UpdatedAt = now
		if err := tx.Create(messageToModel(msg)).Error; err != nil {
			return translate(err)
		}

		return tx.Model(&ConversationModel{}).
			Where("id = ?", msg.ConversationID).
			UpdateColumn("updated_at", now).Error
	})
}

// GetMessage 根据ID查询消息
func (s *Store) GetMessage(ctx context.Context, id string) (*chat.Message, error) {
	var m MessageModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return messageToEntity(&m), nil
}

// ListMessages 查询会话消息，按 Seq 升序
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]*chat.Message, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&ConversationModel{}).Where("id = ?", conversationID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, repository.ErrNotFound
	}

	var rows []MessageModel
	if err := db.Where("conversation_id = ?", conversationID).Order("seq asc").Find(&rows).Error; err != nil {
		return nil, err
	}

	msgs := make([]*chat.Message, 0, len(rows))
	for i := range rows {
		msgs = append(msgs, messageToEntity(&rows[i]))
	}
	return msgs, nil
}

// UpdateMessage 更新消息内容或评分
func (s *Store) UpdateMessage(ctx context.Context, id string, update chat.MessageUpdate) (*chat.Message, error) {
	var msg *chat.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m MessageModel
		if err := tx.First(&m, "id = ?", id).Error; err != nil {
			return translate(err)
		}

		now := time.Now()
		msg = messageToEntity(&m)
		update.Apply(msg, now)

		fields := map[string]any{
			"content":    msg.Content,
			"is_edited":  msg.IsEdited,
			"edited_at":  msg.EditedAt,
			"rating":     msg.Rating,
			"updated_at": now,
		}
		if err := tx.Model(&MessageModel{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return err
		}
		return tx.Model(&ConversationModel{}).
			Where("id = ?", msg.ConversationID).
			UpdateColumn("updated_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// DeleteMessage 删除消息
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m MessageModel
		if err := tx.First(&m, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if err := tx.Delete(&MessageModel{}, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Model(&ConversationModel{}).
			Where("id = ?", m.ConversationID).
			UpdateColumn("updated_at", time.Now()).Error
	})
}

// ===== 文件 =====

// CreateFile 创建文件记录
func (s *Store) CreateFile(ctx context.Context, f *file.File) error {
	f.CreatedAt = time.Now()
	return translate(s.db.WithContext(ctx).Create(fileToModel(f)).Error)
}

// GetFile 根据ID查询文件记录
func (s *Store) GetFile(ctx context.Context, id string) (*file.File, error) {
	var m FileModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return fileToEntity(&m), nil
}

// ListFiles 查询用户的全部文件
func (s *Store) ListFiles(ctx context.Context, userID string) ([]*file.File, error) {
	return s.findFiles(s.db.WithContext(ctx).Where("user_id = ?", userID))
}

// ListFilesByConversation 查询用户在某会话中的文件
func (s *Store) ListFilesByConversation(ctx context.Context, userID, conversationID string) ([]*file.File, error) {
	return s.findFiles(s.db.WithContext(ctx).Where("user_id = ? AND conversation_id = ?", userID, conversationID))
}

func (s *Store) findFiles(q *gorm.DB) ([]*file.File, error) {
	var rows []FileModel
	if err := q.Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	files := make([]*file.File, 0, len(rows))
	for i := range rows {
		files = append(files, fileToEntity(&rows[i]))
	}
	return files, nil
}

// DeleteFile 删除文件记录
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&FileModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
