// Package mongostore MongoDB 存储实现
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"parley/internal/model/auth"
	"parley/internal/model/chat"
	"parley/internal/model/file"
	"parley/internal/pkg/mongodb"
	"parley/internal/repository"
)

// Store MongoDB 实现
// 使用UUID作为 _id，无需ObjectID转换
type Store struct {
	client        *mongodb.Client
	users         *mongo.Collection
	conversations *mongo.Collection
	messages      *mongo.Collection
	files         *mongo.Collection
}

var _ repository.Store = (*Store)(nil)

// New 创建 MongoDB 存储
func New(client *mongodb.Client) *Store {
	db := client.Database()
	return &Store{
		client:        client,
		users:         db.Collection((&auth.User{}).Collection()),
		conversations: db.Collection((&chat.Conversation{}).Collection()),
		messages:      db.Collection((&chat.Message{}).Collection()),
		files:         db.Collection((&file.File{}).Collection()),
	}
}

// Ping 检查连接
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Close 关闭连接
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// translate 将驱动错误转换为仓库错误
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return repository.ErrConflict
	default:
		return err
	}
}

// touch 推进会话更新时间，$max 保证 updated_at 不回退
func (s *Store) touch(ctx context.Context, id string, now time.Time) error {
	res, err := s.conversations.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$max": bson.M{"updated_at": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ===== 用户 =====

// CreateUser 创建用户
func (s *Store) CreateUser(ctx context.Context, user *auth.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.users.InsertOne(ctx, user)
	return translate(err)
}

// FindUserByID 根据ID查询用户
func (s *Store) FindUserByID(ctx context.Context, id string) (*auth.User, error) {
	var user auth.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindUserByEmail 根据邮箱查询用户
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	var user auth.User
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// UpdateUser 更新用户资料
func (s *Store) UpdateUser(ctx context.Context, id string, update auth.UserUpdate) (*auth.User, error) {
	set := bson.M{"updated_at": time.Now()}
	if update.Username != nil {
		set["username"] = *update.Username
	}
	if update.Theme != nil {
		set["theme"] = *update.Theme
	}
	if update.Language != nil {
		set["language"] = *update.Language
	}
	if update.ProfileImage != nil {
		set["profile_image"] = *update.ProfileImage
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user auth.User
	err := s.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// ===== 会话 =====

// CreateConversation 创建会话
func (s *Store) CreateConversation(ctx context.Context, conv *chat.Conversation) error {
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	// $push 不能作用于 null 字段
	if conv.MessageIDs == nil {
		conv.MessageIDs = []string{}
	}

	_, err := s.conversations.InsertOne(ctx, conv)
	return translate(err)
}

// GetConversation 根据ID查询会话
func (s *Store) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	var conv chat.Conversation
	if err := s.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&conv); err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

// ListConversations 查询用户会话列表，最近更新在前
func (s *Store) ListConversations(ctx context.Context, userID string, opts repository.ListOptions) ([]*chat.Conversation, error) {
	findOpts := options.Find().
		SetSort(bson.D{bson.E{Key: "updated_at", Value: -1}})

	filter := bson.M{"user_id": userID, "is_archived": opts.Archived}
	cursor, err := s.conversations.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var convs []*chat.Conversation
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []*chat.Conversation{}
	}
	return convs, nil
}

// UpdateConversation 部分更新会话
func (s *Store) UpdateConversation(ctx context.Context, id string, update chat.ConversationUpdate) (*chat.Conversation, error) {
	set := bson.M{}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Model != nil {
		set["model"] = *update.Model
	}
	if update.Temperature != nil {
		set["temperature"] = *update.Temperature
	}
	if update.IsArchived != nil {
		set["is_archived"] = *update.IsArchived
	}
	if update.IsShared != nil {
		set["is_shared"] = *update.IsShared
	}

	doc := bson.M{"$max": bson.M{"updated_at": time.Now()}}
	if len(set) > 0 {
		doc["$set"] = set
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var conv chat.Conversation
	if err := s.conversations.FindOneAndUpdate(ctx, bson.M{"_id": id}, doc, opts).Decode(&conv); err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

// TouchConversation 刷新更新时间
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	return s.touch(ctx, id, time.Now())
}

// DeleteConversation 删除会话及其消息
// 先删消息再删会话，最后再清理一次并发追加的消息
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if _, err := s.GetConversation(ctx, id); err != nil {
		return err
	}

	if _, err := s.messages.DeleteMany(ctx, bson.M{"conversation_id": id}); err != nil {
		return err
	}
	res, err := s.conversations.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	_, err = s.messages.DeleteMany(ctx, bson.M{"conversation_id": id})
	return err
}

// SetShareToken 设置分享令牌，已有令牌时保持不变
func (s *Store) SetShareToken(ctx context.Context, id, token string) (string, error) {
	filter := bson.M{"_id": id, "share_token": bson.M{"$exists": false}}
	update := bson.M{
		"$set": bson.M{"share_token": token},
		"$max": bson.M{"updated_at": time.Now()},
	}
	if _, err := s.conversations.UpdateOne(ctx, filter, update); err != nil {
		return "", translate(err)
	}

	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return "", err
	}
	if conv.ShareToken == nil {
		return "", repository.ErrConflict
	}
	return *conv.ShareToken, nil
}

// FindConversationByShareToken 根据分享令牌查询会话
func (s *Store) FindConversationByShareToken(ctx context.Context, token string) (*chat.Conversation, error) {
	var conv chat.Conversation
	if err := s.conversations.FindOne(ctx, bson.M{"share_token": token}).Decode(&conv); err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

// ===== 消息 =====

// AppendMessage 追加消息
// 通过对会话文档 $inc message_seq 原子分配 Seq，$max 保证 CreatedAt 沿 Seq 不减
func (s *Store) AppendMessage(ctx context.Context, msg *chat.Message) error {
	update := bson.M{
		"$inc":  bson.M{"message_seq": 1},
		"$push": bson.M{"message_ids": msg.ID},
		"$max":  bson.M{"updated_at": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var conv chat.Conversation
	if err := s.conversations.FindOneAndUpdate(ctx, bson.M{"_id": msg.ConversationID}, update, opts).Decode(&conv); err != nil {
		return translate(err)
	}

	if msg.Attachments == nil {
		msg.Attachments = []string{}
	}
	msg.Seq = conv.MessageSeq
	msg.CreatedAt = conv.UpdatedAt
	msg.UpdatedAt = conv.UpdatedAt

	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		s.pullMessageID(ctx, msg.ConversationID, msg.ID)
		return translate(err)
	}

	// 会话在追加期间被删除时清掉刚写入的消息
	if _, err := s.GetConversation(ctx, msg.ConversationID); errors.Is(err, repository.ErrNotFound) {
		_, _ = s.messages.DeleteOne(ctx, bson.M{"_id": msg.ID})
		return repository.ErrNotFound
	}
	return nil
}

// normalizeMessage 空附件以 omitempty 存储，读回时还原为空列表
func normalizeMessage(msg *chat.Message) *chat.Message {
	if msg.Attachments == nil {
		msg.Attachments = []string{}
	}
	return msg
}

func (s *Store) pullMessageID(ctx context.Context, conversationID, messageID string) {
	_, _ = s.conversations.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$pull": bson.M{"message_ids": messageID}},
	)
}

// GetMessage 根据ID查询消息
func (s *Store) GetMessage(ctx context.Context, id string) (*chat.Message, error) {
	var msg chat.Message
	if err := s.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&msg); err != nil {
		return nil, translate(err)
	}
	return normalizeMessage(&msg), nil
}

// ListMessages 查询会话消息，按 Seq 升序
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]*chat.Message, error) {
	n, err := s.conversations.CountDocuments(ctx, bson.M{"_id": conversationID})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, repository.ErrNotFound
	}

	opts := options.Find().SetSort(bson.D{bson.E{Key: "seq", Value: 1}})
	cursor, err := s.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []*chat.Message
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*chat.Message{}
	}
	for _, m := range msgs {
		normalizeMessage(m)
	}
	return msgs, nil
}

// UpdateMessage 更新消息内容或评分
func (s *Store) UpdateMessage(ctx context.Context, id string, update chat.MessageUpdate) (*chat.Message, error) {
	now := time.Now()
	set := bson.M{"updated_at": now}
	if update.Content != nil {
		set["content"] = *update.Content
		set["is_edited"] = true
		set["edited_at"] = now
	}
	if update.Rating != nil {
		set["rating"] = *update.Rating
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var msg chat.Message
	if err := s.messages.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&msg); err != nil {
		return nil, translate(err)
	}

	if err := s.touch(ctx, msg.ConversationID, now); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return normalizeMessage(&msg), nil
}

// DeleteMessage 删除消息并从会话列表中移除
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	var msg chat.Message
	if err := s.messages.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&msg); err != nil {
		return translate(err)
	}

	_, err := s.conversations.UpdateOne(ctx,
		bson.M{"_id": msg.ConversationID},
		bson.M{
			"$pull": bson.M{"message_ids": id},
			"$max":  bson.M{"updated_at": time.Now()},
		},
	)
	return err
}

// ===== 文件 =====

// CreateFile 创建文件记录
func (s *Store) CreateFile(ctx context.Context, f *file.File) error {
	f.CreatedAt = time.Now()
	_, err := s.files.InsertOne(ctx, f)
	return translate(err)
}

// GetFile 根据ID查询文件记录
func (s *Store) GetFile(ctx context.Context, id string) (*file.File, error) {
	var f file.File
	if err := s.files.FindOne(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

// ListFiles 查询用户的全部文件
func (s *Store) ListFiles(ctx context.Context, userID string) ([]*file.File, error) {
	return s.findFiles(ctx, bson.M{"user_id": userID})
}

// ListFilesByConversation 查询用户在某会话中的文件
func (s *Store) ListFilesByConversation(ctx context.Context, userID, conversationID string) ([]*file.File, error) {
	return s.findFiles(ctx, bson.M{"user_id": userID, "conversation_id": conversationID})
}

func (s *Store) findFiles(ctx context.Context, filter bson.M) ([]*file.File, error) {
	opts := options.Find().SetSort(bson.D{bson.E{Key: "created_at", Value: -1}})
	cursor, err := s.files.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var files []*file.File
	if err := cursor.All(ctx, &files); err != nil {
		return nil, err
	}
	if files == nil {
		files = []*file.File{}
	}
	return files, nil
}

// DeleteFile 删除文件记录
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	res, err := s.files.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
