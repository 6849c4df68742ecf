package chat

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes 创建会话索引
// share_token 为稀疏唯一索引，未分享的会话不包含该字段
func (c *Conversation) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(c.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "user_id", Value: 1}, bson.E{Key: "is_archived", Value: 1}, bson.E{Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_user_archived_updated"),
		},
		{
			Keys:    bson.D{bson.E{Key: "share_token", Value: 1}},
			Options: options.Index().SetName("idx_share_token").SetUnique(true).SetSparse(true),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}

// EnsureIndexes 创建消息索引
func (m *Message) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(m.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "conversation_id", Value: 1}, bson.E{Key: "seq", Value: 1}},
			Options: options.Index().SetName("idx_conversation_seq"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
