package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"parley/internal/model/auth"
	"parley/internal/model/chat"
	"parley/internal/model/file"
)

// EnsureIndexes 创建所有模型的索引
// 在应用启动时调用，索引已存在时 CreateMany 不会报错
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	models := []Model{
		&auth.User{},
		&chat.Conversation{},
		&chat.Message{},
		&file.File{},
	}
	return EnsureAllIndexes(ctx, db, models...)
}
