package mongostore

import (
	"context"
	"os"
	"strings"
	"testing"

	"parley/internal/config"
	"parley/internal/pkg/id"
	"parley/internal/pkg/mongodb"
	"parley/internal/repository"
	"parley/internal/repository/repotest"
)

// 需要本地 MongoDB，设置 MONGO_URI 后运行
func TestMongoStoreConformance(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	repotest.Run(t, func(t *testing.T) repository.Store {
		ctx := context.Background()
		client, err := mongodb.New(&config.MongoConfig{
			URI:         uri,
			Database:    "parley_test_" + strings.ReplaceAll(id.New(), "-", "")[:12],
			MaxPoolSize: 10,
		})
		if err != nil {
			t.Fatalf("connect mongo: %v", err)
		}
		if err := mongodb.EnsureIndexes(ctx, client.Database()); err != nil {
			t.Fatalf("ensure indexes: %v", err)
		}
		t.Cleanup(func() {
			_ = client.Database().Drop(ctx)
			_ = client.Close(ctx)
		})
		return New(client)
	})
}
