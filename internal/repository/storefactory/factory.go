// Package storefactory 根据配置创建存储后端
package storefactory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"parley/internal/config"
	"parley/internal/pkg/cache"
	"parley/internal/pkg/mongodb"
	"parley/internal/repository"
	"parley/internal/repository/cached"
	"parley/internal/repository/gormstore"
	"parley/internal/repository/memory"
	"parley/internal/repository/mongostore"
)

// NewStore 根据 store.type 创建存储，配置了 redis.addr 时包装读缓存
func NewStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	var (
		store repository.Store
		err   error
	)

	switch cfg.Store.Type {
	case "memory", "":
		store = memory.New()
	case "mongo":
		store, err = newMongoStore(ctx, &cfg.Mongo)
	case "sqlite", "postgres":
		store, err = gormstore.Open(cfg.Store.Type, cfg.Store.DSN)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Store.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Type, err)
	}
	log.Info().Str("type", cfg.Store.Type).Msg("store initialized")

	if cfg.Redis.Addr == "" {
		return store, nil
	}

	redisCache, err := cache.NewRedisCache(&cfg.Redis)
	if err != nil {
		// 缓存不可用不影响服务
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, conversation cache disabled")
		return store, nil
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("conversation cache enabled")
	return cached.New(store, redisCache, cfg.Redis.TTL), nil
}

func newMongoStore(ctx context.Context, cfg *config.MongoConfig) (repository.Store, error) {
	client, err := mongodb.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := mongodb.EnsureIndexes(ctx, client.Database()); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}
	return mongostore.New(client), nil
}
