// Package cached 为存储提供会话读缓存
package cached

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"parley/internal/model/chat"
	"parley/internal/pkg/cache"
	"parley/internal/repository"
)

// Cache 缓存能力，*cache.RedisCache 满足该接口
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string, expiration time.Duration) (int64, error)
}

// Store 包装任意 repository.Store，缓存 GetConversation
// 所有会影响会话的写操作都会先落库，再递增会话版本并删除缓存
// 回源读取只有在版本前后一致时才保留写入的缓存
type Store struct {
	repository.Store
	cache Cache
	ttl   time.Duration
}

// New 创建带缓存的存储，ttl <= 0 时使用默认值
func New(inner repository.Store, c Cache, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = cache.ConversationCacheTTL
	}
	return &Store{Store: inner, cache: c, ttl: ttl}
}

func (s *Store) invalidate(ctx context.Context, conversationID string) {
	if conversationID == "" {
		return
	}
	// 版本 key 的过期时间长于缓存 ttl
	if _, err := s.cache.Incr(ctx, cache.ConversationGenerationKey(conversationID), 2*s.ttl); err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to bump conversation cache generation")
	}
	if err := s.cache.Delete(ctx, cache.ConversationCacheKey(conversationID)); err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to invalidate conversation cache")
	}
}

// generation 读取会话版本，从未失效过的会话版本为 0
func (s *Store) generation(ctx context.Context, id string) (int64, error) {
	var gen int64
	err := s.cache.Get(ctx, cache.ConversationGenerationKey(id), &gen)
	if cache.IsMiss(err) {
		return 0, nil
	}
	return gen, err
}

// GetConversation 先读缓存，未命中时回源并写入缓存
// 回源期间会话被修改或删除时，丢弃这次写入的快照
func (s *Store) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	key := cache.ConversationCacheKey(id)

	var conv chat.Conversation
	if err := s.cache.Get(ctx, key, &conv); err == nil {
		return &conv, nil
	} else if !cache.IsMiss(err) {
		log.Debug().Err(err).Str("conversation_id", id).Msg("conversation cache read failed")
	}

	before, genErr := s.generation(ctx, id)

	c, err := s.Store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		log.Debug().Err(genErr).Str("conversation_id", id).Msg("conversation cache generation unavailable, skip write")
		return c, nil
	}

	if err := s.cache.Set(ctx, key, c, s.ttl); err != nil {
		log.Debug().Err(err).Str("conversation_id", id).Msg("conversation cache write failed")
		return c, nil
	}
	if after, err := s.generation(ctx, id); err != nil || after != before {
		if err := s.cache.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("conversation_id", id).Msg("failed to drop stale conversation cache")
		}
	}
	return c, nil
}

// UpdateConversation 更新后失效缓存
func (s *Store) UpdateConversation(ctx context.Context, id string, update chat.ConversationUpdate) (*chat.Conversation, error) {
	defer s.invalidate(ctx, id)
	return s.Store.UpdateConversation(ctx, id, update)
}

// TouchConversation 刷新后失效缓存
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	defer s.invalidate(ctx, id)
	return s.Store.TouchConversation(ctx, id)
}

// DeleteConversation 删除后失效缓存
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	defer s.invalidate(ctx, id)
	return s.Store.DeleteConversation(ctx, id)
}

// SetShareToken 设置令牌后失效缓存
func (s *Store) SetShareToken(ctx context.Context, id, token string) (string, error) {
	defer s.invalidate(ctx, id)
	return s.Store.SetShareToken(ctx, id, token)
}

// AppendMessage 追加后失效所属会话缓存
func (s *Store) AppendMessage(ctx context.Context, msg *chat.Message) error {
	defer s.invalidate(ctx, msg.ConversationID)
	return s.Store.AppendMessage(ctx, msg)
}

// UpdateMessage 更新后失效所属会话缓存
func (s *Store) UpdateMessage(ctx context.Context, id string, update chat.MessageUpdate) (*chat.Message, error) {
	msg, err := s.Store.UpdateMessage(ctx, id, update)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, msg.ConversationID)
	return msg, nil
}

// DeleteMessage 删除后失效所属会话缓存
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	msg, err := s.Store.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	defer s.invalidate(ctx, msg.ConversationID)
	return s.Store.DeleteMessage(ctx, id)
}

// Ping 检查底层存储和缓存连接
func (s *Store) Ping(ctx context.Context) error {
	if err := s.Store.Ping(ctx); err != nil {
		return err
	}
	if p, ok := s.cache.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}

// Close 关闭底层存储和缓存连接
func (s *Store) Close(ctx context.Context) error {
	err := s.Store.Close(ctx)
	if c, ok := s.cache.(interface{ Close() error }); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
