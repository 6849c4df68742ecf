// Package realtime 进程内的会话事件分发
package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"parley/internal/model/chat"
	"parley/internal/pkg/id"
)

// subscriberBufferSize 每个订阅者的缓冲区大小
const subscriberBufferSize = 64

// EventType 事件类型
type EventType string

const (
	EventMessageCreated EventType = "message.created"
	EventMessageUpdated EventType = "message.updated"
	EventMessageDeleted EventType = "message.deleted"
)

// Event 会话事件
type Event struct {
	Type           EventType     `json:"type"`
	ConversationID string        `json:"conversationId"`
	Message        *chat.Message `json:"message,omitempty"`
	MessageID      string        `json:"messageId,omitempty"`
}

// Broadcaster 按会话分发事件
// 尽力投递：订阅者缓冲区满时丢弃事件，不阻塞发布方
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan Event // conversationID -> subID -> ch
}

// NewBroadcaster 创建分发器
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan Event),
	}
}

// Subscribe 订阅会话事件，ctx 取消时自动退订
func (b *Broadcaster) Subscribe(ctx context.Context, conversationID string) (<-chan Event, string) {
	subID := id.New()
	ch := make(chan Event, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[conversationID]; !ok {
		b.subscribers[conversationID] = make(map[string]chan Event)
	}
	b.subscribers[conversationID][subID] = ch
	b.mu.Unlock()

	log.Debug().Str("conversation_id", conversationID).Str("sub_id", subID).Msg("subscriber added")

	go func() {
		<-ctx.Done()
		b.Unsubscribe(conversationID, subID)
	}()

	return ch, subID
}

// Publish 向会话的所有订阅者发送事件
// 发送期间持有读锁，避免与 Unsubscribe 关闭 channel 竞争
func (b *Broadcaster) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subID, ch := range b.subscribers[event.ConversationID] {
		select {
		case ch <- event:
		default:
			log.Debug().
				Str("conversation_id", event.ConversationID).
				Str("sub_id", subID).
				Str("type", string(event.Type)).
				Msg("dropped event for slow subscriber")
		}
	}
}

// Unsubscribe 退订并关闭 channel
func (b *Broadcaster) Unsubscribe(conversationID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[conversationID]
	if !ok {
		return
	}
	ch, ok := subs[subID]
	if !ok {
		return
	}

	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, conversationID)
	}

	log.Debug().Str("conversation_id", conversationID).Str("sub_id", subID).Msg("subscriber removed")
}

// SubscriberCount 会话当前的订阅者数量
func (b *Broadcaster) SubscriberCount(conversationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[conversationID])
}

// Close 关闭所有订阅
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for convID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, convID)
	}
}
