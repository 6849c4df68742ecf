package service

import (
	"context"
	"sync/atomic"
	"testing"

	"parley/internal/ai"
	"parley/internal/model/chat"
	"parley/internal/repository"
	"parley/internal/repository/memory"
	"parley/internal/repository/repotest"
)

// countingStore 统计写入次数
type countingStore struct {
	repository.Store
	appends atomic.Int32
}

func (s *countingStore) AppendMessage(ctx context.Context, msg *chat.Message) error {
	s.appends.Add(1)
	return s.Store.AppendMessage(ctx, msg)
}

// stubGateway 返回固定的补全结果并记录收到的上下文
type stubGateway struct {
	completion ai.Completion
	turns      []chat.Turn
	model      chat.Model
}

func (g *stubGateway) Complete(ctx context.Context, turns []chat.Turn, model chat.Model, temperature float64) ai.Completion {
	g.turns = turns
	g.model = model
	return g.completion
}

// failingBuilder 组装上下文总是失败
type failingBuilder struct{}

func (failingBuilder) Build(ctx context.Context, conversationID string) ([]chat.Turn, error) {
	return nil, repository.ErrNotFound
}

type fixture struct {
	ctx   context.Context
	store *countingStore
	chat  *ChatService
	convs *ConversationService
}

func newFixture(t *testing.T) *fixture {
	store := &countingStore{Store: memory.New()}
	return &fixture{
		ctx:   context.Background(),
		store: store,
		chat:  NewChatService(store, ai.NewAssembler(store, ai.AssemblerOptions{}), ai.NewDemoGateway(), nil),
		convs: NewConversationService(store, ConversationDefaults{
			Model:        chat.ModelGPT35Turbo,
			Temperature:  0.7,
			ShareBaseURL: "http://localhost:3000/share/",
		}),
	}
}

// newConversation 为用户创建一个会话
func (f *fixture) newConversation(t *testing.T, userID string) *chat.Conversation {
	t.Helper()
	conv := repotest.NewConversation(userID)
	if err := f.store.CreateConversation(f.ctx, conv); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return conv
}
