package ai

import (
	"context"
	"fmt"

	"parley/internal/model/chat"
	"parley/internal/pkg/tokenizer"
)

// MessageLister 按顺序读取会话消息
type MessageLister interface {
	ListMessages(ctx context.Context, conversationID string) ([]*chat.Message, error)
}

// AssemblerOptions 上下文窗口配置，0 表示不限制
type AssemblerOptions struct {
	MaxMessages  int
	MaxTokens    int
	SystemPrompt string
	Counter      tokenizer.Counter
}

// Assembler 把会话消息组装为发送给模型的对话轮次
type Assembler struct {
	store MessageLister
	opts  AssemblerOptions
}

// NewAssembler 创建组装器
func NewAssembler(store MessageLister, opts AssemblerOptions) *Assembler {
	if opts.Counter == nil {
		opts.Counter = tokenizer.CounterFunc(tokenizer.Estimate)
	}
	return &Assembler{store: store, opts: opts}
}

// Build 按 Seq 顺序返回会话的全部轮次，超出窗口时从最旧的开始丢弃
// 系统提示词放在最前面，不计入消息条数
func (a *Assembler) Build(ctx context.Context, conversationID string) ([]chat.Turn, error) {
	msgs, err := a.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	budget := a.opts.MaxTokens
	if budget > 0 && a.opts.SystemPrompt != "" {
		budget -= tokenizer.CountMessage(a.opts.Counter, a.opts.SystemPrompt)
		if budget <= 0 {
			// 提示词已占满预算时仍保留最近一轮
			budget = 1
		}
	}

	turns := Window(chat.TurnsFromMessages(msgs), a.opts.MaxMessages, budget, a.opts.Counter)
	if a.opts.SystemPrompt == "" {
		return turns, nil
	}

	out := make([]chat.Turn, 0, len(turns)+1)
	out = append(out, chat.Turn{Role: chat.RoleSystem, Content: a.opts.SystemPrompt})
	return append(out, turns...), nil
}

// Window 保留最近的轮次，使条数不超过 maxMessages、token 数不超过 maxTokens
// 最近一轮总是保留
func Window(turns []chat.Turn, maxMessages, maxTokens int, counter tokenizer.Counter) []chat.Turn {
	if len(turns) == 0 {
		return turns
	}

	start := 0
	if maxMessages > 0 && len(turns) > maxMessages {
		start = len(turns) - maxMessages
	}

	if maxTokens > 0 {
		used := 0
		i := len(turns) - 1
		for ; i >= start; i-- {
			cost := tokenizer.CountMessage(counter, turns[i].Content)
			if used+cost > maxTokens && i < len(turns)-1 {
				break
			}
			used += cost
		}
		start = i + 1
	}

	return turns[start:]
}
