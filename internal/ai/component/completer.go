package component

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"parley/internal/config"
	"parley/internal/model/chat"
	"parley/internal/pkg/ark"
)

// Result 一次补全的结果
type Result struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completer 把若干轮对话补全为一段文本
// modelName 为空时使用提供方配置的默认模型
type Completer interface {
	Complete(ctx context.Context, turns []chat.Turn, modelName string, temperature float64) (*Result, error)
	Provider() string
}

// NewCompleter 根据 ai.provider 创建 Completer
// openai / azure / ark 走 eino ChatModel，ark_sdk 直接使用火山引擎 SDK
func NewCompleter(ctx context.Context, cfg *config.AIConfig) (Completer, error) {
	if cfg.Provider == "ark_sdk" {
		client, err := ark.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		return &ArkCompleter{client: client, maxTokens: cfg.Options.MaxTokens}, nil
	}

	chatModel, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	return NewEinoCompleter(chatModel, provider), nil
}

// EinoCompleter 基于 eino ChatModel 的补全
type EinoCompleter struct {
	chatModel model.BaseChatModel
	provider  string
}

// NewEinoCompleter 包装任意 eino ChatModel
func NewEinoCompleter(chatModel model.BaseChatModel, provider string) *EinoCompleter {
	return &EinoCompleter{chatModel: chatModel, provider: provider}
}

// Provider 提供方名称
func (c *EinoCompleter) Provider() string {
	return c.provider
}

// Complete 调用 ChatModel.Generate
func (c *EinoCompleter) Complete(ctx context.Context, turns []chat.Turn, modelName string, temperature float64) (*Result, error) {
	opts := []model.Option{model.WithTemperature(float32(temperature))}
	if modelName != "" {
		opts = append(opts, model.WithModel(modelName))
	}

	resp, err := c.chatModel.Generate(ctx, toSchemaMessages(turns), opts...)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("empty response from %s", c.provider)
	}

	result := &Result{Content: resp.Content}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		result.PromptTokens = resp.ResponseMeta.Usage.PromptTokens
		result.CompletionTokens = resp.ResponseMeta.Usage.CompletionTokens
		result.TotalTokens = resp.ResponseMeta.Usage.TotalTokens
	}
	return result, nil
}

func toSchemaMessages(turns []chat.Turn) []*schema.Message {
	messages := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case chat.RoleSystem:
			messages = append(messages, schema.SystemMessage(t.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(t.Content, nil))
		default:
			messages = append(messages, schema.UserMessage(t.Content))
		}
	}
	return messages
}

// ArkCompleter 基于火山引擎 SDK 的补全
type ArkCompleter struct {
	client    *ark.Client
	maxTokens int
}

// Provider 提供方名称
func (c *ArkCompleter) Provider() string {
	return "ark_sdk"
}

// Complete 调用 Ark ChatCompletion
func (c *ArkCompleter) Complete(ctx context.Context, turns []chat.Turn, modelName string, temperature float64) (*Result, error) {
	messages := make([]ark.Message, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, ark.Message{Role: string(t.Role), Content: t.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, &ark.ChatCompletionRequest{
		Model:       modelName,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Content:          resp.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}
