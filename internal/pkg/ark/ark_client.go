package ark

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"

	"parley/internal/config"
)

const (
	DefaultBaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	DefaultModel   = "doubao-seed-1-6-flash-250615"
)

// Client Ark 客户端封装
// 用于调用火山引擎的 Ark API（豆包大模型）
// 使用官方 volcengine-go-sdk，可被多个请求并发使用
type Client struct {
	client *arkruntime.Client
	model  string
}

// NewClient 创建 Ark 客户端（使用官方 SDK）
func NewClient(cfg *config.AIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ark API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModel
	}

	arkClient := arkruntime.NewClientWithApiKey(cfg.APIKey, arkruntime.WithBaseUrl(baseURL))

	return &Client{
		client: arkClient,
		model:  modelName,
	}, nil
}

// Model 返回默认模型
func (c *Client) Model() string {
	return c.model
}

// ChatCompletionRequest 聊天完成请求
type ChatCompletionRequest struct {
	Model       string    // 为空时使用客户端默认模型
	Messages    []Message // 消息列表
	MaxTokens   int       // 0 表示不限制
	Temperature *float64
}

// Message 消息结构
type Message struct {
	Role    string // user, assistant, system
	Content string
}

// ChatCompletionResponse 聊天完成响应
type ChatCompletionResponse struct {
	ID      string
	Content string // 第一个 choice 的文本
	Usage   Usage
}

// Usage Token使用统计
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CreateChatCompletion 创建聊天完成
func (c *Client) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = c.model
	}

	input := &model.ChatCompletionRequest{
		Model:    modelName,
		Messages: convertMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		input.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		input.Temperature = float32(*req.Temperature)
	}

	output, err := c.client.CreateChatCompletion(ctx, input)
	if err != nil {
		log.Error().Err(err).Str("model", modelName).Msg("failed to call Ark ChatCompletion API")
		return nil, fmt.Errorf("ark API call failed: %w", err)
	}

	if len(output.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	resp := &ChatCompletionResponse{
		ID: output.ID,
		Usage: Usage{
			PromptTokens:     output.Usage.PromptTokens,
			CompletionTokens: output.Usage.CompletionTokens,
			TotalTokens:      output.Usage.TotalTokens,
		},
	}
	choice := output.Choices[0]
	if choice.Message.Content != nil && choice.Message.Content.StringValue != nil {
		resp.Content = *choice.Message.Content.StringValue
	}
	return resp, nil
}

// convertMessages 转换消息格式
func convertMessages(messages []Message) []*model.ChatCompletionMessage {
	result := make([]*model.ChatCompletionMessage, len(messages))
	for i := range messages {
		content := messages[i].Content
		result[i] = &model.ChatCompletionMessage{
			Role: messages[i].Role,
			Content: &model.ChatCompletionMessageContent{
				StringValue: &content,
			},
		}
	}
	return result
}
