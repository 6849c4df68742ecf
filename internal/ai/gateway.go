// Package ai 上下文组装与补全网关
package ai

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"parley/internal/ai/component"
	"parley/internal/config"
	"parley/internal/model/chat"
)

// Usage token 用量
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Completion 补全结果
// Degraded 为 true 表示内容来自降级兜底而非模型
type Completion struct {
	Content  string
	Degraded bool
	Provider string
	Usage    *Usage
}

// Gateway 补全网关，不返回错误，失败时给出兜底回复
type Gateway interface {
	Complete(ctx context.Context, turns []chat.Turn, model chat.Model, temperature float64) Completion
}

// NewGateway 根据配置选择网关
// provider 为 demo 或未配置 API Key 时使用离线演示网关
func NewGateway(ctx context.Context, cfg *config.AIConfig) Gateway {
	if cfg.Provider == "demo" || !hasAPIKey(cfg.APIKey) {
		log.Warn().Str("provider", cfg.Provider).Msg("AI API key not configured, using demo responses")
		return NewDemoGateway()
	}

	completer, err := component.NewCompleter(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Str("provider", cfg.Provider).Msg("failed to create AI provider, using demo responses")
		return NewDemoGateway()
	}

	log.Info().Str("provider", completer.Provider()).Str("model", cfg.Model).Msg("AI gateway ready")
	return NewLiveGateway(completer, LiveOptions{
		Timeout:   cfg.Timeout,
		Aliases:   cfg.ModelAliases,
		PassModel: cfg.Provider == "openai" || cfg.Provider == "azure" || cfg.Provider == "",
	})
}

// hasAPIKey 空值和模板占位值都视为未配置
func hasAPIKey(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && !strings.Contains(key, "your_")
}
