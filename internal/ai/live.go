package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"parley/internal/ai/component"
	"parley/internal/model/chat"
)

// DefaultTimeout 单次补全默认超时
const DefaultTimeout = 60 * time.Second

// LiveOptions 真实网关选项
type LiveOptions struct {
	Timeout time.Duration
	// Aliases 会话模型到提供方模型名的映射
	Aliases map[string]string
	// PassModel 没有别名时直接把会话模型名传给提供方
	PassModel bool
}

// LiveGateway 调用真实模型，任何失败都降级为演示回复
type LiveGateway struct {
	completer component.Completer
	opts      LiveOptions
}

// NewLiveGateway 创建真实网关
func NewLiveGateway(completer component.Completer, opts LiveOptions) *LiveGateway {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &LiveGateway{completer: completer, opts: opts}
}

// providerModel 解析传给提供方的模型名
func (g *LiveGateway) providerModel(m chat.Model) string {
	if alias, ok := g.opts.Aliases[string(m)]; ok && alias != "" {
		return alias
	}
	if g.opts.PassModel {
		return string(m)
	}
	return ""
}

// Complete 实现 Gateway
func (g *LiveGateway) Complete(ctx context.Context, turns []chat.Turn, model chat.Model, temperature float64) Completion {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	provider := g.completer.Provider()
	start := time.Now()
	result, err := g.completer.Complete(ctx, turns, g.providerModel(model), chat.ClampTemperature(temperature))

	switch {
	case err != nil:
		event := log.Warn().Err(err).Str("provider", provider).Str("model", string(model)).Dur("elapsed", time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			event.Msg("completion timed out, using fallback reply")
		} else {
			event.Msg("completion failed, using fallback reply")
		}
	case result == nil || strings.TrimSpace(result.Content) == "":
		log.Warn().Str("provider", provider).Str("model", string(model)).Msg("completion returned empty reply, using fallback reply")
	default:
		return Completion{
			Content:  result.Content,
			Provider: provider,
			Usage: &Usage{
				PromptTokens:     result.PromptTokens,
				CompletionTokens: result.CompletionTokens,
				TotalTokens:      result.TotalTokens,
			},
		}
	}

	return Completion{
		Content:  DemoReply(turns),
		Degraded: true,
		Provider: provider,
	}
}
