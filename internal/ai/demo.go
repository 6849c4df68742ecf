package ai

import (
	"context"
	"fmt"
	"strings"

	"parley/internal/model/chat"
)

// APIKeyEnv 启用真实回复需要设置的环境变量
const APIKeyEnv = "PARLEY_AI_API_KEY"

// DemoProvider 演示网关的提供方名称
const DemoProvider = "demo"

// demoReplies 按顺序匹配，第一个命中的生效
var demoReplies = []struct {
	trigger string
	reply   string
}{
	{"hello", "Hi there! I'm an AI chatbot. Please configure a real AI API key (" + APIKeyEnv + ") to use actual AI responses."},
	{"how are you", "I'm doing well! Note: This is a demo response. Configure your AI API key to get real AI responses."},
	{"what can you do", "I can help with writing, coding, questions, and more! However, I'm currently in demo mode. To use real AI responses, please set up your AI API key."},
}

// DemoReply 根据最后一轮内容生成确定的演示回复
func DemoReply(turns []chat.Turn) string {
	var last string
	if len(turns) > 0 {
		last = turns[len(turns)-1].Content
	}

	lower := strings.ToLower(last)
	for _, r := range demoReplies {
		if strings.Contains(lower, r.trigger) {
			return r.reply
		}
	}

	return fmt.Sprintf("[Demo Mode] You said: \"%s\"\n\n"+
		"To enable real AI responses, please:\n"+
		"1. Get an API key from your AI provider\n"+
		"2. Set it as %s (or ai.api_key in configs/config.yaml)\n"+
		"3. Restart the server", last, APIKeyEnv)
}

// DemoGateway 离线网关，总是返回演示回复
type DemoGateway struct{}

// NewDemoGateway 创建离线网关
func NewDemoGateway() *DemoGateway {
	return &DemoGateway{}
}

// Complete 实现 Gateway
func (g *DemoGateway) Complete(ctx context.Context, turns []chat.Turn, model chat.Model, temperature float64) Completion {
	return Completion{
		Content:  DemoReply(turns),
		Provider: DemoProvider,
	}
}
